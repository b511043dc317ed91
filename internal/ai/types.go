package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Format selects the shape a provider is asked to reply with.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Request is one prompt sent to the underlying generative model.
type Request struct {
	Prompt      string
	System      string
	Image       []byte
	ImageMIME   string
	Format      Format
	Temperature *float64
}

// Temperature returns a pointer suitable for Request.Temperature.
func Temperature(v float64) *float64 {
	return &v
}

// Provider is a single credentialed model backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Capability is what pipeline stages depend on: one blocking call that
// either yields model output or fails.
type Capability interface {
	Enabled() bool
	Invoke(ctx context.Context, req Request) (string, error)
}

var (
	// ErrUnavailable is returned when no credential is configured or AI is disabled.
	ErrUnavailable = errors.New("capability unavailable: no credential configured")
	// ErrMalformedOutput marks model output that does not fit the requested shape.
	ErrMalformedOutput = errors.New("malformed model output")
)

// StatusError is an HTTP-level rejection reported by a provider.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Code, e.Message)
}

// CapabilityError reports that every configured credential failed.
type CapabilityError struct {
	Attempts []error
}

func (e *CapabilityError) Error() string {
	if len(e.Attempts) == 0 {
		return "capability error: no attempts made"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("capability error: %d attempt(s) failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

func (e *CapabilityError) Unwrap() []error {
	return e.Attempts
}
