package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// walk tries each credential in order with the identical request and returns
// the first usable reply. errs is nil on success.
func (g *Gateway) walk(ctx context.Context, req Request) (string, []error) {
	var errs []error
	for i, p := range g.providers {
		text, err := p.Generate(ctx, req)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = fmt.Errorf("%s: empty response", p.Name())
		}
		errs = append(errs, err)

		if ctx.Err() != nil {
			return "", errs
		}
		if i < len(g.providers)-1 {
			g.fallbacks.Add(ctx, 1)
			logrus.WithFields(logrus.Fields{
				"provider": p.Name(),
				"next":     g.providers[i+1].Name(),
			}).WithError(err).Warn("capability credential failed, falling back")
		}
	}
	return "", errs
}

func anyRetryable(errs []error) bool {
	for _, err := range errs {
		if shouldRetry(err) {
			return true
		}
	}
	return false
}

// shouldRetry reports whether err is transient: throttling, upstream 5xx or a
// transport timeout.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		switch status.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
