package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures one Gemini credential.
type GeminiConfig struct {
	APIKey    string
	Model     string
	MaxTokens int32
	// Timeout bounds each GenerateContent call; zero leaves it unbounded.
	Timeout time.Duration
	// Label distinguishes credentials sharing a model in logs, e.g. "key2".
	Label string
}

// GeminiProvider implements Provider on the Gemini API.
type GeminiProvider struct {
	models    contentGenerator
	model     string
	label     string
	maxTokens int32
	timeout   time.Duration
}

// NewGeminiProvider dials a Gemini client bound to a single API key.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrUnavailable
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Timeout > 0 {
		timeout := cfg.Timeout
		clientCfg.HTTPOptions = genai.HTTPOptions{Timeout: &timeout}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newGeminiProvider(client.Models, cfg), nil
}

func newGeminiProvider(models contentGenerator, cfg GeminiConfig) *GeminiProvider {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{
		models:    models,
		model:     model,
		label:     strings.TrimSpace(cfg.Label),
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}
}

// Name identifies the credential in logs and fallback errors.
func (g *GeminiProvider) Name() string {
	if g.label == "" {
		return "gemini:" + g.model
	}
	return "gemini:" + g.model + "#" + g.label
}

// Generate sends req as one GenerateContent call.
func (g *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image, mime))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{}
	if system := strings.TrimSpace(req.System); system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = g.maxTokens
	}
	if req.Format == FormatJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", g.classify(err)
	}
	if resp == nil {
		return "", fmt.Errorf("%s: nil response", g.Name())
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%s: empty response", g.Name())
	}
	return text, nil
}

func (g *GeminiProvider) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: g.Name(), Code: apiErr.Code, Message: apiErr.Message}
	}
	return fmt.Errorf("%s: %w", g.Name(), err)
}
