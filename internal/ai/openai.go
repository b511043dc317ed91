package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// OpenAIConfig holds parameters for an OpenAI-compatible chat completions backend.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIProvider implements Provider against the chat completions API.
type OpenAIProvider struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
}

// NewOpenAIProvider constructs a provider if the supplied configuration is valid.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrUnavailable
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1-mini"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	temp := cfg.Temperature
	if temp <= 0 {
		temp = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: temp,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Name identifies the provider in logs and fallback errors.
func (c *OpenAIProvider) Name() string {
	return "openai:" + c.model
}

// Generate sends req as a single chat completion.
func (c *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return "", &StatusError{Provider: "openai", Code: resp.StatusCode, Message: apiErr.Error.Message}
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openai empty response")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

func (c *OpenAIProvider) buildPayload(req Request) map[string]any {
	var messages []map[string]any
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, map[string]any{"role": "system", "content": system})
	}

	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
		messages = append(messages, map[string]any{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": req.Prompt},
				{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
			},
		})
	} else {
		messages = append(messages, map[string]any{"role": "user", "content": req.Prompt})
	}

	temp := c.temperature
	if req.Temperature != nil {
		temp = clampFloat(*req.Temperature, 0, 2)
	}
	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": temp,
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}
	if req.Format == FormatJSON {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}
	return payload
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func clampFloat(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
