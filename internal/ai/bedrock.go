package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/sirupsen/logrus"
)

const (
	// Inference profile ID, not the foundation model ID.
	defaultBedrockModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	defaultBedrockMaxTokens = 1024
	defaultBedrockTopP      = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockOptions tunes Converse calls.
type BedrockOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
	// Timeout bounds each Converse call; zero leaves it unbounded.
	Timeout time.Duration
}

// BedrockProvider implements Provider on the Bedrock Converse API.
type BedrockProvider struct {
	brc  bedrockRuntimeClient
	opts BedrockOptions
}

// NewBedrockProvider wraps a bedrock runtime client.
func NewBedrockProvider(brc bedrockRuntimeClient, opts BedrockOptions) *BedrockProvider {
	if opts.ModelID == "" {
		opts.ModelID = defaultBedrockModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultBedrockMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if opts.TopP == 0 {
		opts.TopP = defaultBedrockTopP
	}
	return &BedrockProvider{brc: brc, opts: opts}
}

// Name identifies the provider in logs and fallback errors.
func (b *BedrockProvider) Name() string {
	return "bedrock:" + b.opts.ModelID
}

// Generate sends req as one Converse call.
func (b *BedrockProvider) Generate(ctx context.Context, req Request) (string, error) {
	var sys []types.SystemContentBlock
	system := strings.TrimSpace(req.System)
	if req.Format == FormatJSON {
		system = strings.TrimSpace(system + "\nRespond with JSON only.")
	}
	if system != "" {
		sys = append(sys, &types.SystemContentBlockMemberText{Value: system})
	}

	msg := types.Message{Role: types.ConversationRoleUser}
	msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: req.Prompt})
	if len(req.Image) > 0 {
		msg.Content = append(msg.Content, &types.ContentBlockMemberImage{Value: types.ImageBlock{
			Format: imageFormat(req.ImageMIME),
			Source: &types.ImageSourceMemberBytes{Value: req.Image},
		}})
	}

	temp := b.opts.Temperature
	if req.Temperature != nil {
		temp = float32(*req.Temperature)
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(b.opts.ModelID),
		System:   sys,
		Messages: []types.Message{msg},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(b.opts.MaxTokens),
			Temperature: aws.Float32(temp),
			TopP:        aws.Float32(b.opts.TopP),
		},
	}
	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}
	out, err := b.brc.Converse(ctx, in)
	if err != nil {
		return "", b.classify(err)
	}

	if out.StopReason == types.StopReasonMaxTokens {
		logrus.WithField("provider", b.Name()).Warn("model hit max tokens; reply may be truncated")
	}
	if out.StopReason == types.StopReasonGuardrailIntervened || out.StopReason == types.StopReasonContentFiltered {
		return "", fmt.Errorf("%s: response blocked by safety filters", b.Name())
	}
	return textFromOutput(out), nil
}

func (b *BedrockProvider) classify(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return &StatusError{Provider: b.Name(), Code: http.StatusTooManyRequests, Message: aws.ToString(throttled.Message)}
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return &StatusError{Provider: b.Name(), Code: http.StatusServiceUnavailable, Message: aws.ToString(unavailable.Message)}
	}
	var internal *types.InternalServerException
	if errors.As(err, &internal) {
		return &StatusError{Provider: b.Name(), Code: http.StatusInternalServerError, Message: aws.ToString(internal.Message)}
	}
	var denied *types.AccessDeniedException
	if errors.As(err, &denied) {
		return &StatusError{Provider: b.Name(), Code: http.StatusForbidden, Message: aws.ToString(denied.Message)}
	}
	return fmt.Errorf("%s: %w", b.Name(), err)
}

func imageFormat(mime string) types.ImageFormat {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return types.ImageFormatPng
	case "image/gif":
		return types.ImageFormatGif
	case "image/webp":
		return types.ImageFormatWebp
	default:
		return types.ImageFormatJpeg
	}
}

// textFromOutput joins the assistant text blocks, preferring the last block
// that looks like a single JSON object.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	var texts []string
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	for i := len(texts) - 1; i >= 0; i-- {
		s := strings.TrimSpace(texts[i])
		if len(s) > 1 && s[0] == '{' && s[len(s)-1] == '}' {
			return s
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}
