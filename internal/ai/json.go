package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON asks c for a JSON reply, validates it against schema (when not
// nil) and unmarshals it into out. Every shape problem wraps ErrMalformedOutput.
func DecodeJSON(ctx context.Context, c Capability, req Request, schema *Schema, out any) error {
	if c == nil || !c.Enabled() {
		return ErrUnavailable
	}
	req.Format = FormatJSON
	text, err := c.Invoke(ctx, req)
	if err != nil {
		return err
	}

	block := normalizeJSONBlock(text)
	if block == "" {
		return fmt.Errorf("%w: empty reply", ErrMalformedOutput)
	}
	if schema != nil {
		if err := schema.Validate([]byte(block)); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	}
	if err := json.Unmarshal([]byte(block), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// normalizeJSONBlock strips markdown fences and returns the first complete
// JSON object or array found in input.
func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		trimmed = strings.TrimSpace(trimmed)
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	trimmed = strings.TrimSpace(trimmed)

	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != '{' && trimmed[i] != '[' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(trimmed[i:])).Decode(&raw); err == nil {
			return strings.TrimSpace(string(raw))
		}
	}

	// Nothing parses; hand back the widest candidate so validation reports why.
	obj := strings.Index(trimmed, "{")
	arr := strings.Index(trimmed, "[")
	open, closer := obj, "}"
	if arr >= 0 && (obj < 0 || arr < obj) {
		open, closer = arr, "]"
	}
	if open < 0 {
		return trimmed
	}
	end := strings.LastIndex(trimmed, closer)
	if end < open {
		return trimmed
	}
	return strings.TrimSpace(trimmed[open : end+1])
}
