package ai

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "  ", ""},
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", "Sure! {\"a\":{\"b\":2}} hope that helps", `{"a":{"b":2}}`},
		{"bare array", "[{\"term\":\"x\"}]", `[{"term":"x"}]`},
		{"object wrapping array", `{"translations":[1,2]}`, `{"translations":[1,2]}`},
		{"bracketed prose before object", "Here is the analysis [JSON]:\n{\"summary\":\"ok\"}", `{"summary":"ok"}`},
		{"trailing prose with braces", "{\"a\":1} then {oops}", `{"a":1}`},
		{"no json", "complete", "complete"},
		{"unparseable object", "{not json}", "{not json}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeJSONBlock(tc.input))
		})
	}
}

type fixedCapability struct {
	reply string
	err   error
	last  Request
}

func (f *fixedCapability) Enabled() bool { return true }

func (f *fixedCapability) Invoke(_ context.Context, req Request) (string, error) {
	f.last = req
	return f.reply, f.err
}

var testSchema = MustSchema("test", Object(map[string]*jsonschema.Schema{
	"winner": StringEnum("A", "B", "Similar"),
	"items":  StringList(),
}))

func TestDecodeJSONValidatesAgainstSchema(t *testing.T) {
	c := &fixedCapability{reply: "```json\n{\"winner\":\"A\",\"items\":[\"x\"]}\n```"}
	var out struct {
		Winner string   `json:"winner"`
		Items  []string `json:"items"`
	}

	err := DecodeJSON(context.Background(), c, Request{Prompt: "p"}, testSchema, &out)

	require.NoError(t, err)
	assert.Equal(t, "A", out.Winner)
	assert.Equal(t, []string{"x"}, out.Items)
	assert.Equal(t, FormatJSON, c.last.Format)
}

func TestDecodeJSONRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"bad enum", `{"winner":"C","items":[]}`},
		{"missing field", `{"winner":"A"}`},
		{"wrong type", `{"winner":"A","items":"x"}`},
		{"not json", `no idea`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out map[string]any
			err := DecodeJSON(context.Background(), &fixedCapability{reply: tc.reply}, Request{}, testSchema, &out)
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestDecodeJSONUnavailable(t *testing.T) {
	var out map[string]any
	err := DecodeJSON(context.Background(), NewGateway(GatewayConfig{}), Request{}, nil, &out)
	assert.ErrorIs(t, err, ErrUnavailable)
}
