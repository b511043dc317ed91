package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled output contract for one pipeline stage.
type Schema struct {
	name     string
	compiled *gojsonschema.Schema
}

// NewSchema compiles def into a validator.
func NewSchema(name string, def *jsonschema.Schema) (*Schema, error) {
	if def == nil {
		return nil, errors.New("schema definition is nil")
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("marshal %s schema: %w", name, err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Schema{name: name, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level contracts.
func MustSchema(name string, def *jsonschema.Schema) *Schema {
	s, err := NewSchema(name, def)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks doc against the contract.
func (s *Schema) Validate(doc []byte) error {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	sort.Strings(msgs)
	return fmt.Errorf("%s: %s", s.name, strings.Join(msgs, "; "))
}

// StringEnum is a string schema restricted to values.
func StringEnum(values ...string) *jsonschema.Schema {
	enum := make([]any, 0, len(values))
	for _, v := range values {
		enum = append(enum, v)
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// StringList is an array-of-strings schema.
func StringList() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}}
}

// Object is an object schema requiring every listed property.
func Object(props map[string]*jsonschema.Schema) *jsonschema.Schema {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	sort.Strings(required)
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}
