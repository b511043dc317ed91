package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDumpIncludesCallerAndFields(t *testing.T) {
	var buf bytes.Buffer
	Dump(&buf, struct {
		Verdict string
		Score   int
	}{Verdict: "Occasional", Score: 3})

	out := buf.String()
	assert.Contains(t, out, "dump_test.go:")
	assert.Contains(t, out, "Verdict: (string) (len=10) \"Occasional\"")
	assert.Contains(t, out, "Score: (int) 3")
}
