package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "test"})

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestEnabled(t *testing.T) {
	assert.False(t, Config{Endpoint: "  "}.Enabled())
	assert.True(t, Config{Endpoint: "localhost:4317"}.Enabled())
}
