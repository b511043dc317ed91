package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLambdaHandlerServesRoutes(t *testing.T) {
	env := newTestEnv(t, &stubLLM{}, nil)
	handler := LambdaHandler(env.router)

	event := events.APIGatewayV2HTTPRequest{
		RawPath: "/api/healthz",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodGet},
		},
	}
	resp, err := handler(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body)
	assert.Contains(t, resp.Headers["Content-Type"], "application/json")
}

func TestLambdaHandlerDecodesBase64Body(t *testing.T) {
	env := newTestEnv(t, &stubLLM{}, nil)
	handler := LambdaHandler(env.router)

	body := base64.StdEncoding.EncodeToString([]byte(`{"text":"   "}`))
	event := events.APIGatewayV2HTTPRequest{
		RawPath:         "/api/analyze/text",
		Headers:         map[string]string{"content-type": "application/json"},
		Body:            body,
		IsBase64Encoded: true,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodPost},
		},
	}
	resp, err := handler(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Body, "Text cannot be empty")

	event.Body = "%%%"
	resp, err = handler(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Body, "decode request body")
}

func TestLambdaHandlerQueryString(t *testing.T) {
	env := newTestEnv(t, &stubLLM{}, nil)
	handler := LambdaHandler(env.router)

	event := events.APIGatewayV2HTTPRequest{
		RawPath:        "/api/history",
		RawQueryString: "page=1&pageSize=5",
		Headers:        map[string]string{"X-User-ID": "lambda-user"},
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodGet},
		},
	}
	resp, err := handler(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"items":[],"total":0}`, resp.Body)
}
