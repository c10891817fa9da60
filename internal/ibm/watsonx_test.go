package ibm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatsonxClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "2024-01-15", r.URL.Query().Get("version"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"stop_sequences":[]`)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "prompt\nchunk", payload["input"])
		assert.Equal(t, DefaultModelID, payload["model_id"])
		assert.Equal(t, "proj-1", payload["project_id"])

		params := payload["parameters"].(map[string]any)
		assert.Equal(t, "greedy", params["decoding_method"])
		assert.Equal(t, float64(8100), params["max_new_tokens"])
		assert.Equal(t, float64(0), params["min_new_tokens"])
		assert.Equal(t, float64(1), params["repetition_penalty"])

		_, _ = w.Write([]byte(`{"model_id":"meta-llama/llama-3-3-70b-instruct","results":[{"generated_text":"# Report On Title","stop_reason":"eos_token"}]}`))
	}))
	defer srv.Close()

	client := NewWatsonxClient(WatsonxConfig{
		Endpoint:   srv.URL,
		ProjectID:  "proj-1",
		Params:     DefaultParams(),
		HTTPClient: srv.Client(),
	})
	assert.Equal(t, "Watsonx", client.Name())

	text, err := client.Generate(context.Background(), "tok", "prompt\nchunk")
	require.NoError(t, err)
	assert.Equal(t, "# Report On Title", text)
}

func TestWatsonxClient_Generate_NilStopSequencesSentAsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"stop_sequences":[]`)
		_, _ = w.Write([]byte(`{"results":[{"generated_text":"ok"}]}`))
	}))
	defer srv.Close()

	client := NewWatsonxClient(WatsonxConfig{Endpoint: srv.URL, HTTPClient: srv.Client()})
	_, err := client.Generate(context.Background(), "tok", "x")
	require.NoError(t, err)
}

func TestWatsonxClient_Generate_UnusableResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not json", http.StatusBadGateway, "<html>bad gateway</html>"},
		{"no results", http.StatusOK, `{"results":[]}`},
		{"error payload", http.StatusBadRequest, `{"errors":[{"code":"invalid_input"}]}`},
		{"missing generated_text", http.StatusOK, `{"results":[{"stop_reason":"error"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewWatsonxClient(WatsonxConfig{Endpoint: srv.URL, HTTPClient: srv.Client()})
			text, err := client.Generate(context.Background(), "tok", "x")
			require.Error(t, err)
			assert.Empty(t, text)

			var respErr *ResponseError
			require.True(t, errors.As(err, &respErr))
			assert.Equal(t, tt.body, respErr.Raw)
			assert.Equal(t, tt.status, respErr.StatusCode)
		})
	}
}

func TestWatsonxClient_Generate_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewWatsonxClient(WatsonxConfig{Endpoint: url})
	_, err := client.Generate(context.Background(), "tok", "x")

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Empty(t, respErr.Raw)
}
