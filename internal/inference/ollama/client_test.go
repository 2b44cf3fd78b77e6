package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MorganRO8/LoA-sub000/internal/inference"
)

func TestGenerate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.1","response":"\"A\",\"1\"","done":true,"prompt_eval_count":12,"eval_count":4}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", Model: "llama3.1"}, nil)
	resp, err := c.Generate(context.Background(), inference.Request{
		Prompt:  "extract",
		Options: inference.Options{Temperature: 0.3, RepeatPenalty: 1.2, MaxTokens: 64},
		Images:  []inference.Image{{Name: "fig1.png", Data: []byte("png")}},
	})
	require.NoError(t, err)
	assert.Equal(t, `"A","1"`, resp.Text)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 4, resp.CompletionTokens)

	assert.Equal(t, "llama3.1", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("png"))}, got.Images)
	assert.Equal(t, 0.3, got.Options["temperature"])
	assert.Equal(t, 1.2, got.Options["repeat_penalty"])
	assert.Equal(t, float64(64), got.Options["num_predict"])
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		overload bool
	}{
		{"runner crash", http.StatusInternalServerError, `{"error":"llama runner process has terminated"}`, true},
		{"unavailable", http.StatusServiceUnavailable, `busy`, true},
		{"model missing", http.StatusNotFound, `{"error":"model not found"}`, false},
		{"garbage body", http.StatusOK, `not json`, false},
		{"error field", http.StatusOK, `{"error":"out of memory"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(Config{BaseURL: srv.URL}, nil).Generate(context.Background(), inference.Request{Prompt: "x"})
			require.Error(t, err)
			assert.True(t, inference.IsTransport(err))
			assert.Equal(t, tt.overload, inference.IsOverload(err))
		})
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	c := NewClient(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, c.Ping(context.Background()))

	srv.Close()
	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, inference.IsOverload(err), "nothing listening counts as overload")
}
