package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"portfolio/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testGenerator(baseURL string, retries int) *Generator {
	return NewGenerator(config.LLMConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "gpt-4.1-nano",
		Temperature: 0.7,
		MaxTokens:   700,
		MaxRetries:  retries,
	})
}

func TestAnswerParsesJSONContract(t *testing.T) {
	srv := chatServer(t, `{"response": "Hey! I build RAG systems."}`)
	defer srv.Close()

	answer := testGenerator(srv.URL, 0).Answer(context.Background(), "what do you do?", []string{"chunk one"})

	assert.Equal(t, "Hey! I build RAG systems.", answer)
}

func TestAnswerToleratesWrappedJSON(t *testing.T) {
	srv := chatServer(t, "Sure, here you go:\n```json\n{\"response\": \"wrapped\"}\n```")
	defer srv.Close()

	answer := testGenerator(srv.URL, 0).Answer(context.Background(), "q", nil)

	assert.Equal(t, "wrapped", answer)
}

func TestAnswerFallsBackOnNonJSONOutput(t *testing.T) {
	srv := chatServer(t, "I am just plain prose with no braces")
	defer srv.Close()

	answer := testGenerator(srv.URL, 0).Answer(context.Background(), "q", nil)

	assert.Equal(t, FallbackAnswer, answer)
}

func TestAnswerFallsBackOnMissingResponseField(t *testing.T) {
	srv := chatServer(t, `{"answer": "wrong field"}`)
	defer srv.Close()

	answer := testGenerator(srv.URL, 0).Answer(context.Background(), "q", nil)

	assert.Equal(t, FallbackAnswer, answer)
}

func TestAnswerRetriesThenFallsBack(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	answer := testGenerator(srv.URL, 2).Answer(context.Background(), "q", nil)

	assert.Equal(t, FallbackAnswer, answer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnswerDoesNotSleepAfterFinalAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	start := time.Now()
	answer := testGenerator(srv.URL, 0).Answer(context.Background(), "q", nil)

	assert.Equal(t, FallbackAnswer, answer)
	// A single failed attempt has no backoff to wait out.
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestAnswerFallsBackWhenUpstreamUnreachable(t *testing.T) {
	answer := testGenerator("http://127.0.0.1:1", 0).Answer(context.Background(), "q", nil)

	assert.Equal(t, FallbackAnswer, answer)
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`{"response": "x"}`, `{"response": "x"}`, false},
		{"noise {\"response\": \"x\"} trailing", `{"response": "x"}`, false},
		{"no braces at all", "", true},
		{"}{", "", true},
	}
	for _, c := range cases {
		got, err := extractJSON(c.in)
		if c.wantErr {
			assert.Error(t, err, c.in)
		} else {
			require.NoError(t, err, c.in)
			assert.Equal(t, c.want, got)
		}
	}
}
