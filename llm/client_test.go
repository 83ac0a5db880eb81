package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/coach/llm"
	_ "github.com/c360studio/coach/llm/providers" // Register providers
	"github.com/c360studio/coach/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dimensionResult is the kind of content a scoring call produces.
const dimensionResult = `{"score":14,"maxScore":20,"status":"partial"}`

// scoringRequest is a minimal orchestrator-shaped request.
func scoringRequest() llm.Request {
	return llm.Request{
		Capability: "scoring",
		Messages: []llm.Message{
			{Role: "user", Content: "Score the discovery dimension of this transcript."},
		},
	}
}

// completion writes an OpenAI-format success response carrying content.
func completion(w http.ResponseWriter, modelName, content string) {
	resp := map[string]any{
		"model": modelName,
		"choices": []map[string]any{
			{
				"message": map[string]string{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     1890,
			"completion_tokens": 120,
			"total_tokens":      2010,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

// scoringRegistry routes the scoring capability at the given endpoints, the
// first being preferred and the rest fallbacks.
func scoringRegistry(urls ...string) *model.Registry {
	names := make([]string, len(urls))
	endpoints := make(map[string]*model.EndpointConfig, len(urls))
	for i, url := range urls {
		name := "scorer"
		if i > 0 {
			name = "scorer-fallback"
		}
		names[i] = name
		endpoints[name] = &model.EndpointConfig{
			Provider: "ollama",
			URL:      url,
			Model:    name,
		}
	}

	return model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityScoring: {
				Description: "transcript scoring",
				Preferred:   names[:1],
				Fallback:    names[1:],
			},
		},
		endpoints,
	)
}

// quickRetry keeps backoff out of test wall time.
func quickRetry(maxAttempts int) llm.ClientOption {
	return llm.WithRetryConfig(llm.RetryConfig{
		MaxAttempts:       maxAttempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        10 * time.Millisecond,
	})
}

func TestClient_Complete_ReturnsScoringCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		completion(w, "scorer", dimensionResult)
	}))
	defer server.Close()

	client := llm.NewClient(scoringRegistry(server.URL))

	resp, err := client.Complete(context.Background(), scoringRequest())
	require.NoError(t, err)

	assert.Equal(t, dimensionResult, resp.Content)
	assert.Equal(t, "scorer", resp.Model)
	assert.Equal(t, 2010, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_Complete_RetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32

	// 503 twice, then a valid completion
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("model warming up")) //nolint:errcheck
			return
		}
		completion(w, "scorer", dimensionResult)
	}))
	defer server.Close()

	client := llm.NewClient(scoringRegistry(server.URL), quickRetry(3))

	resp, err := client.Complete(context.Background(), scoringRequest())
	require.NoError(t, err)
	assert.Equal(t, dimensionResult, resp.Content)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_Complete_RetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("rate limited")) //nolint:errcheck
			return
		}
		completion(w, "scorer", dimensionResult)
	}))
	defer server.Close()

	client := llm.NewClient(scoringRegistry(server.URL), quickRetry(3))

	resp, err := client.Complete(context.Background(), scoringRequest())
	require.NoError(t, err)
	assert.Equal(t, dimensionResult, resp.Content)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_Complete_FatalErrorStopsImmediately(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid api key")) //nolint:errcheck
	}))
	defer server.Close()

	client := llm.NewClient(scoringRegistry(server.URL))

	_, err := client.Complete(context.Background(), scoringRequest())
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))

	// No retry and no fallback on auth failures
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_Complete_FallsBackWhenPreferredExhausted(t *testing.T) {
	var primaryAttempts, fallbackAttempts atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryAttempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("primary down")) //nolint:errcheck
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackAttempts.Add(1)
		completion(w, "scorer-fallback", dimensionResult)
	}))
	defer fallback.Close()

	client := llm.NewClient(scoringRegistry(primary.URL, fallback.URL), quickRetry(2))

	resp, err := client.Complete(context.Background(), scoringRequest())
	require.NoError(t, err)

	assert.Equal(t, "scorer-fallback", resp.Model)
	assert.Equal(t, int32(2), primaryAttempts.Load())  // exhausted max attempts
	assert.Equal(t, int32(1), fallbackAttempts.Load()) // succeeded first try
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		completion(w, "scorer", dimensionResult)
	}))
	defer server.Close()

	client := llm.NewClient(scoringRegistry(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, scoringRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestClient_Complete_ValidationErrors(t *testing.T) {
	client := llm.NewClient(model.NewDefaultRegistry())

	tests := []struct {
		name    string
		req     llm.Request
		wantErr string
	}{
		{
			name:    "empty capability",
			req:     llm.Request{Messages: []llm.Message{{Role: "user", Content: "score this"}}},
			wantErr: "capability is required",
		},
		{
			name:    "no messages",
			req:     llm.Request{Capability: "scoring"},
			wantErr: "at least one message is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Complete(context.Background(), tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
