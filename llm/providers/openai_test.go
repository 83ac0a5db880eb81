package providers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_BuildURL(t *testing.T) {
	p := &OpenAIProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{
			name:    "empty uses hosted API",
			baseURL: "",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "openrouter base URL",
			baseURL: "https://openrouter.ai/api/v1",
			want:    "https://openrouter.ai/api/v1/chat/completions",
		},
		{
			name:    "trailing slash trimmed",
			baseURL: "https://api.openai.com/v1/",
			want:    "https://api.openai.com/v1/chat/completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestOpenAIProvider_SetHeaders(t *testing.T) {
	p := &OpenAIProvider{}

	newRequest := func(t *testing.T) *http.Request {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil)
		require.NoError(t, err)
		return req
	}

	t.Run("bearer auth from environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "key-from-env")

		req := newRequest(t)
		p.SetHeaders(req)

		assert.Equal(t, "Bearer key-from-env", req.Header.Get("Authorization"))
	})

	t.Run("openrouter attribution headers", func(t *testing.T) {
		t.Setenv("OPENROUTER_SITE_URL", "https://coach.example.com")
		t.Setenv("OPENROUTER_SITE_NAME", "Coach")

		req := newRequest(t)
		p.SetHeaders(req)

		assert.Equal(t, "https://coach.example.com", req.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Coach", req.Header.Get("X-Title"))
	})

	t.Run("no headers without environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("OPENROUTER_SITE_URL", "")
		t.Setenv("OPENROUTER_SITE_NAME", "")

		req := newRequest(t)
		p.SetHeaders(req)

		assert.Empty(t, req.Header.Get("Authorization"))
		assert.Empty(t, req.Header.Get("HTTP-Referer"))
		assert.Empty(t, req.Header.Get("X-Title"))
	})
}

func TestOpenAIProvider_SharesWireFormat(t *testing.T) {
	p := &OpenAIProvider{}

	// The embedded OpenAI-compatible codec handles body and response
	body, err := p.BuildRequestBody("gpt-4o", scoringMessages, nil, 0)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"model":"gpt-4o"`)

	assert.Equal(t, "openai", p.Name())
}
