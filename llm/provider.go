package llm

import (
	"net/http"
	"sync"
)

// Provider adapts one endpoint wire format. Implementations live in the
// providers package and register themselves on import; the client looks
// them up by the endpoint's configured provider name.
type Provider interface {
	// Name returns the provider identifier ("anthropic", "ollama", "openai").
	Name() string

	// BuildURL constructs the full API endpoint URL from a base URL,
	// applying the provider's default when the base is empty.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific auth and version headers.
	SetHeaders(req *http.Request)

	// BuildRequestBody renders the JSON request body. A nil temperature
	// means endpoint default; zero maxTokens means no explicit limit.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the completion from provider-specific JSON.
	ParseResponse(body []byte, model string) (*Response, error)
}

var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry, replacing any previous
// registration under the same name.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name, nil when unknown.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns the registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}
