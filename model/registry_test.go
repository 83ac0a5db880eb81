package model_test

import (
	"testing"
	"time"

	"github.com/c360studio/coach/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *model.Registry {
	return model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityScoring: {
				Description: "test scoring",
				Preferred:   []string{"primary"},
				Fallback:    []string{"backup"},
			},
		},
		map[string]*model.EndpointConfig{
			"primary": {Provider: "anthropic", Model: "primary-model"},
			"backup":  {Provider: "ollama", URL: "http://localhost:11434/v1", Model: "backup-model"},
		},
	)
}

func TestRegistry_Resolve(t *testing.T) {
	reg := testRegistry()

	assert.Equal(t, "primary", reg.Resolve(model.CapabilityScoring))
	// Unknown capability falls back to the default model
	assert.Equal(t, "default", reg.Resolve(model.CapabilityFast))
}

func TestRegistry_GetFallbackChain(t *testing.T) {
	reg := testRegistry()

	chain := reg.GetFallbackChain(model.CapabilityScoring)
	assert.Equal(t, []string{"primary", "backup"}, chain)
}

func TestRegistry_ForDimension(t *testing.T) {
	reg := testRegistry()

	// Every known dimension routes to the scoring capability
	assert.Equal(t, "primary", reg.ForDimension("discovery"))
	assert.Equal(t, "primary", reg.ForDimension("product_knowledge"))
	// Unknown dimensions also default to scoring
	assert.Equal(t, "primary", reg.ForDimension("unknown"))
}

func TestRegistry_GetEndpoint(t *testing.T) {
	reg := testRegistry()

	ep := reg.GetEndpoint("primary")
	require.NotNil(t, ep)
	assert.Equal(t, "anthropic", ep.Provider)

	assert.Nil(t, reg.GetEndpoint("missing"))
}

func TestRegistry_CircuitBreaker(t *testing.T) {
	reg := testRegistry()
	reg.SetHealthConfig(model.HealthConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	assert.True(t, reg.IsEndpointAvailable("primary"))

	reg.MarkEndpointFailure("primary")
	assert.True(t, reg.IsEndpointAvailable("primary"))

	reg.MarkEndpointFailure("primary")
	assert.False(t, reg.IsEndpointAvailable("primary"))

	health := reg.GetEndpointHealth("primary")
	require.NotNil(t, health)
	assert.True(t, health.CircuitOpen)
	assert.Equal(t, 2, health.FailureCount)

	// Recovery timeout passes: half-open lets a test request through
	time.Sleep(60 * time.Millisecond)
	assert.True(t, reg.IsEndpointAvailable("primary"))

	// Success closes the circuit
	reg.MarkEndpointSuccess("primary")
	health = reg.GetEndpointHealth("primary")
	require.NotNil(t, health)
	assert.False(t, health.CircuitOpen)
	assert.Equal(t, 0, health.FailureCount)
}

func TestRegistry_AvailableFallbackChainSkipsOpenCircuits(t *testing.T) {
	reg := testRegistry()
	reg.SetHealthConfig(model.HealthConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
	})

	reg.MarkEndpointFailure("primary")

	chain := reg.GetAvailableFallbackChain(model.CapabilityScoring)
	assert.Equal(t, []string{"backup"}, chain)

	// All endpoints down: return the full chain rather than nothing
	reg.MarkEndpointFailure("backup")
	chain = reg.GetAvailableFallbackChain(model.CapabilityScoring)
	assert.Equal(t, []string{"primary", "backup"}, chain)
}

func TestLoadFromYAML(t *testing.T) {
	data := []byte(`model_registry:
  capabilities:
    scoring:
      description: judgment
      preferred: [claude-sonnet]
      fallback: [qwen]
  endpoints:
    claude-sonnet:
      provider: anthropic
      model: claude-sonnet-4-20250514
    qwen:
      provider: ollama
      url: http://localhost:11434/v1
      model: qwen2.5:14b
  defaults:
    model: qwen
`)

	reg, err := model.LoadFromYAML(data)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet", reg.Resolve(model.CapabilityScoring))
	assert.Equal(t, []string{"claude-sonnet", "qwen"}, reg.GetFallbackChain(model.CapabilityScoring))
}

func TestFromConfig_EmptyYieldsDefaults(t *testing.T) {
	reg := model.FromConfig(nil)
	require.NotNil(t, reg)
	assert.NotEmpty(t, reg.ListEndpoints())
}

func TestParseCapability(t *testing.T) {
	assert.Equal(t, model.CapabilityScoring, model.ParseCapability("scoring"))
	assert.Equal(t, model.Capability(""), model.ParseCapability("jazz"))
}
