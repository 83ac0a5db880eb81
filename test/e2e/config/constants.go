// Package config provides configuration constants for e2e tests.
package config

import "time"

// Default connection URLs. The e2e runner assumes a coach server and a
// mock-llm server are already running (see test/e2e/fixtures).
const (
	DefaultCoachURL   = "http://localhost:8080"
	DefaultMockLLMURL = "http://localhost:11434"
)

// Default timeouts.
const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultStageTimeout   = 90 * time.Second
)

// Config holds the e2e test configuration.
type Config struct {
	CoachURL       string        `json:"coach_url"`
	MockLLMURL     string        `json:"mock_llm_url"`
	RequestTimeout time.Duration `json:"request_timeout"`
	StageTimeout   time.Duration `json:"stage_timeout"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		CoachURL:       DefaultCoachURL,
		MockLLMURL:     DefaultMockLLMURL,
		RequestTimeout: DefaultRequestTimeout,
		StageTimeout:   DefaultStageTimeout,
	}
}
