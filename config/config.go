// Package config provides configuration loading and management for coach.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/coach/model"
	"github.com/c360studio/coach/rubric"
)

// Config represents the complete coach configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	NATS      NATSConfig      `yaml:"nats"`
	Cache     CacheConfig     `yaml:"cache"`
	Rubrics   RubricsConfig   `yaml:"rubrics"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	LLM       LLMConfig       `yaml:"llm"`
	Defaults  DefaultsConfig  `yaml:"defaults"`

	// ModelRegistry configures capability-to-model routing. Nil means the
	// built-in defaults.
	ModelRegistry *model.RegistryConfig `yaml:"model_registry"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `yaml:"addr"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string `yaml:"url"`
	// PublishEvents enables analysis.completed event publishing.
	PublishEvents bool `yaml:"publish_events"`
}

// CacheConfig configures the analysis cache.
type CacheConfig struct {
	// Backend selects the cache store: "memory" or "nats".
	Backend string `yaml:"backend"`
	// TTL is how long cached results stay live (default 90 days).
	TTL time.Duration `yaml:"ttl"`
	// CompressThreshold is the payload size in bytes above which entries
	// are gzip-compressed (default 4096).
	CompressThreshold int `yaml:"compress_threshold"`
}

// RubricsConfig configures rubric loading.
type RubricsConfig struct {
	// Dir is the directory of rubric YAML files.
	Dir string `yaml:"dir"`
	// Watch enables hot reload on file changes.
	Watch bool `yaml:"watch"`
}

// KnowledgeConfig configures the knowledge-base provider.
type KnowledgeConfig struct {
	// Dir is the root directory of per-product knowledge bases.
	Dir string `yaml:"dir"`
}

// LLMConfig configures model invocation.
type LLMConfig struct {
	// Timeout is the per-dimension model call timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultsConfig holds request defaults.
type DefaultsConfig struct {
	// Role applies when a request omits one (default "ae").
	Role string `yaml:"role"`
	// Dimensions is the set scored when a request omits them
	// (default: all).
	Dimensions []string `yaml:"dimensions"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		NATS: NATSConfig{
			URL:           "",
			PublishEvents: false,
		},
		Cache: CacheConfig{
			Backend:           "memory",
			TTL:               90 * 24 * time.Hour,
			CompressThreshold: 4096,
		},
		Rubrics: RubricsConfig{
			Dir:   "configs/rubrics",
			Watch: false,
		},
		Knowledge: KnowledgeConfig{
			Dir: "configs/knowledge",
		},
		LLM: LLMConfig{
			Timeout: 3 * time.Minute,
		},
		Defaults: DefaultsConfig{
			Role: string(rubric.RoleAE),
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.Cache.Backend {
	case "memory", "nats":
	default:
		return fmt.Errorf("cache.backend must be \"memory\" or \"nats\", got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "nats" && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required for the nats cache backend")
	}
	if c.NATS.PublishEvents && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when publish_events is enabled")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}

	if c.Rubrics.Dir == "" {
		return fmt.Errorf("rubrics.dir is required")
	}

	if !rubric.Role(c.Defaults.Role).IsValid() {
		return fmt.Errorf("defaults.role %q is not a known role", c.Defaults.Role)
	}
	for _, d := range c.Defaults.Dimensions {
		if !rubric.Dimension(d).IsValid() {
			return fmt.Errorf("defaults.dimensions contains unknown dimension %q", d)
		}
	}

	return nil
}

// DefaultRole returns the configured default role.
func (c *Config) DefaultRole() rubric.Role {
	return rubric.Role(c.Defaults.Role)
}

// DefaultDimensions returns the configured default dimension set, or all
// dimensions when none are configured.
func (c *Config) DefaultDimensions() []rubric.Dimension {
	if len(c.Defaults.Dimensions) == 0 {
		return rubric.AllDimensions
	}
	dims := make([]rubric.Dimension, 0, len(c.Defaults.Dimensions))
	for _, d := range c.Defaults.Dimensions {
		dims = append(dims, rubric.Dimension(d))
	}
	return dims
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.PublishEvents {
		c.NATS.PublishEvents = true
	}

	if other.Cache.Backend != "" {
		c.Cache.Backend = other.Cache.Backend
	}
	if other.Cache.TTL != 0 {
		c.Cache.TTL = other.Cache.TTL
	}
	if other.Cache.CompressThreshold != 0 {
		c.Cache.CompressThreshold = other.Cache.CompressThreshold
	}

	if other.Rubrics.Dir != "" {
		c.Rubrics.Dir = other.Rubrics.Dir
	}
	if other.Rubrics.Watch {
		c.Rubrics.Watch = true
	}

	if other.Knowledge.Dir != "" {
		c.Knowledge.Dir = other.Knowledge.Dir
	}

	if other.LLM.Timeout != 0 {
		c.LLM.Timeout = other.LLM.Timeout
	}

	if other.Defaults.Role != "" {
		c.Defaults.Role = other.Defaults.Role
	}
	if len(other.Defaults.Dimensions) > 0 {
		c.Defaults.Dimensions = other.Defaults.Dimensions
	}

	if other.ModelRegistry != nil {
		c.ModelRegistry = other.ModelRegistry
	}
}
