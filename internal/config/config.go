// Package config handles Torque configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/torque/config.yaml, /etc/torque/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "torque", "config.yaml"))
	}

	paths = append(paths, "/etc/torque/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Torque configuration.
type Config struct {
	Listen    ListenConfig            `yaml:"listen"`
	Anthropic AnthropicConfig         `yaml:"anthropic"`
	Backend   BackendConfig           `yaml:"backend"`
	Pricing   map[string]PricingEntry `yaml:"pricing"`
	Plans     map[string]PlanConfig   `yaml:"plans"`
	Filter    FilterConfig            `yaml:"filter"`
	Domains   map[string][]string     `yaml:"domains"`
	Evidence  EvidenceConfig          `yaml:"evidence"`
	DataDir   string                  `yaml:"data_dir"`
	LogLevel  string                  `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// BackendConfig points at the data lookup service that executes tools.
type BackendConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PricingEntry defines per-model token pricing in USD per million tokens.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// PlanConfig defines a subscription tier's limits and tool entitlements.
type PlanConfig struct {
	// MaxToolCalls caps tool-use iterations per exchange.
	MaxToolCalls int `yaml:"max_tool_calls"`
	// MaxResponseTokens caps a single model response.
	MaxResponseTokens int `yaml:"max_response_tokens"`
	// Tools is the allow-list of tool names. Empty means all tools.
	Tools []string `yaml:"tools"`
}

// FilterConfig tunes domain-based tool filtering. The filter only bounds
// prompt size; the MinTools floor guards against classifier false
// negatives starving the model of capability.
type FilterConfig struct {
	// CoreTools are always included when domain filtering applies.
	CoreTools []string `yaml:"core_tools"`
	// MinTools is the floor below which filtering is discarded (default 4).
	MinTools int `yaml:"min_tools"`
}

// EvidenceConfig tunes the post-answer citation enforcement pass.
// Pattern lists are heuristic configuration, not invariants.
type EvidenceConfig struct {
	// Enabled toggles the whole pass. Default true.
	Enabled *bool `yaml:"enabled"`
	// Patterns maps risk category names to regex lists, overriding the
	// built-in defaults when present.
	Patterns map[string][]string `yaml:"patterns"`
}

// EvidenceEnabled reports whether the enforcement pass should run.
func (c *Config) EvidenceEnabled() bool {
	if c.Evidence.Enabled == nil {
		return true
	}
	return *c.Evidence.Enabled
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Backend: BackendConfig{
			URL:            "http://localhost:9090",
			TimeoutSeconds: 30,
		},
		Pricing: map[string]PricingEntry{
			"claude-opus-4-20250514":   {InputPerMillion: 15.0, OutputPerMillion: 75.0},
			"claude-sonnet-4-20250514": {InputPerMillion: 3.0, OutputPerMillion: 15.0},
			"claude-haiku-3-20240307":  {InputPerMillion: 0.25, OutputPerMillion: 1.25},
		},
		Plans: map[string]PlanConfig{
			"free": {
				MaxToolCalls:      3,
				MaxResponseTokens: 1024,
				Tools: []string{
					"vehicle_lookup", "compare_vehicles",
					"known_issues", "knowledge_search",
					"maintenance_schedule",
				},
			},
			"enthusiast": {
				MaxToolCalls:      6,
				MaxResponseTokens: 2048,
				Tools: []string{
					"vehicle_lookup", "compare_vehicles",
					"known_issues", "knowledge_search",
					"maintenance_schedule", "expert_reviews",
					"parts_catalog", "events_lookup", "dyno_runs",
				},
			},
			"pro": {
				MaxToolCalls:      10,
				MaxResponseTokens: 4096,
				// Empty list = every catalog tool.
			},
		},
		Filter: FilterConfig{
			CoreTools: []string{"vehicle_lookup", "knowledge_search"},
			MinTools:  4,
		},
		DataDir: "data",
	}
}
