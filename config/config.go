// Package config centralises runtime configuration helpers for the reuse
// library.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultMaxSize     = 32
	defaultServiceName = "reuse"

	// EnvOTLPEndpoint overrides the telemetry endpoint from the environment.
	EnvOTLPEndpoint = "REUSE_OTLP_ENDPOINT"
)

// TelemetryConfig controls metric export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// PoolSettings names a pool and its idle-store ceiling.
type PoolSettings struct {
	Name    string `yaml:"name"`
	MaxSize int    `yaml:"max_size"`
}

// Settings contains the configuration tree loaded from defaults and overrides.
type Settings struct {
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Pools     []PoolSettings  `yaml:"pools"`
}

// Default returns settings with library defaults applied.
func Default() Settings {
	return Settings{
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "",
			ServiceName:  defaultServiceName,
		},
		Pools: nil,
	}
}

// Parse decodes YAML settings, applies defaults and environment overrides,
// and validates the result.
func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("config: parse yaml: %w", err)
	}
	s.applyDefaults()
	s.applyEnvOverrides()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Load reads and parses settings from the given path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

func (s *Settings) applyDefaults() {
	if strings.TrimSpace(s.Telemetry.ServiceName) == "" {
		s.Telemetry.ServiceName = defaultServiceName
	}
	for i := range s.Pools {
		if s.Pools[i].MaxSize == 0 {
			s.Pools[i].MaxSize = defaultMaxSize
		}
	}
}

func (s *Settings) applyEnvOverrides() {
	if endpoint := strings.TrimSpace(os.Getenv(EnvOTLPEndpoint)); endpoint != "" {
		s.Telemetry.OTLPEndpoint = endpoint
	}
}

// Validate checks pool names are unique and non-empty and ceilings positive.
func (s Settings) Validate() error {
	seen := make(map[string]struct{}, len(s.Pools))
	for _, p := range s.Pools {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("config: pool entry with empty name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("config: duplicate pool name %q", name)
		}
		seen[name] = struct{}{}
		if p.MaxSize <= 0 {
			return fmt.Errorf("config: pool %q: max_size must be positive, got %d", name, p.MaxSize)
		}
	}
	return nil
}
