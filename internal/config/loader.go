package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a configuration file, validating it per
// spec.md §6's validation rules.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate enforces spec.md §6's rules: at least one frontend and
// backend, unique names, unique listen addresses, every frontend's
// backend resolving, weight >= 1, HTTP health checks requiring a path,
// and a recognized log level.
func (c *Config) Validate() error {
	if err := c.Global.Validate(); err != nil {
		return fmt.Errorf("global config: %w", err)
	}

	if len(c.Frontends) == 0 {
		return fmt.Errorf("at least one frontend is required")
	}
	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}

	backendNames := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("backend[%d]: %w", i, err)
		}
		if backendNames[b.Name] {
			return fmt.Errorf("duplicate backend name: %s", b.Name)
		}
		backendNames[b.Name] = true
	}

	frontendNames := make(map[string]bool, len(c.Frontends))
	listenAddrs := make(map[string]bool, len(c.Frontends))
	for i, f := range c.Frontends {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("frontend[%d]: %w", i, err)
		}
		if frontendNames[f.Name] {
			return fmt.Errorf("duplicate frontend name: %s", f.Name)
		}
		frontendNames[f.Name] = true

		if listenAddrs[f.Listen] {
			return fmt.Errorf("duplicate listen address: %s", f.Listen)
		}
		listenAddrs[f.Listen] = true

		if !backendNames[f.Backend] {
			return fmt.Errorf("frontend %q references unknown backend %q", f.Name, f.Backend)
		}
	}

	return nil
}

// Validate checks global configuration.
func (g *GlobalConfig) Validate() error {
	if g.LogLevel != "" && !validLogLevels[strings.ToLower(g.LogLevel)] {
		return fmt.Errorf("invalid log_level: %s", g.LogLevel)
	}

	validFormats := map[string]bool{"json": true, "pretty": true, "": true}
	if !validFormats[strings.ToLower(g.LogFormat)] {
		return fmt.Errorf("invalid log_format: %s", g.LogFormat)
	}

	if g.Metrics.Enabled && g.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics.enabled is true")
	}

	return nil
}

// Validate checks one frontend entry.
func (f *FrontendConfig) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("frontend name is required")
	}
	if f.Listen == "" {
		return fmt.Errorf("frontend %q: listen address is required", f.Name)
	}
	if _, _, err := net.SplitHostPort(f.Listen); err != nil {
		return fmt.Errorf("frontend %q: invalid listen address %q: %w", f.Name, f.Listen, err)
	}

	switch strings.ToLower(f.Protocol) {
	case "tcp", "http":
	default:
		return fmt.Errorf("frontend %q: invalid protocol %q", f.Name, f.Protocol)
	}

	if f.Backend == "" {
		return fmt.Errorf("frontend %q: backend is required", f.Name)
	}

	if !validAlgorithms[strings.ToLower(f.Algorithm)] {
		return fmt.Errorf("frontend %q: invalid algorithm %q", f.Name, f.Algorithm)
	}

	return nil
}

// Validate checks one backend pool entry.
func (b *BackendConfig) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("backend name is required")
	}
	if len(b.Servers) == 0 {
		return fmt.Errorf("backend %q: at least one server is required", b.Name)
	}

	for i, s := range b.Servers {
		if s.Address == "" {
			return fmt.Errorf("backend %q: server[%d]: address is required", b.Name, i)
		}
		if _, _, err := net.SplitHostPort(s.Address); err != nil {
			return fmt.Errorf("backend %q: server[%d]: invalid address %q: %w", b.Name, i, s.Address, err)
		}
		if s.Weight < 1 {
			return fmt.Errorf("backend %q: server[%d]: weight must be >= 1, got %d", b.Name, i, s.Weight)
		}
	}

	if b.HealthCheck != nil {
		if err := b.HealthCheck.Validate(); err != nil {
			return fmt.Errorf("backend %q: health_check: %w", b.Name, err)
		}
	}

	return nil
}

// Validate checks a health check spec.
func (h *HealthCheck) Validate() error {
	switch strings.ToLower(h.Type) {
	case "tcp":
	case "http":
		if h.Path == "" {
			return fmt.Errorf("path is required for http health checks")
		}
	default:
		return fmt.Errorf("invalid type %q", h.Type)
	}
	return nil
}
