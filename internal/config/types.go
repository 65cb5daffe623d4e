// Package config defines and loads the load balancer's configuration
// document (spec.md §6) and validates it before the core starts.
// Grounded on internal/config/types.go's Config/GlobalConfig/LogConfig
// struct shapes and its cascading Validate() style, generalized from
// the teacher's deception-gateway profile schema (rules/decoy/shaping)
// to spec.md's frontends/backends schema.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it decodes from and encodes to the
// human-readable strings spec.md §4.H/§6 mandates ("10s", "500ms")
// instead of yaml.v3's default bare-integer-nanosecond scalar, the
// pitfall the teacher's own HealthCheckDefaults-equivalent fields (e.g.
// DelayMin/DelayMax) leave unhandled. Grounded on gopkg.in/yaml.v3's
// documented yaml.Unmarshaler/yaml.Marshaler hooks, the library already
// in use for every other config field.
type Duration time.Duration

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML decodes a duration string ("5s", "500ms") into d.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML encodes d back to its string form, so parse(serialize(c))
// round-trips losslessly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the root configuration document.
type Config struct {
	Global               GlobalConfig       `yaml:"global"`
	HealthCheckDefaults  HealthCheckDefaults `yaml:"health_check_defaults"`
	Frontends            []FrontendConfig   `yaml:"frontends"`
	Backends             []BackendConfig    `yaml:"backends"`
}

// GlobalConfig holds process-wide settings outside the core's scope
// (spec.md §1's "external collaborators").
type GlobalConfig struct {
	LogLevel  string        `yaml:"log_level"`  // trace|debug|info|warn|error
	LogFormat string        `yaml:"log_format"` // json|pretty
	Metrics   MetricsConfig `yaml:"metrics"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // e.g. ":9090"
	Path    string `yaml:"path"`    // e.g. "/metrics"
}

// HealthCheckDefaults supplies the interval/timeout/threshold/cooldown
// values a BackendConfig's HealthCheck may omit.
type HealthCheckDefaults struct {
	Interval           Duration `yaml:"interval"`
	Timeout            Duration `yaml:"timeout"`
	UnhealthyThreshold int      `yaml:"unhealthy_threshold"`
	HealthyThreshold   int      `yaml:"healthy_threshold"`
	Cooldown           Duration `yaml:"cooldown"`
}

// FrontendConfig describes one listener bound to a backend pool and an
// algorithm, matching spec.md §3's FrontendSpec.
type FrontendConfig struct {
	Name      string         `yaml:"name"`
	Listen    string         `yaml:"listen"` // host:port
	Protocol  string         `yaml:"protocol"` // tcp|http
	Backend   string         `yaml:"backend"`
	Algorithm string         `yaml:"algorithm"` // round_robin|weighted|least_connections|ip_hash
	HTTP      *HTTPOptions   `yaml:"http,omitempty"`
	TCP       *TCPOptions    `yaml:"tcp,omitempty"`
}

// HTTPOptions configures header injection for an HTTP frontend.
type HTTPOptions struct {
	RequestHeaders  map[string]string `yaml:"request_headers,omitempty"`
	ResponseHeaders map[string]string `yaml:"response_headers,omitempty"`
}

// TCPOptions configures the backend connect timeout for a TCP frontend.
type TCPOptions struct {
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// BackendConfig names a pool of servers and an optional health check.
type BackendConfig struct {
	Name        string         `yaml:"name"`
	Servers     []ServerConfig `yaml:"servers"`
	HealthCheck *HealthCheck   `yaml:"health_check,omitempty"`
}

// ServerConfig is one upstream endpoint within a BackendConfig.
type ServerConfig struct {
	Address string `yaml:"address"`
	Weight  int    `yaml:"weight"`
}

// HealthCheck describes the active probe for a backend, matching
// spec.md §3's HealthCheckSpec.
type HealthCheck struct {
	Type           string   `yaml:"type"` // tcp|http
	Path           string   `yaml:"path,omitempty"`
	ExpectedStatus int      `yaml:"expected_status,omitempty"`
	Interval       Duration `yaml:"interval,omitempty"`
	Timeout        Duration `yaml:"timeout,omitempty"`
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validAlgorithms = map[string]bool{
	"round_robin": true, "weighted": true, "least_connections": true, "ip_hash": true,
}
