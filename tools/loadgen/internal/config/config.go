// Package config defines the YAML configuration for the load generator.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vectorcraft/tuner/tools/loadgen/internal/pool"
)

// Errors returned by the config package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// Config is the root configuration for a load run against the tuner API.
type Config struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// Description provides additional context.
	Description string `yaml:"description,omitempty"`

	// Target is the system under load.
	Target TargetConfig `yaml:"target"`

	// Auth configures operator login for protected endpoints.
	Auth AuthConfig `yaml:"auth,omitempty"`

	// Duration is the total duration of the run. Default: 1m.
	Duration time.Duration `yaml:"duration"`

	// QPS is the request rate across all workers. Default: 10.
	QPS float64 `yaml:"qps"`

	// Workers is the number of concurrent workers. Default: 4.
	Workers int `yaml:"workers"`

	// Endpoints are the API calls to exercise, selected by weight.
	Endpoints []EndpointConfig `yaml:"endpoints"`

	// Harvest extracts values from responses into the parameter pool
	// so later requests can reference live identifiers.
	Harvest []HarvestRule `yaml:"harvest,omitempty"`

	// Pool configures the parameter pool.
	Pool PoolConfig `yaml:"pool,omitempty"`
}

// TargetConfig identifies the system under load.
type TargetConfig struct {
	// BaseURL is the root of the tuner API, e.g. http://localhost:8080.
	BaseURL string `yaml:"baseUrl"`

	// Timeout is the per-request timeout. Default: 30s.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// AuthConfig configures operator login. When Username is empty the run
// is unauthenticated and protected endpoints will return 401.
type AuthConfig struct {
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// LoginPath is the login endpoint. Default: /api/v1/auth/login.
	LoginPath string `yaml:"loginPath,omitempty"`
}

// EndpointConfig describes one API call. Path and Body may contain
// placeholders of the form {semantic.type}; each is resolved from the
// parameter pool at request time, falling back to a generated value.
type EndpointConfig struct {
	Name   string `yaml:"name"`
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
	Body   string `yaml:"body,omitempty"`

	// Weight controls how often this endpoint is selected relative to
	// the others. Default: 1.
	Weight int `yaml:"weight,omitempty"`

	// RequireAuth marks endpoints that need a bearer token.
	RequireAuth bool `yaml:"requireAuth,omitempty"`
}

// HarvestRule extracts a field from a response body into the pool.
type HarvestRule struct {
	// Endpoint is the name of the endpoint whose responses to harvest.
	Endpoint string `yaml:"endpoint"`

	// FieldPath is a dot path into the JSON body, e.g. "data.id".
	// A "#" segment fans out over an array: "data.#.id".
	FieldPath string `yaml:"fieldPath"`

	// SemanticType is the pool bucket the value lands in.
	SemanticType pool.SemanticType `yaml:"semanticType"`
}

// PoolConfig configures the parameter pool.
type PoolConfig struct {
	// MaxValuesPerType bounds each semantic-type bucket. Default: 100.
	MaxValuesPerType int `yaml:"maxValuesPerType,omitempty"`

	// TTL expires harvested values. Default: 5m.
	TTL time.Duration `yaml:"ttl,omitempty"`

	// EvictionPolicy is FIFO, LRU or Random. Default: FIFO.
	EvictionPolicy string `yaml:"evictionPolicy,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with usable defaults.
func (c *Config) ApplyDefaults() {
	if c.Duration <= 0 {
		c.Duration = time.Minute
	}
	if c.QPS <= 0 {
		c.QPS = 10
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Target.Timeout <= 0 {
		c.Target.Timeout = 30 * time.Second
	}
	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = "/api/v1/auth/login"
	}
	if c.Pool.MaxValuesPerType <= 0 {
		c.Pool.MaxValuesPerType = 100
	}
	if c.Pool.TTL <= 0 {
		c.Pool.TTL = 5 * time.Minute
	}
	if c.Pool.EvictionPolicy == "" {
		c.Pool.EvictionPolicy = pool.EvictionFIFO.String()
	}
	for i := range c.Endpoints {
		if c.Endpoints[i].Weight <= 0 {
			c.Endpoints[i].Weight = 1
		}
		if c.Endpoints[i].Method == "" {
			c.Endpoints[i].Method = "GET"
		}
		c.Endpoints[i].Method = strings.ToUpper(c.Endpoints[i].Method)
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("%w: target.baseUrl is required", ErrInvalidConfig)
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("%w: at least one endpoint is required", ErrInvalidConfig)
	}

	names := make(map[string]bool, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("%w: endpoint name is required", ErrInvalidConfig)
		}
		if names[ep.Name] {
			return fmt.Errorf("%w: duplicate endpoint name %q", ErrInvalidConfig, ep.Name)
		}
		names[ep.Name] = true
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("%w: endpoint %q path must start with /", ErrInvalidConfig, ep.Name)
		}
		switch ep.Method {
		case "GET", "POST", "PUT", "PATCH", "DELETE":
		default:
			return fmt.Errorf("%w: endpoint %q has unsupported method %q", ErrInvalidConfig, ep.Name, ep.Method)
		}
	}

	for _, rule := range c.Harvest {
		if !names[rule.Endpoint] {
			return fmt.Errorf("%w: harvest rule references unknown endpoint %q", ErrInvalidConfig, rule.Endpoint)
		}
		if rule.FieldPath == "" || rule.SemanticType == "" {
			return fmt.Errorf("%w: harvest rule for %q needs fieldPath and semanticType", ErrInvalidConfig, rule.Endpoint)
		}
	}

	return nil
}

// PoolSettings translates the YAML pool section into pool.PoolConfig.
func (c *Config) PoolSettings() pool.PoolConfig {
	pc := pool.DefaultPoolConfig()
	pc.MaxValuesPerType = c.Pool.MaxValuesPerType
	pc.DefaultTTL = c.Pool.TTL
	pc.EvictionPolicy = pool.ParseEvictionPolicy(c.Pool.EvictionPolicy)
	return pc
}
