package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all padic configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name" validate:"required"`
	Version string `yaml:"version"`

	// Default names the domain used when a command does not pick one.
	Default string `yaml:"default" validate:"required"`

	// Domains available to commands, by name.
	Domains []DomainConfig `yaml:"domains" validate:"required,min=1,dive"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DomainConfig describes a p-adic ring or field with lattice precision.
// Zero caps mean "use the domain default".
type DomainConfig struct {
	Name              string `yaml:"name" validate:"required"`
	Prime             int64  `yaml:"prime" validate:"prime"`
	Field             bool   `yaml:"field"`
	Policy            string `yaml:"policy" validate:"omitempty,oneof=capped cap floating float"`
	RelativeCap       int    `yaml:"relative_cap" validate:"gte=0"`
	AbsoluteCap       int    `yaml:"absolute_cap" validate:"gte=0"`
	ZeroCap           int    `yaml:"zero_cap" validate:"gte=0"`
	InternalPrecision int    `yaml:"internal_precision" validate:"gte=0"`

	// Label scopes the precision tracker. Domains with the same prime, policy
	// and label share one, so their elements can be combined.
	Label string `yaml:"label"`
}

// configValidate is the validator instance for configuration structs.
var configValidate *validator.Validate

// defaultRelativeCap is the relative cap of a domain that leaves it unset.
const defaultRelativeCap = 20

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("prime", validatePrime)
	configValidate.RegisterStructValidation(validateDomainConfig, DomainConfig{})
}

// validateDomainConfig rejects a floating domain whose internal precision
// cannot hold its relative cap.
func validateDomainConfig(sl validator.StructLevel) {
	d := sl.Current().Interface().(DomainConfig)
	if d.Policy != "floating" && d.Policy != "float" {
		return
	}
	relCap := d.RelativeCap
	if relCap == 0 {
		relCap = defaultRelativeCap
	}
	if d.InternalPrecision > 0 && d.InternalPrecision < relCap {
		sl.ReportError(d.InternalPrecision, "InternalPrecision", "internal_precision", "gtecsfield", "RelativeCap")
	}
}

func validatePrime(fl validator.FieldLevel) bool {
	p := fl.Field().Int()
	return p >= 2 && big.NewInt(p).ProbablyPrime(20)
}

// DefaultConfig returns the default configuration: a 2-adic lattice-cap ring
// and its floating counterpart.
func DefaultConfig() *Config {
	return &Config{
		Name:    "padic",
		Version: "0.3.0",
		Default: "zp",
		Domains: []DomainConfig{
			{
				Name:        "zp",
				Prime:       2,
				Policy:      "capped",
				RelativeCap: defaultRelativeCap,
				AbsoluteCap: 2 * defaultRelativeCap,
			},
			{
				Name:        "qp-float",
				Prime:       2,
				Field:       true,
				Policy:      "floating",
				RelativeCap: defaultRelativeCap,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if the config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides. PADIC_PRIME and
// PADIC_POLICY change the default domain.
func (c *Config) applyEnvOverrides() error {
	d := c.defaultDomain()
	if v := os.Getenv("PADIC_PRIME"); v != "" && d != nil {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid PADIC_PRIME %q: %w", v, err)
		}
		d.Prime = p
	}
	if v := os.Getenv("PADIC_POLICY"); v != "" && d != nil {
		d.Policy = v
	}
	if v := os.Getenv("PADIC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func (c *Config) defaultDomain() *DomainConfig {
	for i := range c.Domains {
		if c.Domains[i].Name == c.Default {
			return &c.Domains[i]
		}
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool, len(c.Domains))
	for _, d := range c.Domains {
		if seen[d.Name] {
			return fmt.Errorf("invalid config: duplicate domain %q", d.Name)
		}
		seen[d.Name] = true
	}
	if c.defaultDomain() == nil {
		return fmt.Errorf("invalid config: default domain %q is not defined", c.Default)
	}
	return nil
}

// Domain returns the named domain, or the default one for an empty name.
func (c *Config) Domain(name string) (DomainConfig, error) {
	if name == "" {
		name = c.Default
	}
	for _, d := range c.Domains {
		if d.Name == name {
			return d, nil
		}
	}
	return DomainConfig{}, fmt.Errorf("unknown domain %q", name)
}
