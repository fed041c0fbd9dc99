package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	d, err := cfg.Domain("")
	require.NoError(t, err)
	assert.Equal(t, "zp", d.Name)
	assert.Equal(t, int64(2), d.Prime)
	assert.Equal(t, 40, d.AbsoluteCap)
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("PADIC_PRIME", "")
	t.Setenv("PADIC_POLICY", "")
	t.Setenv("PADIC_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "nested", "padic.yaml")

	cfg := DefaultConfig()
	cfg.Domains = append(cfg.Domains, DomainConfig{Name: "z7", Prime: 7, AbsoluteCap: 7, Label: "shift"})
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, loaded.Validate())

	d, err := loaded.Domain("z7")
	require.NoError(t, err)
	assert.Equal(t, DomainConfig{Name: "z7", Prime: 7, AbsoluteCap: 7, Label: "shift"}, d)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Domains, cfg.Domains)
}

func TestLoad_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("domains: [\n"), 0644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Run("prime and policy change the default domain", func(t *testing.T) {
		t.Setenv("PADIC_PRIME", "5")
		t.Setenv("PADIC_POLICY", "floating")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		d, err := cfg.Domain("")
		require.NoError(t, err)
		assert.Equal(t, int64(5), d.Prime)
		assert.Equal(t, "floating", d.Policy)

		other, err := cfg.Domain("qp-float")
		require.NoError(t, err)
		assert.Equal(t, int64(2), other.Prime)
	})

	t.Run("log level", func(t *testing.T) {
		t.Setenv("PADIC_LOG_LEVEL", "debug")
		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("invalid prime", func(t *testing.T) {
		t.Setenv("PADIC_PRIME", "seven")
		cfg := DefaultConfig()
		assert.ErrorContains(t, cfg.applyEnvOverrides(), "PADIC_PRIME")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"composite prime", func(c *Config) { c.Domains[0].Prime = 9 }, "prime"},
		{"unknown policy", func(c *Config) { c.Domains[0].Policy = "fixed" }, "Policy"},
		{"negative cap", func(c *Config) { c.Domains[0].RelativeCap = -1 }, "RelativeCap"},
		{"no domains", func(c *Config) { c.Domains = nil }, "Domains"},
		{"duplicate domain", func(c *Config) { c.Domains[1].Name = "zp" }, "duplicate domain"},
		{"missing default", func(c *Config) { c.Default = "qp" }, "default domain"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "Level"},
		{"internal below relative cap", func(c *Config) { c.Domains[1].InternalPrecision = 5 }, "InternalPrecision"},
		{"internal below default cap", func(c *Config) {
			c.Domains[1].RelativeCap = 0
			c.Domains[1].InternalPrecision = 19
		}, "InternalPrecision"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConfig_ValidateInternalPrecision(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Domains[1].InternalPrecision = 20
	require.NoError(t, cfg.Validate())

	// capped domains ignore the internal precision
	cfg.Domains[0].InternalPrecision = 5
	require.NoError(t, cfg.Validate())
}

func TestConfig_UnknownDomain(t *testing.T) {
	_, err := DefaultConfig().Domain("q3")
	assert.ErrorContains(t, err, `unknown domain "q3"`)
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	c := LoggingConfig{}
	assert.False(t, c.IsCategoryEnabled("tracker"))

	c.DebugMode = true
	assert.True(t, c.IsCategoryEnabled("tracker"))

	c.Categories = map[string]bool{"tracker": false}
	assert.False(t, c.IsCategoryEnabled("tracker"))
	assert.True(t, c.IsCategoryEnabled("cli"))
}
