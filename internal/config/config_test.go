package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Time, cfg.StoppingCriterion)
	assert.Equal(t, 15.0, cfg.DMin)
	assert.Equal(t, 30.0, cfg.DMax)
	assert.Equal(t, 30, cfg.Gamma)
	assert.Equal(t, 200, cfg.TargetMaxSpCustomers)
	assert.Equal(t, CPUMax, cfg.CPUAccounting)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ails.yaml")
	body := `
stoppingCriterion: Iteration
limit: 500
perturbations: [Concentric, Decomposition]
gamma: 10
parallel: true
shutdownTimeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, Iteration, cfg.StoppingCriterion)
	assert.Equal(t, 500.0, cfg.Limit)
	assert.Equal(t, []string{"Concentric", "Decomposition"}, cfg.Perturbations)
	assert.Equal(t, 10, cfg.Gamma)
	assert.True(t, cfg.Parallel)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, 40, cfg.Varphi)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gamma: [1, 2"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("AILS_LIMIT", "12.5")
	t.Setenv("AILS_PERTURBATIONS", "Sequential, Ruinnew,")
	t.Setenv("AILS_PARALLEL", "true")
	t.Setenv("AILS_SEED", "42")
	t.Setenv("AILS_CPU_ACCOUNTING", "sum")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, 12.5, cfg.Limit)
	assert.Equal(t, []string{"Sequential", "Ruinnew"}, cfg.Perturbations)
	assert.True(t, cfg.Parallel)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, CPUSum, cfg.CPUAccounting)
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	t.Setenv("AILS_GAMMA", "many")
	t.Setenv("AILS_DEBUG", "perhaps")

	cfg := Default()
	err := cfg.ApplyEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "AILS_GAMMA")
	assert.Contains(t, err.Error(), "AILS_DEBUG")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"stopping", func(c *Config) { c.StoppingCriterion = "Forever" }},
		{"limit", func(c *Config) { c.Limit = 0 }},
		{"dist range", func(c *Config) { c.DMin = 40 }},
		{"eta range", func(c *Config) { c.EtaMin = 2 }},
		{"gamma", func(c *Config) { c.Gamma = 0 }},
		{"no perturbations", func(c *Config) { c.Perturbations = nil }},
		{"selection", func(c *Config) { c.Selection = "best" }},
		{"cpu accounting", func(c *Config) { c.CPUAccounting = "avg" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestGet(t *testing.T) {
	t.Setenv("AILS_TEST_KEY", "value")
	assert.Equal(t, "value", Get("AILS_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", Get("AILS_TEST_MISSING", "fallback"))
}
