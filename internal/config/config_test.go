package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpritch24/nypd-shooting-incident/internal/errs"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 0.2, cfg.TestFraction, 1e-12)
	assert.InDelta(t, 0.5, cfg.DecisionThreshold, 1e-12)
	assert.Equal(t, ResampleUndersample, cfg.Resampling)
	assert.Equal(t, "UNKNOWN", cfg.UnknownCategory)
	assert.Equal(t, "STATISTICAL_MURDER_FLAG", cfg.Target)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		column string
	}{
		{
			name: "duplicate column declaration",
			mutate: func(c *Config) {
				c.Columns = append(c.Columns, ColumnSpec{Name: "BORO", Role: RoleNumeric})
			},
			column: "BORO",
		},
		{
			name:   "feature absent from declarations",
			mutate: func(c *Config) { c.Features = append(c.Features, "NO_SUCH_COLUMN") },
			column: "NO_SUCH_COLUMN",
		},
		{
			name:   "feature listed twice",
			mutate: func(c *Config) { c.Features = append(c.Features, "BORO") },
			column: "BORO",
		},
		{
			name:   "target as feature",
			mutate: func(c *Config) { c.Features = append(c.Features, c.Target) },
			column: "STATISTICAL_MURDER_FLAG",
		},
		{
			name:   "undeclared target",
			mutate: func(c *Config) { c.Target = "MISSING" },
			column: "MISSING",
		},
		{
			name: "target without boolean role",
			mutate: func(c *Config) {
				c.Target = "BORO"
			},
			column: "BORO",
		},
		{
			name:   "test fraction out of range",
			mutate: func(c *Config) { c.TestFraction = 1.0 },
		},
		{
			name:   "threshold out of range",
			mutate: func(c *Config) { c.DecisionThreshold = 1.5 },
		},
		{
			name:   "unknown resampling policy",
			mutate: func(c *Config) { c.Resampling = "oversample" },
		},
		{
			name: "ordinal without levels",
			mutate: func(c *Config) {
				for i := range c.Columns {
					if c.Columns[i].Name == "VIC_AGE_GROUP" {
						c.Columns[i].Levels = nil
					}
				}
			},
			column: "VIC_AGE_GROUP",
		},
		{
			name:   "empty unknown category",
			mutate: func(c *Config) { c.UnknownCategory = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindConfiguration), "want ConfigurationError, got %v", err)
			if tt.column != "" {
				var pe *errs.PipelineError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.column, pe.Column)
			}
		})
	}
}

func TestRoleCategorical(t *testing.T) {
	assert.True(t, RoleNominal.Categorical())
	assert.True(t, RoleOrdinal.Categorical())
	assert.True(t, RoleNumericCategorical.Categorical())
	assert.False(t, RoleNumeric.Categorical())
	assert.False(t, RoleBoolean.Categorical())
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	content := []byte("seed: 7\ntest_fraction: 0.25\nresampling: none\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	// Overrides applied on top of the defaults.
	assert.Equal(t, int64(7), cfg.Seed)
	assert.InDelta(t, 0.25, cfg.TestFraction, 1e-12)
	assert.Equal(t, ResampleNone, cfg.Resampling)
	assert.Equal(t, "STATISTICAL_MURDER_FLAG", cfg.Target)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte("seed = 7"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NYPD_SEED", "99")
	t.Setenv("NYPD_TEST_FRACTION", "0.3")
	t.Setenv("NYPD_SOURCE_FILE", "testdata/sample.csv")

	cfg := LoadFromEnv()
	assert.Equal(t, int64(99), cfg.Seed)
	assert.InDelta(t, 0.3, cfg.TestFraction, 1e-12)
	assert.Equal(t, "testdata/sample.csv", cfg.SourceFile)
}

func TestColumnLookup(t *testing.T) {
	cfg := Default()

	spec, ok := cfg.Column("PERP_SEX")
	require.True(t, ok)
	assert.Equal(t, RoleNominal, spec.Role)
	assert.Contains(t, spec.MissingValues, "U")

	_, ok = cfg.Column("nope")
	assert.False(t, ok)
}
