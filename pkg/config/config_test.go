package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/calltree/pkg/profile"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.0, cfg.Interval)
	assert.Equal(t, 64, cfg.CacheSize)
	assert.Equal(t, profile.DefaultCategories, cfg.Categories)
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		name    string
		yaml    string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "overrides",
			yaml: `
sample_type: alloc_space
inverted: true
max_depth: 4
categories:
  - name: Other
    color: grey
    subcategories: [Other]
  - name: Go
    color: blue
    subcategories: [Other, Runtime]
default_category: 1
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "alloc_space", cfg.SampleType)
				assert.True(t, cfg.Inverted)
				assert.Equal(t, 4, cfg.MaxDepth)
				assert.Equal(t, int32(1), cfg.DefaultCategory)
				assert.Equal(t, []string{"Other", "Runtime"}, cfg.Categories[1].Subcategories)
				assert.Equal(t, 1.0, cfg.Interval)
			},
		},
		{name: "bad interval", yaml: "interval_ms: 0", wantErr: "interval_ms must be positive"},
		{name: "bad default category", yaml: "default_category: 9", wantErr: "default_category 9 out of range"},
		{name: "missing subcategories", yaml: "categories: [{name: X}]", wantErr: "subcategory 0 is required"},
		{name: "not yaml", yaml: "::", wantErr: "failed to parse config"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.Parse([]byte(tc.yaml))
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "calltree.yaml")
	require.NoError(t, os.WriteFile(path, []byte("traced: true\ncache_size: 2\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Traced)
	assert.Equal(t, 2, cfg.CacheSize)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
