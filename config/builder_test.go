package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cacheSection struct {
	BatchSize int `mapstructure:"batch_size"`
	Memory    struct {
		Shards int `mapstructure:"shards"`
	} `mapstructure:"memory"`
	Disk struct {
		Type string `mapstructure:"type"`
		Dir  string `mapstructure:"dir"`
	} `mapstructure:"disk"`
}

func TestLoaderBuilder_Priority(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
cache:
  batch_size: 100
  memory: { shards: 32 }
  disk: { type: file, dir: ./base }
`)
	writeFile(t, dir, "test.yaml", `
cache:
  disk: { dir: ./from-env-file }
`)
	explicit := writeFile(t, dir, "override.yaml", `
cache:
  memory: { shards: 8 }
`)
	t.Setenv("APP_ENV", "test")
	t.Setenv("TCB_CACHE__BATCH_SIZE", "25")

	loader, err := NewLoaderBuilder().
		WithConfigPath(dir).
		WithConfigFile(explicit).
		WithEnvPrefix("TCB").
		Build()
	require.NoError(t, err)

	var cfg cacheSection
	require.NoError(t, loader.Unmarshal("cache", &cfg))
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 8, cfg.Memory.Shards)
	assert.Equal(t, "file", cfg.Disk.Type)
	assert.Equal(t, "./from-env-file", cfg.Disk.Dir)

	assert.Equal(t, []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "test.yaml"),
		explicit,
	}, loader.GetLoadedFiles())
	assert.True(t, loader.IsSet("cache.memory.shards"))
	assert.Equal(t, 8, loader.GetInt("cache.memory.shards"))
}

func TestLoaderBuilder_MissingExplicitFile(t *testing.T) {
	_, err := NewLoaderBuilder().WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")).Build()
	assert.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("ENV", "")
	assert.Equal(t, "dev", GetEnv())

	t.Setenv("ENV", "staging")
	assert.Equal(t, "staging", GetEnv())

	t.Setenv("APP_ENV", "prod")
	assert.Equal(t, "prod", GetEnv())
}

func TestLoader_ScalarOverridesSubtree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "cache:\n  disk:\n    type: file\n")

	loader := NewLoader()
	loader.AddSource(NewFileSource(filepath.Join(dir, "config.yaml"), 10))
	t.Setenv("TCS_CACHE__DISK", "none")
	loader.AddSource(NewEnvSource("TCS", 50))
	require.NoError(t, loader.Load())

	assert.Equal(t, "none", loader.GetString("cache.disk"))
}
