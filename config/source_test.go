package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileSource_Load(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
cache:
  memory:
    shards: 16
  policies:
    geo: weekly
`)
	source := NewFileSource(path, 10)
	assert.Equal(t, "file:"+path, source.Name())
	assert.Equal(t, 10, source.Priority())

	data, err := source.Load()
	require.NoError(t, err)
	assert.Equal(t, 16, data["cache.memory.shards"])
	assert.Equal(t, "weekly", data["cache.policies.geo"])
}

func TestFileSource_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	data, err := NewFileSource(missing, 10).Load()
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = NewRequiredFileSource(missing, 30).Load()
	assert.Error(t, err)
}

func TestFileSource_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "cache: [unclosed")
	_, err := NewFileSource(path, 10).Load()
	assert.Error(t, err)
}

func TestEnvSource_PrefixScan(t *testing.T) {
	t.Setenv("TCTEST_CACHE__MEMORY__MAX_ENTRIES", "5000")
	t.Setenv("TCTEST_CACHE__BATCH_SIZE", "50")
	t.Setenv("OTHER_CACHE__BATCH_SIZE", "1")

	data, err := NewEnvSource("TCTEST", 50).Load()
	require.NoError(t, err)
	assert.Equal(t, "5000", data["cache.memory.max_entries"])
	assert.Equal(t, "50", data["cache.batch_size"])
	assert.Len(t, data, 2)
}

func TestEnvSource_Bindings(t *testing.T) {
	t.Setenv("TCTEST_DIR", "/var/cache")
	t.Setenv("TCTEST_CACHE__BATCH_SIZE", "50")

	source := NewEnvSource("TCTEST", 50)
	source.AddBinding("cache.disk.dir", "DIR")
	data, err := source.Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"cache.disk.dir": "/var/cache"}, data)
}

func TestEnvSource_NoPrefix(t *testing.T) {
	data, err := NewEnvSource("", 50).Load()
	require.NoError(t, err)
	assert.Empty(t, data)
}
