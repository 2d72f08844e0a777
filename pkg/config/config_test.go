package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t, "NMT_DATA_DIR", "NMT_STORAGE_BACKEND", "NMT_EMBEDDING_DIMENSIONS",
		"NMT_HNSW_M", "NMT_HNSW_EF_SEARCH", "NMT_RESULT_CAP", "NMT_RETURN_CAP")

	c := LoadFromEnv()
	assert.Equal(t, "./data", c.Storage.DataDir)
	assert.Equal(t, "badger", c.Storage.Backend)
	assert.Equal(t, 16, c.Index.M)
	assert.Equal(t, 200, c.Index.EfConstruction)
	assert.Equal(t, 50, c.Index.EfSearch)
	assert.Equal(t, 200, c.Retrieval.ResultCap)
	assert.Equal(t, 50, c.Retrieval.ReturnCap)
	require.NoError(t, c.Validate())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearEnv(t, "NMT_DATA_DIR", "NMT_HNSW_EF_SEARCH", "NMT_CHUNKING_USE_CDC", "NMT_MEMORY_LIMIT")
	os.Setenv("NMT_DATA_DIR", "/var/lib/nmt")
	os.Setenv("NMT_HNSW_EF_SEARCH", "128")
	os.Setenv("NMT_CHUNKING_USE_CDC", "true")
	os.Setenv("NMT_MEMORY_LIMIT", "2GB")

	c := LoadFromEnv()
	assert.Equal(t, "/var/lib/nmt", c.Storage.DataDir)
	assert.Equal(t, 128, c.Index.EfSearch)
	assert.True(t, c.Chunking.UseCDC)
	assert.Equal(t, int64(2*1024*1024*1024), c.Runtime.MemoryLimit)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	c := LoadFromEnv()
	c.Embedding.Dimensions = 0
	assert.Error(t, c.Validate(), "expected error for zero embedding dimensions")

	c = LoadFromEnv()
	c.Retrieval.ReturnCap = c.Retrieval.ResultCap + 1
	assert.Error(t, c.Validate(), "expected error for return cap exceeding result cap")

	c = LoadFromEnv()
	c.Storage.Backend = "sqlite"
	assert.Error(t, c.Validate(), "expected error for unsupported storage backend")
}

func TestParseMemorySize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1024", 1024},
		{"1024B", 1024},
		{"1K", 1024},
		{"1KB", 1024},
		{"512M", 512 * 1024 * 1024},
		{"2GB", 2 * 1024 * 1024 * 1024},
		{"1T", 1024 * 1024 * 1024 * 1024},
		{"0", 0},
		{"unlimited", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, parseMemorySize(tt.input), "parseMemorySize(%q)", tt.input)
	}
}

func TestFormatMemorySize(t *testing.T) {
	assert.Equal(t, "512 B", FormatMemorySize(512))
	assert.Equal(t, "2.00 GB", FormatMemorySize(2*1024*1024*1024))
}

func TestApplyRuntimeDoesNotPanicWithDefaults(t *testing.T) {
	c := &RuntimeConfig{MemoryLimit: 0, GCPercent: 100}
	assert.NotPanics(t, c.ApplyRuntime)

	c2 := &RuntimeConfig{MemoryLimit: 1024 * 1024 * 1024, GCPercent: 50}
	assert.NotPanics(t, c2.ApplyRuntime)
	c2.GCPercent = 100
	assert.NotPanics(t, c2.ApplyRuntime)
}

func TestLoadFromFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/nmt.yaml"
	yamlBody := "storage:\n  data_dir: /srv/nmt\n  backend: memory\nembedding:\n  dimensions: 32\nruntime:\n  memory_limit: 1GB\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/nmt", c.Storage.DataDir)
	assert.Equal(t, "memory", c.Storage.Backend)
	assert.Equal(t, 32, c.Embedding.Dimensions)
	assert.Equal(t, int64(1024*1024*1024), c.Runtime.MemoryLimit)
}

func TestLoadFromFileMissingFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/nmt.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnvRuntimeMemory(t *testing.T) {
	clearEnv(t, "NMT_MEMORY_LIMIT", "NMT_GC_PERCENT")

	c := LoadFromEnv()
	assert.Equal(t, int64(0), c.Runtime.MemoryLimit)
	assert.Equal(t, 100, c.Runtime.GCPercent)

	os.Setenv("NMT_GC_PERCENT", "50")
	defer os.Unsetenv("NMT_GC_PERCENT")
	c = LoadFromEnv()
	assert.Equal(t, 50, c.Runtime.GCPercent)
}
