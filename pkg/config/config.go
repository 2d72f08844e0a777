// Package config loads NMT's runtime configuration from environment
// variables or, optionally, a YAML file, following the env-var convention of
// its teacher (NornicDB's pkg/config): one exported struct per concern, a
// LoadFromEnv() entry point, and a Validate() pass before use.
//
// NMT's environment surface is much smaller than NornicDB's Neo4j-compatible
// one (no Bolt/HTTP listeners, no auth, no compliance controls — those are
// the embedded-server and admin-UI concerns spec.md explicitly treats as
// external collaborators) but keeps the same loading idiom and is rooted at
// a single directory:
//
//	NMT_DATA_DIR=/var/lib/nmt
//	NMT_EMBEDDING_PROVIDER=http
//	NMT_EMBEDDING_API_URL=http://localhost:11434
//	NMT_HNSW_EF_SEARCH=64
//
// Two independent sources are supported: LoadFromEnv (the default, NMT_*
// variables) and LoadFromFile (a YAML file, for deployments that prefer a
// checked-in config over exporting a dozen variables), following the apoc
// package's apoc.LoadConfig("./apoc.yaml") pattern. A caller picks one source
// per invocation; there is no merge between them and no implicit config file
// discovery — callers opt in to a file by passing a path.
package config

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is NMT's complete runtime configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Planner   PlannerConfig   `yaml:"planner"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig controls where and how committed data is persisted.
type StorageConfig struct {
	// DataDir is the root directory for all persisted state (NMT_DATA_DIR).
	DataDir string `yaml:"data_dir"`
	// Backend selects the KV implementation: "badger" (default, durable) or
	// "memory" (ephemeral, test/dev only).
	Backend string `yaml:"backend"`
	// CompactionInterval is how often CompactionScheduler runs its sweep.
	CompactionInterval time.Duration `yaml:"compaction_interval"`
	// TombstoneThreshold is the HNSW/store tombstone count that triggers a
	// compaction (spec.md §3's HNSW compact() default of 50).
	TombstoneThreshold int `yaml:"tombstone_threshold"`
}

// EmbeddingConfig selects and tunes the injected embedding capability
// (spec.md §6: "a provider-shaped capability is injected").
type EmbeddingConfig struct {
	// Provider is "http" (calls an external embedding endpoint) or "hashed"
	// (deterministic fallback, same dimension, no network dependency).
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIURL   string `yaml:"api_url"`
	// Dimensions is the embedding vector width; it also sets the HNSW index
	// dimension.
	Dimensions int `yaml:"dimensions"`
	// CacheSize bounds the LRU embedding cache keyed by SHA-256 of input
	// text (spec.md §6 default cap 1000).
	CacheSize int `yaml:"cache_size"`
}

// IndexConfig tunes the HNSW vector index (spec.md §3).
type IndexConfig struct {
	M              int `yaml:"m"`               // out-degree; default 16
	EfConstruction int `yaml:"ef_construction"` // build-time beam width; default 200
	EfSearch       int `yaml:"ef_search"`       // query-time beam width; default 50
}

// ChunkingConfig tunes content-defined vs fixed-size chunking (spec.md §2).
type ChunkingConfig struct {
	UseCDC     bool `yaml:"use_cdc"`
	FixedSize  int  `yaml:"fixed_size"`
	CDCMinSize int  `yaml:"cdc_min_size"`
	CDCMaxSize int  `yaml:"cdc_max_size"`
}

// RetrievalConfig tunes the Hopfield/Hebbian retrieval pipeline (spec.md §4.3).
type RetrievalConfig struct {
	HebbianEta           float64 `yaml:"hebbian_eta"`
	InhibitoryEta        float64 `yaml:"inhibitory_eta"`
	DopamineDecayFactor  float64 `yaml:"dopamine_decay_factor"`
	DopaminePositiveGain float64 `yaml:"dopamine_positive_gain"`
	DopamineNegativeGain float64 `yaml:"dopamine_negative_gain"`
	// ResultCap is the hard cap on candidates considered per response;
	// ReturnCap is how many are actually returned (spec.md §5: "cap 200 per
	// response, 50 returned" — promoted to configuration per REDESIGN FLAGS).
	ResultCap int `yaml:"result_cap"`
	ReturnCap int `yaml:"return_cap"`
}

// PlannerConfig tunes the A* attractor planner (spec.md §4.4).
type PlannerConfig struct {
	MaxDepth        int     `yaml:"max_depth"`
	MaxSearchNodes  int     `yaml:"max_search_nodes"`
	HeuristicWeight float64 `yaml:"heuristic_weight"`
	InfluenceRadius float64 `yaml:"influence_radius"`
}

// RuntimeConfig tunes the Go runtime itself, applied once at startup
// (grounded on the teacher's MemoryConfig runtime-tuning fields).
type RuntimeConfig struct {
	// MemoryLimit is GOMEMLIMIT in bytes; 0 leaves Go's default in place.
	MemoryLimit    int64  `yaml:"-"`
	MemoryLimitStr string `yaml:"memory_limit"`
	// GCPercent is GOGC; 100 is the Go default.
	GCPercent int `yaml:"gc_percent"`
}

// LoggingConfig controls the structured logger (spec.md's ambient logging
// stack, built on the teacher's zap usage).
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or a file path
}

// LoadFromEnv builds a Config from environment variables, falling back to
// defaults for anything unset. Call Validate before use.
func LoadFromEnv() *Config {
	c := &Config{}

	c.Storage.DataDir = getEnv("NMT_DATA_DIR", "./data")
	c.Storage.Backend = getEnv("NMT_STORAGE_BACKEND", "badger")
	c.Storage.CompactionInterval = getEnvDuration("NMT_COMPACTION_INTERVAL", 5*time.Minute)
	c.Storage.TombstoneThreshold = getEnvInt("NMT_TOMBSTONE_THRESHOLD", 50)

	c.Embedding.Provider = getEnv("NMT_EMBEDDING_PROVIDER", "hashed")
	c.Embedding.Model = getEnv("NMT_EMBEDDING_MODEL", "")
	c.Embedding.APIURL = getEnv("NMT_EMBEDDING_API_URL", "")
	c.Embedding.Dimensions = getEnvInt("NMT_EMBEDDING_DIMENSIONS", 384)
	c.Embedding.CacheSize = getEnvInt("NMT_EMBEDDING_CACHE_SIZE", 1000)

	c.Index.M = getEnvInt("NMT_HNSW_M", 16)
	c.Index.EfConstruction = getEnvInt("NMT_HNSW_EF_CONSTRUCTION", 200)
	c.Index.EfSearch = getEnvInt("NMT_HNSW_EF_SEARCH", 50)

	c.Chunking.UseCDC = getEnvBool("NMT_CHUNKING_USE_CDC", false)
	c.Chunking.FixedSize = getEnvInt("NMT_CHUNKING_FIXED_SIZE", 4096)
	c.Chunking.CDCMinSize = getEnvInt("NMT_CHUNKING_CDC_MIN_SIZE", 2048)
	c.Chunking.CDCMaxSize = getEnvInt("NMT_CHUNKING_CDC_MAX_SIZE", 65536)

	c.Retrieval.HebbianEta = getEnvFloat("NMT_HEBBIAN_ETA", 0.05)
	c.Retrieval.InhibitoryEta = getEnvFloat("NMT_INHIBITORY_ETA", 0.08)
	c.Retrieval.DopamineDecayFactor = getEnvFloat("NMT_DOPAMINE_DECAY", 0.9)
	c.Retrieval.DopaminePositiveGain = getEnvFloat("NMT_DOPAMINE_POSITIVE_GAIN", 0.3)
	c.Retrieval.DopamineNegativeGain = getEnvFloat("NMT_DOPAMINE_NEGATIVE_GAIN", 0.15)
	c.Retrieval.ResultCap = getEnvInt("NMT_RESULT_CAP", 200)
	c.Retrieval.ReturnCap = getEnvInt("NMT_RETURN_CAP", 50)

	c.Planner.MaxDepth = getEnvInt("NMT_PLANNER_MAX_DEPTH", 10)
	c.Planner.MaxSearchNodes = getEnvInt("NMT_PLANNER_MAX_SEARCH_NODES", 1000)
	c.Planner.HeuristicWeight = getEnvFloat("NMT_PLANNER_HEURISTIC_WEIGHT", 1.0)
	c.Planner.InfluenceRadius = getEnvFloat("NMT_PLANNER_INFLUENCE_RADIUS", 0.5)

	c.Runtime.MemoryLimitStr = getEnv("NMT_MEMORY_LIMIT", "0")
	c.Runtime.MemoryLimit = parseMemorySize(c.Runtime.MemoryLimitStr)
	c.Runtime.GCPercent = getEnvInt("NMT_GC_PERCENT", 100)

	c.Logging.Level = getEnv("NMT_LOG_LEVEL", "info")
	c.Logging.Format = getEnv("NMT_LOG_FORMAT", "json")
	c.Logging.Output = getEnv("NMT_LOG_OUTPUT", "stdout")

	return c
}

// LoadFromFile reads a YAML config file, grounded on apoc.LoadConfig's
// read-then-unmarshal shape. Any NMT_MEMORY_LIMIT-style size string set under
// runtime.memory_limit is parsed the same way the env var is. This is an
// alternate source to LoadFromEnv, not a layer on top of it: a caller picks
// one or the other per invocation (cmd/nmt does so via --config), there is no
// field-by-field merge between a loaded file and the environment.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	c.Runtime.MemoryLimit = parseMemorySize(c.Runtime.MemoryLimitStr)
	return c, nil
}

// Validate checks the configuration for logical errors before use.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data dir must not be empty")
	}
	if c.Storage.Backend != "badger" && c.Storage.Backend != "memory" {
		return fmt.Errorf("invalid storage backend: %q", c.Storage.Backend)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", c.Embedding.Dimensions)
	}
	if c.Index.M <= 0 || c.Index.EfConstruction <= 0 || c.Index.EfSearch <= 0 {
		return fmt.Errorf("invalid hnsw parameters: M=%d efConstruction=%d efSearch=%d",
			c.Index.M, c.Index.EfConstruction, c.Index.EfSearch)
	}
	if c.Retrieval.ReturnCap > c.Retrieval.ResultCap {
		return fmt.Errorf("return cap %d exceeds result cap %d", c.Retrieval.ReturnCap, c.Retrieval.ResultCap)
	}
	if c.Planner.MaxDepth <= 0 {
		return fmt.Errorf("invalid planner max depth: %d", c.Planner.MaxDepth)
	}
	return nil
}

// String returns a safe, loggable summary of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, Backend: %s, Embedding: %s/%s (%dd), HNSW: M=%d efSearch=%d}",
		c.Storage.DataDir, c.Storage.Backend,
		c.Embedding.Provider, c.Embedding.Model, c.Embedding.Dimensions,
		c.Index.M, c.Index.EfSearch,
	)
}

// ApplyRuntime applies GOMEMLIMIT/GOGC tuning. Call early in main(), before
// heavy allocation.
func (c *RuntimeConfig) ApplyRuntime() {
	if c.MemoryLimit > 0 {
		debug.SetMemoryLimit(c.MemoryLimit)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string. Supports
// "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)
	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
