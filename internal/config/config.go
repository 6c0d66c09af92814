// Package config loads the single configuration document governing a
// synapse engine instance. Load returns an explicit *Config value rather
// than populating a package-level singleton, so multiple engine instances
// can coexist in the same process with an explicit init/shutdown
// lifecycle instead of hidden global state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved configuration document (table).
type Config struct {
	DataRoot string

	PoolSize int

	CacheMaxSize    int
	CacheTTLSeconds int

	ChunkSize    int
	ChunkOverlap int

	EmbeddingDim int

	MinFactConfidence    float64
	MinEpisodeConfidence float64

	DeduplicationMode string // per_day | per_session | global

	ExtractionMode string // heuristic | model

	MinMessageLength int
	SkipPatterns     []string

	// Authority weights (defaults 1.00 / 0.85 / 0.90). The semantic weight
	// is scaled by clipped cosine similarity; the values are not checked
	// against each other.
	SymbolicAuthority float64
	EpisodicAuthority float64
	SemanticAuthority float64
}

// Default returns the configuration document with its baseline defaults,
// rooted at dataRoot.
func Default(dataRoot string) *Config {
	return &Config{
		DataRoot:             dataRoot,
		PoolSize:             5,
		CacheMaxSize:         500,
		CacheTTLSeconds:      300,
		ChunkSize:            500,
		ChunkOverlap:         50,
		EmbeddingDim:         384,
		MinFactConfidence:    0.7,
		MinEpisodeConfidence: 0.6,
		DeduplicationMode:    "per_day",
		ExtractionMode:       "heuristic",
		MinMessageLength:     10,
		SkipPatterns:         []string{"^test$", "^help$", "^hello$"},
		SymbolicAuthority:    1.00,
		EpisodicAuthority:    0.85,
		SemanticAuthority:    0.90,
	}
}

// Load reads a YAML configuration document (if present at configPath) over
// the defaults, then applies SYNAPSE_-prefixed environment overrides. Each
// call builds its own *viper.Viper instance rather than sharing a
// package-level var.
func Load(configPath, dataRoot string) (*Config, error) {
	cfg := Default(dataRoot)

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SYNAPSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
			}
		}
	}

	cfg.PoolSize = v.GetInt("pool_size")
	cfg.CacheMaxSize = v.GetInt("cache.max_size")
	cfg.CacheTTLSeconds = v.GetInt("cache.ttl_seconds")
	cfg.ChunkSize = v.GetInt("chunk_size")
	cfg.ChunkOverlap = v.GetInt("chunk_overlap")
	cfg.EmbeddingDim = v.GetInt("embedding_dim")
	cfg.MinFactConfidence = v.GetFloat64("min_fact_confidence")
	cfg.MinEpisodeConfidence = v.GetFloat64("min_episode_confidence")
	cfg.DeduplicationMode = v.GetString("deduplication_mode")
	cfg.ExtractionMode = v.GetString("extraction_mode")
	cfg.MinMessageLength = v.GetInt("min_message_length")
	cfg.SkipPatterns = v.GetStringSlice("skip_patterns")
	cfg.SymbolicAuthority = v.GetFloat64("authority.symbolic")
	cfg.EpisodicAuthority = v.GetFloat64("authority.episodic")
	cfg.SemanticAuthority = v.GetFloat64("authority.semantic")

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("pool_size", cfg.PoolSize)
	v.SetDefault("cache.max_size", cfg.CacheMaxSize)
	v.SetDefault("cache.ttl_seconds", cfg.CacheTTLSeconds)
	v.SetDefault("chunk_size", cfg.ChunkSize)
	v.SetDefault("chunk_overlap", cfg.ChunkOverlap)
	v.SetDefault("embedding_dim", cfg.EmbeddingDim)
	v.SetDefault("min_fact_confidence", cfg.MinFactConfidence)
	v.SetDefault("min_episode_confidence", cfg.MinEpisodeConfidence)
	v.SetDefault("deduplication_mode", cfg.DeduplicationMode)
	v.SetDefault("extraction_mode", cfg.ExtractionMode)
	v.SetDefault("min_message_length", cfg.MinMessageLength)
	v.SetDefault("skip_patterns", cfg.SkipPatterns)
	v.SetDefault("authority.symbolic", cfg.SymbolicAuthority)
	v.SetDefault("authority.episodic", cfg.EpisodicAuthority)
	v.SetDefault("authority.semantic", cfg.SemanticAuthority)
}

// ProjectDir returns <data_root>/<project_id>, the root of one project's
// persisted state.
func (c *Config) ProjectDir(projectID string) string {
	return filepath.Join(c.DataRoot, projectID)
}

// RelationalDBPath returns <data_root>/<project_id>/relational.db.
func (c *Config) RelationalDBPath(projectID string) string {
	return filepath.Join(c.ProjectDir(projectID), "relational.db")
}

// SemanticDir returns <data_root>/<project_id>/semantic/.
func (c *Config) SemanticDir(projectID string) string {
	return filepath.Join(c.ProjectDir(projectID), "semantic")
}

// RegistryDBPath returns the root-level registry.db mapping
// project_id -> creation timestamp.
func (c *Config) RegistryDBPath() string {
	return filepath.Join(c.DataRoot, "registry.db")
}

// CacheTTL returns CacheTTLSeconds as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
