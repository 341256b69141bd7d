package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	JWTSecret          string              `json:"jwt_secret"`
	Port               int                 `json:"port"`
	JWTTTLHours        int                 `json:"jwt_ttl_hours"`
	CORSOrigins        []string            `json:"cors_origins"`
	RateLimitPerMinute int                 `json:"rate_limit_per_minute"`
	LogConfig          logger.LogConfig    `json:"log_config"`
	Database           DatabaseConfig      `json:"database"`
	FileStore          FileStoreConfig     `json:"file_store"`
	AI                 AIConfig            `json:"ai"`
	VectorIndex        VectorIndexConfig   `json:"vector_index"`
	SemanticCache      SemanticCacheConfig `json:"semantic_cache"`
	Retry              RetryConfig         `json:"retry"`
	Ingest             IngestConfig        `json:"ingest"`
	Jobs               JobsConfig          `json:"jobs"`
}

type DatabaseConfig struct {
	DSN          string `json:"dsn"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	DBName       string `json:"dbname"`
	SSLMode      string `json:"sslmode"`
	MaxOpenConns int    `json:"max_open_conns"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ModelConfig selects a registered provider. Data is decoded by the provider
// factory.
type ModelConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DB            bool `json:"db"`
}

type AIConfig struct {
	Timeout    int              `json:"timeout"`
	Chat       []ModelConfig    `json:"chat"`
	Embed      ModelConfig      `json:"embed"`
	Vision     ModelConfig      `json:"vision"`
	EmbedCache EmbedCacheConfig `json:"embed_cache"`
}

type VectorIndexConfig struct {
	Type       string      `json:"type"`
	Collection string      `json:"collection"`
	Dimension  int         `json:"dimension"`
	Metric     string      `json:"metric"`
	TopK       int         `json:"top_k"`
	Mode       string      `json:"mode"`
	MMRLambda  float64     `json:"mmr_lambda"`
	Data       interface{} `json:"data"`
}

type SemanticCacheConfig struct {
	Type       string   `json:"type"`
	Threshold  *float64 `json:"threshold"`
	MaxEntries int      `json:"max_entries"`
	TTLSeconds int      `json:"ttl_seconds"`
}

type RetryConfig struct {
	MaxAttempts int `json:"max_attempts"`
	BaseDelayMs int `json:"base_delay_ms"`
	MaxDelayMs  int `json:"max_delay_ms"`
}

type IngestConfig struct {
	ChunkSize     int   `json:"chunk_size"`
	ChunkOverlap  *int  `json:"chunk_overlap"`
	MinChunkSize  int   `json:"min_chunk_size"`
	MaxUploadSize int64 `json:"max_upload_size"`
	// MaxVideoUploadSize bounds /videos/upload separately.
	MaxVideoUploadSize int64 `json:"max_video_upload_size"`
	EmbedConcurrency   int   `json:"embed_concurrency"`
}

type JobsConfig struct {
	CacheCleanup         string `json:"cache_cleanup"`
	EmbedCacheMaxAgeDays int    `json:"embed_cache_max_age_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 60
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.Data == nil {
		cfg.FileStore.Data = map[string]interface{}{"dir": "./data/uploads"}
	}

	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if len(cfg.AI.Chat) == 0 {
		return fmt.Errorf("ai.chat is required")
	}
	for i, c := range cfg.AI.Chat {
		if c.Provider == "" || c.Model == "" {
			return fmt.Errorf("ai.chat[%d] provider and model are required", i)
		}
	}
	if cfg.AI.Embed.Provider == "" || cfg.AI.Embed.Model == "" {
		return fmt.Errorf("ai.embed provider and model are required")
	}

	vi := &cfg.VectorIndex
	if vi.Type == "" {
		vi.Type = "pgvector"
	}
	if vi.Collection == "" {
		vi.Collection = "demo_collection"
	}
	if vi.Dimension == 0 {
		vi.Dimension = 768
	}
	if vi.Metric == "" {
		vi.Metric = "cosine"
	}
	if vi.TopK == 0 {
		vi.TopK = 3
	}
	if vi.TopK < 2 || vi.TopK > 6 {
		return fmt.Errorf("vector_index.top_k must be between 2 and 6")
	}
	if vi.Mode == "" {
		vi.Mode = "similarity"
	}

	sc := &cfg.SemanticCache
	if sc.Type == "" {
		sc.Type = "memory"
	}
	sc.Type = strings.ToLower(sc.Type)
	if sc.Threshold == nil {
		v := 0.2
		sc.Threshold = &v
	}
	if sc.MaxEntries == 0 {
		sc.MaxEntries = 10000
	}
	if sc.TTLSeconds == 0 {
		sc.TTLSeconds = 3600
	}
	switch sc.Type {
	case "memory", "pgvector", "none":
	default:
		return fmt.Errorf("semantic_cache.type must be memory, pgvector or none")
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMs == 0 {
		cfg.Retry.BaseDelayMs = 4000
	}
	if cfg.Retry.MaxDelayMs == 0 {
		cfg.Retry.MaxDelayMs = 10000
	}

	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1200
	}
	if cfg.Ingest.ChunkOverlap == nil {
		v := 200
		cfg.Ingest.ChunkOverlap = &v
	}
	if cfg.Ingest.MinChunkSize == 0 {
		cfg.Ingest.MinChunkSize = 600
	}
	if cfg.Ingest.MaxUploadSize == 0 {
		cfg.Ingest.MaxUploadSize = 10 * 1024 * 1024
	}
	if cfg.Ingest.MaxVideoUploadSize == 0 {
		cfg.Ingest.MaxVideoUploadSize = 20 * 1024 * 1024
	}
	if cfg.Ingest.EmbedConcurrency == 0 {
		cfg.Ingest.EmbedConcurrency = 4
	}

	if cfg.Jobs.CacheCleanup == "" {
		cfg.Jobs.CacheCleanup = "@every 30m"
	}
	if cfg.Jobs.EmbedCacheMaxAgeDays == 0 {
		cfg.Jobs.EmbedCacheMaxAgeDays = 30
	}
	return nil
}
