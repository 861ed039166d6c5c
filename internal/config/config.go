package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Mongo          MongoConfig
	Redis          RedisConfig
	JWT            JWTConfig
	AI             AIConfig
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Scoring        ScoringConfig        `mapstructure:"scoring"`
	Storage        StorageConfig
	Tracing        TracingConfig   `mapstructure:"tracing"`
	CORS           CORSConfig      `mapstructure:"cors"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// 题库缓存过期时间（秒）
	CatalogTTLSeconds int `mapstructure:"catalog_ttl_seconds"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type AIConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	MaxTokens       int    `mapstructure:"max_tokens"`
	ReasoningEffort string `mapstructure:"reasoning_effort"` // low, medium, high
}

type RecommendationConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	MaxAttempts           int           `mapstructure:"max_attempts"`
	InitialBackoff        time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff            time.Duration `mapstructure:"max_backoff"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	InlineWait            time.Duration `mapstructure:"inline_wait"`
	RescanInterval        time.Duration `mapstructure:"rescan_interval"`
	FailedGiveUpAfter     time.Duration `mapstructure:"failed_give_up_after"`
	PendingStuckThreshold time.Duration `mapstructure:"pending_stuck_threshold"`
}

type ScoringConfig struct {
	TopN              int    `mapstructure:"top_n"`
	UnansweredPolicy  string `mapstructure:"unanswered_policy"` // strict | zero
	StrictMultiChoice bool   `mapstructure:"strict_multi_choice"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("SA_ASSESS")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Mongo
	viper.BindEnv("mongo.uri", "MONGO_URI")
	viper.BindEnv("mongo.dbname", "MONGO_DBNAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")
	viper.BindEnv("ai.max_tokens", "AI_MAX_TOKENS")
	viper.BindEnv("ai.reasoning_effort", "AI_REASONING_EFFORT")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	applyDefaults(&cfg)

	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Recommendation.MaxAttempts <= 0 {
		cfg.Recommendation.MaxAttempts = 3
	}
	if cfg.Recommendation.InitialBackoff <= 0 {
		cfg.Recommendation.InitialBackoff = 2 * time.Second
	}
	if cfg.Recommendation.MaxBackoff <= 0 {
		cfg.Recommendation.MaxBackoff = 30 * time.Second
	}
	if cfg.Recommendation.RequestTimeout <= 0 {
		cfg.Recommendation.RequestTimeout = 60 * time.Second
	}
	if cfg.Recommendation.InlineWait <= 0 {
		cfg.Recommendation.InlineWait = 3 * time.Second
	}
	if cfg.Recommendation.RescanInterval <= 0 {
		cfg.Recommendation.RescanInterval = time.Minute
	}
	if cfg.Recommendation.FailedGiveUpAfter <= 0 {
		cfg.Recommendation.FailedGiveUpAfter = 24 * time.Hour
	}
	if cfg.Recommendation.PendingStuckThreshold <= 0 {
		cfg.Recommendation.PendingStuckThreshold = 5 * time.Minute
	}
	if cfg.Scoring.TopN <= 0 {
		cfg.Scoring.TopN = 3
	}
	if cfg.Scoring.UnansweredPolicy == "" {
		cfg.Scoring.UnansweredPolicy = "zero"
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 4000
	}
	if cfg.AI.ReasoningEffort == "" {
		cfg.AI.ReasoningEffort = "medium"
	}
	if cfg.Redis.CatalogTTLSeconds <= 0 {
		cfg.Redis.CatalogTTLSeconds = 300
	}
}
