package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Index       IndexConfig      `json:"index"`
	AI          AIConfig         `json:"ai"`
	Tokens      TokenConfig      `json:"tokens"`
	Admin       AdminConfig      `json:"admin"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type IndexConfig struct {
	Dir       string `json:"dir"`
	QueueSize int    `json:"queue_size"`
	// RetrySpec is a cron expression; documents stuck in pending state are
	// re-enqueued on this schedule.
	RetrySpec string `json:"retry_spec"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	Model          string      `json:"model"`
	EmbedModel     string      `json:"embed_model"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Data           interface{} `json:"data"`
}

type TokenConfig struct {
	DefaultUserTokens  int64 `json:"default_user_tokens"`
	EmbeddingChargeCap int64 `json:"embedding_charge_cap"`
	MaxUploadBytes     int64 `json:"max_upload_bytes"`
}

type AdminConfig struct {
	Email    string `json:"email"`
	Password string `json:"password"`
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
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Index.Dir == "" {
		return nil, fmt.Errorf("index.dir is required")
	}
	if cfg.Index.QueueSize <= 0 {
		cfg.Index.QueueSize = 64
	}
	if cfg.Index.RetrySpec == "" {
		cfg.Index.RetrySpec = "*/10 * * * *"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.Tokens.DefaultUserTokens <= 0 {
		cfg.Tokens.DefaultUserTokens = 100
	}
	if cfg.Tokens.EmbeddingChargeCap <= 0 {
		cfg.Tokens.EmbeddingChargeCap = 1000
	}
	if cfg.Tokens.MaxUploadBytes <= 0 {
		cfg.Tokens.MaxUploadBytes = 10 * 1024 * 1024
	}
	return &cfg, nil
}
