package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Vision     VisionConfig     `yaml:"vision"`
	Events     EventsConfig     `yaml:"events"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// AuthConfig describes how the upstream identity proxy hands over the officer.
type AuthConfig struct {
	UserHeader string `yaml:"user_header"`
}

// WebhookConfig configures the ML detection webhook.
type WebhookConfig struct {
	Token           string  `yaml:"token"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// VisionConfig configures the scene-description model.
type VisionConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	MaxTokens      int           `yaml:"max_tokens"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// EventsConfig configures the case event stream.
type EventsConfig struct {
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	PollInterval        time.Duration `yaml:"-"`
	BatchLimit          int           `yaml:"batch_limit"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Service string `yaml:"service"`
}

// Load reads the configuration from the given path. Values from the
// environment (and a local .env file) override secrets in the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied and no file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	cfg.Database.DSN = getenv("DATABASE_DSN", cfg.Database.DSN)
	cfg.Vision.APIKey = getenv("OPENAI_API_KEY", cfg.Vision.APIKey)
	cfg.Push.PublicKey = getenv("VAPID_PUBLIC_KEY", cfg.Push.PublicKey)
	cfg.Push.PrivateKey = getenv("VAPID_PRIVATE_KEY", cfg.Push.PrivateKey)
	cfg.Webhook.Token = getenv("WEBHOOK_TOKEN", cfg.Webhook.Token)
	cfg.Log.Level = getenv("LOG_LEVEL", cfg.Log.Level)
	cfg.Server.Port = getenvInt("PORT", cfg.Server.Port)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Auth.UserHeader == "" {
		cfg.Auth.UserHeader = "X-User-Id"
	}

	if cfg.Webhook.RateLimitPerSec <= 0 {
		cfg.Webhook.RateLimitPerSec = 30
	}
	if cfg.Webhook.RateLimitBurst <= 0 {
		cfg.Webhook.RateLimitBurst = 60
	}

	if cfg.Vision.BaseURL == "" {
		cfg.Vision.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Vision.Model == "" {
		cfg.Vision.Model = "gpt-4o"
	}
	if cfg.Vision.MaxTokens <= 0 {
		cfg.Vision.MaxTokens = 200
	}
	if cfg.Vision.TimeoutSeconds <= 0 {
		cfg.Vision.TimeoutSeconds = 20
	}
	cfg.Vision.Timeout = time.Duration(cfg.Vision.TimeoutSeconds) * time.Second

	if cfg.Events.PollIntervalSeconds <= 0 {
		cfg.Events.PollIntervalSeconds = 3
	}
	cfg.Events.PollInterval = time.Duration(cfg.Events.PollIntervalSeconds) * time.Second
	if cfg.Events.BatchLimit <= 0 {
		cfg.Events.BatchLimit = 50
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize < cfg.WorkerPool.Size {
		cfg.WorkerPool.QueueSize = 100
	}

	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Service == "" {
		cfg.Log.Service = "krl-safety"
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
