// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token      string  `yaml:"token"`
	Username   string  `yaml:"username"`
	Workers    int     `yaml:"workers"` // polling update workers
	AdminIDs   []int64 `yaml:"admin_ids"`
	NotifyChat int64   `yaml:"notify_chat"` // operator chat for progress reports
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// Threshold is one rolling-window call budget, e.g. 40 calls per 60s.
type Threshold struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// LimitsConfig carries per-action rate thresholds. Action names match the
// limiter keys used by the batch runner ("send_message", "add_member").
type LimitsConfig struct {
	Actions map[string][]Threshold `yaml:"actions"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	BackoffBase     time.Duration `yaml:"backoff_base"`
	BackoffCap      time.Duration `yaml:"backoff_cap"`
	MaxRateWait     time.Duration `yaml:"max_rate_wait"`     // beyond this, abandon the item
	DefaultWaitHint time.Duration `yaml:"default_wait_hint"` // throttle sleep when provider gives no hint
}

type BatchConfig struct {
	InterItemDelay time.Duration `yaml:"inter_item_delay"`
	NotifyEvery    int           `yaml:"notify_every"`
	ErrorSample    int           `yaml:"error_sample"`
}

type CacheConfig struct {
	Dir           string                   `yaml:"dir"`
	MaxEntries    int                      `yaml:"max_entries"`
	DefaultTTL    time.Duration            `yaml:"default_ttl"`
	TTLs          map[string]time.Duration `yaml:"ttls"` // per operation
	SweepInterval time.Duration            `yaml:"sweep_interval"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	OpenAIBase   string `yaml:"openai_base"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	DefaultModel string `yaml:"default_model"`
}

// Campaign is a recurring mass-message job created on a cron schedule.
type Campaign struct {
	Name  string `yaml:"name"`
	Cron  string `yaml:"cron"`
	Theme string `yaml:"theme"`
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	APIKey    string `yaml:"api_key"`
	JWTSecret string `yaml:"jwt_secret"`
}

type Config struct {
	Bot       BotConfig      `yaml:"bot"`
	Log       LogConfig      `yaml:"log"`
	Admin     AdminConfig    `yaml:"admin"`
	Database  DatabaseConfig `yaml:"database"`
	Redis     RedisConfig    `yaml:"redis"`
	Limits    LimitsConfig   `yaml:"limits"`
	Retry     RetryConfig    `yaml:"retry"`
	Batch     BatchConfig    `yaml:"batch"`
	Cache     CacheConfig    `yaml:"cache"`
	AI        AIConfig       `yaml:"ai"`
	Campaigns []Campaign     `yaml:"campaigns"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 5 * time.Minute
	}
	if len(cfg.Limits.Actions) == 0 {
		cfg.Limits.Actions = map[string][]Threshold{
			"send_message": {{Max: 25, Window: time.Second}, {Max: 1200, Window: time.Minute}},
			"add_member":   {{Max: 40, Window: time.Minute}, {Max: 200, Window: time.Hour}},
		}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BackoffBase <= 0 {
		cfg.Retry.BackoffBase = time.Second
	}
	if cfg.Retry.BackoffCap <= 0 {
		cfg.Retry.BackoffCap = time.Minute
	}
	if cfg.Retry.MaxRateWait <= 0 {
		cfg.Retry.MaxRateWait = 5 * time.Minute
	}
	if cfg.Retry.DefaultWaitHint <= 0 {
		cfg.Retry.DefaultWaitHint = 30 * time.Second
	}
	if cfg.Batch.InterItemDelay <= 0 {
		cfg.Batch.InterItemDelay = 3 * time.Second
	}
	if cfg.Batch.NotifyEvery <= 0 {
		cfg.Batch.NotifyEvery = 10
	}
	if cfg.Batch.ErrorSample <= 0 {
		cfg.Batch.ErrorSample = 5
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache"
	}
	if cfg.Cache.MaxEntries <= 0 {
		cfg.Cache.MaxEntries = 256
	}
	if cfg.Cache.DefaultTTL <= 0 {
		cfg.Cache.DefaultTTL = time.Hour
	}
	if cfg.Cache.SweepInterval <= 0 {
		cfg.Cache.SweepInterval = 15 * time.Minute
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	for action, ths := range cfg.Limits.Actions {
		for _, th := range ths {
			if th.Max <= 0 || th.Window <= 0 {
				return nil, fmt.Errorf("limits.actions.%s: max and window must be positive", action)
			}
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
