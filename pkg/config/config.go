package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"FinCast/pkg/logger"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		RateLimit       struct {
			Capacity     float64 `yaml:"capacity" default:"20"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"2"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Forecast struct {
		LookbackDays            int           `yaml:"lookback_days" default:"180"`
		DefaultHorizon          int           `yaml:"default_horizon" default:"7"`
		DefaultBacktestLookback int           `yaml:"default_backtest_lookback" default:"60"`
		CacheTTL                time.Duration `yaml:"cache_ttl" default:"1h"`
		BatchConcurrency        int           `yaml:"batch_concurrency" default:"8"`
	} `yaml:"forecast"`
	Storage struct {
		Series string `yaml:"series" default:"memory"` // clickhouse, mysql, memory
		Store  string `yaml:"store" default:"memory"`  // clickhouse, sqlite, memory
	} `yaml:"storage"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"fincast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		SourceTable      string        `yaml:"source_table" default:"financial_data"`
	} `yaml:"clickhouse"`
	MySQL struct {
		DSN         string `yaml:"dsn"`
		SourceTable string `yaml:"source_table" default:"financial_data"`
		MaxOpen     int    `yaml:"max_open" default:"10"`
	} `yaml:"mysql"`
	SQLite struct {
		Path string `yaml:"path" default:"data/fincast.db"`
	} `yaml:"sqlite"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"fincast"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		MinIdle  int    `yaml:"min_idle_conns" default:"2"`
	} `yaml:"redis"`
	Cache struct {
		Mode          string        `yaml:"mode" default:"memory"` // memory, redis, layered
		MemoryMaxSize int           `yaml:"memory_max_size" default:"1000"`
		SweepInterval time.Duration `yaml:"sweep_interval" default:"5m"`
		LockTTL       time.Duration `yaml:"lock_ttl" default:"30s"`
		LockWait      time.Duration `yaml:"lock_wait" default:"5s"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"forecast.results"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
	} `yaml:"queue"`
	Scheduler struct {
		Enabled bool    `yaml:"enabled"`
		At      string  `yaml:"at" default:"02:15"`
		UserIDs []int64 `yaml:"user_ids"`
	} `yaml:"scheduler"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse applies defaults, decodes YAML bytes over them and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FINCAST_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("FINCAST_SERIES_BACKEND"); v != "" {
		c.Storage.Series = v
	}
	if v := getenv("FINCAST_STORE_BACKEND"); v != "" {
		c.Storage.Store = v
	}
	if v := getenv("FINCAST_MYSQL_DSN"); v != "" {
		c.MySQL.DSN = v
	}
	if v := getenv("FINCAST_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("FINCAST_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("FINCAST_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Storage.Series {
	case "clickhouse", "mysql", "memory":
	default:
		return fmt.Errorf("storage.series must be 'clickhouse', 'mysql' or 'memory', got '%s'", c.Storage.Series)
	}
	switch c.Storage.Store {
	case "clickhouse", "sqlite", "memory":
	default:
		return fmt.Errorf("storage.store must be 'clickhouse', 'sqlite' or 'memory', got '%s'", c.Storage.Store)
	}
	if c.Storage.Series == "mysql" && c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn is required when storage.series is mysql")
	}
	switch c.Cache.Mode {
	case "memory":
	case "redis", "layered":
		if !c.Redis.Enabled {
			return fmt.Errorf("cache.mode %s requires redis.enabled", c.Cache.Mode)
		}
	default:
		return fmt.Errorf("cache.mode must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Mode)
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Forecast.LookbackDays < 1 {
		return fmt.Errorf("forecast.lookback_days must be positive")
	}
	if c.Forecast.DefaultHorizon < 1 {
		return fmt.Errorf("forecast.default_horizon must be positive")
	}
	if c.Scheduler.Enabled {
		if _, err := time.Parse("15:04", c.Scheduler.At); err != nil {
			return fmt.Errorf("scheduler.at must be HH:MM: %w", err)
		}
	}
	return nil
}
