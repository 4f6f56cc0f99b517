// Package config loads service configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

type MonitorConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type QueueConfig struct {
	Workers         int           `yaml:"workers"`
	Buffer          int           `yaml:"buffer"`
	MaxAttempts     int           `yaml:"max_attempts"`
	AdmissionLimit  int           `yaml:"admission_limit"`
	AdmissionWindow time.Duration `yaml:"admission_window"`
}

type VenueConfig struct {
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	ExplorerURL string        `yaml:"explorer_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Config struct {
	Listen       string        `yaml:"listen"`
	DBPath       string        `yaml:"db_path"`
	PoolCacheDir string        `yaml:"pool_cache_dir"`
	Log          LogConfig     `yaml:"log"`
	Monitor      MonitorConfig `yaml:"monitor"`
	Queue        QueueConfig   `yaml:"queue"`
	Venues       []VenueConfig `yaml:"venues"`
}

// Default returns the built-in configuration: two EVM venues, the
// documented monitor/queue constants.
func Default() *Config {
	return &Config{
		Listen:       ":8080",
		DBPath:       "data/goswap.db",
		PoolCacheDir: "data/poolcache",
		Log: LogConfig{
			Level:      "info",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
		},
		Monitor: MonitorConfig{
			Interval:    2 * time.Second,
			MaxAttempts: 15,
		},
		Queue: QueueConfig{
			Workers:         10,
			Buffer:          256,
			MaxAttempts:     3,
			AdmissionLimit:  100,
			AdmissionWindow: 60 * time.Second,
		},
		Venues: []VenueConfig{
			{
				Name:        "uniswap",
				BaseURL:     "https://router.uniswap.example",
				ExplorerURL: "https://etherscan.io/tx/",
				Timeout:     10 * time.Second,
			},
			{
				Name:        "sushiswap",
				BaseURL:     "https://router.sushiswap.example",
				ExplorerURL: "https://etherscan.io/tx/",
				Timeout:     10 * time.Second,
			},
		},
	}
}

// Load builds the config. path may be empty; env overrides always apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GOSWAP_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("GOSWAP_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("GOSWAP_POOL_CACHE_DIR"); v != "" {
		c.PoolCacheDir = v
	}
	if v := os.Getenv("GOSWAP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("GOSWAP_LOG_FILE"); v != "" {
		c.Log.OutputFile = v
	}
	if v := os.Getenv("GOSWAP_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Queue.Workers = n
		}
	}
	if v := os.Getenv("GOSWAP_QUEUE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Queue.MaxAttempts = n
		}
	}
}

func (c *Config) validate() error {
	if len(c.Venues) == 0 {
		return fmt.Errorf("config: at least one venue is required")
	}
	seen := make(map[string]bool, len(c.Venues))
	for _, v := range c.Venues {
		if v.Name == "" || v.BaseURL == "" {
			return fmt.Errorf("config: venue name and base_url are required")
		}
		if seen[v.Name] {
			return fmt.Errorf("config: duplicate venue %q", v.Name)
		}
		seen[v.Name] = true
	}
	if c.Monitor.Interval <= 0 || c.Monitor.MaxAttempts <= 0 {
		return fmt.Errorf("config: monitor interval and max_attempts must be positive")
	}
	if c.Queue.Workers <= 0 || c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("config: queue workers and max_attempts must be positive")
	}
	return nil
}
