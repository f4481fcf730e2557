package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the service looks for its YAML configuration.
const DefaultPath = "configs/config.yml"

// Config holds the application's configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
}

// TelegramConfig contains the credentials of the bridged account.
type TelegramConfig struct {
	APIID       int    `yaml:"api_id"`
	APIHash     string `yaml:"api_hash"`
	Phone       string `yaml:"phone"`
	SessionFile string `yaml:"session_file"`
	AccountName string `yaml:"account_name"`
	// PeerCacheSize bounds the number of remembered peers and access hashes.
	PeerCacheSize int `yaml:"peer_cache_size"`
}

// DatabaseConfig contains configuration for the mirror store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig enables bearer-token protection of the /api routes.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SecretKey string `yaml:"secret_key"`
}

// SyncConfig controls mirroring of chats and messages into the database.
type SyncConfig struct {
	// Interval is a time.ParseDuration string; empty disables the worker.
	Interval     string `yaml:"interval"`
	MessageLimit int    `yaml:"message_limit"`
}

// IntervalDuration parses Interval. Zero means the worker is disabled.
func (s SyncConfig) IntervalDuration() (time.Duration, error) {
	if s.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid sync interval %q: %w", s.Interval, err)
	}
	return d, nil
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// LoadConfig reads configuration from the YAML file at path, then applies
// environment overrides and defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg.expandEnv()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	return cfg, nil
}

// Validate reports every missing required setting.
func (c *Config) Validate() []string {
	var problems []string
	if c.Telegram.APIID == 0 {
		problems = append(problems, "TELEGRAM_API_ID is required")
	}
	if c.Telegram.APIHash == "" {
		problems = append(problems, "TELEGRAM_API_HASH is required")
	}
	if c.Telegram.Phone == "" {
		problems = append(problems, "TELEGRAM_PHONE_NUMBER is required")
	}
	if c.Auth.Enabled && c.Auth.SecretKey == "" {
		problems = append(problems, "SECRET_KEY is required when auth is enabled")
	}
	if _, err := c.Sync.IntervalDuration(); err != nil {
		problems = append(problems, err.Error())
	}
	return problems
}

func (c *Config) expandEnv() {
	c.Telegram.APIHash = os.ExpandEnv(c.Telegram.APIHash)
	c.Telegram.Phone = os.ExpandEnv(c.Telegram.Phone)
	c.Telegram.SessionFile = os.ExpandEnv(c.Telegram.SessionFile)
	c.Database.URL = os.ExpandEnv(c.Database.URL)
	c.Auth.SecretKey = os.ExpandEnv(c.Auth.SecretKey)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TELEGRAM_API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
		}
		c.Telegram.APIID = id
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Server.Port = port
	}

	overrides := map[string]*string{
		"TELEGRAM_API_HASH":     &c.Telegram.APIHash,
		"TELEGRAM_PHONE_NUMBER": &c.Telegram.Phone,
		"SESSION_FILE":          &c.Telegram.SessionFile,
		"TELEGRAM_ACCOUNT_NAME": &c.Telegram.AccountName,
		"DATABASE_URL":          &c.Database.URL,
		"HOST":                  &c.Server.Host,
		"SECRET_KEY":            &c.Auth.SecretKey,
		"LOG_LEVEL":             &c.Log.Level,
		"SYNC_INTERVAL":         &c.Sync.Interval,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Telegram.SessionFile == "" {
		c.Telegram.SessionFile = "telegram_session.json"
	}
	if c.Telegram.AccountName == "" {
		c.Telegram.AccountName = "Telegram"
	}
	if c.Telegram.PeerCacheSize <= 0 {
		c.Telegram.PeerCacheSize = 1024
	}
	if c.Database.URL == "" {
		c.Database.URL = "sqlite:///telegram.db"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8001
	}
	if c.Sync.MessageLimit <= 0 {
		c.Sync.MessageLimit = 50
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
