// Package config loads application configuration from a config file,
// environment variables, and defaults, in that order of preference.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application. Values come from
// a config file or environment variables (LIFTLOG_ prefix, dots become
// underscores).
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	// Path to the SQLite database file.
	Path string `mapstructure:"path"`
}

type RemoteConfig struct {
	// URL of the sync server, e.g. http://localhost:8484.
	URL string `mapstructure:"url"`
	// Token is the bearer token presented on pull and push.
	Token string `mapstructure:"token"`
	// UserID identifies the signed-in user locally.
	UserID string `mapstructure:"user_id"`
}

type SyncConfig struct {
	// Interval between background cycles in watch mode.
	Interval time.Duration `mapstructure:"interval"`
	// Debounce is how long to wait after a local write before syncing.
	Debounce time.Duration `mapstructure:"debounce"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	// File receives log output when set; empty logs to stderr.
	File string `mapstructure:"file"`
	// MaxSizeMB rotates the log file once it grows past this size.
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups bounds how many rotated files are kept.
	MaxBackups int `mapstructure:"max_backups"`
}

// Load reads configuration. path may name a config file directly; when
// empty the default locations are searched ($LIFTLOG_CONFIG, the
// working directory, ~/.config/liftlog).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "liftlog"))
		}
	}

	v.SetEnvPrefix("LIFTLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", defaultDBPath())
	v.SetDefault("remote.url", "http://localhost:8484")
	v.SetDefault("sync.interval", "5m")
	v.SetDefault("sync.debounce", "2s")
	v.SetDefault("server.port", 8484)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine unless one was named explicitly.
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if path != "" || (!notFound && !os.IsNotExist(err)) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive")
	}
	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("sync.debounce must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "liftlog.db"
	}
	return filepath.Join(home, ".local", "share", "liftlog", "liftlog.db")
}
