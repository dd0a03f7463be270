// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads dbdispatch configuration from defaults, a YAML file,
// DBDISPATCH_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/toeirei/dbdispatch/internal/model"
)

// Database selects and tunes the backend.
type Database struct {
	Type string `mapstructure:"type" yaml:"type"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
	// Mode is blocking or native. Empty picks the backend's default.
	Mode string `mapstructure:"mode" yaml:"mode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
}

// Pool configures the offload worker pool.
type Pool struct {
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	QueueSize     int           `mapstructure:"queue_size" yaml:"queue_size"`
	// SubmitRetries > 0 bounds how long a submission waits for queue room.
	SubmitRetries int           `mapstructure:"submit_retries" yaml:"submit_retries"`
	SubmitBackoff time.Duration `mapstructure:"submit_backoff" yaml:"submit_backoff"`
}

type Log struct {
	Level   string `mapstructure:"level" yaml:"level"`
	JSON    bool   `mapstructure:"json" yaml:"json"`
	DBDebug bool   `mapstructure:"db_debug" yaml:"db_debug"`
}

type Config struct {
	Database Database `mapstructure:"database" yaml:"database"`
	Pool     Pool     `mapstructure:"pool" yaml:"pool"`
	Log      Log      `mapstructure:"log" yaml:"log"`
	Language string   `mapstructure:"language" yaml:"language"`
}

// Defaults returns the built-in configuration as viper keys.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":               "sqlite",
		"database.dsn":                "dbdispatch.db",
		"database.mode":               "",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     25,
		"database.conn_max_lifetime":  5 * time.Minute,
		"database.conn_max_idle_time": 60 * time.Second,
		"pool.workers":                8,
		"pool.queue_size":             1024,
		"pool.submit_retries":         0,
		"pool.submit_backoff":         2 * time.Millisecond,
		"log.level":                   "info",
		"log.json":                    false,
		"log.db_debug":                false,
		"language":                    "en",
	}
}

// Validate checks values that cannot be fixed up by defaults.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported database type %q", c.Database.Type))
	}
	if _, err := model.ParseMode(c.Database.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("database connection limits must not be negative"))
	}
	if c.Database.MaxOpenConns > math.MaxInt32 || c.Database.MaxIdleConns > math.MaxInt32 {
		errs = append(errs, fmt.Errorf("database connection limits must not exceed %d", math.MaxInt32))
	}
	if c.Pool.Workers <= 0 {
		errs = append(errs, fmt.Errorf("pool.workers must be positive, got %d", c.Pool.Workers))
	}
	if c.Pool.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("pool.queue_size must be positive, got %d", c.Pool.QueueSize))
	}
	if c.Pool.SubmitRetries < 0 || c.Pool.SubmitBackoff < 0 {
		errs = append(errs, errors.New("pool submit retry settings must not be negative"))
	}
	return errors.Join(errs...)
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "dbdispatch")
		default:
			configDir = "/etc/dbdispatch"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, "dbdispatch")
	}
	return filepath.Join(configDir, "dbdispatch.yaml"), nil
}

// LoadConfig merges defaults, the first dbdispatch.yaml found (or the file
// named by configFile), the environment and the flags of cmd into a T.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, configFile *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("dbdispatch")
	v.SetConfigType("yaml")
	if configFile != nil && *configFile != "" {
		v.SetConfigFile(*configFile)
	}
	if p, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(p))
	}
	if p, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(p))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, fmt.Errorf("read config: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("dbdispatch")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Load is LoadConfig for Config with the built-in defaults, followed by Validate.
func Load(cmd *cobra.Command, configFile string) (Config, error) {
	c, err := LoadConfig[Config](cmd, Defaults(), &configFile)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

// WriteConfigFile writes c as YAML to the user or system config path and
// returns the path written.
func WriteConfigFile[T any](c *T, system bool) (string, error) {
	path, err := GetConfigPath(system)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}
	// 0600: the DSN may carry credentials
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
