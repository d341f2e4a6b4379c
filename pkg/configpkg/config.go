// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Supported store backends.
const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
// Environment variables take precedence over the file.
type Config struct {
	Environment     string        `mapstructure:"GO_ENV"`
	ServerAddress   string        `mapstructure:"SERVER_ADDRESS"`
	StoreBackend    string        `mapstructure:"STORE_BACKEND"`
	JSONStorePath   string        `mapstructure:"JSON_STORE_PATH"`
	DBDriver        string        `mapstructure:"DB_DRIVER"`
	DBSource        string        `mapstructure:"DB_SOURCE"`
	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	CacheTTL        time.Duration `mapstructure:"CACHE_TTL"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var defaults = map[string]any{
	"GO_ENV":           "production",
	"SERVER_ADDRESS":   "0.0.0.0:3000",
	"STORE_BACKEND":    BackendJSON,
	"JSON_STORE_PATH":  "data/envelopes.json",
	"DB_DRIVER":        "postgres",
	"DB_SOURCE":        "",
	"REDIS_ADDR":       "",
	"REDIS_PASSWORD":   "",
	"REDIS_DB":         0,
	"CACHE_TTL":        time.Minute,
	"SHUTDOWN_TIMEOUT": 10 * time.Second,
}

// Load read configuration from file or environment variables.
//
// A missing app.env is not an error, defaults and the environment are used instead.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// Validate reports configuration that cannot start the server.
func (c Config) Validate() error {
	if c.ServerAddress == "" {
		return errors.New("SERVER_ADDRESS is required")
	}

	switch c.StoreBackend {
	case BackendJSON:
		if c.JSONStorePath == "" {
			return errors.New("JSON_STORE_PATH is required for the json backend")
		}
	case BackendPostgres:
		if c.DBDriver == "" || c.DBSource == "" {
			return errors.New("DB_DRIVER and DB_SOURCE are required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	if c.RedisAddr != "" && c.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive when REDIS_ADDR is set")
	}

	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
