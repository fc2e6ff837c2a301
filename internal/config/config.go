package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Import    ImportConfig    `mapstructure:"import"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig selects the gorm dialector. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ImportConfig struct {
	MaxUploadMB int64 `mapstructure:"max_upload_mb"`
}

// MatchingConfig overrides the auto-match tuning values. Zero keeps the built-in default.
type MatchingConfig struct {
	AutoThreshold    int `mapstructure:"auto_threshold"`
	SuggestThreshold int `mapstructure:"suggest_threshold"`
	AmbiguityDelta   int `mapstructure:"ambiguity_delta"`
}

type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
	Timezone string `mapstructure:"timezone"`
}

// Load reads configuration from an optional file and the environment.
// Env var overrides use prefix APP_, e.g. APP_DATABASE_DSN.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", os.Getenv("DATABASE_URL"))
	v.SetDefault("log.level", "info")
	v.SetDefault("import.max_upload_mb", 10)
	v.SetDefault("matching.auto_threshold", 0)
	v.SetDefault("matching.suggest_threshold", 0)
	v.SetDefault("matching.ambiguity_delta", 0)
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.schedule", "0 6 * * *")
	v.SetDefault("scheduler.timezone", "Europe/Berlin")

	v.SetConfigType("yaml")
	if path := os.Getenv("APP_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// the config file is optional
	if err := v.ReadInConfig(); err != nil && !isConfigMissing(err) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Database.DSN == "" {
		return Config{}, fmt.Errorf("database dsn is not configured (set APP_DATABASE_DSN or DATABASE_URL)")
	}
	return c, nil
}

func isConfigMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
