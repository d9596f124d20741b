package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type cliConfig struct {
	APIURL     string        `mapstructure:"API_URL"`
	Token      string        `mapstructure:"TOKEN"`
	Snapshot   string        `mapstructure:"SNAPSHOT"`
	Timeout    time.Duration `mapstructure:"TIMEOUT"`
	MaxRetries uint64        `mapstructure:"MAX_RETRIES"`
	Env        string        `mapstructure:"ENV"`
	LogLevel   string        `mapstructure:"LOG_LEVEL"`
}

// loadConfig reads dirctl.yaml from the working directory or the user config
// dir, then DIRCTL_* environment variables. Flags override both later.
func loadConfig(configFile string) (cliConfig, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dirctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "dirctl"))
		}
	}
	v.SetEnvPrefix("DIRCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("API_URL", "http://localhost:8080")
	v.SetDefault("TOKEN", "")
	v.SetDefault("SNAPSHOT", defaultSnapshotPath())
	v.SetDefault("TIMEOUT", "15s")
	v.SetDefault("MAX_RETRIES", 5)
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "warn")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return cliConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cliConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Timeout <= 0 {
		return cliConfig{}, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}

func defaultSnapshotPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "dirctl.db"
	}
	return filepath.Join(dir, "dirctl", "snapshots.db")
}
