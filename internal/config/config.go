package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Mapping MappingConfig `mapstructure:"mapping"`
	History HistoryConfig `mapstructure:"history"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
}

type MappingConfig struct {
	// Path is a local file path or an http(s) URL of the description table.
	Path  string `mapstructure:"path"`
	Cloud string `mapstructure:"cloud"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AlertsConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	Stdout  StdoutConfig  `mapstructure:"stdout"`
}

type WebhookConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	URL             string            `mapstructure:"url"`
	Headers         map[string]string `mapstructure:"headers"`
	EventsPerSecond float64           `mapstructure:"events_per_second"`
}

type StdoutConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads the configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".tfdescsan"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("tfdescsan")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TFDESCSAN")
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("history.enabled", false)
	viper.SetDefault("history.path", "./data/tfdescsan.db")
	viper.SetDefault("alerts.stdout.enabled", false)
	viper.SetDefault("alerts.webhook.enabled", false)
	viper.SetDefault("alerts.webhook.events_per_second", 5.0)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
