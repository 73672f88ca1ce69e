// Package config handles loading, validation, and access to application
// configuration from config files and environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/partswatch/partswatch/internal/logger"
)

// Config is the unified application configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Database  DatabaseConfig   `yaml:"database"`
	Crawler   CrawlerConfig    `yaml:"crawler"`
	Logging   logger.Config    `yaml:"logging"`
	Schedules []ScheduleConfig `yaml:"schedules"`
}

// Load builds the unified configuration from Viper and the environment.
// Environment variables take precedence over file values.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server:   loadServer(v),
		Database: loadDatabase(v),
		Crawler:  loadCrawler(v),
		Logging: logger.Config{
			Level:       getConfigValue("LOG_LEVEL", "logging.level", "info", v),
			Development: v.GetBool("logging.development"),
			Encoding:    getConfigValue("LOG_ENCODING", "logging.encoding", "console", v),
		},
	}

	if err := v.UnmarshalKey("schedules", &cfg.Schedules); err != nil {
		return nil, fmt.Errorf("parsing schedules: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Crawler.Validate(); err != nil {
		return fmt.Errorf("crawler config: %w", err)
	}
	for i := range c.Schedules {
		if err := c.Schedules[i].Validate(); err != nil {
			return fmt.Errorf("schedule %d: %w", i, err)
		}
	}
	return nil
}

// getConfigValue retrieves a value from environment or Viper, with a
// default fallback. Environment wins.
func getConfigValue(envKey, viperKey, defaultValue string, v *viper.Viper) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if val := v.GetString(viperKey); val != "" {
		return val
	}
	return defaultValue
}

// getConfigInt is getConfigValue for integer settings.
func getConfigInt(viperKey string, defaultValue int, v *viper.Viper) int {
	if v.IsSet(viperKey) {
		return v.GetInt(viperKey)
	}
	return defaultValue
}
