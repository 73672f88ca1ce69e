package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Default server values.
const (
	DefaultServerPort    = 8060
	DefaultReadTimeout   = 15 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
	DefaultShutdownGrace = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string        `yaml:"host" env:"SERVER_HOST"`
	Port          int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
	// AdminToken guards the purge endpoint when non-empty.
	AdminToken string `yaml:"admin_token" env:"ADMIN_TOKEN"`
}

// Validate checks server settings.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

func loadServer(v *viper.Viper) ServerConfig {
	cfg := ServerConfig{
		Host:          getConfigValue("SERVER_HOST", "server.host", "0.0.0.0", v),
		Port:          getConfigInt("server.port", DefaultServerPort, v),
		ReadTimeout:   v.GetDuration("server.read_timeout"),
		WriteTimeout:  v.GetDuration("server.write_timeout"),
		ShutdownGrace: v.GetDuration("server.shutdown_grace"),
		AdminToken:    getConfigValue("ADMIN_TOKEN", "server.admin_token", "", v),
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ShutdownGrace == 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	return cfg
}
