// Package config holds the fleet configuration: logging, timeouts and the
// peripheral store location. Values come from defaults tags, optionally
// overridden by a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/bleherd/internal/controller"
)

// Config holds application configuration
type Config struct {
	LogLevel string `yaml:"log_level" default:"info"`

	// StorePath is the sqlite peripheral database location.
	StorePath string `yaml:"store_path" default:"bleherd.db"`

	// CallTimeout bounds every individual radio-controller call.
	CallTimeout time.Duration `yaml:"call_timeout" default:"10s"`

	// ConnectTimeout bounds connection establishment plus GATT discovery.
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`

	// ResetSettle is the delay a reset waits after restarting before
	// resolving.
	ResetSettle time.Duration `yaml:"reset_settle" default:"5s"`

	// ReloadTimeout bounds post-reset reconciliation of restored devices.
	ReloadTimeout time.Duration `yaml:"reload_timeout" default:"60s"`

	// PermitJoinTick is the countdown interval of the join window.
	PermitJoinTick time.Duration `yaml:"permit_join_tick" default:"1s"`

	// EventBuffer is the capacity of the outward event channel.
	EventBuffer int `yaml:"event_buffer" default:"128"`

	Controller controller.SubConfig `yaml:"controller"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
