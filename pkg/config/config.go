// Package config loads server settings from defaults, an optional YAML file,
// and environment overrides, in that order.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr              string        `yaml:"addr" env:"CHATHUB_ADDR"`
	MaxMessageBytes   int           `yaml:"max_message_bytes" env:"CHATHUB_MAX_MESSAGE_BYTES"`
	GenerationTimeout time.Duration `yaml:"generation_timeout" env:"CHATHUB_GENERATION_TIMEOUT"`
	DisconnectGrace   time.Duration `yaml:"disconnect_grace" env:"CHATHUB_DISCONNECT_GRACE"`
	SimulatedLatency  time.Duration `yaml:"simulated_latency" env:"CHATHUB_SIMULATED_LATENCY"`
	DefaultModel      string        `yaml:"default_model" env:"CHATHUB_DEFAULT_MODEL"`
	LogLevel          string        `yaml:"log_level" env:"CHATHUB_LOG_LEVEL"`
}

func Default() Config {
	return Config{
		Addr:              ":8000",
		MaxMessageBytes:   4000,
		GenerationTimeout: 30 * time.Second,
		DisconnectGrace:   30 * time.Second,
		SimulatedLatency:  500 * time.Millisecond,
		DefaultModel:      "quantum-ai",
		LogLevel:          "info",
	}
}

// Load builds the effective configuration. path may be empty; a missing file
// at an explicit path is an error, env vars always apply last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config file")
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}
	return cfg, nil
}
