package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Kitchen  KitchenConfig  `yaml:"kitchen"`
	HTTP     HTTPConfig     `yaml:"http"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type KitchenConfig struct {
	// DefaultShortSeconds is the expected cook time for an order whose
	// resolved items are all short type.
	DefaultShortSeconds int `yaml:"default_short_seconds"`
	// TaxRatePercent feeds the default pricing calculator.
	TaxRatePercent float64 `yaml:"tax_rate_percent"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Kitchen.DefaultShortSeconds <= 0 {
		cfg.Kitchen.DefaultShortSeconds = 300
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}

	return &cfg, nil
}

// DefaultShortDuration returns the all-short cook time as a duration.
func (c KitchenConfig) DefaultShortDuration() time.Duration {
	return time.Duration(c.DefaultShortSeconds) * time.Second
}
