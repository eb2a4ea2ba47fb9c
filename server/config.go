package main

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config comes from POS_-prefixed environment variables.
type Config struct {
	HTTPAddress        string `envconfig:"HTTP_ADDRESS" default:":3000"`
	DatabaseDSN        string `envconfig:"DATABASE_DSN" required:"true"`
	GatewayAddress     string `envconfig:"GATEWAY_ADDRESS"`
	LogLevel           string `envconfig:"LOG_LEVEL" default:"INFO"`
	StaleProcessingMin int    `envconfig:"STALE_PROCESSING_MINUTES" default:"15"`
	OpeningHour        int    `envconfig:"OPENING_HOUR" default:"6"`
}

func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("pos", &c); err != nil {
		return nil, errors.Wrap(err, "load config from environment")
	}
	return &c, nil
}
