package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const configFilePath = "config.json"

// Config represents the customer display's configuration structure.
type Config struct {
	MwAddress     string `json:"mw-address" mapstructure:"mw-address"`
	DisplayID     string `json:"display-id" mapstructure:"display-id"`
	LogLevel      string `json:"log-level" mapstructure:"log-level"`
	StateExchange string `json:"state-exchange" mapstructure:"state-exchange"`
	InputExchange string `json:"input-exchange" mapstructure:"input-exchange"`
	ListenAddress string `json:"listen-address" mapstructure:"listen-address"`
}

var requiredFields = []string{
	"mw-address",
}

// field: default value
var optionalFields = map[string]interface{}{
	"display-id":     "display-1",
	"log-level":      "INFO",
	"state-exchange": "pos.display.state",
	"input-exchange": "pos.display.input",
	"listen-address": "127.0.0.1:8810",
}

// InitConfig reads configuration from a JSON file and environment variables.
// Environment variables take precedence over the config file.
func InitConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configFilePath)
	v.SetConfigType("json")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	for _, field := range requiredFields {
		v.BindEnv(field)
	}
	for field := range optionalFields {
		v.BindEnv(field)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	for _, field := range requiredFields {
		if !v.IsSet(field) {
			return nil, fmt.Errorf("missing required config field: %s", field)
		}
	}

	for optField, defaultValue := range optionalFields {
		if !v.IsSet(optField) {
			v.Set(optField, defaultValue)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	return &config, nil
}
