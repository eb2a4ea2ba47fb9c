package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const configFilePath = "config.json"

// Config represents the terminal's configuration structure.
type Config struct {
	APIAddress       string  `json:"api-address" mapstructure:"api-address"`
	GatewayAddress   string  `json:"gateway-address" mapstructure:"gateway-address"`
	PrinterAddress   string  `json:"printer-address" mapstructure:"printer-address"`
	MwAddress        string  `json:"mw-address" mapstructure:"mw-address"`
	TerminalID       string  `json:"terminal-id" mapstructure:"terminal-id"`
	MenuMode         string  `json:"menu-mode" mapstructure:"menu-mode"`
	MenuCSV          string  `json:"menu-csv" mapstructure:"menu-csv"`
	LogLevel         string  `json:"log-level" mapstructure:"log-level"`
	TaxRate          float64 `json:"tax-rate" mapstructure:"tax-rate"`
	CardFeeRate      float64 `json:"card-fee-rate" mapstructure:"card-fee-rate"`
	IdleTimeoutSec   int     `json:"idle-timeout-seconds" mapstructure:"idle-timeout-seconds"`
	PaymentTimeout   int     `json:"payment-timeout-seconds" mapstructure:"payment-timeout-seconds"`
	PollIntervalSec  int     `json:"poll-interval-seconds" mapstructure:"poll-interval-seconds"`
	BlockingGateway  bool    `json:"blocking-gateway" mapstructure:"blocking-gateway"`
	RequireToGoTable bool    `json:"require-togo-table-number" mapstructure:"require-togo-table-number"`
	StateExchange    string  `json:"state-exchange" mapstructure:"state-exchange"`
	InputExchange    string  `json:"input-exchange" mapstructure:"input-exchange"`
	ListenAddress    string  `json:"listen-address" mapstructure:"listen-address"`
}

var requiredFields = []string{
	"api-address",
	"gateway-address",
}

// field: default value
var optionalFields = map[string]interface{}{
	"printer-address":           "",
	"mw-address":                "",
	"terminal-id":               "pos-1",
	"menu-mode":                 "pos",
	"menu-csv":                  "",
	"log-level":                 "INFO",
	"tax-rate":                  0.07,
	"card-fee-rate":             0.03,
	"idle-timeout-seconds":      180,
	"payment-timeout-seconds":   60,
	"poll-interval-seconds":     1,
	"blocking-gateway":          false,
	"require-togo-table-number": false,
	"state-exchange":            "pos.display.state",
	"input-exchange":            "pos.display.input",
	"listen-address":            "127.0.0.1:8800",
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
