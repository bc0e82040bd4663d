package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the bridge process. Values come
// from environment variables, with an optional .env file loaded first.
type Config struct {
	// SUMO TraCI endpoint.
	SumoHost string `env:"SUMO_HOST" envDefault:"sumo"`
	SumoPort int    `env:"SUMO_PORT" envDefault:"8813"`

	// Modbus TCP listener.
	ModbusHost string `env:"MODBUS_HOST" envDefault:"0.0.0.0"`
	ModbusPort int    `env:"MODBUS_PORT" envDefault:"5020"`

	// Sync engine pacing.
	TickInterval       time.Duration `env:"BRIDGE_TICK_INTERVAL"        envDefault:"50ms"`
	DiagnosticInterval int           `env:"BRIDGE_DIAGNOSTIC_INTERVAL"  envDefault:"100"`

	// Connection supervision.
	ConnectBackoff     time.Duration `env:"BRIDGE_CONNECT_BACKOFF"      envDefault:"5s"`
	MaxConnectAttempts int           `env:"BRIDGE_MAX_CONNECT_ATTEMPTS" envDefault:"10"`
	DialTimeout        time.Duration `env:"BRIDGE_DIAL_TIMEOUT"         envDefault:"10s"`

	// Observability.
	MetricsAddr string `env:"BRIDGE_METRICS_ADDR" envDefault:":9108"`
}

// Load reads an optional .env file and then parses the environment into a
// Config. A missing .env file is not an error; real environment variables
// always win over file contents.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SumoPort <= 0 || c.SumoPort > 65535 {
		return fmt.Errorf("invalid SUMO_PORT %d", c.SumoPort)
	}
	if c.ModbusPort <= 0 || c.ModbusPort > 65535 {
		return fmt.Errorf("invalid MODBUS_PORT %d", c.ModbusPort)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.DiagnosticInterval <= 0 {
		return fmt.Errorf("diagnostic interval must be positive, got %d", c.DiagnosticInterval)
	}
	if c.MaxConnectAttempts <= 0 {
		return fmt.Errorf("max connect attempts must be positive, got %d", c.MaxConnectAttempts)
	}
	return nil
}

// SumoAddr returns the host:port string of the TraCI endpoint.
func (c Config) SumoAddr() string {
	return fmt.Sprintf("%s:%d", c.SumoHost, c.SumoPort)
}

// ModbusAddr returns the listen address for the Modbus TCP server.
func (c Config) ModbusAddr() string {
	return fmt.Sprintf("%s:%d", c.ModbusHost, c.ModbusPort)
}
