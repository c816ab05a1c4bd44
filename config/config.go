// Package config loads the device configuration from YAML. Missing fields
// fall back to built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/user/blesm/stack"
)

// Config holds all device configuration.
type Config struct {
	DeviceName            string    `yaml:"device_name"`
	ServiceUUIDs          []string  `yaml:"service_uuids"` // 16-bit UUIDs in hex, e.g. "a000"
	AdvertisingIntervalMs int       `yaml:"advertising_interval_ms"`
	AdvertisingTimeoutS   int       `yaml:"advertising_timeout_s"`
	AutoAcceptPairing     bool      `yaml:"auto_accept_pairing"`
	SecurityLevel         string    `yaml:"security_level"` // "none", "encryption", "encryption_mitm"
	LogLevel              string    `yaml:"log_level"`
	Sim                   SimConfig `yaml:"sim"`
}

// SimConfig holds settings for the simulated stack.
type SimConfig struct {
	Deterministic      bool    `yaml:"deterministic"`
	Seed               int64   `yaml:"seed"`
	PairingFailureRate float64 `yaml:"pairing_failure_rate"`
	EventLog           bool    `yaml:"event_log"`
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "blesm", "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DeviceName:            "SM_device",
		ServiceUUIDs:          []string{"a000"},
		AdvertisingIntervalMs: 5000,
		AdvertisingTimeoutS:   0,
		SecurityLevel:         "encryption",
		LogLevel:              "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("device_name must not be empty")
	}

	if c.AdvertisingIntervalMs < 20 || c.AdvertisingIntervalMs > 10240 {
		return fmt.Errorf("advertising_interval_ms must be in [20, 10240], got %d", c.AdvertisingIntervalMs)
	}

	if c.AdvertisingTimeoutS < 0 {
		return fmt.Errorf("advertising_timeout_s must be >= 0, got %d", c.AdvertisingTimeoutS)
	}

	if _, err := c.ParseServiceUUIDs(); err != nil {
		return err
	}

	if _, err := c.ParseSecurityLevel(); err != nil {
		return err
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be trace, debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Sim.PairingFailureRate < 0 || c.Sim.PairingFailureRate > 1 {
		return fmt.Errorf("sim.pairing_failure_rate must be in [0, 1], got %v", c.Sim.PairingFailureRate)
	}

	return nil
}

// ParseServiceUUIDs converts the hex UUID strings to 16-bit values.
func (c *Config) ParseServiceUUIDs() ([]uint16, error) {
	uuids := make([]uint16, 0, len(c.ServiceUUIDs))
	for _, s := range c.ServiceUUIDs {
		v, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("service_uuids entry %q is not a 16-bit hex UUID", s)
		}
		uuids = append(uuids, uint16(v))
	}
	return uuids, nil
}

// ParseSecurityLevel converts the security_level string to a stack level.
func (c *Config) ParseSecurityLevel() (stack.SecurityLevel, error) {
	switch c.SecurityLevel {
	case "none":
		return stack.SecurityNone, nil
	case "encryption":
		return stack.SecurityEncryptionNoMITM, nil
	case "encryption_mitm":
		return stack.SecurityEncryptionWithMITM, nil
	default:
		return stack.SecurityNone, fmt.Errorf("security_level must be \"none\", \"encryption\" or \"encryption_mitm\", got %q", c.SecurityLevel)
	}
}
