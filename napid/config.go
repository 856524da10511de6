package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/macaddr"
	"github.com/netfabric/napi/shared/validate"
)

// StorageConfig locates the bucket store.
type StorageConfig struct {
	Path          string `json:"path"`
	BusyTimeoutMS int    `json:"busy_timeout_ms"`
}

// Config is the daemon configuration, read from a JSON file at startup.
// initial_networks are seeded on every start; entries whose name already
// exists are skipped, so restarts are safe.
type Config struct {
	Port            int                 `json:"port"`
	AdminUUID       string              `json:"admin_uuid"`
	MacOUI          string              `json:"mac_oui"`
	MTUDefault      int                 `json:"mtu_default"`
	Storage         StorageConfig       `json:"storage"`
	LogLevel        string              `json:"log_level"`
	InitialNetworks []api.NetworkCreate `json:"initial_networks,omitempty"`
}

// Defaults applied to absent config fields.
const (
	defaultPort          = 8080
	defaultMTU           = 1500
	defaultBusyTimeoutMS = 5000
)

func loadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("No configuration file supplied, use --config")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Failed reading configuration file: %w", err)
	}

	config := &Config{
		Port:       defaultPort,
		MTUDefault: defaultMTU,
		Storage:    StorageConfig{BusyTimeoutMS: defaultBusyTimeoutMS},
	}

	err = json.Unmarshal(content, config)
	if err != nil {
		return nil, fmt.Errorf("Failed parsing configuration file %q: %w", path, err)
	}

	err = config.validate()
	if err != nil {
		return nil, fmt.Errorf("Invalid configuration file %q: %w", path, err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}

	if c.AdminUUID == "" {
		return fmt.Errorf("admin_uuid is required")
	}

	err := validate.IsUUID(c.AdminUUID)
	if err != nil {
		return fmt.Errorf("admin_uuid: %w", err)
	}

	if c.MacOUI == "" {
		return fmt.Errorf("mac_oui is required")
	}

	_, err = macaddr.ParseOUI(c.MacOUI)
	if err != nil {
		return fmt.Errorf("mac_oui: %w", err)
	}

	err = validate.IsMTU(c.MTUDefault)
	if err != nil {
		return fmt.Errorf("mtu_default: %w", err)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	if c.Storage.BusyTimeoutMS < 0 {
		return fmt.Errorf("storage.busy_timeout_ms must not be negative")
	}

	switch c.LogLevel {
	case "", "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("log_level must be one of error, warn, info or debug")
	}

	return nil
}
