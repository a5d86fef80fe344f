// Package config loads renderer-control settings from an optional YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed to talk to one renderer.
type Config struct {
	// DescriptionURL locates the renderer's device description XML.
	DescriptionURL string `yaml:"descriptionURL"`
	// EventBusURL is the websocket URL of the playback event bus.
	// Empty disables eventing.
	EventBusURL string `yaml:"eventBusURL"`
	// ProxyBase routes control commands through a relay instead of
	// direct SOAP. Empty means direct.
	ProxyBase string `yaml:"proxyBase"`
	// SOAP11 asks the relay to speak SOAP 1.1 to the renderer.
	SOAP11 bool `yaml:"soap11"`

	TimeoutMs            int `yaml:"timeoutMs"`
	MaxReconnectAttempts int `yaml:"maxReconnectAttempts"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`
}

// Load reads the YAML file at path when it exists, applies environment
// overrides, and validates the result. An empty path skips the file and
// uses environment plus defaults only.
func Load(path string) (Config, error) {
	cfg := Config{
		TimeoutMs:            10000,
		MaxReconnectAttempts: 5,
		LogLevel:             "info",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.DescriptionURL = envString("DLNA_DESCRIPTION_URL", cfg.DescriptionURL)
	cfg.EventBusURL = envString("DLNA_EVENT_BUS_URL", cfg.EventBusURL)
	cfg.ProxyBase = envString("DLNA_PROXY_BASE", cfg.ProxyBase)
	cfg.SOAP11 = envBool("DLNA_SOAP11", cfg.SOAP11)
	cfg.TimeoutMs = envInt("DLNA_TIMEOUT_MS", cfg.TimeoutMs)
	cfg.MaxReconnectAttempts = envInt("DLNA_MAX_RECONNECT_ATTEMPTS", cfg.MaxReconnectAttempts)
	cfg.LogLevel = envString("DLNA_LOG_LEVEL", cfg.LogLevel)

	if cfg.DescriptionURL == "" {
		return Config{}, fmt.Errorf("descriptionURL is required (set DLNA_DESCRIPTION_URL or the config file)")
	}
	if cfg.TimeoutMs <= 0 {
		return Config{}, fmt.Errorf("timeoutMs must be positive, got %d", cfg.TimeoutMs)
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}
