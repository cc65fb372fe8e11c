package config

import (
	"fmt"
	"time"
)

// Config represents the persistent chatstream configuration stored as
// config.toml in the .chatstream/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int          `toml:"version"`
	Server  ServerConfig `toml:"server"`
	Ollama  OllamaConfig `toml:"ollama"`
	Client  ClientConfig `toml:"client"`
}

// ServerConfig holds settings for "chatstream serve".
type ServerConfig struct {
	Listen   string `toml:"listen,omitempty"`
	Producer string `toml:"producer,omitempty"`

	// Delay is the pause between streamed tokens as a Go duration string
	// (e.g. "10ms"). "0" or "0s" disables pacing.
	Delay string `toml:"delay,omitempty"`

	CORSOrigin string `toml:"cors_origin,omitempty"`
}

// DelayDuration parses Delay. An empty Delay is zero.
func (s ServerConfig) DelayDuration() (time.Duration, error) {
	if s.Delay == "" {
		return 0, nil
	}
	return ParseDelay(s.Delay)
}

// OllamaConfig holds settings for the ollama token producer.
type OllamaConfig struct {
	Upstream string `toml:"upstream,omitempty"`
	Model    string `toml:"model,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// chatstream server (e.g. chatstream chat). Target is a full URL
// (scheme + host + port).
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// ParseDelay parses an inter-token delay. Negative durations are rejected.
func ParseDelay(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: %w", v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid delay %q: must not be negative", v)
	}
	return d, nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"server.producer": {
		get: func(c *Config) string { return c.Server.Producer },
		set: func(c *Config, v string) error { c.Server.Producer = v; return nil },
	},
	"server.delay": {
		get: func(c *Config) string { return c.Server.Delay },
		set: func(c *Config, v string) error {
			if _, err := ParseDelay(v); err != nil {
				return fmt.Errorf("invalid value for server.delay: %w", err)
			}
			c.Server.Delay = v
			return nil
		},
	},
	"server.cors_origin": {
		get: func(c *Config) string { return c.Server.CORSOrigin },
		set: func(c *Config, v string) error { c.Server.CORSOrigin = v; return nil },
	},
	"ollama.upstream": {
		get: func(c *Config) string { return c.Ollama.Upstream },
		set: func(c *Config, v string) error { c.Ollama.Upstream = v; return nil },
	},
	"ollama.model": {
		get: func(c *Config) string { return c.Ollama.Model },
		set: func(c *Config, v string) error { c.Ollama.Model = v; return nil },
	},
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
}
