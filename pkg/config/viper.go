package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/chatstream/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the CHATSTREAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (CHATSTREAM_SERVER_LISTEN, CHATSTREAM_CLIENT_TARGET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: CHATSTREAM_SERVER_LISTEN, CHATSTREAM_OLLAMA_MODEL, etc.
	v.SetEnvPrefix("CHATSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.producer", d.Server.Producer)
	v.SetDefault("server.delay", d.Server.Delay)
	v.SetDefault("server.cors_origin", d.Server.CORSOrigin)

	// Ollama
	v.SetDefault("ollama.upstream", d.Ollama.Upstream)
	v.SetDefault("ollama.model", d.Ollama.Model)

	// Client
	v.SetDefault("client.target", d.Client.Target)
}

// FromViper resolves the effective configuration from v after flags,
// environment, config file, and defaults have been layered.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Server: ServerConfig{
			Listen:     v.GetString("server.listen"),
			Producer:   v.GetString("server.producer"),
			Delay:      v.GetString("server.delay"),
			CORSOrigin: v.GetString("server.cors_origin"),
		},
		Ollama: OllamaConfig{
			Upstream: v.GetString("ollama.upstream"),
			Model:    v.GetString("ollama.model"),
		},
		Client: ClientConfig{
			Target: v.GetString("client.target"),
		},
	}

	if _, err := cfg.Server.DelayDuration(); err != nil {
		return nil, err
	}

	return cfg, nil
}
