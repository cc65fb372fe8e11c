package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "server.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags
// to avoid typos or drift from one command to another.
const (
	FlagListen         = "listen"
	FlagProducer       = "producer"
	FlagDelay          = "delay"
	FlagCORSOrigin     = "cors-origin"
	FlagOllamaUpstream = "ollama-upstream"
	FlagOllamaModel    = "ollama-model"
	FlagTarget         = "target"
)

// Flags is the registry of every configurable CLI flag.
var Flags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "server.listen",
		Description: "Address for the chat server to listen on",
	},
	FlagProducer: {
		Name:        "producer",
		ViperKey:    "server.producer",
		Description: "Token producer (echo, ollama, scripted)",
	},
	FlagDelay: {
		Name:        "delay",
		ViperKey:    "server.delay",
		Description: "Pause between streamed tokens (e.g. 10ms, 0 to disable)",
	},
	FlagCORSOrigin: {
		Name:        "cors-origin",
		ViperKey:    "server.cors_origin",
		Description: "Origin allowed to call the chat API from a browser",
	},
	FlagOllamaUpstream: {
		Name:        "ollama-upstream",
		ViperKey:    "ollama.upstream",
		Description: "Ollama server URL used by the ollama producer",
	},
	FlagOllamaModel: {
		Name:        "ollama-model",
		ViperKey:    "ollama.model",
		Description: "Model used by the ollama producer",
	},
	FlagTarget: {
		Name:        "target",
		Shorthand:   "t",
		ViperKey:    "client.target",
		Description: "Chatstream server URL",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}
