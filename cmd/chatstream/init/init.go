// Package initcmder provides the init command for initializing a local
// .chatstream directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatstream/pkg/config"
)

const (
	dirName    = ".chatstream"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .chatstream/ directory in the current working directory.

Creates a local .chatstream/ directory that takes precedence over the
default ~/.chatstream/ directory, and writes a config.toml into it unless
one already exists.

Presets:
  echo       Echo producer with a short delay between tokens (default)
  ollama     Ollama producer without added delay

Examples:
  chatstream init
  chatstream init --preset ollama`

const initShortDesc string = "Initialize a local .chatstream/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Config preset to write (echo, ollama)")

	return cmd
}

func runInit(w io.Writer, preset string) error {
	if preset == "" {
		preset = "echo"
	}
	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .chatstream directory: %w", err)
	}

	_, err = os.Stat(filepath.Join(dir, configFile))
	switch {
	case err == nil:
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking config file: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "Initialized .chatstream directory: %s (preset %s)\n", dir, preset)
	return nil
}
