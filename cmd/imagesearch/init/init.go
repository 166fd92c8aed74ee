// Package initcmder provides the init command for initializing a local
// .imagesearch directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/config"
)

const (
	dirName = ".imagesearch"
)

const initLongDesc string = `Initialize a new .imagesearch/ directory in the current working directory.

Creates a local .imagesearch/ directory that takes precedence over the
default ~/.imagesearch/ directory for configuration, index artifacts,
and last-search state. A config.toml with default values is written if
none exists.

This is useful for maintaining a separate index per image library.

Examples:
  imagesearch init`

const initShortDesc string = "Initialize a local .imagesearch/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit()
		},
	}

	return cmd
}

func runInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	alreadyInitialized := err == nil && info.IsDir()

	if !alreadyInitialized {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .imagesearch directory: %w", err)
		}
	}

	// Seed a default config.toml unless one already exists.
	configPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfger, err := config.NewConfiger(dir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	if alreadyInitialized {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	fmt.Printf("Initialized .imagesearch directory: %s\n", dir)
	return nil
}
