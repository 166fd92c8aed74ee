package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the IMAGESEARCH_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (IMAGESEARCH_API_LISTEN, IMAGESEARCH_DIRS_OUTPUT, etc.)
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

	// 3. Environment variables: IMAGESEARCH_DIRS_INPUT, IMAGESEARCH_INDEX_THREADS, etc.
	v.SetEnvPrefix("IMAGESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Dirs
	v.SetDefault("dirs.input", d.Dirs.Input)
	v.SetDefault("dirs.output", d.Dirs.Output)
	v.SetDefault("dirs.temp", d.Dirs.Temp)

	// Storage
	v.SetDefault("storage.cache_dir", d.Storage.CacheDir)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)

	// Index
	v.SetDefault("index.accelerated", d.Index.Accelerated)
	v.SetDefault("index.threads", d.Index.Threads)
	v.SetDefault("index.batch_size", d.Index.BatchSize)

	// Session
	v.SetDefault("session.capacity", d.Session.Capacity)

	// Watcher
	v.SetDefault("watcher.enabled", d.Watcher.Enabled)
}
