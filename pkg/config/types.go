package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent image search configuration stored as
// config.toml in the .imagesearch/ directory. The TOML layout uses
// sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Dirs      DirsConfig      `toml:"dirs"`
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Index     IndexConfig     `toml:"index"`
	Session   SessionConfig   `toml:"session"`
	Watcher   WatcherConfig   `toml:"watcher"`
}

// DirsConfig holds the roots of the managed directory classes candidates
// are gathered from and selections resolve against.
type DirsConfig struct {
	Input  string `toml:"input,omitempty"`
	Output string `toml:"output,omitempty"`
	Temp   string `toml:"temp,omitempty"`
}

// StorageConfig holds index artifact storage settings.
type StorageConfig struct {
	// CacheDir is where index artifacts live. Empty means
	// <dotdir>/index resolved at startup.
	CacheDir string `toml:"cache_dir,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// IndexConfig holds index update and backend settings.
type IndexConfig struct {
	Accelerated bool `toml:"accelerated,omitempty"`
	Threads     int  `toml:"threads,omitempty"`
	BatchSize   int  `toml:"batch_size,omitempty"`
}

// SessionConfig holds session cache settings.
type SessionConfig struct {
	Capacity int `toml:"capacity,omitempty"`
}

// WatcherConfig holds filesystem watcher settings.
type WatcherConfig struct {
	Enabled bool `toml:"enabled,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"dirs.input": {
		get: func(c *Config) string { return c.Dirs.Input },
		set: func(c *Config, v string) error { c.Dirs.Input = v; return nil },
	},
	"dirs.output": {
		get: func(c *Config) string { return c.Dirs.Output },
		set: func(c *Config, v string) error { c.Dirs.Output = v; return nil },
	},
	"dirs.temp": {
		get: func(c *Config) string { return c.Dirs.Temp },
		set: func(c *Config, v string) error { c.Dirs.Temp = v; return nil },
	},
	"storage.cache_dir": {
		get: func(c *Config) string { return c.Storage.CacheDir },
		set: func(c *Config, v string) error { c.Storage.CacheDir = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"index.accelerated": {
		get: func(c *Config) string { return strconv.FormatBool(c.Index.Accelerated) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for index.accelerated: %w", err)
			}
			c.Index.Accelerated = b
			return nil
		},
	},
	"index.threads": {
		get: func(c *Config) string {
			if c.Index.Threads == 0 {
				return ""
			}
			return strconv.Itoa(c.Index.Threads)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for index.threads: %w", err)
			}
			c.Index.Threads = n
			return nil
		},
	},
	"index.batch_size": {
		get: func(c *Config) string {
			if c.Index.BatchSize == 0 {
				return ""
			}
			return strconv.Itoa(c.Index.BatchSize)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for index.batch_size: %w", err)
			}
			c.Index.BatchSize = n
			return nil
		},
	},
	"session.capacity": {
		get: func(c *Config) string {
			if c.Session.Capacity == 0 {
				return ""
			}
			return strconv.Itoa(c.Session.Capacity)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for session.capacity: %w", err)
			}
			c.Session.Capacity = n
			return nil
		},
	},
	"watcher.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Watcher.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for watcher.enabled: %w", err)
			}
			c.Watcher.Enabled = b
			return nil
		},
	},
}
