// Package servecmder provides the serve command for running the HTTP API.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/api"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/config"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dotdir"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/gallery"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/indexer"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/logger"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/metrics"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/search"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/session"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/store"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/watcher"
)

const serveLongDesc string = `Run the image search HTTP API.

Serves the search, selection, and metadata endpoints the gallery
frontend talks to. Search sessions share one engine and one persistent
index across requests.

With --watch, the searched directories are observed for filesystem
changes and the candidate listing is re-walked only when something
changed, instead of on every search.

Examples:
  imagesearch serve
  imagesearch serve --listen :8288
  imagesearch serve --watch --output-dir ~/comfy/output`

const serveShortDesc string = "Run the image search API server"

type serveCommander struct {
	listen string

	inputDir  string
	outputDir string
	tempDir   string
	cacheDir  string

	embeddingProvider string
	embeddingTarget   string

	accelerated     bool
	watch           bool
	sessionCapacity int

	configDir string
	debug     bool
	logger    *zap.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("listen") {
				cmder.listen = cfg.API.Listen
			}
			if !cmd.Flags().Changed("input-dir") {
				cmder.inputDir = cfg.Dirs.Input
			}
			if !cmd.Flags().Changed("output-dir") {
				cmder.outputDir = cfg.Dirs.Output
			}
			if !cmd.Flags().Changed("temp-dir") {
				cmder.tempDir = cfg.Dirs.Temp
			}
			if !cmd.Flags().Changed("cache-dir") {
				cmder.cacheDir = cfg.Storage.CacheDir
			}
			if !cmd.Flags().Changed("embedding-provider") {
				cmder.embeddingProvider = cfg.Embedding.Provider
			}
			if !cmd.Flags().Changed("embedding-target") {
				cmder.embeddingTarget = cfg.Embedding.Target
			}
			if !cmd.Flags().Changed("accelerated") {
				cmder.accelerated = cfg.Index.Accelerated
			}
			if !cmd.Flags().Changed("watch") {
				cmder.watch = cfg.Watcher.Enabled
			}
			cmder.sessionCapacity = cfg.Session.Capacity
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", defaults.API.Listen, "Address for the API server to listen on")
	cmd.Flags().StringVarP(&cmder.inputDir, "input-dir", "i", defaults.Dirs.Input, "Input image directory")
	cmd.Flags().StringVarP(&cmder.outputDir, "output-dir", "o", defaults.Dirs.Output, "Output image directory")
	cmd.Flags().StringVar(&cmder.tempDir, "temp-dir", defaults.Dirs.Temp, "Temp image directory")
	cmd.Flags().StringVar(&cmder.cacheDir, "cache-dir", "", "Index artifact directory (default: .imagesearch/index)")
	cmd.Flags().StringVar(&cmder.embeddingProvider, "embedding-provider", defaults.Embedding.Provider, "Embedding provider type (e.g., clipd)")
	cmd.Flags().StringVar(&cmder.embeddingTarget, "embedding-target", defaults.Embedding.Target, "Embedding sidecar URL")
	cmd.Flags().BoolVar(&cmder.accelerated, "accelerated", defaults.Index.Accelerated, "Use the sqlite-vec backend when available")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Watch the searched directories and cache candidate listings")

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cacheDir, err := c.resolveCacheDir()
	if err != nil {
		return err
	}

	st, err := store.New(cacheDir, c.logger)
	if err != nil {
		return err
	}

	d := dirs.Dirs{Input: c.inputDir, Output: c.outputDir, Temp: c.tempDir}
	sessions := session.NewCache[gallery.Options](c.sessionCapacity)

	engine := search.NewEngine(&search.Config{
		Dirs:        d,
		Store:       st,
		Indexer:     indexer.NewIndexer(&indexer.Config{Store: st, Logger: c.logger}),
		Sessions:    sessions,
		Metrics:     metrics.NewGatherer(&metrics.Config{Dirs: d, Logger: c.logger}),
		Provider:    c.embeddingProvider,
		ProviderURL: c.embeddingTarget,
		Accelerated: c.accelerated,
		CacheGather: c.watch,
		Logger:      c.logger,
	})
	defer func() { _ = engine.Close() }()

	loader := gallery.NewLoader(&gallery.LoaderConfig{
		Dirs:     d,
		Sessions: sessions,
		Logger:   c.logger,
	})

	if c.watch {
		w, err := watcher.NewWatcher(&watcher.Config{
			Roots:    []string{c.inputDir, c.outputDir, c.tempDir},
			OnChange: engine.MarkStale,
			Logger:   c.logger,
		})
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer func() { _ = w.Close() }()

		c.logger.Info("watching library directories",
			zap.String("input", c.inputDir),
			zap.String("output", c.outputDir),
			zap.String("temp", c.tempDir),
		)
	}

	apiServer := api.NewServer(api.Config{ListenAddr: c.listen}, engine, loader, d, c.logger)

	c.logger.Info("starting API server",
		zap.String("listen", c.listen),
		zap.String("cache_dir", cacheDir),
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

// resolveCacheDir picks the index artifact directory: the configured one
// when set, otherwise the dot directory's index/ subdirectory.
func (c *serveCommander) resolveCacheDir() (string, error) {
	if c.cacheDir != "" {
		return c.cacheDir, nil
	}
	return dotdir.NewManager().IndexDir(c.configDir)
}
