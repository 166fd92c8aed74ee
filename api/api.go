package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/gallery"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/search"
)

// ErrorResponse is the JSON error envelope returned by failing handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the HTTP API server for the image search extension.
type Server struct {
	config Config
	engine *search.Engine
	loader *gallery.Loader
	dirs   dirs.Dirs
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The engine and loader are injected
// to allow sharing with other components (e.g., the filesystem watcher
// that invalidates the engine's gather cache).
func NewServer(config Config, engine *search.Engine, loader *gallery.Loader, d dirs.Dirs, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: engine,
		loader: loader,
		dirs:   d,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/image_search/metadata", s.handleMetadata)
	app.Post("/image_search/search", s.handleSearch)
	app.Post("/image_search/select", s.handleSelect)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
