// Package search orchestrates a full similarity search pass: candidate
// gathering, incremental index update, backend construction, query
// embedding, score aggregation and metric gathering, producing the
// gallery payload the host UI renders.
package search

import (
	"context"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/embeddings"
	embeddingutils "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/embeddings/utils"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/gallery"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/imageio"
	indexutils "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/index/utils"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/indexer"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/metrics"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/progress"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/session"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/store"
)

// Config is the configuration options for the search engine.
type Config struct {
	// Dirs locates the directory classes searched for candidates.
	Dirs dirs.Dirs

	// Store persists embedding indexes between searches.
	Store *store.Store

	// Indexer keeps the stored index up to date before each search.
	Indexer *indexer.Indexer

	// Sessions remembers each session's options for later selections.
	Sessions *session.Cache[gallery.Options]

	// Metrics gathers per-result display detail.
	Metrics *metrics.Gatherer

	// Provider selects the embedding backend (defaults to clipd).
	Provider string

	// ProviderURL overrides the embedding backend address.
	ProviderURL string

	// Accelerated requests the sqlite-vec backend; brute force remains the
	// fallback when it cannot initialize.
	Accelerated bool

	// CacheGather reuses the last candidate walk until MarkStale is called.
	// Leave false unless a filesystem watcher drives invalidation.
	CacheGather bool

	// Progress receives indexing progress updates. May be nil.
	Progress progress.Sink

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Engine runs similarity searches.
type Engine struct {
	config *Config
	logger *zap.Logger

	embedderMu sync.Mutex
	embedders  map[string]embeddings.Embedder

	gatherMu    sync.Mutex
	gatherKey   [3]bool
	gatherFiles []string
	gatherValid bool
}

// NewEngine creates a search Engine.
func NewEngine(c *Config) *Engine {
	if c.Provider == "" {
		c.Provider = "clipd"
	}
	return &Engine{
		config:    c,
		logger:    c.Logger,
		embedders: make(map[string]embeddings.Embedder),
	}
}

// SearchGallery runs Search and converts any failure into an explicit
// empty gallery, so callers always have a payload to render.
func (e *Engine) SearchGallery(ctx context.Context, options gallery.Options) *gallery.Gallery {
	g, err := e.Search(ctx, options)
	if err != nil {
		e.logger.Error("search failed", zap.Error(err))
		return gallery.EmptyGallery(options, fmt.Sprintf("Search failed: %v", err))
	}
	return g
}

// Search performs one full search pass and returns the gallery payload.
// Requests that cannot produce results (nothing to search, no usable
// query images) return an empty gallery carrying a reason, not an error.
func (e *Engine) Search(ctx context.Context, options gallery.Options) (*gallery.Gallery, error) {
	model := embeddings.ModelForQuality(embeddings.Quality(options.ClipQuality))

	if options.RebuildIndex {
		if err := e.config.Store.Clear(model.ID); err != nil {
			e.logger.Warn("failed to clear index", zap.Error(err))
		}
	}

	files := e.gatherCandidates(options)
	if len(files) == 0 {
		e.logger.Warn("no files to search")
		return gallery.EmptyGallery(options, "No files to search"), nil
	}

	embedder, err := e.embedderFor(options.ClipQuality)
	if err != nil {
		return nil, err
	}

	vecs, entries, err := e.config.Indexer.Update(ctx, &indexer.UpdateOpts{
		Files:     files,
		Embedder:  embedder,
		ModelKey:  model.ID,
		Threads:   options.IndexThreads,
		BatchSize: options.EmbedBatchSize,
		Progress:  e.config.Progress,
	})
	if err != nil {
		return nil, fmt.Errorf("updating index: %w", err)
	}

	if len(options.QueryImages) == 0 {
		e.logger.Warn("no query images")
		return gallery.EmptyGallery(options, "No query images"), nil
	}

	queryImages := e.loadQueryImages(options.QueryImages)
	if len(queryImages) == 0 {
		return gallery.EmptyGallery(options, "Failed to load query images"), nil
	}

	queryVecs, err := embedder.EmbedImages(ctx, queryImages)
	if err != nil {
		return nil, fmt.Errorf("embedding query images: %w", err)
	}

	backend := indexutils.NewBackend(ctx, &indexutils.NewBackendOpts{
		Vectors:     vecs,
		Accelerated: e.config.Accelerated,
		Logger:      e.logger,
	})
	defer backend.Close()

	scores, ids, err := backend.Search(ctx, queryVecs, PoolK(options.MaxResults))
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	hits := Aggregate(scores, ids, entries,
		options.SimilarityThreshold, options.SortOrder, options.MaxResults)

	items := make([]metrics.Item, len(hits))
	for i, hit := range hits {
		items[i] = metrics.Item{Path: hit.Path, Score: hit.Score}
	}
	results := e.config.Metrics.Gather(items, options.BrightnessSplit)

	if options.SessionID != "" {
		e.config.Sessions.Put(options.SessionID, options)
	}

	e.logger.Info("search complete",
		zap.Int("results", len(results)),
		zap.Int("total_indexed", len(entries)),
	)

	return &gallery.Gallery{
		Type:         "image_search_gallery",
		SessionID:    options.SessionID,
		QueryImages:  options.QueryImages,
		Results:      results,
		Options:      options,
		TotalIndexed: len(entries),
	}, nil
}

// MarkStale invalidates the cached candidate walk. Filesystem watchers
// call this when anything under the searched roots changes.
func (e *Engine) MarkStale() {
	e.gatherMu.Lock()
	defer e.gatherMu.Unlock()
	e.gatherValid = false
}

// TotalIndexed reports the stored row count for a quality preset without
// touching the index.
func (e *Engine) TotalIndexed(quality string) int {
	model := embeddings.ModelForQuality(embeddings.Quality(quality))
	_, entries := e.config.Store.Load(model.ID)
	return len(entries)
}

// Close releases cached embedders.
func (e *Engine) Close() error {
	e.embedderMu.Lock()
	defer e.embedderMu.Unlock()

	var firstErr error
	for key, embedder := range e.embedders {
		if err := embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(e.embedders, key)
	}
	return firstErr
}

// gatherCandidates walks the enabled directory classes, reusing the last
// walk when caching is on and nothing marked it stale.
func (e *Engine) gatherCandidates(options gallery.Options) []string {
	key := [3]bool{options.SearchInputDir, options.SearchOutputDir, options.SearchTempDir}

	if e.config.CacheGather {
		e.gatherMu.Lock()
		defer e.gatherMu.Unlock()

		if e.gatherValid && e.gatherKey == key {
			return e.gatherFiles
		}
		files := e.config.Dirs.Gather(key[0], key[1], key[2])
		e.gatherKey = key
		e.gatherFiles = files
		e.gatherValid = true
		return files
	}

	return e.config.Dirs.Gather(key[0], key[1], key[2])
}

// loadQueryImages decodes the query paths, dropping unreadable ones.
func (e *Engine) loadQueryImages(paths []string) []image.Image {
	var images []image.Image
	for _, path := range paths {
		img, err := imageio.Load(path)
		if err != nil {
			e.logger.Warn("failed to load query image",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		images = append(images, img)
	}
	return images
}

// embedderFor returns the cached embedder for a quality preset, creating
// it on first use.
func (e *Engine) embedderFor(quality string) (embeddings.Embedder, error) {
	e.embedderMu.Lock()
	defer e.embedderMu.Unlock()

	if embedder, ok := e.embedders[quality]; ok {
		return embedder, nil
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: e.config.Provider,
		TargetURL:    e.config.ProviderURL,
		Quality:      quality,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	e.embedders[quality] = embedder
	return embedder, nil
}
