// Package indexer maintains the persistent embedding index incrementally.
// Updates diff the candidate file list against stored path+mtime metadata,
// load only new and modified images through a bounded worker pool, embed
// them in batches, and merge the results back into the stored matrix.
package indexer

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/embeddings"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/imageio"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/progress"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/store"
)

var (
	defaultThreads   = 8
	defaultBatchSize = 64
)

// Config is the configuration options for the indexer.
type Config struct {
	// Store persists the embedding matrix and entry metadata between runs.
	Store *store.Store

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Indexer updates persisted embedding indexes. Concurrent updates against
// the same model key are serialized; distinct keys proceed independently.
type Indexer struct {
	store  *store.Store
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// UpdateOpts are the per-call options for Update.
type UpdateOpts struct {
	// Files is the full candidate list in gather order.
	Files []string

	// Embedder generates image embeddings for new and modified files.
	Embedder embeddings.Embedder

	// ModelKey scopes the persisted artifacts to one embedding model.
	ModelKey string

	// Threads bounds the concurrent image-load pool (defaults to 8).
	Threads int

	// BatchSize is the number of images per embedding call (defaults to 64).
	BatchSize int

	// Progress receives two-phase progress updates. May be nil.
	Progress progress.Sink
}

// NewIndexer creates an Indexer backed by the given store.
func NewIndexer(c *Config) *Indexer {
	return &Indexer{
		store:  c.Store,
		logger: c.Logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Update brings the stored index for the model key up to date with files
// and returns the merged matrix and entries. Unchanged files are skipped,
// new files append rows, and modified files replace their row in place so
// each path keeps exactly one live row. Re-running on an unchanged set
// embeds nothing and leaves the artifacts byte-identical.
func (ix *Indexer) Update(ctx context.Context, o *UpdateOpts) ([][]float32, []store.Entry, error) {
	if o.Threads <= 0 {
		o.Threads = defaultThreads
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}

	lock := ix.lockFor(o.ModelKey)
	lock.Lock()
	defer lock.Unlock()

	vecs, entries := ix.store.Load(o.ModelKey)

	rowByPath := make(map[string]int, len(entries))
	for i, e := range entries {
		rowByPath[e.Path] = i
	}

	pending := diff(o.Files, rowByPath, entries)
	ix.logger.Info("new or modified files to index", zap.Int("count", len(pending)))

	if len(pending) == 0 {
		return vecs, entries, nil
	}

	reporter := progress.NewReporter(o.Progress, len(pending))

	loadedPaths, loadedImages := ix.loadImages(pending, o.Threads, reporter)

	newVecs, err := ix.embedImages(ctx, o, loadedImages, reporter)
	if err != nil {
		return nil, nil, err
	}

	for i, path := range loadedPaths {
		mtime := int64(0)
		if info, err := os.Stat(path); err == nil {
			mtime = info.ModTime().UnixNano()
		}
		if row, ok := rowByPath[path]; ok {
			vecs[row] = newVecs[i]
			entries[row].MTime = mtime
			continue
		}
		rowByPath[path] = len(entries)
		vecs = append(vecs, newVecs[i])
		entries = append(entries, store.Entry{Path: path, MTime: mtime})
	}

	if err := ix.store.Save(o.ModelKey, vecs, entries); err != nil {
		return nil, nil, fmt.Errorf("persisting index: %w", err)
	}

	return vecs, entries, nil
}

// lockFor returns the mutex guarding updates for one model key.
func (ix *Indexer) lockFor(key string) *sync.Mutex {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	l, ok := ix.locks[key]
	if !ok {
		l = &sync.Mutex{}
		ix.locks[key] = l
	}
	return l
}

// diff selects files that are absent from the stored entries or whose
// on-disk mtime is newer than the stored one. Files that cannot be
// stat'ed are left out.
func diff(files []string, rowByPath map[string]int, entries []store.Entry) []string {
	var pending []string
	for _, path := range files {
		row, ok := rowByPath[path]
		if !ok {
			pending = append(pending, path)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().UnixNano() > entries[row].MTime {
			pending = append(pending, path)
		}
	}
	return pending
}

// loadImages decodes the pending files through a bounded worker pool,
// preserving input order. Files that fail to decode are dropped with a
// warning so one bad file never aborts an update.
func (ix *Indexer) loadImages(pending []string, threads int, reporter *progress.Reporter) ([]string, []image.Image) {
	ix.logger.Info("loading images", zap.Int("count", len(pending)))

	type loadResult struct {
		img image.Image
		err error
	}

	results := make([]loadResult, len(pending))
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(threads)
	for range threads {
		go func() {
			defer wg.Done()
			for i := range jobs {
				img, err := imageio.Load(pending[i])
				results[i] = loadResult{img: img, err: err}
			}
		}()
	}

	for i := range pending {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	paths := make([]string, 0, len(pending))
	images := make([]image.Image, 0, len(pending))
	for i, res := range results {
		if res.err != nil {
			ix.logger.Warn("failed to load image for indexing",
				zap.String("path", pending[i]),
				zap.Error(res.err),
			)
		} else {
			paths = append(paths, pending[i])
			images = append(images, res.img)
		}
		reporter.Loaded(i)
	}

	return paths, images
}

// embedImages runs the loaded images through the embedder in sequential
// batches, reporting per-batch progress.
func (ix *Indexer) embedImages(ctx context.Context, o *UpdateOpts, images []image.Image, reporter *progress.Reporter) ([][]float32, error) {
	if len(images) == 0 {
		return nil, nil
	}

	ix.logger.Info("embedding images",
		zap.Int("count", len(images)),
		zap.Int("batch_size", o.BatchSize),
	)

	numBatches := (len(images) + o.BatchSize - 1) / o.BatchSize
	vecs := make([][]float32, 0, len(images))

	for b := 0; b < numBatches; b++ {
		start := b * o.BatchSize
		end := start + o.BatchSize
		if end > len(images) {
			end = len(images)
		}

		batch, err := o.Embedder.EmbedImages(ctx, images[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d of %d: %w", b+1, numBatches, err)
		}
		vecs = append(vecs, batch...)

		reporter.EmbeddedBatch(b, numBatches)
	}

	return vecs, nil
}
