// Package metrics gathers per-image detail for gallery display. Items are
// processed through a bounded worker pool; a failure on one image records
// an error on that result instead of aborting the batch.
package metrics

import (
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/imageio"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/pngmeta"
)

var defaultWidth = 8

// Item is one scored search hit to gather metrics for.
type Item struct {
	Path  string
	Score float32
}

// Result carries display metrics for a single image. Fields past the
// similarity score are filled progressively; when a step fails the result
// keeps whatever was gathered and records the failure in Error.
type Result struct {
	Path       string  `json:"path"`
	Filename   string  `json:"filename"`
	Subfolder  string  `json:"subfolder"`
	Type       string  `json:"type"`
	Similarity float32 `json:"similarity"`

	FileSize     int64   `json:"file_size,omitempty"`
	ModifiedTime float64 `json:"modified_time,omitempty"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Format       string  `json:"format,omitempty"`
	Mode         string  `json:"mode,omitempty"`

	Brightness  float64 `json:"brightness"`
	IsDark      bool    `json:"is_dark"`
	HasWorkflow bool    `json:"has_workflow"`
	HasPrompt   bool    `json:"has_prompt"`

	Error string `json:"error,omitempty"`
}

// Config is the configuration options for the gatherer.
type Config struct {
	// Dirs classifies result paths into host directory references.
	Dirs dirs.Dirs

	// Width is the worker pool size (defaults to 8).
	Width int

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Gatherer collects image metrics concurrently.
type Gatherer struct {
	dirs   dirs.Dirs
	width  int
	logger *zap.Logger
}

// NewGatherer creates a Gatherer.
func NewGatherer(c *Config) *Gatherer {
	width := c.Width
	if width <= 0 {
		width = defaultWidth
	}
	return &Gatherer{
		dirs:   c.Dirs,
		width:  width,
		logger: c.Logger,
	}
}

// Gather produces one Result per item and returns them sorted by
// similarity descending, whatever order the workers finished in.
func (g *Gatherer) Gather(items []Item, brightnessSplit float64) []Result {
	results := make([]Result, len(items))
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(g.width)
	for range g.width {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = g.process(items[i], brightnessSplit)
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	return results
}

// process gathers metrics for one image.
func (g *Gatherer) process(item Item, brightnessSplit float64) Result {
	ref := g.dirs.Classify(item.Path)
	result := Result{
		Path:       item.Path,
		Filename:   ref.Filename,
		Subfolder:  ref.Subfolder,
		Type:       ref.Type,
		Similarity: item.Score,
	}

	info, err := os.Stat(item.Path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.FileSize = info.Size()
	result.ModifiedTime = float64(info.ModTime().UnixNano()) / 1e9

	width, height, format, err := imageio.Probe(item.Path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Width = width
	result.Height = height
	result.Format = strings.ToUpper(format)

	img, err := imageio.Load(item.Path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Mode = imageio.ColorMode(img)

	brightness := imageio.Brightness(img)
	result.Brightness = brightness
	result.IsDark = brightness < brightnessSplit

	if strings.HasSuffix(strings.ToLower(item.Path), ".png") {
		if chunks, err := pngmeta.ReadFileTextChunks(item.Path); err == nil {
			result.HasWorkflow = pngmeta.HasKey(chunks, "workflow")
			result.HasPrompt = pngmeta.HasKey(chunks, "prompt")
		} else {
			g.logger.Debug("failed to read text chunks",
				zap.String("path", item.Path),
				zap.Error(err),
			)
		}
	}

	return result
}
