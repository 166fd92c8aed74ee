package gallery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/imageio"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/pngmeta"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/resize"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/session"
)

// Selection is the payload the gallery sends back when the user confirms
// a set of results. SelectedPaths is the legacy absolute-path form, used
// only when Selected resolves to nothing.
type Selection struct {
	SessionID     string     `json:"session_id"`
	Selected      []dirs.Ref `json:"selected"`
	SelectedPaths []string   `json:"selected_paths"`
}

// LoadResult reports the materialized selection: resized copies written
// under a per-session output directory, partitioned by brightness.
type LoadResult struct {
	SessionID   string   `json:"session_id"`
	All         []string `json:"all"`
	Dark        []string `json:"dark"`
	Light       []string `json:"light"`
	SourcePaths []string `json:"source_paths"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	DisplayText string   `json:"display_text"`
	Reason      string   `json:"reason,omitempty"`
}

// ParseSelection decodes a selection JSON document.
func ParseSelection(data []byte) (Selection, error) {
	var sel Selection
	if err := json.Unmarshal(data, &sel); err != nil {
		return Selection{}, fmt.Errorf("failed to parse selection: %w", err)
	}
	return sel, nil
}

// ParseSelectionContent decodes a marker-prefixed selection payload.
func ParseSelectionContent(content string) (Selection, error) {
	if !DetectOutput(content) {
		return Selection{}, ErrNotSelectionContent
	}
	return ParseSelection([]byte(content[len(OutputMarker):]))
}

// LoaderConfig is the configuration options for the selection loader.
type LoaderConfig struct {
	// Dirs resolves directory references and hosts the session output dir.
	Dirs dirs.Dirs

	// Sessions recovers the options a selection's search ran with.
	Sessions *session.Cache[Options]

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Loader materializes gallery selections.
type Loader struct {
	dirs     dirs.Dirs
	sessions *session.Cache[Options]
	logger   *zap.Logger
}

// NewLoader creates a selection Loader.
func NewLoader(c *LoaderConfig) *Loader {
	return &Loader{
		dirs:     c.Dirs,
		sessions: c.Sessions,
		logger:   c.Logger,
	}
}

// Load resolves a selection to source files, resizes each one per the
// session's options, and writes the results as PNGs under a per-session
// output directory. Dark and light groups fall back to the full set when
// a side of the brightness split is empty.
func (l *Loader) Load(sel Selection) (*LoadResult, error) {
	paths := l.resolvePaths(sel)

	options := DefaultOptions()
	if sel.SessionID != "" {
		if stored, ok := l.sessions.Get(sel.SessionID); ok {
			options = stored
		}
	}

	if len(paths) == 0 {
		l.logger.Warn("no images selected or found")
		return &LoadResult{
			SessionID:   sel.SessionID,
			DisplayText: "No images selected",
			Reason:      "No images selected",
		}, nil
	}

	l.logger.Info("resolved selection", zap.Int("count", len(paths)))

	width, height := l.targetResolution(paths, &options)

	outDir := filepath.Join(l.dirs.Output, sessionDirName(sel.SessionID))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create selection output dir: %w", err)
	}

	var all, dark, light []string
	for i, path := range paths {
		img, err := imageio.Load(path)
		if err != nil {
			l.logger.Warn("failed to load selected image",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}

		brightness := imageio.Brightness(img)
		resized := resize.Apply(img, width, height,
			resize.Mode(options.ResizeMode), resize.Filter(options.Resample))

		outPath := filepath.Join(outDir, fmt.Sprintf("selected_%04d.png", i))
		if err := l.writeSelected(outPath, resized, path); err != nil {
			l.logger.Warn("failed to write selected image",
				zap.String("path", outPath),
				zap.Error(err),
			)
			continue
		}

		all = append(all, outPath)
		if brightness < options.BrightnessSplit {
			dark = append(dark, outPath)
		} else {
			light = append(light, outPath)
		}
	}

	if len(all) == 0 {
		return &LoadResult{
			SessionID:   sel.SessionID,
			SourcePaths: paths,
			DisplayText: "Failed to load selected images",
			Reason:      "Failed to load selected images",
		}, nil
	}

	result := &LoadResult{
		SessionID:   sel.SessionID,
		All:         all,
		Dark:        dark,
		Light:       light,
		SourcePaths: paths,
		Width:       width,
		Height:      height,
		DisplayText: fmt.Sprintf("Loaded %d images (%d dark, %d light)", len(all), len(dark), len(light)),
	}
	if len(result.Dark) == 0 {
		result.Dark = all
	}
	if len(result.Light) == 0 {
		result.Light = all
	}
	return result, nil
}

// resolvePaths maps selection refs to existing files, falling back to the
// legacy absolute-path list when nothing resolves.
func (l *Loader) resolvePaths(sel Selection) []string {
	var paths []string
	for _, ref := range sel.Selected {
		if ref.Filename == "" {
			continue
		}
		full := l.dirs.Resolve(ref)
		if _, err := os.Stat(full); err != nil {
			l.logger.Warn("image not found", zap.String("path", full))
			continue
		}
		paths = append(paths, full)
	}

	if len(paths) == 0 {
		for _, path := range sel.SelectedPaths {
			if path == "" {
				continue
			}
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}

	return paths
}

// targetResolution picks the output size. Largest and smallest modes probe
// the selected files and choose by pixel area; manual uses the options.
func (l *Loader) targetResolution(paths []string, options *Options) (int, int) {
	width, height := options.ResizeWidth, options.ResizeHeight

	if options.ResolutionMode != ResolutionLargest && options.ResolutionMode != ResolutionSmallest {
		return width, height
	}

	best := -1
	for _, path := range paths {
		w, h, _, err := imageio.Probe(path)
		if err != nil {
			continue
		}
		area := w * h
		switch {
		case best < 0:
			best = area
			width, height = w, h
		case options.ResolutionMode == ResolutionLargest && area > best:
			best = area
			width, height = w, h
		case options.ResolutionMode == ResolutionSmallest && area < best:
			best = area
			width, height = w, h
		}
	}

	return width, height
}

// writeSelected encodes the resized image, carrying over the source's
// workflow and prompt text chunks when the source is a PNG.
func (l *Loader) writeSelected(outPath string, img image.Image, sourcePath string) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	data := buf.Bytes()

	if carried := carriedChunks(sourcePath); len(carried) > 0 {
		spliced, err := pngmeta.InsertTextChunks(data, carried)
		if err == nil {
			data = spliced
		}
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write png: %w", err)
	}
	return nil
}

// carriedChunks reads the workflow and prompt chunks from a source PNG.
func carriedChunks(sourcePath string) map[string]string {
	if !strings.HasSuffix(strings.ToLower(sourcePath), ".png") {
		return nil
	}
	chunks, err := pngmeta.ReadFileTextChunks(sourcePath)
	if err != nil {
		return nil
	}

	carried := make(map[string]string)
	for key, value := range chunks {
		lower := strings.ToLower(key)
		if (lower == "workflow" || lower == "prompt") && value != "" {
			carried[key] = value
		}
	}
	return carried
}

// sessionDirName names the per-session directory selections are written to.
func sessionDirName(sessionID string) string {
	if sessionID == "" {
		return "was_image_search_output"
	}
	return "was_image_search_" + sessionID
}
