package gallery

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/pngmeta"
)

// SaveQueryImages writes decoded query images as PNGs into a per-session
// temp directory, each stamped with a was_session text chunk, and returns
// the written paths in input order. Filenames carry a pixel-content hash
// so re-sent identical queries overwrite instead of accumulating.
func SaveQueryImages(tempDir, sessionID string, images []image.Image) ([]string, error) {
	if len(images) == 0 {
		return nil, nil
	}

	dir := filepath.Join(tempDir, sessionDirName(sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create query image dir: %w", err)
	}

	paths := make([]string, 0, len(images))
	for i, img := range images {
		clone := imaging.Clone(img)

		sum := md5.Sum(clone.Pix)
		name := fmt.Sprintf("query_%04d_%s.png", i, hex.EncodeToString(sum[:])[:12])
		path := filepath.Join(dir, name)

		var buf bytes.Buffer
		if err := png.Encode(&buf, clone); err != nil {
			return nil, fmt.Errorf("failed to encode query image %d: %w", i, err)
		}

		data, err := pngmeta.InsertTextChunks(buf.Bytes(), map[string]string{
			"was_session": sessionID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to stamp query image %d: %w", i, err)
		}

		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write query image: %w", err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}
