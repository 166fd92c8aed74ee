package indexutils

import (
	"context"

	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/index"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/index/bruteforce"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/index/sqlitevec"
)

type NewBackendOpts struct {
	// Vectors is the embedding matrix to index. It is copied, never retained.
	Vectors [][]float32
	// Accelerated selects the sqlite-vec backend when true. The brute-force
	// backend serves as the fallback either way.
	Accelerated bool
	Logger      *zap.Logger
}

// NewBackend builds a search backend over the given matrix. When the
// accelerated backend is requested but cannot initialize, it logs a warning
// and falls back to brute force so searches always succeed.
func NewBackend(ctx context.Context, o *NewBackendOpts) index.Backend {
	if o.Accelerated {
		backend, err := sqlitevec.NewIndex(ctx, o.Vectors, o.Logger)
		if err == nil {
			return backend
		}
		o.Logger.Warn("accelerated index unavailable, using brute force", zap.Error(err))
	}
	return bruteforce.NewIndex(o.Vectors)
}
