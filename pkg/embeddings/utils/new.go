// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/embeddings"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/embeddings/clipd"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Quality      string
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "clipd":
		return clipd.NewEmbedder(clipd.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   embeddings.ModelForQuality(embeddings.Quality(o.Quality)),
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
