// Package embeddings
package embeddings

import (
	"context"
	"image"
)

// Embedder provides image embedding capabilities.
type Embedder interface {
	// EmbedImages converts a batch of decoded images into vector
	// embeddings, one per image, preserving input order.
	EmbedImages(ctx context.Context, images []image.Image) ([][]float32, error)

	// Dimensions reports the width of the vectors this embedder produces.
	Dimensions() int

	// Close releases any resources held by the embedder.
	Close() error
}
