// Package index defines the similarity search backend consumed by the
// search engine. A backend is built once per search over an immutable
// snapshot of the stored vector matrix; both implementations answer
// top-k inner-product queries over unit-normalized vectors with
// identical ranking semantics, so callers never know which one is
// active.
package index

import "context"

// Backend answers top-k searches over one vector snapshot.
type Backend interface {
	// Search returns, per query vector, the scores and row ids of the k
	// best stored vectors, ranked by descending inner product over
	// unit-normalized vectors with ties broken by ascending row id.
	// Both return matrices are exactly len(queries)×k; when fewer than k
	// stored vectors exist the remaining cells are zero. An empty
	// snapshot yields all-zero matrices, never an error.
	Search(ctx context.Context, queries [][]float32, k int) (scores [][]float32, ids [][]int, err error)

	// Size reports how many vectors the snapshot holds.
	Size() int

	// Close releases backend resources.
	Close() error
}
