// Package bruteforce provides the exact fallback similarity backend: a
// full scan of the stored matrix per query. It needs no optional
// dependency and defines the reference ranking the accelerated backend
// must reproduce.
package bruteforce

import (
	"context"
	"fmt"
	"sort"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/index"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/vecmath"
)

// Index holds unit-normalized copies of the stored vectors.
type Index struct {
	vecs [][]float32
	dim  int
}

// NewIndex snapshots vecs into normalized copies. The input matrix is
// not retained or modified.
func NewIndex(vecs [][]float32) *Index {
	normalized := make([][]float32, len(vecs))
	dim := 0
	for i, v := range vecs {
		normalized[i] = vecmath.NormalizedCopy(v)
		if dim == 0 {
			dim = len(v)
		}
	}
	return &Index{vecs: normalized, dim: dim}
}

// Search scans every stored vector per query and partially sorts the
// scored rows by (score descending, row id ascending).
func (idx *Index) Search(ctx context.Context, queries [][]float32, k int) ([][]float32, [][]int, error) {
	scores := make([][]float32, len(queries))
	ids := make([][]int, len(queries))
	for i := range queries {
		scores[i] = make([]float32, k)
		ids[i] = make([]int, k)
	}

	if len(idx.vecs) == 0 || k <= 0 {
		return scores, ids, nil
	}

	for qi, query := range queries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if len(query) != idx.dim {
			return nil, nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
				index.ErrDimensionMismatch, len(query), idx.dim)
		}

		qn := vecmath.NormalizedCopy(query)

		row := make([]float32, len(idx.vecs))
		for j, stored := range idx.vecs {
			row[j] = vecmath.Dot(qn, stored)
		}

		order := make([]int, len(idx.vecs))
		for j := range order {
			order[j] = j
		}
		sort.Slice(order, func(a, b int) bool {
			ia, ib := order[a], order[b]
			if row[ia] != row[ib] {
				return row[ia] > row[ib]
			}
			return ia < ib
		})

		limit := k
		if limit > len(order) {
			limit = len(order)
		}
		for c := 0; c < limit; c++ {
			scores[qi][c] = row[order[c]]
			ids[qi][c] = order[c]
		}
	}

	return scores, ids, nil
}

// Size reports how many vectors the snapshot holds.
func (idx *Index) Size() int {
	return len(idx.vecs)
}

// Close releases nothing; the snapshot is plain memory.
func (idx *Index) Close() error {
	return nil
}

// Ensure Index implements index.Backend
var _ index.Backend = (*Index)(nil)
