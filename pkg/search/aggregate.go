package search

import (
	"sort"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/gallery"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/store"
)

// Hit is one aggregated search result: a candidate path and the best
// score it reached across all query images.
type Hit struct {
	Path  string
	Score float32
}

// PoolK sizes the per-query candidate pool fetched from the backend
// before aggregation collapses duplicates and applies the result budget.
func PoolK(maxResults int) int {
	k := maxResults * 4
	if maxResults > k {
		k = maxResults
	}
	if k < 16 {
		k = 16
	}
	return k
}

// Aggregate folds per-query score and id rows into one ranked hit list.
// Scores below threshold are dropped before anything else; surviving
// candidates keep their maximum score across queries in first-seen order,
// then a stable sort by score and the result budget apply. Padded result
// columns past the entry count carry no information and are ignored.
func Aggregate(scores [][]float32, ids [][]int, entries []store.Entry, threshold float64, sortOrder string, maxResults int) []Hit {
	best := make(map[string]float32)
	var order []string

	for qi := range scores {
		cols := len(scores[qi])
		if cols > len(entries) {
			cols = len(entries)
		}
		for c := 0; c < cols; c++ {
			score := scores[qi][c]
			if float64(score) < threshold {
				continue
			}
			id := ids[qi][c]
			if id < 0 || id >= len(entries) {
				continue
			}
			path := entries[id].Path
			prev, seen := best[path]
			if !seen {
				best[path] = score
				order = append(order, path)
			} else if score > prev {
				best[path] = score
			}
		}
	}

	hits := make([]Hit, 0, len(order))
	for _, path := range order {
		hits = append(hits, Hit{Path: path, Score: best[path]})
	}

	descending := sortOrder == gallery.SortHighestFirst
	sort.SliceStable(hits, func(i, j int) bool {
		if descending {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Score < hits[j].Score
	})

	if maxResults >= 0 && len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits
}
