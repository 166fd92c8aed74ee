package gallery

import (
	"encoding/json"
	"fmt"
)

// Sort orders accepted in search options.
const (
	SortHighestFirst = "highest_similarity_first"
	SortLowestFirst  = "lowest_similarity_first"
)

// Resolution modes accepted in search options.
const (
	ResolutionManual   = "manual_width_height"
	ResolutionLargest  = "largest_image_resolution"
	ResolutionSmallest = "smallest_image_resolution"
)

// Options carries every knob a search session can set. Fields absent from
// the incoming JSON keep their defaults; the whole struct is stored in the
// session cache so later selections reuse the same settings.
type Options struct {
	Type        string   `json:"type"`
	SessionID   string   `json:"session_id"`
	QueryImages []string `json:"query_images"`

	ClipQuality         string  `json:"clip_quality"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxResults          int     `json:"max_results"`
	SortOrder           string  `json:"sort_order"`
	BrightnessSplit     float64 `json:"brightness_split"`

	RebuildIndex   bool `json:"rebuild_index"`
	IndexThreads   int  `json:"index_threads"`
	EmbedBatchSize int  `json:"embed_batch_size"`

	SearchInputDir  bool `json:"search_input_dir"`
	SearchOutputDir bool `json:"search_output_dir"`
	SearchTempDir   bool `json:"search_temp_dir"`

	ResolutionMode string `json:"resolution_mode"`
	ResizeWidth    int    `json:"resize_width"`
	ResizeHeight   int    `json:"resize_height"`
	ResizeMode     string `json:"resize_mode"`
	Resample       string `json:"resample"`
}

// DefaultOptions returns the options used when a field is not provided.
func DefaultOptions() Options {
	return Options{
		Type:                "image_search",
		ClipQuality:         "balanced",
		SimilarityThreshold: 0.85,
		MaxResults:          64,
		SortOrder:           SortHighestFirst,
		BrightnessSplit:     0.5,
		IndexThreads:        8,
		EmbedBatchSize:      64,
		SearchInputDir:      true,
		SearchOutputDir:     true,
		ResolutionMode:      ResolutionManual,
		ResizeWidth:         512,
		ResizeHeight:        512,
		ResizeMode:          "crop_center",
		Resample:            "lanczos",
	}
}

// ParseOptions decodes an options JSON document over the defaults.
func ParseOptions(data []byte) (Options, error) {
	o := DefaultOptions()
	if err := json.Unmarshal(data, &o); err != nil {
		return Options{}, fmt.Errorf("failed to parse search options: %w", err)
	}
	return o, nil
}
