// Package gallery defines the wire payloads exchanged with the host UI:
// marker-prefixed search options, gallery results, and selection output,
// plus the node-side helpers that materialize selections to disk.
package gallery

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/metrics"
)

const (
	// InputMarker prefixes search option payloads.
	InputMarker = "$WAS_IMAGE_SEARCH$"
	// OutputMarker prefixes selection payloads sent back by the gallery.
	OutputMarker = "$WAS_IMAGE_SEARCH_OUTPUT$"
)

var (
	// ErrNotSearchContent is returned for content without the input marker
	// or with a type other than image_search.
	ErrNotSearchContent = fmt.Errorf("content is not an image search payload")
	// ErrNotSelectionContent is returned for content without the output marker.
	ErrNotSelectionContent = fmt.Errorf("content is not an image search selection")
)

// Gallery is the search response rendered by the host UI.
type Gallery struct {
	Type         string           `json:"type"`
	SessionID    string           `json:"session_id"`
	QueryImages  []string         `json:"query_images"`
	Results      []metrics.Result `json:"results"`
	Options      Options          `json:"options"`
	TotalIndexed int              `json:"total_indexed"`

	// Reason explains an empty result list in human terms. Empty on success.
	Reason string `json:"reason,omitempty"`
}

// EmptyGallery builds the explicit empty response for a request that could
// not produce results.
func EmptyGallery(o Options, reason string) *Gallery {
	return &Gallery{
		Type:        "image_search_gallery",
		SessionID:   o.SessionID,
		QueryImages: o.QueryImages,
		Results:     []metrics.Result{},
		Options:     o,
		Reason:      reason,
	}
}

// DetectInput reports whether content carries a search options payload.
func DetectInput(content string) bool {
	return strings.HasPrefix(content, InputMarker)
}

// DetectOutput reports whether content carries a selection payload.
func DetectOutput(content string) bool {
	return strings.HasPrefix(content, OutputMarker)
}

// ParseSearchContent extracts search options from marker-prefixed content.
func ParseSearchContent(content string) (Options, error) {
	if !DetectInput(content) {
		return Options{}, ErrNotSearchContent
	}
	o, err := ParseOptions([]byte(content[len(InputMarker):]))
	if err != nil {
		return Options{}, err
	}
	if o.Type != "image_search" {
		return Options{}, ErrNotSearchContent
	}
	return o, nil
}

// EncodeGallery renders a gallery payload as marker-prefixed display content.
func EncodeGallery(g *Gallery) (string, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("failed to encode gallery: %w", err)
	}
	return InputMarker + string(data), nil
}
