// Package clipd implements pkg/embeddings' Embedder as a client for a
// CLIP sidecar daemon's batch image embedding API.
package clipd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/embeddings"
)

const (
	// DefaultBaseURL is the default sidecar address, one port below the
	// host application it usually runs next to.
	DefaultBaseURL = "http://localhost:8187"
)

// Embedder wraps the sidecar's embedding API.
type Embedder struct {
	baseURL    string
	model      embeddings.Model
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the sidecar embedder.
type EmbedderConfig struct {
	// BaseURL is the sidecar API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the CLIP checkpoint the sidecar must serve vectors from.
	Model embeddings.Model
}

// embedRequest is the request body for the sidecar's embedding API.
// Images travel as base64-encoded PNG so the transport stays lossless.
type embedRequest struct {
	Model  string   `json:"model"`
	Images []string `json:"images"`
}

// embedResponse is the response from the sidecar's embedding API.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbedder creates an embedder backed by the sidecar's API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model.ID == "" {
		model = embeddings.ModelForQuality(embeddings.QualityBalanced)
	}

	return &Embedder{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// EmbedImages converts a batch of decoded images into vector embeddings.
func (e *Embedder) EmbedImages(ctx context.Context, images []image.Image) ([][]float32, error) {
	if len(images) == 0 {
		return nil, nil
	}

	encoded := make([]string, 0, len(images))
	for i, img := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: encoding image %d: %v", embeddings.ErrEmbedding, i, err)
		}
		encoded = append(encoded, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}

	reqBody := embedRequest{
		Model:  e.model.ID,
		Images: encoded,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", embeddings.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: sidecar returned status %d: %s", embeddings.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrEmbedding, err)
	}

	if len(embedResp.Embeddings) != len(images) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d images", embeddings.ErrEmbedding, len(embedResp.Embeddings), len(images))
	}

	return embedResp.Embeddings, nil
}

// Dimensions reports the vector width of the configured checkpoint.
func (e *Embedder) Dimensions() int {
	return e.model.Dimensions
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// Ensure Embedder implements embeddings.Embedder
var _ embeddings.Embedder = (*Embedder)(nil)
