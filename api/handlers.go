package api

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/pngmeta"
)

// MetadataResponse carries the workflow and prompt text chunks embedded in
// a gallery image. Workflow and Prompt are decoded JSON documents when the
// chunk text parses, raw strings otherwise, and null when absent.
type MetadataResponse struct {
	Workflow     any      `json:"workflow"`
	Prompt       any      `json:"prompt"`
	HasWorkflow  bool     `json:"has_workflow"`
	HasPrompt    bool     `json:"has_prompt"`
	MetadataKeys []string `json:"metadata_keys"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleMetadata resolves a gallery reference and returns the workflow
// and prompt metadata embedded in its PNG text chunks.
func (s *Server) handleMetadata(c *fiber.Ctx) error {
	filename := c.Query("filename")
	if filename == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "missing filename parameter"})
	}

	ref := dirs.Ref{
		Filename:  filename,
		Subfolder: c.Query("subfolder"),
		Type:      c.Query("type", string(dirs.ClassOutput)),
	}
	path := s.dirs.Resolve(ref)

	if _, err := os.Stat(path); err != nil {
		s.logger.Warn("metadata request for missing image",
			zap.String("filename", filename),
			zap.String("subfolder", ref.Subfolder),
			zap.String("type", ref.Type),
		)
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "image not found"})
	}

	chunks, err := pngmeta.ReadFileTextChunks(path)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read image: " + err.Error()})
	}

	keys := make([]string, 0, len(chunks))
	for k := range chunks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var workflowText, promptText string
	for _, k := range keys {
		switch strings.ToLower(k) {
		case "workflow":
			if workflowText == "" {
				workflowText = chunks[k]
			}
		case "prompt":
			if promptText == "" {
				promptText = chunks[k]
			}
		}
	}

	resp := MetadataResponse{
		Workflow:     parseMaybeJSON(workflowText),
		Prompt:       parseMaybeJSON(promptText),
		MetadataKeys: keys,
	}
	resp.HasWorkflow = resp.Workflow != nil
	resp.HasPrompt = resp.Prompt != nil

	s.logger.Debug("metadata served",
		zap.String("filename", filename),
		zap.Bool("has_workflow", resp.HasWorkflow),
		zap.Bool("has_prompt", resp.HasPrompt),
	)

	return c.JSON(resp)
}

// parseMaybeJSON decodes text as JSON when possible and falls back to the
// raw string. Empty text maps to nil so absence serializes as null.
func parseMaybeJSON(text string) any {
	if text == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}
