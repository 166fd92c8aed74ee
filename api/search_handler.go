package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/gallery"
)

// handleSearch handles POST /image_search/search requests. The body is a
// search options JSON document. Engine failures degrade to an empty
// gallery carrying a reason, so a well-formed request always answers 200.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	options, err := gallery.ParseOptions(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	g := s.engine.SearchGallery(c.Context(), options)
	return c.JSON(g)
}

// handleSelect handles POST /image_search/select requests. The body is a
// selection JSON document; the response reports the materialized copies.
func (s *Server) handleSelect(c *fiber.Ctx) error {
	sel, err := gallery.ParseSelection(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	result, err := s.loader.Load(sel)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(result)
}
