package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/current-see/solar_api/shared"
)

type ContentHandler struct {
	contentSvc ContentServiceInterface
}

func NewContentHandler(contentSvc ContentServiceInterface) *ContentHandler {
	return &ContentHandler{contentSvc: contentSvc}
}

// @Summary List Gated Content
// @Description Lists the active content catalog with Solar costs and timer durations.
// @Tags content
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=[]model.GatedContent}
// @Router /api/v1/content [get]
func (h *ContentHandler) ListContent(c *fiber.Ctx) error {
	contents, err := h.contentSvc.ListContent()
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, contents)
}
