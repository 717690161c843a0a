package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/shared"
)

type SessionHandler struct {
	sessionSvc SessionServiceInterface
}

func NewSessionHandler(sessionSvc SessionServiceInterface) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// @Summary Start Visitor Session
// @Description Creates an anonymous session for a device, or returns the existing active one. The session ID identifies the visitor on later requests via X-Session-ID.
// @Tags session
// @Accept  json
// @Produce json
// @Param createSessionRequest body dto.CreateSessionRequest true "Create session request"
// @Success 200 {object} shared.Response{data=dto.CreateSessionResponse}
// @Router /api/v1/session/start [post]
func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.sessionSvc.CreateOrGetSession(req)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}
