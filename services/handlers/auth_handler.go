package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/shared"
)

type AuthHandler struct {
	authSvc AuthServiceInterface
}

func NewAuthHandler(authSvc AuthServiceInterface) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// @Summary Register
// @Description Registers a new user, opens a Solar account with the signup bonus and retires the visitor session if one is supplied.
// @Tags auth
// @Accept  json
// @Produce json
// @Param registerRequest body dto.RegisterRequest true "Register request"
// @Success 201 {object} shared.Response{data=dto.RegisterResponse}
// @Router /api/v1/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.authSvc.Register(req)
	if err != nil {
		return err
	}

	return shared.ResponseCreated(c, resp)
}

// @Summary Login
// @Description Authenticates a user and issues an access token.
// @Tags auth
// @Accept  json
// @Produce json
// @Param loginRequest body dto.LoginRequest true "Login request"
// @Success 200 {object} shared.Response{data=dto.LoginResponse}
// @Router /api/v1/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.authSvc.Login(req)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Get Profile
// @Description Returns the authenticated user's profile with Solar balances.
// @Tags auth
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.ProfileResponse}
// @Router /api/v1/profile [get]
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := c.Locals(shared.UserID).(string)
	if !ok || userID == "" {
		return shared.NewUnauthorizedError(errors.New("no identity"), "Authentication required")
	}

	profile, err := h.authSvc.GetProfile(userID)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, profile)
}
