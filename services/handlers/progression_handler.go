package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/current-see/solar_api/shared"
)

type ProgressionHandler struct {
	progressionSvc ProgressionServiceInterface
	sessionSvc     SessionServiceInterface
	ledgerSvc      LedgerServiceInterface
	monitoringSvc  MonitoringInterface
}

func NewProgressionHandler(progressionSvc ProgressionServiceInterface, sessionSvc SessionServiceInterface, ledgerSvc LedgerServiceInterface, monitoringSvc MonitoringInterface) *ProgressionHandler {
	return &ProgressionHandler{
		progressionSvc: progressionSvc,
		sessionSvc:     sessionSvc,
		ledgerSvc:      ledgerSvc,
		monitoringSvc:  monitoringSvc,
	}
}

// resolveSubject maps request identity to a progression subject. A bearer
// token resolves to the user's Solar account, an X-Session-ID header to a
// visitor session. Neither yields a zero subject, which reads as locked
// preview and cannot write.
func (h *ProgressionHandler) resolveSubject(c *fiber.Ctx) (shared.Subject, error) {
	if userID, ok := c.Locals(shared.UserID).(string); ok && userID != "" {
		account, err := h.ledgerSvc.GetAccountForUser(userID)
		if err != nil {
			return shared.Subject{}, err
		}
		return shared.AccountSubject(account.ID), nil
	}

	if sessionID, ok := c.Locals(shared.SessionID).(string); ok && sessionID != "" {
		session, err := h.sessionSvc.GetActiveSession(sessionID)
		if err != nil {
			return shared.Subject{}, err
		}
		h.sessionSvc.Touch(session)
		return shared.SessionSubject(session.ID), nil
	}

	return shared.Subject{}, nil
}

func (h *ProgressionHandler) requireSubject(c *fiber.Ctx) (shared.Subject, error) {
	subject, err := h.resolveSubject(c)
	if err != nil {
		return shared.Subject{}, err
	}
	if subject.ID == "" {
		return shared.Subject{}, shared.NewUnauthorizedError(
			errors.New("no session or account identity"), "Session or login required")
	}
	return subject, nil
}

// @Summary Check Content Access
// @Description Reports the caller's current access to a piece of gated content. Read-only; an elapsed timer shows as timer_complete without being persisted.
// @Tags progression
// @Accept  json
// @Produce json
// @Param contentType path string true "Content type"
// @Param contentId path string true "Content ID"
// @Success 200 {object} shared.Response{data=dto.AccessStatusResponse}
// @Router /api/v1/content/{contentType}/{contentId}/access [get]
func (h *ProgressionHandler) CheckAccess(c *fiber.Ctx) error {
	subject, err := h.resolveSubject(c)
	if err != nil {
		return err
	}

	status, err := h.progressionSvc.CheckAccess(subject, c.Params("contentType"), c.Params("contentId"))
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, status)
}

// @Summary Start Gate Timer
// @Description Starts the wait timer for a piece of content. Idempotent; a running timer is returned unchanged, never extended.
// @Tags progression
// @Accept  json
// @Produce json
// @Param contentType path string true "Content type"
// @Param contentId path string true "Content ID"
// @Success 200 {object} shared.Response{data=dto.StartTimerResponse}
// @Router /api/v1/content/{contentType}/{contentId}/start-timer [post]
func (h *ProgressionHandler) StartTimer(c *fiber.Ctx) error {
	subject, err := h.requireSubject(c)
	if err != nil {
		return err
	}

	resp, err := h.progressionSvc.StartTimer(subject, c.Params("contentType"), c.Params("contentId"))
	if err != nil {
		return err
	}

	if !resp.AlreadyActive {
		h.monitoringSvc.RecordTimerStarted()
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Complete Gate Timer
// @Description Acknowledges an elapsed timer. Returns 425 if the timer has not elapsed on the server clock.
// @Tags progression
// @Accept  json
// @Produce json
// @Param progressionId path string true "Progression ID"
// @Success 200 {object} shared.Response{data=model.Progression}
// @Router /api/v1/progression/{progressionId}/complete [post]
func (h *ProgressionHandler) CompleteTimer(c *fiber.Ctx) error {
	subject, err := h.requireSubject(c)
	if err != nil {
		return err
	}

	progression, err := h.progressionSvc.CompleteTimer(subject, c.Params("progressionId"))
	if err != nil {
		return err
	}

	h.monitoringSvc.RecordTimerCompleted()

	return shared.ResponseOK(c, progression)
}

// @Summary Unlock Content
// @Description Spends Solar to permanently unlock content. At most one debit per (account, content); duplicate calls succeed without spending.
// @Tags progression
// @Accept  json
// @Produce json
// @Param contentType path string true "Content type"
// @Param contentId path string true "Content ID"
// @Success 200 {object} shared.Response{data=dto.UnlockResponse}
// @Router /api/v1/content/{contentType}/{contentId}/unlock [post]
func (h *ProgressionHandler) Unlock(c *fiber.Ctx) error {
	subject, err := h.requireSubject(c)
	if err != nil {
		return err
	}

	resp, err := h.progressionSvc.Unlock(subject, c.Params("contentType"), c.Params("contentId"))
	if err != nil {
		if appErr, ok := shared.GetAppError(err); ok && appErr.StatusCode == fiber.StatusPaymentRequired {
			h.monitoringSvc.RecordUnlock("insufficient_balance", 0)
		} else {
			h.monitoringSvc.RecordUnlock("error", 0)
		}
		return err
	}

	if resp.Duplicate {
		h.monitoringSvc.RecordUnlock("duplicate", 0)
	} else {
		h.monitoringSvc.RecordUnlock("unlocked", resp.Entitlement.SolarCost)
	}

	return shared.ResponseOK(c, resp)
}

// @Summary List Progressions
// @Description Lists the caller's progressions across all content.
// @Tags progression
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.ProgressionListResponse}
// @Router /api/v1/progressions [get]
func (h *ProgressionHandler) ListProgressions(c *fiber.Ctx) error {
	subject, err := h.requireSubject(c)
	if err != nil {
		return err
	}

	resp, err := h.progressionSvc.ListProgressions(subject)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary List Entitlements
// @Description Lists the caller's permanent unlocks.
// @Tags progression
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.EntitlementListResponse}
// @Router /api/v1/entitlements [get]
func (h *ProgressionHandler) ListEntitlements(c *fiber.Ctx) error {
	subject, err := h.requireSubject(c)
	if err != nil {
		return err
	}

	resp, err := h.progressionSvc.ListEntitlements(subject)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}
