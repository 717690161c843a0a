package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/shared"
)

type AdminHandler struct {
	distSvc       DistributionServiceInterface
	backupSvc     BackupServiceInterface
	contentSvc    ContentServiceInterface
	ledgerSvc     LedgerServiceInterface
	rateLimitSvc  RateLimiterInterface
	monitoringSvc MonitoringInterface
}

func NewAdminHandler(distSvc DistributionServiceInterface, backupSvc BackupServiceInterface, contentSvc ContentServiceInterface, ledgerSvc LedgerServiceInterface, rateLimitSvc RateLimiterInterface, monitoringSvc MonitoringInterface) *AdminHandler {
	return &AdminHandler{
		distSvc:       distSvc,
		backupSvc:     backupSvc,
		contentSvc:    contentSvc,
		ledgerSvc:     ledgerSvc,
		rateLimitSvc:  rateLimitSvc,
		monitoringSvc: monitoringSvc,
	}
}

// @Summary Run Daily Distribution
// @Description Credits every Solar account its daily share for the given date (default today). Re-running a date skips accounts already credited.
// @Tags admin
// @Accept  json
// @Produce json
// @Param date query string false "Distribution date (YYYY-MM-DD, default today)"
// @Success 200 {object} shared.Response{data=dto.DistributionRunResponse}
// @Router /api/v1/admin/distributions/run [post]
func (h *AdminHandler) RunDistribution(c *fiber.Ctx) error {
	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return shared.NewBadRequestError(err, "Invalid date, expected YYYY-MM-DD")
		}
		date = parsed
	}

	resp, err := h.distSvc.RunDaily(date)
	if err != nil {
		return err
	}

	if resp.AccountsCredited > 0 {
		h.monitoringSvc.RecordSolarCredited(resp.SolarPerAccount * float64(resp.AccountsCredited))
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Create Gated Content
// @Description Adds a content row to the catalog with its Solar cost and timer duration.
// @Tags admin
// @Accept  json
// @Produce json
// @Param createContentRequest body dto.CreateContentRequest true "Create content request"
// @Success 201 {object} shared.Response{data=model.GatedContent}
// @Router /api/v1/admin/content [post]
func (h *AdminHandler) CreateContent(c *fiber.Ctx) error {
	var req dto.CreateContentRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	content, err := h.contentSvc.CreateContent(req)
	if err != nil {
		return err
	}

	return shared.ResponseCreated(c, content)
}

// @Summary Snapshot Ledger
// @Description Uploads a full ledger snapshot to object storage and records it.
// @Tags admin
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.BackupResponse}
// @Router /api/v1/admin/backup [post]
func (h *AdminHandler) RunBackup(c *fiber.Ctx) error {
	resp, err := h.backupSvc.SnapshotLedger()
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Verify Ledger Account
// @Description Recomputes an account balance from its entries and checks it against the stored balance.
// @Tags admin
// @Accept  json
// @Produce json
// @Param accountId path string true "Account ID"
// @Success 200 {object} shared.Response{data=string}
// @Router /api/v1/admin/ledger/{accountId}/verify [get]
func (h *AdminHandler) VerifyLedger(c *fiber.Ctx) error {
	if err := h.ledgerSvc.VerifyAccountIntegrity(c.Params("accountId")); err != nil {
		return err
	}

	return shared.ResponseOK(c, "Account balance matches ledger entries")
}

// @Summary Reset Rate Limit
// @Description Clears the rate limit counter for an identifier on one endpoint type.
// @Tags admin
// @Accept  json
// @Produce json
// @Param endpointType path string true "Endpoint type"
// @Param identifier path string true "Identifier (user, session or IP)"
// @Success 200 {object} shared.Response{data=string}
// @Router /api/v1/admin/rate-limits/{endpointType}/{identifier} [delete]
func (h *AdminHandler) ResetRateLimit(c *fiber.Ctx) error {
	if err := h.rateLimitSvc.ResetRateLimit(c.Params("identifier"), c.Params("endpointType")); err != nil {
		return shared.NewServiceUnavailableError(err, "Rate limit store unavailable")
	}

	return shared.ResponseOK(c, "Rate limit reset")
}
