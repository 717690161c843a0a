package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"

	_ "github.com/current-see/solar_api/docs"
	"github.com/current-see/solar_api/services/handlers"
	"github.com/current-see/solar_api/shared"
)

type HttpService struct {
	context.DefaultService

	authSvc        *AuthService
	sessionSvc     *SessionService
	contentSvc     *ContentService
	progressionSvc *ProgressionService
	ledgerSvc      *LedgerService
	distSvc        *DistributionService
	backupSvc      *BackupService
	rateLimitSvc   *RateLimitService
	monitoringSvc  *MonitoringService

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.authSvc = svc.Service(AUTH_SVC).(*AuthService)
	svc.sessionSvc = svc.Service(SESSION_SVC).(*SessionService)
	svc.contentSvc = svc.Service(CONTENT_SVC).(*ContentService)
	svc.progressionSvc = svc.Service(PROGRESSION_SVC).(*ProgressionService)
	svc.ledgerSvc = svc.Service(LEDGER_SVC).(*LedgerService)
	svc.distSvc = svc.Service(DISTRIBUTION_SVC).(*DistributionService)
	svc.backupSvc = svc.Service(BACKUP_SVC).(*BackupService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.monitoringSvc = svc.Service(MONITORING_SVC).(*MonitoringService)

	app := fiber.New(fiber.Config{
		ErrorHandler: svc.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID, X-Device-ID",
	}))
	app.Use(MonitoringMiddleware(svc.monitoringSvc))
	app.Use(svc.rateLimitSvc.IPRateLimit())

	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	svc.registerRoutes(app)

	app.Use(func(c *fiber.Ctx) error {
		return shared.ResponseNotFound(c)
	})

	svc.server = app
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) registerRoutes(app *fiber.App) {
	authHandler := handlers.NewAuthHandler(svc.authSvc)
	sessionHandler := handlers.NewSessionHandler(svc.sessionSvc)
	progressionHandler := handlers.NewProgressionHandler(svc.progressionSvc, svc.sessionSvc, svc.ledgerSvc, svc.monitoringSvc)
	contentHandler := handlers.NewContentHandler(svc.contentSvc)
	walletHandler := handlers.NewWalletHandler(svc.ledgerSvc)
	adminHandler := handlers.NewAdminHandler(svc.distSvc, svc.backupSvc, svc.contentSvc, svc.ledgerSvc, svc.rateLimitSvc, svc.monitoringSvc)

	v1 := app.Group("/api/v1")

	v1.Get("/ping", svc.ping)

	// auth
	v1.Post("/register", svc.rateLimitSvc.RateLimit("register"), authHandler.Register)
	v1.Post("/login", svc.rateLimitSvc.RateLimit("login"), authHandler.Login)
	v1.Get("/profile", svc.authSvc.RequiredAuth(), authHandler.GetProfile)

	// anonymous sessions
	v1.Post("/session/start", svc.rateLimitSvc.RateLimit("session_start"), sessionHandler.StartSession)

	// content catalog
	v1.Get("/content", contentHandler.ListContent)

	// progression; identity optional, resolved per request
	optional := svc.authSvc.OptionalAuth()
	v1.Get("/content/:contentType/:contentId/access", optional, progressionHandler.CheckAccess)
	v1.Post("/content/:contentType/:contentId/start-timer", optional, svc.rateLimitSvc.RateLimit("timer_start"), progressionHandler.StartTimer)
	v1.Post("/progression/:progressionId/complete", optional, progressionHandler.CompleteTimer)
	v1.Get("/progressions", optional, progressionHandler.ListProgressions)

	// unlock and entitlements require a registered account
	v1.Post("/content/:contentType/:contentId/unlock", svc.authSvc.RequiredAuth(), svc.rateLimitSvc.RateLimit("unlock"), progressionHandler.Unlock)
	v1.Get("/entitlements", svc.authSvc.RequiredAuth(), progressionHandler.ListEntitlements)

	// wallet
	v1.Get("/wallet/balance", svc.authSvc.RequiredAuth(), walletHandler.GetBalance)
	v1.Get("/wallet/transactions", svc.authSvc.RequiredAuth(), walletHandler.GetTransactions)
	v1.Get("/leaderboard", walletHandler.GetLeaderboard)

	// admin
	admin := v1.Group("/admin", svc.authSvc.RequiredAuth(), svc.authSvc.RequireAdmin())
	admin.Post("/distributions/run", adminHandler.RunDistribution)
	admin.Post("/content", adminHandler.CreateContent)
	admin.Post("/backup", adminHandler.RunBackup)
	admin.Get("/ledger/:accountId/verify", adminHandler.VerifyLedger)
	admin.Delete("/rate-limits/:endpointType/:identifier", adminHandler.ResetRateLimit)
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseJSON(c, http.StatusOK, "Success", "pong")
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	return shared.ResponseInternalError(c, err)
}
