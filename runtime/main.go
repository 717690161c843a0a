package main

import (
	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/current-see/solar_api/services"
)

// @title Solar API
// @version 1.0
// @description Timer-gated content progression and Solar entitlement engine.
func main() {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	ctx, err := context.NewCtx(
		services.NewStoreService(),
		&services.RedisService{},
		&services.JWTService{},
		&services.MinIOService{},

		&services.ContentService{},
		&services.LedgerService{},
		&services.ProgressionService{},
		&services.SessionService{},
		&services.AuthService{},
		&services.DistributionService{},
		&services.BackupService{},
		&services.RateLimitService{},

		&services.MonitoringService{},
		&services.HttpService{},
	)
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
