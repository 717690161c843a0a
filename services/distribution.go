package services

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/services/repositories"
	"github.com/current-see/solar_api/shared"
)

// DistributionService credits every Solar account its daily share. A year of
// daily distributions sums to one whole Solar per account. Runs are keyed by
// account and calendar date, so re-running a day credits nobody twice.
type DistributionService struct {
	context.DefaultService

	ledgerSvc *LedgerService

	interval time.Duration
	closed   chan struct{}
}

const DISTRIBUTION_SVC = "distribution_svc"

// DailySolarShare is 1/365 Solar, the per-account daily distribution.
const DailySolarShare = 1.0 / 365.0

func (svc DistributionService) Id() string {
	return DISTRIBUTION_SVC
}

func (svc *DistributionService) Configure(ctx *context.Context) error {
	svc.closed = make(chan struct{}, 1)

	if os.Getenv("DISTRIBUTION_AUTO") == "true" {
		svc.interval = 24 * time.Hour
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *DistributionService) Start() error {
	svc.ledgerSvc = svc.Service(LEDGER_SVC).(*LedgerService)

	if svc.interval > 0 {
		go svc.runLoop()
	}
	return nil
}

func (svc *DistributionService) Shutdown() {
	svc.closed <- struct{}{}
}

// RunDaily credits the daily share to every account that has not yet received
// it for the given date. Accounts whose idempotency key already exists are
// counted as skipped.
func (svc *DistributionService) RunDaily(date time.Time) (*dto.DistributionRunResponse, error) {
	day := date.UTC().Format("2006-01-02")

	accounts, err := svc.ledgerSvc.Repo().ListAccounts()
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Ledger unavailable")
	}

	credited := 0
	skipped := 0
	for _, account := range accounts {
		key := fmt.Sprintf("dist:%s:%s", account.ID, day)

		_, err := svc.ledgerSvc.Repo().Credit(account.ID, DailySolarShare, shared.ReasonDailyDistribution, key)
		if err != nil {
			if errors.Is(err, repositories.ErrDuplicateOperation) {
				skipped++
				continue
			}
			return nil, shared.NewInternalError(err, "Distribution aborted")
		}
		credited++
	}

	log.WithFields(log.Fields{
		"date":     day,
		"credited": credited,
		"skipped":  skipped,
	}).Info("Daily distribution complete")

	return &dto.DistributionRunResponse{
		Date:             day,
		AccountsCredited: credited,
		AccountsSkipped:  skipped,
		SolarPerAccount:  DailySolarShare,
	}, nil
}

func (svc *DistributionService) runLoop() {
	ticker := time.NewTicker(svc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := svc.RunDaily(time.Now()); err != nil {
				log.WithError(err).Error("Scheduled distribution failed")
			}
		case <-svc.closed:
			return
		}
	}
}
