package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/shared"
)

func TestRunDailyCreditsEveryAccountOnce(t *testing.T) {
	env := newTestEnv(t)
	a := env.newAccount(t, 0)
	b := env.newAccount(t, 0)

	date := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	resp, err := env.distSvc.RunDaily(date)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", resp.Date)
	assert.Equal(t, 2, resp.AccountsCredited)
	assert.Equal(t, 0, resp.AccountsSkipped)
	assert.InDelta(t, 1.0/365.0, resp.SolarPerAccount, 1e-12)

	for _, accountID := range []string{a.ID, b.ID} {
		stored, err := env.ledgerSvc.Repo().GetAccount(accountID)
		require.NoError(t, err)
		assert.InDelta(t, DailySolarShare, stored.Balance, 1e-9)
	}
}

func TestRunDailyIsIdempotentPerDate(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t, 0)

	date := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := env.distSvc.RunDaily(date)
	require.NoError(t, err)

	// Re-run the same date, then a different hour of the same day.
	second, err := env.distSvc.RunDaily(date)
	require.NoError(t, err)
	assert.Equal(t, 0, second.AccountsCredited)
	assert.Equal(t, 1, second.AccountsSkipped)

	third, err := env.distSvc.RunDaily(date.Add(10 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, third.AccountsCredited)

	stored, err := env.ledgerSvc.Repo().GetAccount(account.ID)
	require.NoError(t, err)
	assert.InDelta(t, DailySolarShare, stored.Balance, 1e-9)

	var entries int64
	env.db.Model(&model.LedgerEntry{}).
		Where("account_id = ? AND reason = ?", account.ID, shared.ReasonDailyDistribution).
		Count(&entries)
	assert.Equal(t, int64(1), entries)
}

func TestRunDailyNextDayCreditsAgain(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t, 0)

	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	_, err := env.distSvc.RunDaily(day1)
	require.NoError(t, err)
	_, err = env.distSvc.RunDaily(day2)
	require.NoError(t, err)

	stored, err := env.ledgerSvc.Repo().GetAccount(account.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2*DailySolarShare, stored.Balance, 1e-9)
}
