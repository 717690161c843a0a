package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/services/repositories"
	"github.com/current-see/solar_api/shared"
)

func TestCreateAccountWithBonus(t *testing.T) {
	env := newTestEnv(t)

	user, err := repositories.NewUserRepository(env.db).CreateUser(&model.User{
		Email: "bonus@example.com",
	})
	require.NoError(t, err)

	account, err := env.ledgerSvc.CreateAccountWithBonus(user.ID)
	require.NoError(t, err)
	assert.Equal(t, RegistrationBonus, account.Balance)
	assert.Equal(t, RegistrationBonus, account.TotalEarned)

	var entry model.LedgerEntry
	require.NoError(t, env.db.Where("account_id = ?", account.ID).First(&entry).Error)
	assert.Equal(t, shared.EntryCredit, entry.EntryType)
	assert.Equal(t, shared.ReasonRegistrationBonus, entry.Reason)
	assert.Equal(t, fmt.Sprintf("bonus:%s", account.ID), entry.IdempotencyKey)
}

func TestCreditIdempotencyKeyCollision(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t, 0)

	_, err := env.ledgerSvc.Repo().Credit(account.ID, 5, "promo", "promo:once")
	require.NoError(t, err)

	_, err = env.ledgerSvc.Repo().Credit(account.ID, 5, "promo", "promo:once")
	require.ErrorIs(t, err, repositories.ErrDuplicateOperation)

	stored, err := env.ledgerSvc.Repo().GetAccount(account.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, stored.Balance)
}

func TestBalanceMatchesEntrySum(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 3, 300)
	account := env.newAccount(t, 10)

	_, err := env.ledgerSvc.Repo().Credit(account.ID, 2.5, "promo", "promo:1")
	require.NoError(t, err)

	_, err = env.progressionSvc.Unlock(shared.AccountSubject(account.ID), "article", "a1")
	require.NoError(t, err)

	require.NoError(t, env.ledgerSvc.VerifyAccountIntegrity(account.ID))

	sum, err := env.ledgerSvc.Repo().SumEntries(account.ID)
	require.NoError(t, err)
	assert.InDelta(t, 9.5, sum, 1e-9)
}

func TestTransactionHistoryNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	account := env.newAccount(t, 0)

	user := &model.User{}
	require.NoError(t, env.db.Where("id = ?", account.UserID).First(user).Error)

	for i := 0; i < 3; i++ {
		_, err := env.ledgerSvc.Repo().Credit(account.ID, float64(i+1), "promo", fmt.Sprintf("promo:%d", i))
		require.NoError(t, err)
	}

	history, err := env.ledgerSvc.GetTransactionHistory(user.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, history.Total)
	assert.Len(t, history.Entries, 2)
}

func TestLeaderboardExcludesAnonymousUsers(t *testing.T) {
	env := newTestEnv(t)

	visible := env.newAccount(t, 40)

	hiddenUser, err := repositories.NewUserRepository(env.db).CreateUser(&model.User{
		Email:       "hidden@example.com",
		IsAnonymous: true,
	})
	require.NoError(t, err)
	hidden, err := env.ledgerSvc.Repo().CreateAccount(&model.SolarAccount{UserID: hiddenUser.ID})
	require.NoError(t, err)
	_, err = env.ledgerSvc.Repo().Credit(hidden.ID, 999, "promo", "promo:hidden")
	require.NoError(t, err)

	leaderboard, err := env.ledgerSvc.GetLeaderboard(10)
	require.NoError(t, err)
	require.Len(t, leaderboard.Entries, 1)
	assert.Equal(t, 1, leaderboard.Entries[0].Rank)
	assert.Equal(t, visible.Balance, leaderboard.Entries[0].Balance)
}
