package services

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/shared"
)

func requireAppError(t *testing.T, err error, statusCode int) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, statusCode, appErr.StatusCode)
}

func TestCheckAccessDefaultsToLockedPreview(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	session := env.newSession(t, "device-1")

	status, err := env.progressionSvc.CheckAccess(shared.SessionSubject(session.ID), "article", "a1")
	require.NoError(t, err)

	assert.Equal(t, shared.StatusLocked, status.Status)
	assert.Equal(t, shared.AccessPreview, status.AccessType)
	assert.Equal(t, 50.0, status.SolarCost)
	assert.Nil(t, status.Progression)
}

func TestCheckAccessUnknownContent(t *testing.T) {
	env := newTestEnv(t)
	session := env.newSession(t, "device-1")

	_, err := env.progressionSvc.CheckAccess(shared.SessionSubject(session.ID), "article", "nope")
	requireAppError(t, err, http.StatusBadRequest)
}

func TestStartTimerSetsServerEndTime(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	session := env.newSession(t, "device-1")
	subject := shared.SessionSubject(session.ID)

	resp, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)
	require.NotNil(t, resp.Progression)
	assert.False(t, resp.AlreadyActive)
	assert.Equal(t, shared.StatusTimerActive, resp.Progression.Status)

	require.NotNil(t, resp.Progression.TimerEndTime)
	expectedEnd := env.clock.Now().Add(300 * time.Second)
	assert.WithinDuration(t, expectedEnd, *resp.Progression.TimerEndTime, time.Second)
}

func TestStartTimerNeverExtendsRunningTimer(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	session := env.newSession(t, "device-1")
	subject := shared.SessionSubject(session.ID)

	first, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)
	originalEnd := *first.Progression.TimerEndTime

	env.clock.Advance(2 * time.Minute)

	second, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)
	assert.True(t, second.AlreadyActive)
	require.NotNil(t, second.Progression.TimerEndTime)
	assert.True(t, second.Progression.TimerEndTime.Equal(originalEnd),
		"timer end moved from %v to %v", originalEnd, second.Progression.TimerEndTime)
}

func TestCheckAccessWhileTimerRunning(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	session := env.newSession(t, "device-1")
	subject := shared.SessionSubject(session.ID)

	_, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)

	env.clock.Advance(100 * time.Second)

	status, err := env.progressionSvc.CheckAccess(subject, "article", "a1")
	require.NoError(t, err)
	assert.Equal(t, shared.StatusTimerActive, status.Status)
	assert.Equal(t, shared.AccessTimerActive, status.AccessType)
	assert.Equal(t, 200, status.TimeRemaining)
	require.NotNil(t, status.TimerEndTime)
}

func TestCheckAccessDerivesTimerCompleteWithoutPersisting(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	session := env.newSession(t, "device-1")
	subject := shared.SessionSubject(session.ID)

	started, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)

	env.clock.Advance(301 * time.Second)

	status, err := env.progressionSvc.CheckAccess(subject, "article", "a1")
	require.NoError(t, err)
	assert.Equal(t, shared.StatusTimerComplete, status.Status)
	assert.Equal(t, shared.AccessTimerComplete, status.AccessType)

	// The stored row must still be timer_active; only completeTimer persists.
	var stored model.Progression
	require.NoError(t, env.db.Where("id = ?", started.Progression.ID).First(&stored).Error)
	assert.Equal(t, shared.StatusTimerActive, stored.Status)
}

func TestCompleteTimerBeforeElapsed(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	session := env.newSession(t, "device-1")
	subject := shared.SessionSubject(session.ID)

	started, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)

	env.clock.Advance(100 * time.Second)

	_, err = env.progressionSvc.CompleteTimer(subject, started.Progression.ID)
	requireAppError(t, err, http.StatusTooEarly)

	// Nothing persisted.
	var stored model.Progression
	require.NoError(t, env.db.Where("id = ?", started.Progression.ID).First(&stored).Error)
	assert.Equal(t, shared.StatusTimerActive, stored.Status)
}

func TestCompleteTimerAfterElapsed(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	session := env.newSession(t, "device-1")
	subject := shared.SessionSubject(session.ID)

	started, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)

	env.clock.Advance(300 * time.Second)

	progression, err := env.progressionSvc.CompleteTimer(subject, started.Progression.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.StatusTimerComplete, progression.Status)
	require.NotNil(t, progression.CompletedAt)

	// Repeat call is a no-op success.
	again, err := env.progressionSvc.CompleteTimer(subject, started.Progression.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.StatusTimerComplete, again.Status)
}

func TestCompleteTimerWrongSubject(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	owner := env.newSession(t, "device-1")
	other := env.newSession(t, "device-2")

	started, err := env.progressionSvc.StartTimer(shared.SessionSubject(owner.ID), "article", "a1")
	require.NoError(t, err)

	env.clock.Advance(301 * time.Second)

	_, err = env.progressionSvc.CompleteTimer(shared.SessionSubject(other.ID), started.Progression.ID)
	requireAppError(t, err, http.StatusForbidden)
}

func TestUnlockRequiresRegisteredAccount(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	session := env.newSession(t, "device-1")

	_, err := env.progressionSvc.Unlock(shared.SessionSubject(session.ID), "article", "a1")
	requireAppError(t, err, http.StatusUnauthorized)
}

func TestUnlockDebitsOnceAndGrantsEntitlement(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 4, 300)
	account := env.newAccount(t, 10)
	subject := shared.AccountSubject(account.ID)

	resp, err := env.progressionSvc.Unlock(subject, "article", "a1")
	require.NoError(t, err)
	assert.False(t, resp.Duplicate)
	assert.Equal(t, 6.0, resp.NewBalance)
	require.NotNil(t, resp.Entitlement)
	assert.Equal(t, 4.0, resp.Entitlement.SolarCost)

	// Second call spends nothing.
	again, err := env.progressionSvc.Unlock(subject, "article", "a1")
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, 6.0, again.NewBalance)

	stored, err := env.ledgerSvc.Repo().GetAccount(account.ID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, stored.Balance)

	// Exactly one debit entry exists.
	var count int64
	env.db.Model(&model.LedgerEntry{}).
		Where("account_id = ? AND entry_type = ?", account.ID, shared.EntryDebit).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestUnlockInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	account := env.newAccount(t, 10)
	subject := shared.AccountSubject(account.ID)

	_, err := env.progressionSvc.Unlock(subject, "article", "a1")
	requireAppError(t, err, http.StatusPaymentRequired)

	// Nothing moved.
	stored, err := env.ledgerSvc.Repo().GetAccount(account.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, stored.Balance)

	var entitlements int64
	env.db.Model(&model.Entitlement{}).Where("account_id = ?", account.ID).Count(&entitlements)
	assert.Equal(t, int64(0), entitlements)
}

func TestUnlockConcurrentCallsDebitOnce(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 4, 300)
	account := env.newAccount(t, 10)
	subject := shared.AccountSubject(account.ID)

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.progressionSvc.Unlock(subject, "article", "a1")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}

	stored, err := env.ledgerSvc.Repo().GetAccount(account.ID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, stored.Balance)

	var debits int64
	env.db.Model(&model.LedgerEntry{}).
		Where("account_id = ? AND entry_type = ?", account.ID, shared.EntryDebit).
		Count(&debits)
	assert.Equal(t, int64(1), debits)

	var entitlements int64
	env.db.Model(&model.Entitlement{}).Where("account_id = ?", account.ID).Count(&entitlements)
	assert.Equal(t, int64(1), entitlements)
}

func TestEntitlementOverridesProgression(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 4, 300)
	account := env.newAccount(t, 10)
	subject := shared.AccountSubject(account.ID)

	_, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)

	_, err = env.progressionSvc.Unlock(subject, "article", "a1")
	require.NoError(t, err)

	// Entitlement wins regardless of timer state.
	status, err := env.progressionSvc.CheckAccess(subject, "article", "a1")
	require.NoError(t, err)
	assert.Equal(t, shared.StatusUnlocked, status.Status)
	assert.Equal(t, shared.AccessFull, status.AccessType)
	require.NotNil(t, status.Entitlement)

	// And starting another timer is a no-op reporting the unlocked state.
	started, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)
	assert.True(t, started.AlreadyActive)
	assert.Equal(t, shared.StatusUnlocked, started.Progression.Status)
}

func TestStartTimerShortCircuitsWhenEntitled(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 4, 300)
	account := env.newAccount(t, 10)
	subject := shared.AccountSubject(account.ID)

	// Unlock directly, without ever running a timer.
	_, err := env.progressionSvc.Unlock(subject, "article", "a1")
	require.NoError(t, err)

	started, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)
	assert.True(t, started.AlreadyActive)
	assert.Equal(t, shared.StatusUnlocked, started.Progression.Status)
	assert.Nil(t, started.Progression.TimerEndTime)

	// The no-op writes nothing.
	var progressions int64
	env.db.Model(&model.Progression{}).
		Where("subject_id = ?", account.ID).Count(&progressions)
	assert.Equal(t, int64(0), progressions)
}

func TestAnonymousTimerKeepsRunningAcrossChecks(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 50, 300)
	session := env.newSession(t, "device-1")
	subject := shared.SessionSubject(session.ID)

	started, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)
	originalEnd := *started.Progression.TimerEndTime

	// Poll a few times mid-countdown; the end time never moves.
	for i := 0; i < 3; i++ {
		env.clock.Advance(30 * time.Second)
		status, err := env.progressionSvc.CheckAccess(subject, "article", "a1")
		require.NoError(t, err)
		assert.Equal(t, shared.StatusTimerActive, status.Status)
		require.NotNil(t, status.TimerEndTime)
		assert.True(t, status.TimerEndTime.Equal(originalEnd))
	}
}

func TestListProgressionsAndEntitlements(t *testing.T) {
	env := newTestEnv(t)
	env.seedContent(t, "article", "a1", 4, 300)
	env.seedContent(t, "video", "v1", 4, 120)
	account := env.newAccount(t, 20)
	subject := shared.AccountSubject(account.ID)

	_, err := env.progressionSvc.StartTimer(subject, "article", "a1")
	require.NoError(t, err)
	_, err = env.progressionSvc.Unlock(subject, "video", "v1")
	require.NoError(t, err)

	progressions, err := env.progressionSvc.ListProgressions(subject)
	require.NoError(t, err)
	assert.Len(t, progressions.Progressions, 1)

	entitlements, err := env.progressionSvc.ListEntitlements(subject)
	require.NoError(t, err)
	assert.Len(t, entitlements.Entitlements, 1)
	assert.Equal(t, "v1", entitlements.Entitlements[0].ContentID)
}
