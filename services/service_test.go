package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/services/repositories"
)

// testEnv wires the domain services against an in-memory database, bypassing
// the service container so tests control the clock directly.
type testEnv struct {
	db *gorm.DB

	contentSvc     *ContentService
	ledgerSvc      *LedgerService
	progressionSvc *ProgressionService
	sessionSvc     *SessionService
	authSvc        *AuthService
	distSvc        *DistributionService

	clock *testClock
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// SQLite serializes writers anyway; a single pooled connection keeps
	// concurrent test transactions queued instead of failing busy.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&model.User{},
		&model.VisitorSession{},
		&model.GatedContent{},
		&model.Progression{},
		&model.Entitlement{},
		&model.SolarAccount{},
		&model.LedgerEntry{},
		&model.BackupLog{},
	)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	ledgerRepo := repositories.NewLedgerRepository(db)
	userRepo := repositories.NewUserRepository(db)

	contentSvc := &ContentService{contentRepo: repositories.NewContentRepository(db)}
	ledgerSvc := &LedgerService{ledgerRepo: ledgerRepo}
	sessionSvc := &SessionService{userRepo: userRepo}

	progressionSvc := &ProgressionService{
		contentSvc:      contentSvc,
		ledgerSvc:       ledgerSvc,
		progressionRepo: repositories.NewProgressionRepository(db),
		ledgerRepo:      ledgerRepo,
		now:             clock.Now,
	}

	jwtSvc := &JWTService{
		AccessTokenDuration: 24 * time.Hour,
		jwtSecretKey:        "test-secret",
	}

	authSvc := &AuthService{
		jwtSvc:     jwtSvc,
		ledgerSvc:  ledgerSvc,
		sessionSvc: sessionSvc,
		userRepo:   userRepo,
	}

	distSvc := &DistributionService{ledgerSvc: ledgerSvc}

	return &testEnv{
		db:             db,
		contentSvc:     contentSvc,
		ledgerSvc:      ledgerSvc,
		progressionSvc: progressionSvc,
		sessionSvc:     sessionSvc,
		authSvc:        authSvc,
		distSvc:        distSvc,
		clock:          clock,
	}
}

func (env *testEnv) seedContent(t *testing.T, contentType, contentID string, cost float64, timerSeconds int) {
	t.Helper()

	err := env.db.Create(&model.GatedContent{
		ContentType:   contentType,
		ContentID:     contentID,
		Title:         contentID,
		SolarCost:     cost,
		TimerDuration: timerSeconds,
		IsActive:      true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}).Error
	require.NoError(t, err)
}

func (env *testEnv) newAccount(t *testing.T, balance float64) *model.SolarAccount {
	t.Helper()

	user := &model.User{
		Email:     fmt.Sprintf("%s-%d@example.com", t.Name(), time.Now().UnixNano()),
		FirstName: "Test",
		LastName:  "User",
	}
	user, err := repositories.NewUserRepository(env.db).CreateUser(user)
	require.NoError(t, err)

	account, err := env.ledgerSvc.Repo().CreateAccount(&model.SolarAccount{UserID: user.ID})
	require.NoError(t, err)

	if balance > 0 {
		key := fmt.Sprintf("test-credit:%s", account.ID)
		_, err = env.ledgerSvc.Repo().Credit(account.ID, balance, "test_credit", key)
		require.NoError(t, err)
	}

	account, err = env.ledgerSvc.Repo().GetAccount(account.ID)
	require.NoError(t, err)
	return account
}

func (env *testEnv) newSession(t *testing.T, deviceID string) *model.VisitorSession {
	t.Helper()

	session, err := repositories.NewUserRepository(env.db).CreateSession(&model.VisitorSession{
		DeviceID:     deviceID,
		SessionStart: time.Now(),
		LastActivity: time.Now(),
		IsActive:     true,
	})
	require.NoError(t, err)
	return session
}
