package handlers

import (
	"time"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/shared"
)

type AuthServiceInterface interface {
	Register(req dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(req dto.LoginRequest) (*dto.LoginResponse, error)
	GetProfile(userID string) (*dto.ProfileResponse, error)
}

type SessionServiceInterface interface {
	CreateOrGetSession(req dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetActiveSession(sessionID string) (*model.VisitorSession, error)
	Touch(session *model.VisitorSession)
}

type ProgressionServiceInterface interface {
	CheckAccess(subject shared.Subject, contentType, contentID string) (*dto.AccessStatusResponse, error)
	StartTimer(subject shared.Subject, contentType, contentID string) (*dto.StartTimerResponse, error)
	CompleteTimer(subject shared.Subject, progressionID string) (*model.Progression, error)
	Unlock(subject shared.Subject, contentType, contentID string) (*dto.UnlockResponse, error)
	ListProgressions(subject shared.Subject) (*dto.ProgressionListResponse, error)
	ListEntitlements(subject shared.Subject) (*dto.EntitlementListResponse, error)
}

type ContentServiceInterface interface {
	ListContent() ([]model.GatedContent, error)
	CreateContent(req dto.CreateContentRequest) (*model.GatedContent, error)
}

type LedgerServiceInterface interface {
	GetAccountForUser(userID string) (*model.SolarAccount, error)
	GetBalance(userID string) (*dto.BalanceResponse, error)
	GetTransactionHistory(userID string, limit int) (*dto.TransactionHistoryResponse, error)
	GetLeaderboard(limit int) (*dto.LeaderboardResponse, error)
	VerifyAccountIntegrity(accountID string) error
}

type DistributionServiceInterface interface {
	RunDaily(date time.Time) (*dto.DistributionRunResponse, error)
}

type BackupServiceInterface interface {
	SnapshotLedger() (*dto.BackupResponse, error)
}

type RateLimiterInterface interface {
	ResetRateLimit(identifier, endpointType string) error
}

type MonitoringInterface interface {
	RecordTimerStarted()
	RecordTimerCompleted()
	RecordUnlock(outcome string, solarDebited float64)
	RecordSolarCredited(amount float64)
}
