package services

import (
	"errors"
	"time"

	"github.com/alphabatem/common/context"
	"gorm.io/gorm"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/services/repositories"
	"github.com/current-see/solar_api/shared"
)

// SessionService manages anonymous visitor sessions, the subject identity for
// users who have not registered yet.
type SessionService struct {
	context.DefaultService

	sqlSvc   SqlStore
	userRepo *repositories.UserRepository
}

const SESSION_SVC = "session_svc"

func (svc SessionService) Id() string {
	return SESSION_SVC
}

func (svc *SessionService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *SessionService) Start() error {
	svc.sqlSvc = svc.Service(StoreID()).(SqlStore)
	svc.userRepo = repositories.NewUserRepository(svc.sqlSvc.Db())
	return nil
}

// CreateOrGetSession returns the active session for a device, creating one if
// none exists. Reusing the session keeps a returning visitor's timers alive.
func (svc *SessionService) CreateOrGetSession(req dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	existing, err := svc.userRepo.GetSessionByDeviceID(req.DeviceID)
	if err == nil {
		existing.LastActivity = time.Now()
		if updateErr := svc.userRepo.UpdateSession(existing); updateErr != nil {
			return nil, shared.NewServiceUnavailableError(updateErr, "Session store unavailable")
		}
		return &dto.CreateSessionResponse{Session: existing}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewServiceUnavailableError(err, "Session store unavailable")
	}

	now := time.Now()
	session, err := svc.userRepo.CreateSession(&model.VisitorSession{
		DeviceID:     req.DeviceID,
		SessionStart: now,
		LastActivity: now,
		IsActive:     true,
	})
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Session store unavailable")
	}

	return &dto.CreateSessionResponse{Session: session}, nil
}

// GetActiveSession validates a session id coming in on a request header.
func (svc *SessionService) GetActiveSession(sessionID string) (*model.VisitorSession, error) {
	session, err := svc.userRepo.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewUnauthorizedError(err, "Unknown session")
		}
		return nil, shared.NewServiceUnavailableError(err, "Session store unavailable")
	}
	if !session.IsActive {
		return nil, shared.NewUnauthorizedError(errors.New("session deactivated"), "Session no longer active")
	}
	return session, nil
}

func (svc *SessionService) Touch(session *model.VisitorSession) {
	session.LastActivity = time.Now()
	_ = svc.userRepo.UpdateSession(session)
}

// Promote deactivates a visitor session after its owner registers. The
// session's progressions are abandoned; the new account starts fresh.
func (svc *SessionService) Promote(sessionID, userID string) error {
	session, err := svc.userRepo.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	session.IsActive = false
	session.PromotedToUserID = userID
	return svc.userRepo.UpdateSession(session)
}
