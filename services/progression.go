package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/current-see/solar_api/dto"
	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/services/repositories"
	"github.com/current-see/solar_api/shared"
)

// ProgressionService is the access decision engine. It owns the
// locked -> timer_active -> timer_complete -> unlocked state machine and is
// the only writer of progression rows. Timers are reconciled lazily on read;
// nothing runs in the background.
type ProgressionService struct {
	context.DefaultService

	sqlSvc     SqlStore
	contentSvc *ContentService
	ledgerSvc  *LedgerService

	progressionRepo *repositories.ProgressionRepository
	ledgerRepo      *repositories.LedgerRepository

	now func() time.Time
}

const PROGRESSION_SVC = "progression_svc"

func (svc ProgressionService) Id() string {
	return PROGRESSION_SVC
}

func (svc *ProgressionService) Configure(ctx *context.Context) error {
	svc.now = time.Now
	return svc.DefaultService.Configure(ctx)
}

func (svc *ProgressionService) Start() error {
	svc.sqlSvc = svc.Service(StoreID()).(SqlStore)
	svc.contentSvc = svc.Service(CONTENT_SVC).(*ContentService)
	svc.ledgerSvc = svc.Service(LEDGER_SVC).(*LedgerService)

	svc.progressionRepo = repositories.NewProgressionRepository(svc.sqlSvc.Db())
	svc.ledgerRepo = svc.ledgerSvc.Repo()
	return nil
}

// CheckAccess reports the subject's current access to a piece of content. The
// call is side-effect free: an elapsed timer is reported as timer_complete
// without persisting the transition, so polling never mutates state.
func (svc *ProgressionService) CheckAccess(subject shared.Subject, contentType, contentID string) (*dto.AccessStatusResponse, error) {
	content, err := svc.contentSvc.Resolve(contentType, contentID)
	if err != nil {
		return nil, err
	}

	resp := &dto.AccessStatusResponse{
		Status:     shared.StatusLocked,
		AccessType: shared.AccessPreview,
		SolarCost:  content.SolarCost,
		Title:      content.Title,
	}

	if subject.Registered() {
		if account, err := svc.ledgerSvc.GetAccount(subject.AccountID); err == nil {
			resp.UserBalance = &account.Balance
		}

		entitlement, err := svc.progressionRepo.GetEntitlement(subject.AccountID, contentType, contentID)
		if err == nil {
			resp.Status = shared.StatusUnlocked
			resp.AccessType = shared.AccessFull
			resp.Entitlement = entitlement
			return resp, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewServiceUnavailableError(err, "Entitlement store unavailable")
		}
	}

	progression, err := svc.progressionRepo.GetProgressionForSubject(subject.Type, subject.ID, contentType, contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		return nil, shared.NewServiceUnavailableError(err, "Progression store unavailable")
	}

	resp.Progression = progression
	resp.Status = progression.Status

	switch progression.Status {
	case shared.StatusTimerActive:
		remaining := svc.timeRemaining(progression)
		if remaining <= 0 {
			// Elapsed but not yet acknowledged by completeTimer.
			resp.Status = shared.StatusTimerComplete
			resp.AccessType = shared.AccessTimerComplete
		} else {
			resp.AccessType = shared.AccessTimerActive
			resp.TimerEndTime = progression.TimerEndTime
			resp.TimeRemaining = remaining
		}
	case shared.StatusTimerComplete:
		resp.AccessType = shared.AccessTimerComplete
	case shared.StatusUnlocked:
		resp.AccessType = shared.AccessFull
	}

	return resp, nil
}

// StartTimer starts the gate timer for the subject, or returns the existing
// progression unchanged if one is already underway. For a subject that already
// holds an entitlement no timer starts; the call is a no-op reporting
// unlocked. A running timer is never extended or reset; TimerEndTime is
// written once per timer instance.
func (svc *ProgressionService) StartTimer(subject shared.Subject, contentType, contentID string) (*dto.StartTimerResponse, error) {
	content, err := svc.contentSvc.Resolve(contentType, contentID)
	if err != nil {
		return nil, err
	}

	if subject.Registered() {
		_, err := svc.progressionRepo.GetEntitlement(subject.AccountID, contentType, contentID)
		if err == nil {
			return svc.unlockedStartResponse(subject, contentType, contentID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewServiceUnavailableError(err, "Entitlement store unavailable")
		}
	}

	existing, err := svc.progressionRepo.GetProgressionForSubject(subject.Type, subject.ID, contentType, contentID)
	if err == nil {
		switch existing.Status {
		case shared.StatusTimerActive, shared.StatusTimerComplete, shared.StatusUnlocked:
			return &dto.StartTimerResponse{Progression: existing, AlreadyActive: true}, nil
		}
		// locked row left over from a reset; rearm it
		return svc.armTimer(existing, content)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewServiceUnavailableError(err, "Progression store unavailable")
	}

	now := svc.now()
	end := now.Add(time.Duration(content.TimerDuration) * time.Second)
	progression := &model.Progression{
		SubjectType:  subject.Type,
		SubjectID:    subject.ID,
		ContentType:  contentType,
		ContentID:    contentID,
		Status:       shared.StatusTimerActive,
		TimerEndTime: &end,
		StartedAt:    &now,
	}

	created, err := svc.progressionRepo.CreateProgression(progression)
	if err != nil {
		// Lost a create race on the (subject, content) unique index. The row
		// the winner wrote is the authoritative timer; return it unchanged.
		race, raceErr := svc.progressionRepo.GetProgressionForSubject(subject.Type, subject.ID, contentType, contentID)
		if raceErr == nil {
			return &dto.StartTimerResponse{Progression: race, AlreadyActive: true}, nil
		}
		return nil, shared.NewServiceUnavailableError(err, "Progression store unavailable")
	}

	log.WithFields(log.Fields{
		"subject_type": subject.Type,
		"subject_id":   subject.ID,
		"content":      contentType + ":" + contentID,
		"ends_at":      end,
	}).Info("Timer started")

	return &dto.StartTimerResponse{Progression: created}, nil
}

// unlockedStartResponse answers StartTimer for an entitled subject. The
// entitlement is authoritative, so the response reports unlocked whether or
// not a progression row ever existed.
func (svc *ProgressionService) unlockedStartResponse(subject shared.Subject, contentType, contentID string) (*dto.StartTimerResponse, error) {
	progression, err := svc.progressionRepo.GetProgressionForSubject(subject.Type, subject.ID, contentType, contentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewServiceUnavailableError(err, "Progression store unavailable")
		}
		// Unlocked without ever running a timer; no row to return.
		progression = &model.Progression{
			SubjectType: subject.Type,
			SubjectID:   subject.ID,
			ContentType: contentType,
			ContentID:   contentID,
			Status:      shared.StatusUnlocked,
		}
	} else {
		progression.Status = shared.StatusUnlocked
	}

	return &dto.StartTimerResponse{Progression: progression, AlreadyActive: true}, nil
}

func (svc *ProgressionService) armTimer(progression *model.Progression, content *model.GatedContent) (*dto.StartTimerResponse, error) {
	now := svc.now()
	end := now.Add(time.Duration(content.TimerDuration) * time.Second)

	progression.Status = shared.StatusTimerActive
	progression.TimerEndTime = &end
	progression.StartedAt = &now
	progression.CompletedAt = nil

	if err := svc.progressionRepo.UpdateProgression(progression); err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Progression store unavailable")
	}
	return &dto.StartTimerResponse{Progression: progression}, nil
}

// CompleteTimer acknowledges an elapsed timer and persists timer_complete.
// The server clock decides whether the timer elapsed; an early call gets 425
// and changes nothing. Repeat calls after completion are no-ops.
func (svc *ProgressionService) CompleteTimer(subject shared.Subject, progressionID string) (*model.Progression, error) {
	progression, err := svc.progressionRepo.GetProgression(progressionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "Progression not found")
		}
		return nil, shared.NewServiceUnavailableError(err, "Progression store unavailable")
	}

	if progression.SubjectType != subject.Type || progression.SubjectID != subject.ID {
		return nil, shared.NewForbiddenError(
			errors.New("progression belongs to a different subject"), "Not your progression")
	}

	switch progression.Status {
	case shared.StatusTimerComplete, shared.StatusUnlocked:
		return progression, nil
	case shared.StatusTimerActive:
		// fall through to the elapsed check
	default:
		return nil, shared.NewBadRequestError(
			fmt.Errorf("progression %s has no active timer", progressionID), "No active timer")
	}

	if remaining := svc.timeRemaining(progression); remaining > 0 {
		return nil, shared.NewTooEarlyError(
			fmt.Errorf("timer has %ds remaining", remaining), "Timer has not elapsed")
	}

	now := svc.now()
	progression.Status = shared.StatusTimerComplete
	progression.CompletedAt = &now

	if err := svc.progressionRepo.UpdateProgression(progression); err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Progression store unavailable")
	}

	return progression, nil
}

// Unlock spends Solar to permanently unlock content for a registered account.
// The cost comes from the catalog, never from the client. The debit, ledger
// entry and entitlement commit atomically; a duplicate call (concurrent or
// retried) spends nothing and reports the existing entitlement.
func (svc *ProgressionService) Unlock(subject shared.Subject, contentType, contentID string) (*dto.UnlockResponse, error) {
	if !subject.Registered() {
		return nil, shared.NewUnauthorizedError(
			errors.New("unlock requires a registered account"), "Registration required")
	}

	content, err := svc.contentSvc.Resolve(contentType, contentID)
	if err != nil {
		return nil, err
	}

	if existing, err := svc.progressionRepo.GetEntitlement(subject.AccountID, contentType, contentID); err == nil {
		account, accErr := svc.ledgerSvc.GetAccount(subject.AccountID)
		if accErr != nil {
			return nil, accErr
		}
		return &dto.UnlockResponse{Entitlement: existing, NewBalance: account.Balance, Duplicate: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewServiceUnavailableError(err, "Entitlement store unavailable")
	}

	key := fmt.Sprintf("unlock:%s:%s:%s", subject.AccountID, contentType, contentID)

	entitlement, newBalance, err := svc.ledgerRepo.UnlockPurchase(subject.AccountID, contentType, contentID, content.SolarCost, key)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInsufficientBalance):
			return nil, shared.NewPaymentRequiredError(err, "Insufficient Solar balance")
		case errors.Is(err, repositories.ErrDuplicateOperation):
			// A concurrent call won the race and committed. Report its result.
			existing, getErr := svc.progressionRepo.GetEntitlement(subject.AccountID, contentType, contentID)
			if getErr != nil {
				return nil, shared.NewServiceUnavailableError(getErr, "Entitlement store unavailable")
			}
			account, accErr := svc.ledgerSvc.GetAccount(subject.AccountID)
			if accErr != nil {
				return nil, accErr
			}
			return &dto.UnlockResponse{Entitlement: existing, NewBalance: account.Balance, Duplicate: true}, nil
		default:
			return nil, shared.NewServiceUnavailableError(err, "Ledger unavailable")
		}
	}

	svc.markUnlocked(subject, contentType, contentID)

	log.WithFields(log.Fields{
		"account_id":  subject.AccountID,
		"content":     contentType + ":" + contentID,
		"solar_cost":  content.SolarCost,
		"new_balance": newBalance,
	}).Info("Content unlocked")

	return &dto.UnlockResponse{Entitlement: entitlement, NewBalance: newBalance}, nil
}

// markUnlocked moves the progression row to unlocked after an entitlement
// commits. Best effort: the entitlement is authoritative either way.
func (svc *ProgressionService) markUnlocked(subject shared.Subject, contentType, contentID string) {
	progression, err := svc.progressionRepo.GetProgressionForSubject(subject.Type, subject.ID, contentType, contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}
		log.WithError(err).Warn("Failed to load progression after unlock")
		return
	}

	progression.Status = shared.StatusUnlocked
	if err := svc.progressionRepo.UpdateProgression(progression); err != nil {
		log.WithError(err).Warn("Failed to mark progression unlocked")
	}
}

func (svc *ProgressionService) ListProgressions(subject shared.Subject) (*dto.ProgressionListResponse, error) {
	progressions, err := svc.progressionRepo.ListProgressionsForSubject(subject.Type, subject.ID)
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Progression store unavailable")
	}
	return &dto.ProgressionListResponse{Progressions: progressions}, nil
}

func (svc *ProgressionService) ListEntitlements(subject shared.Subject) (*dto.EntitlementListResponse, error) {
	if !subject.Registered() {
		return nil, shared.NewUnauthorizedError(
			errors.New("entitlements require a registered account"), "Registration required")
	}

	entitlements, err := svc.progressionRepo.ListEntitlementsForAccount(subject.AccountID)
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Entitlement store unavailable")
	}
	return &dto.EntitlementListResponse{Entitlements: entitlements}, nil
}

// timeRemaining returns whole seconds left on an active timer, never negative.
// Durations round up so a timer only reports zero once it has truly elapsed.
func (svc *ProgressionService) timeRemaining(progression *model.Progression) int {
	if progression.TimerEndTime == nil {
		return 0
	}
	remaining := progression.TimerEndTime.Sub(svc.now())
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}
