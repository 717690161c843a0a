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

// LedgerService fronts the Solar accounts and their append-only entry log.
// All balance mutations flow through the repository transaction helpers so a
// balance can never change without a matching ledger entry.
type LedgerService struct {
	context.DefaultService

	sqlSvc     SqlStore
	ledgerRepo *repositories.LedgerRepository
}

const LEDGER_SVC = "ledger_svc"

// RegistrationBonus is credited once per account at creation.
const RegistrationBonus = 100.0

func (svc LedgerService) Id() string {
	return LEDGER_SVC
}

func (svc *LedgerService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *LedgerService) Start() error {
	svc.sqlSvc = svc.Service(StoreID()).(SqlStore)
	svc.ledgerRepo = repositories.NewLedgerRepository(svc.sqlSvc.Db())
	return nil
}

func (svc *LedgerService) Repo() *repositories.LedgerRepository {
	return svc.ledgerRepo
}

// CreateAccountWithBonus opens a Solar account for a newly registered user and
// credits the registration bonus. The bonus idempotency key makes a retried
// registration credit at most once.
func (svc *LedgerService) CreateAccountWithBonus(userID string) (*model.SolarAccount, error) {
	account, err := svc.ledgerRepo.CreateAccount(&model.SolarAccount{UserID: userID})
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to create Solar account")
	}

	key := fmt.Sprintf("bonus:%s", account.ID)
	if _, err := svc.ledgerRepo.Credit(account.ID, RegistrationBonus, shared.ReasonRegistrationBonus, key); err != nil {
		if !errors.Is(err, repositories.ErrDuplicateOperation) {
			return nil, shared.NewInternalError(err, "Failed to credit registration bonus")
		}
	}

	return svc.GetAccount(account.ID)
}

func (svc *LedgerService) GetAccount(accountID string) (*model.SolarAccount, error) {
	account, err := svc.ledgerRepo.GetAccount(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "Solar account not found")
		}
		return nil, shared.NewServiceUnavailableError(err, "Ledger unavailable")
	}
	return account, nil
}

func (svc *LedgerService) GetAccountForUser(userID string) (*model.SolarAccount, error) {
	account, err := svc.ledgerRepo.GetAccountByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "Solar account not found")
		}
		return nil, shared.NewServiceUnavailableError(err, "Ledger unavailable")
	}
	return account, nil
}

func (svc *LedgerService) GetBalance(userID string) (*dto.BalanceResponse, error) {
	account, err := svc.GetAccountForUser(userID)
	if err != nil {
		return nil, err
	}

	return &dto.BalanceResponse{
		AccountID:   account.ID,
		Balance:     account.Balance,
		TotalEarned: account.TotalEarned,
		TotalSpent:  account.TotalSpent,
	}, nil
}

func (svc *LedgerService) GetTransactionHistory(userID string, limit int) (*dto.TransactionHistoryResponse, error) {
	account, err := svc.GetAccountForUser(userID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	entries, err := svc.ledgerRepo.ListEntries(account.ID, limit)
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Ledger unavailable")
	}

	return &dto.TransactionHistoryResponse{
		Entries: entries,
		Total:   len(entries),
	}, nil
}

func (svc *LedgerService) GetLeaderboard(limit int) (*dto.LeaderboardResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	rows, err := svc.ledgerRepo.TopAccounts(limit)
	if err != nil {
		return nil, shared.NewServiceUnavailableError(err, "Ledger unavailable")
	}

	entries := make([]dto.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, dto.LeaderboardEntry{
			Rank:      i + 1,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Balance:   row.Balance,
		})
	}

	return &dto.LeaderboardResponse{Entries: entries}, nil
}

// VerifyAccountIntegrity recomputes an account balance from its entries and
// compares it against the stored balance. Used by the admin surface and tests.
func (svc *LedgerService) VerifyAccountIntegrity(accountID string) error {
	account, err := svc.GetAccount(accountID)
	if err != nil {
		return err
	}

	sum, err := svc.ledgerRepo.SumEntries(accountID)
	if err != nil {
		return shared.NewServiceUnavailableError(err, "Ledger unavailable")
	}

	if diff := account.Balance - sum; diff > 1e-9 || diff < -1e-9 {
		log.WithFields(log.Fields{
			"account_id": accountID,
			"balance":    account.Balance,
			"entry_sum":  sum,
		}).Error("Ledger integrity violation")
		return shared.NewInternalError(
			fmt.Errorf("account %s balance %.4f does not match entry sum %.4f", accountID, account.Balance, sum),
			"Ledger integrity violation")
	}
	return nil
}

// Snapshot returns the full ledger state for backup.
func (svc *LedgerService) Snapshot() ([]model.SolarAccount, []model.LedgerEntry, error) {
	accounts, err := svc.ledgerRepo.ListAccounts()
	if err != nil {
		return nil, nil, err
	}
	entries, err := svc.ledgerRepo.ListAllEntries()
	if err != nil {
		return nil, nil, err
	}
	return accounts, entries, nil
}

func (svc *LedgerService) RecordBackup(objectKey string, entryCount int, sizeBytes int64) error {
	return svc.ledgerRepo.CreateBackupLog(&model.BackupLog{
		ObjectKey:  objectKey,
		EntryCount: entryCount,
		SizeBytes:  sizeBytes,
		CreatedAt:  time.Now(),
	})
}
