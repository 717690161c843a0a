package repositories

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/current-see/solar_api/model"
	"github.com/current-see/solar_api/shared"
)

var (
	// ErrInsufficientBalance means the conditional debit matched no row: the
	// account balance was below the requested amount. Nothing was mutated.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateOperation means the idempotency key already exists in the
	// ledger: a concurrent or earlier call already applied this operation.
	ErrDuplicateOperation = errors.New("duplicate ledger operation")
)

type LedgerRepository struct {
	BaseRepository
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (ds *LedgerRepository) CreateAccount(account *model.SolarAccount) (*model.SolarAccount, error) {
	if account.ID == "" {
		id, _ := uuid.NewV7()
		account.ID = id.String()
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()

	if err := ds.db.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func (ds *LedgerRepository) GetAccount(accountID string) (*model.SolarAccount, error) {
	var account model.SolarAccount
	if err := ds.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (ds *LedgerRepository) GetAccountByUserID(userID string) (*model.SolarAccount, error) {
	var account model.SolarAccount
	if err := ds.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (ds *LedgerRepository) ListAccounts() ([]model.SolarAccount, error) {
	var accounts []model.SolarAccount
	if err := ds.db.Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (ds *LedgerRepository) ListEntries(accountID string, limit int) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	query := ds.db.Where("account_id = ?", accountID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (ds *LedgerRepository) ListAllEntries() ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := ds.db.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// SumEntries recomputes an account balance from its ledger entries. Used by
// tests and the backup audit to verify the balance invariant.
func (ds *LedgerRepository) SumEntries(accountID string) (float64, error) {
	var sum *float64
	err := ds.db.Model(&model.LedgerEntry{}).
		Select("SUM(CASE WHEN entry_type = 'credit' THEN amount ELSE -amount END)").
		Where("account_id = ?", accountID).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// LeaderboardRow joins a Solar account with its owner's display name.
type LeaderboardRow struct {
	AccountID string
	FirstName string
	LastName  string
	Balance   float64
}

// TopAccounts returns non-anonymous accounts ordered by balance for the
// public leaderboard.
func (ds *LedgerRepository) TopAccounts(limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := ds.db.Model(&model.SolarAccount{}).
		Select("solar_accounts.id AS account_id, users.first_name, users.last_name, solar_accounts.balance").
		Joins("JOIN users ON users.id = solar_accounts.user_id AND users.is_anonymous = ?", false).
		Order("solar_accounts.balance DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Credit appends a credit entry and raises the balance in one transaction.
// The idempotency key makes reruns (daily distribution, registration bonus
// replays) collide instead of double-crediting.
func (ds *LedgerRepository) Credit(accountID string, amount float64, reason, idempotencyKey string) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry

	err := ds.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		res := tx.Model(&model.SolarAccount{}).
			Where("id = ?", accountID).
			Updates(map[string]interface{}{
				"balance":      gorm.Expr("balance + ?", amount),
				"total_earned": gorm.Expr("total_earned + ?", amount),
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var account model.SolarAccount
		if err := tx.Where("id = ?", accountID).First(&account).Error; err != nil {
			return err
		}

		id, _ := uuid.NewV7()
		entry = &model.LedgerEntry{
			ID:             id.String(),
			AccountID:      accountID,
			EntryType:      shared.EntryCredit,
			Amount:         amount,
			Reason:         reason,
			IdempotencyKey: idempotencyKey,
			BalanceAfter:   account.Balance,
			CreatedAt:      now,
		}
		if err := tx.Create(entry).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateOperation
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// UnlockPurchase is the unlock critical section: verify-and-debit the
// balance, append the debit entry under a deterministic idempotency key and
// create the entitlement, all inside one transaction. Under concurrent
// duplicate calls exactly one transaction commits a debit; the rest fail on
// the idempotency key (or the entitlement unique index) and roll back whole.
func (ds *LedgerRepository) UnlockPurchase(accountID, contentType, contentID string, cost float64, idempotencyKey string) (*model.Entitlement, float64, error) {
	var (
		entitlement *model.Entitlement
		newBalance  float64
	)

	err := ds.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		res := tx.Model(&model.SolarAccount{}).
			Where("id = ? AND balance >= ?", accountID, cost).
			Updates(map[string]interface{}{
				"balance":     gorm.Expr("balance - ?", cost),
				"total_spent": gorm.Expr("total_spent + ?", cost),
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		var account model.SolarAccount
		if err := tx.Where("id = ?", accountID).First(&account).Error; err != nil {
			return err
		}
		newBalance = account.Balance

		entryID, _ := uuid.NewV7()
		entry := &model.LedgerEntry{
			ID:             entryID.String(),
			AccountID:      accountID,
			EntryType:      shared.EntryDebit,
			Amount:         cost,
			Reason:         shared.ReasonUnlock,
			IdempotencyKey: idempotencyKey,
			BalanceAfter:   account.Balance,
			CreatedAt:      now,
		}
		if err := tx.Create(entry).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateOperation
			}
			return err
		}

		entID, _ := uuid.NewV7()
		entitlement = &model.Entitlement{
			ID:          entID.String(),
			AccountID:   accountID,
			ContentType: contentType,
			ContentID:   contentID,
			SolarCost:   cost,
			GrantedAt:   now,
			CreatedAt:   now,
		}
		if err := tx.Create(entitlement).Error; err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateOperation
			}
			return err
		}

		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return entitlement, newBalance, nil
}

func (ds *LedgerRepository) CreateBackupLog(backup *model.BackupLog) error {
	if backup.ID == "" {
		id, _ := uuid.NewV7()
		backup.ID = id.String()
	}
	backup.CreatedAt = time.Now()
	return ds.db.Create(backup).Error
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite and Postgres surface constraint violations differently.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
