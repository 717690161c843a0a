package model

import "time"

// SolarAccount holds the spendable balance for one registered account.
// Balance is always the sum of the account's ledger entries and never goes
// negative through an engine-initiated debit.
type SolarAccount struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"uniqueIndex;not null"`
	Balance     float64   `json:"balance" gorm:"not null;default:0"`
	TotalEarned float64   `json:"total_earned" gorm:"not null;default:0"`
	TotalSpent  float64   `json:"total_spent" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

// LedgerEntry is one append-only row in an account's transaction log. The
// idempotency key is deterministic per business operation so a retried debit
// or credit collides on the unique index instead of applying twice.
type LedgerEntry struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	AccountID      string    `json:"account_id" gorm:"not null;index"`
	EntryType      string    `json:"entry_type" gorm:"not null;size:8"`
	Amount         float64   `json:"amount" gorm:"not null"`
	Reason         string    `json:"reason" gorm:"not null;size:64"`
	IdempotencyKey string    `json:"idempotency_key" gorm:"uniqueIndex;not null"`
	BalanceAfter   float64   `json:"balance_after" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null"`
}

// BackupLog records every ledger snapshot pushed to object storage.
type BackupLog struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	ObjectKey  string    `json:"object_key" gorm:"not null"`
	EntryCount int       `json:"entry_count" gorm:"not null"`
	SizeBytes  int64     `json:"size_bytes" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null"`
}
