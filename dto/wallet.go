package dto

import (
	"time"

	"github.com/current-see/solar_api/model"
)

type BalanceResponse struct {
	AccountID   string  `json:"account_id"`
	Balance     float64 `json:"balance"`
	TotalEarned float64 `json:"total_earned"`
	TotalSpent  float64 `json:"total_spent"`
}

type TransactionHistoryResponse struct {
	Entries []model.LedgerEntry `json:"entries"`
	Total   int                 `json:"total"`
}

type LeaderboardEntry struct {
	Rank      int     `json:"rank"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Balance   float64 `json:"balance"`
}

type LeaderboardResponse struct {
	Entries []LeaderboardEntry `json:"entries"`
}

type DistributionRunResponse struct {
	Date             string  `json:"date"`
	AccountsCredited int     `json:"accounts_credited"`
	AccountsSkipped  int     `json:"accounts_skipped"`
	SolarPerAccount  float64 `json:"solar_per_account"`
}

type BackupResponse struct {
	ObjectKey  string    `json:"object_key"`
	EntryCount int       `json:"entry_count"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateContentRequest struct {
	ContentType   string  `json:"content_type" validate:"required,min=1,max=64"`
	ContentID     string  `json:"content_id" validate:"required,min=1,max=64"`
	Title         string  `json:"title" validate:"required"`
	Description   string  `json:"description"`
	SolarCost     float64 `json:"solar_cost" validate:"gte=0"`
	TimerDuration int     `json:"timer_duration" validate:"gt=0"`
}

func (r CreateContentRequest) Validate() error {
	return GetValidator().Struct(r)
}
