package model

import "time"

// Progression is the transient timer/access state for one subject and one
// piece of gated content. A subject is either an anonymous session or a
// registered account; exactly one row exists per (subject, content) pair.
type Progression struct {
	ID          string `json:"id" gorm:"primaryKey"`
	SubjectType string `json:"subject_type" gorm:"not null;uniqueIndex:idx_subject_content;size:16"`
	SubjectID   string `json:"subject_id" gorm:"not null;uniqueIndex:idx_subject_content"`
	ContentType string `json:"content_type" gorm:"not null;uniqueIndex:idx_subject_content;size:64"`
	ContentID   string `json:"content_id" gorm:"not null;uniqueIndex:idx_subject_content;size:64"`

	Status string `json:"status" gorm:"not null;size:16"`

	// TimerEndTime is set once by the engine when a timer starts and is the
	// single source of truth for remaining time. Clients only display it.
	TimerEndTime *time.Time `json:"timer_end_time,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// Entitlement is a permanent, account-scoped unlock record. Created exactly
// once by the unlock operation and never deleted; its presence overrides any
// progression state for the same content.
type Entitlement struct {
	ID          string `json:"id" gorm:"primaryKey"`
	AccountID   string `json:"account_id" gorm:"not null;uniqueIndex:idx_account_content"`
	ContentType string `json:"content_type" gorm:"not null;uniqueIndex:idx_account_content;size:64"`
	ContentID   string `json:"content_id" gorm:"not null;uniqueIndex:idx_account_content;size:64"`

	SolarCost float64   `json:"solar_cost" gorm:"not null"`
	GrantedAt time.Time `json:"granted_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}
