package model

import "time"

// VisitorSession is the anonymous subject: a device-keyed session that can
// hold progressions but never entitlements. On registration the session is
// deactivated and its progressions are left behind (entitlements are
// account-scoped only).
type VisitorSession struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	DeviceID     string    `json:"device_id" gorm:"index;not null"`
	SessionStart time.Time `json:"session_start" gorm:"not null"`
	LastActivity time.Time `json:"last_activity" gorm:"not null"`
	IsActive     bool      `json:"is_active" gorm:"not null"`

	// PromotedToUserID is set when the visitor registers.
	PromotedToUserID string `json:"promoted_to_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}
