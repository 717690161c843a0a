package model

import "time"

type User struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Email       string `json:"email" gorm:"uniqueIndex;not null"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Password    string `json:"-"`
	IsAnonymous bool   `json:"is_anonymous" gorm:"default:false"` // hidden from the public leaderboard
	Role        string `json:"role" gorm:"default:member;size:16"`

	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
