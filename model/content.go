package model

import "time"

// GatedContent is the catalog row for one timer-gated item. SolarCost and
// TimerDuration are authoritative here; anything a client sends for either is
// a display hint only.
type GatedContent struct {
	ContentType string `json:"content_type" gorm:"primaryKey;size:64"`
	ContentID   string `json:"content_id" gorm:"primaryKey;size:64"`

	Title         string  `json:"title"`
	Description   string  `json:"description" gorm:"type:text"`
	SolarCost     float64 `json:"solar_cost" gorm:"not null"`
	TimerDuration int     `json:"timer_duration" gorm:"not null"` // seconds
	IsActive      bool    `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
