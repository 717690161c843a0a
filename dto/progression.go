package dto

import (
	"time"

	"github.com/current-see/solar_api/model"
)

// AccessStatusResponse is the read-only snapshot returned by the access
// check. TimerEndTime is only present while a timer is running; the client
// interpolates remaining time from it, never from its own countdown.
type AccessStatusResponse struct {
	Status        string             `json:"status"`
	AccessType    string             `json:"access_type"`
	TimerEndTime  *time.Time         `json:"timer_end_time,omitempty"`
	TimeRemaining int                `json:"time_remaining"` // seconds, derived server-side
	SolarCost     float64            `json:"solar_cost"`
	Title         string             `json:"title,omitempty"`
	Progression   *model.Progression `json:"progression,omitempty"`
	Entitlement   *model.Entitlement `json:"entitlement,omitempty"`
	UserBalance   *float64           `json:"user_balance,omitempty"`
}

type StartTimerResponse struct {
	Progression *model.Progression `json:"progression"`
	// AlreadyActive reports that an existing timer was returned unchanged.
	AlreadyActive bool `json:"already_active"`
}

type UnlockResponse struct {
	Entitlement *model.Entitlement `json:"entitlement"`
	NewBalance  float64            `json:"new_balance"`
	// Duplicate reports that the entitlement already existed and no Solar
	// moved on this call.
	Duplicate bool `json:"duplicate"`
}

type ProgressionListResponse struct {
	Progressions []model.Progression `json:"progressions"`
}

type EntitlementListResponse struct {
	Entitlements []model.Entitlement `json:"entitlements"`
}
