package shared

const (
	UserID    = "user_id"
	SessionID = "session_id"

	SubjectTypeSession = "session"
	SubjectTypeAccount = "account"

	StatusLocked        = "locked"
	StatusTimerActive   = "timer_active"
	StatusTimerComplete = "timer_complete"
	StatusUnlocked      = "unlocked"

	AccessPreview       = "preview"
	AccessTimerActive   = "timer_active"
	AccessTimerComplete = "timer_complete"
	AccessFull          = "full"

	EntryDebit  = "debit"
	EntryCredit = "credit"

	ReasonUnlock            = "content_unlock"
	ReasonRegistrationBonus = "registration_bonus"
	ReasonDailyDistribution = "daily_distribution"
)
