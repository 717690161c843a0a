package shared

// Subject identifies who a progression belongs to. Anonymous visitors are
// keyed by session, registered users by their Solar account. AccountID is
// empty for anonymous subjects.
type Subject struct {
	Type      string
	ID        string
	AccountID string
}

func SessionSubject(sessionID string) Subject {
	return Subject{Type: SubjectTypeSession, ID: sessionID}
}

func AccountSubject(accountID string) Subject {
	return Subject{Type: SubjectTypeAccount, ID: accountID, AccountID: accountID}
}

func (s Subject) Registered() bool {
	return s.AccountID != ""
}
