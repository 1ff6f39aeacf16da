package models

import "time"

// Session is one authenticated login. It is invalidated in place and never
// deleted.
type Session struct {
	ID             string
	UserID         string
	ExpiresAt      time.Time
	LastActivityAt time.Time
	UserAgent      string
	IPAddress      string
	IsValid        bool
	CreatedAt      time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.IsValid && now.Before(s.ExpiresAt)
}
