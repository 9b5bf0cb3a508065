package model

import "time"

// SessionUserType identifies who a session token was issued to.
type SessionUserType string

const (
	SessionSchool   SessionUserType = "school"
	SessionCoaching SessionUserType = "coaching"
	SessionAdmin    SessionUserType = "admin"
)

// Session is an issued session token record.
type Session struct {
	Token     string          `db:"token"`
	UserID    string          `db:"user_id"`
	UserType  SessionUserType `db:"user_type"`
	ExpiresAt time.Time       `db:"expires_at"`
	IsRevoked bool            `db:"is_revoked"`
}

// Valid reports whether the session is usable at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && !s.IsRevoked && s.ExpiresAt.After(now)
}
