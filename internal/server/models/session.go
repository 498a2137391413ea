package models

import "time"

// SessionStatus is the lifecycle state of a login session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionRevoked SessionStatus = "revoked"
	SessionExpired SessionStatus = "expired"
)

// Session is one login: an access/refresh token pair sharing the JTI. Only
// token hashes are stored.
type Session struct {
	ID                  string
	UserID              string
	JTI                 string
	TokenHash           string
	RefreshTokenHash    string
	TokenExpired        time.Time
	RefreshTokenExpired time.Time
	RevokedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Status derives the state at now. Revocation wins over expiry; a session is
// expired once its refresh token is.
func (s *Session) Status(now time.Time) SessionStatus {
	if s.RevokedAt != nil {
		return SessionRevoked
	}
	if !now.Before(s.RefreshTokenExpired) {
		return SessionExpired
	}
	return SessionActive
}
