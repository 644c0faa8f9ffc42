package sessions

import (
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
)

// State of the session manager
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateExpired         State = "expired" // transient, immediately followed by unauthenticated
)

// Session is the single live session of a Manager. Every authenticated
// operation slides ExpiresAt forward by the manager's timeout.
type Session struct {
	ID        string         // Unique session identifier (UUID)
	Identity  *auth.Identity // Authenticated principal
	IssuedAt  time.Time      // When the session was established
	ExpiresAt time.Time      // Sliding expiry
}

// Valid reports whether the session has not yet expired at now
func (s *Session) Valid(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Identity = cloneIdentity(s.Identity)
	return &c
}

// Status is a point-in-time view of a Manager
type Status struct {
	State   State
	Session *Session // nil unless authenticated
}

func cloneIdentity(id *auth.Identity) *auth.Identity {
	if id == nil {
		return nil
	}
	c := *id
	if id.LastLoginAt != nil {
		t := *id.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
