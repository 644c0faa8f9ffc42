// Package events carries session and data notifications from the session
// manager to whatever presents them (an SSE stream, a terminal, a test).
package events

import (
	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/userdata"
	"github.com/jrsteele09/go-portfolio-auth/users"
)

// Kind names an event type. Subscribers register per kind.
type Kind string

const (
	KindAuthStateChanged Kind = "authStateChanged"
	KindNotification     Kind = "notification"
	KindDataReady        Kind = "dataReady"
)

// Event is anything published on a Bus
type Event interface {
	Kind() Kind
}

// AuthStateChanged is published on every login and logout. Identity is nil
// after a logout or expiry.
type AuthStateChanged struct {
	Identity *auth.Identity `json:"user"`
}

func (AuthStateChanged) Kind() Kind { return KindAuthStateChanged }

// Level is the severity of a Notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a one-line message for the user
type Notification struct {
	Message string `json:"message"`
	Level   Level  `json:"type"`
}

func (Notification) Kind() Kind { return KindNotification }

// DataReady is published once the signed-in identity's data has loaded
type DataReady struct {
	Identity      *auth.Identity     `json:"user"`
	UserData      users.Settings     `json:"userData"`
	PortfolioData []userdata.Holding `json:"portfolioData"`
}

func (DataReady) Kind() Kind { return KindDataReady }
