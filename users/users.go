package users

import (
	"time"
)

// Theme names understood by the front end
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Settings are the per-user application preferences
type Settings struct {
	Theme                string `json:"theme"`         // UI theme name
	Currency             string `json:"currency"`      // ISO-4217 display currency
	NotificationsEnabled bool   `json:"notifications"` // Show toast notifications
}

// DefaultSettings returns the settings every new account starts with
func DefaultSettings() Settings {
	return Settings{
		Theme:                ThemeDark,
		Currency:             "USD",
		NotificationsEnabled: true,
	}
}

// User is the durable credential record of one local account. The field
// names match the persisted collection written by earlier versions of the
// application, so existing stores load unchanged.
type User struct {
	IdentityKey      string     `json:"username"`           // Unique key within a store
	CredentialSecret string     `json:"password,omitempty"` // Opaque stored secret, see credentials.go
	Email            string     `json:"email"`
	DisplayName      string     `json:"displayName"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLoginAt      *time.Time `json:"lastLogin"` // nil until the first login
	Settings         Settings   `json:"settings"`
}

// Public returns a copy of the user without the credential secret
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	c := u.Clone()
	c.CredentialSecret = ""
	return c
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
