// Package userdata scopes the portfolio and settings of the signed-in
// identity. Every operation is keyed by the identity it is given; nothing
// here remembers who is logged in.
package userdata

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/users"
	"github.com/shopspring/decimal"
)

// Holding is one position of a portfolio
type Holding struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	Currency     string          `json:"currency,omitempty"`
	AddedAt      time.Time       `json:"addedAt"`
}

// ScopedData is everything stored for one owner. Portfolio order is kept.
type ScopedData struct {
	Owner     string         `json:"owner"`
	Portfolio []Holding      `json:"portfolio"`
	Settings  users.Settings `json:"settings"`
}

// SettingsPatch changes individual settings; nil fields are left as they are
type SettingsPatch struct {
	Theme                *string `json:"theme,omitempty"`
	Currency             *string `json:"currency,omitempty"`
	NotificationsEnabled *bool   `json:"notifications,omitempty"`
}

// Apply returns s with the patch's fields overlaid, last write wins per field
func (p SettingsPatch) Apply(s users.Settings) users.Settings {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.Currency != nil {
		s.Currency = strings.ToUpper(*p.Currency)
	}
	if p.NotificationsEnabled != nil {
		s.NotificationsEnabled = *p.NotificationsEnabled
	}
	return s
}

// Validate checks the theme name and the ISO-4217 currency code
func (p SettingsPatch) Validate() error {
	if p.Theme != nil && *p.Theme != users.ThemeDark && *p.Theme != users.ThemeLight {
		return auth.ValidationFailed("theme", "unknown theme")
	}
	if p.Currency != nil && money.GetCurrency(*p.Currency) == nil {
		return auth.ValidationFailed("currency", "unknown currency code")
	}
	return nil
}

// Update is a change to an owner's data. A nil Portfolio leaves the stored
// portfolio untouched; a non-nil one replaces it.
type Update struct {
	Portfolio *[]Holding    `json:"portfolio,omitempty"`
	Settings  SettingsPatch `json:"settings"`
}

func validatePortfolio(holdings []Holding) error {
	for _, h := range holdings {
		if strings.TrimSpace(h.Symbol) == "" {
			return auth.ValidationFailed("portfolio", "every holding needs a symbol")
		}
		if h.Quantity.IsNegative() {
			return auth.ValidationFailed("portfolio", "quantity cannot be negative")
		}
		if h.AveragePrice.IsNegative() {
			return auth.ValidationFailed("portfolio", "price cannot be negative")
		}
		if h.Currency != "" && money.GetCurrency(h.Currency) == nil {
			return auth.ValidationFailed("portfolio", "unknown currency code "+h.Currency)
		}
	}
	return nil
}
