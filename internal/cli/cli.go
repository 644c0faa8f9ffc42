// Package cli is a line-oriented front end over the session manager
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/auth/local"
	"github.com/jrsteele09/go-portfolio-auth/events"
	"github.com/jrsteele09/go-portfolio-auth/internal/utils"
	"github.com/jrsteele09/go-portfolio-auth/sessions"
	"github.com/jrsteele09/go-portfolio-auth/userdata"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const msgPasswordsDiffer = "Passwords do not match"

// App reads commands from in and drives manager
type App struct {
	manager      *sessions.Manager
	kind         auth.BackendKind
	in           *bufio.Reader
	out          io.Writer
	readPassword PasswordReader
	nowTime      func() time.Time
}

type AppOption func(*App)

// WithPasswordReader reads secrets without echo
func WithPasswordReader(r PasswordReader) AppOption {
	return func(a *App) {
		a.readPassword = r
	}
}

// WithNowTime sets the clock used to stamp new holdings
func WithNowTime(nowFunc func() time.Time) AppOption {
	return func(a *App) {
		a.nowTime = nowFunc
	}
}

func NewApp(manager *sessions.Manager, kind auth.BackendKind, in io.Reader, out io.Writer, options ...AppOption) (*App, error) {
	if manager == nil {
		return nil, errors.New("[cli.NewApp] session manager is required")
	}
	a := &App{
		manager: manager,
		kind:    kind,
		in:      bufio.NewReader(in),
		out:     out,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Run reads commands until exit or end of input
func (a *App) Run(ctx context.Context) {
	for {
		fmt.Fprintf(a.out, "portfolio %s> ", a.status())
		line, err := a.in.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			fmt.Fprintln(a.out)
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if !a.dispatch(ctx, fields[0], fields[1:]) {
			return
		}
	}
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) bool {
	var err error
	switch cmd {
	case "help":
		a.help()
	case "login":
		err = a.login(ctx)
	case "demo":
		err = a.demo(ctx)
	case "register":
		err = a.register(ctx)
	case "logout":
		a.manager.Logout(ctx, true)
	case "passwd":
		err = a.changePassword(ctx)
	case "whoami":
		a.whoami(ctx)
	case "portfolio":
		err = a.portfolio(ctx)
	case "add":
		err = a.addHolding(ctx, args)
	case "theme":
		err = a.setting(ctx, args, func(v string) userdata.SettingsPatch { return userdata.SettingsPatch{Theme: utils.Ptr(v)} })
	case "currency":
		err = a.setting(ctx, args, func(v string) userdata.SettingsPatch { return userdata.SettingsPatch{Currency: utils.Ptr(v)} })
	case "exit", "quit":
		fmt.Fprintln(a.out, "Bye!")
		return false
	default:
		fmt.Fprintln(a.out, "Unknown command:", cmd)
	}
	a.report(err)
	return true
}

// report prints failures the manager did not already announce
func (a *App) report(err error) {
	if err == nil {
		return
	}
	if auth.KindOf(err) != "" {
		log.Debug().Err(err).Msg("Command failed")
		return
	}
	fmt.Fprintln(a.out, "error:", err)
}

func (a *App) status() string {
	status := a.manager.Current()
	if status.Session == nil {
		return "(signed out)"
	}
	return "(" + status.Session.Identity.ID + ")"
}

func (a *App) help() {
	if a.manager.Current().State == sessions.StateAuthenticated {
		fmt.Fprintln(a.out, "Commands: portfolio, add SYMBOL QTY PRICE [CUR], theme dark|light, currency CODE, passwd, whoami, logout, exit")
		return
	}
	if a.kind == auth.BackendLocal {
		fmt.Fprintln(a.out, "Commands: login, demo, register, exit")
		return
	}
	fmt.Fprintln(a.out, "Commands: login, register, exit")
}

func (a *App) keyPrompt() string {
	if a.kind == auth.BackendRemote {
		return "Email"
	}
	return "Username"
}

func (a *App) login(ctx context.Context) error {
	key, err := getText(a.in, a.out, a.keyPrompt())
	if err != nil {
		return err
	}
	secret, err := a.getPassword("Password")
	if err != nil {
		return err
	}
	_, err = a.manager.Login(ctx, auth.Credentials{Key: key, Secret: secret})
	return err
}

// demo signs in with the seeded demo account
func (a *App) demo(ctx context.Context) error {
	if a.kind != auth.BackendLocal {
		fmt.Fprintln(a.out, "The demo account only exists on the local backend")
		return nil
	}
	_, err := a.manager.Login(ctx, local.DemoCredentials)
	return err
}

func (a *App) register(ctx context.Context) error {
	var profile auth.Profile
	var err error
	if a.kind == auth.BackendLocal {
		if profile.IdentityKey, err = getText(a.in, a.out, "Username"); err != nil {
			return err
		}
	}
	if profile.Email, err = getText(a.in, a.out, "Email"); err != nil {
		return err
	}
	if profile.DisplayName, err = getText(a.in, a.out, "Full name"); err != nil {
		return err
	}
	if profile.Secret, err = a.getPassword("Password"); err != nil {
		return err
	}
	confirm, err := a.getPassword("Confirm password")
	if err != nil {
		return err
	}
	if confirm != profile.Secret {
		a.manager.Bus().Publish(events.Notification{Message: msgPasswordsDiffer, Level: events.LevelError})
		return nil
	}
	_, err = a.manager.Register(ctx, profile)
	return err
}

func (a *App) changePassword(ctx context.Context) error {
	oldSecret, err := a.getPassword("Current password")
	if err != nil {
		return err
	}
	newSecret, err := a.getPassword("New password")
	if err != nil {
		return err
	}
	confirm, err := a.getPassword("Confirm new password")
	if err != nil {
		return err
	}
	if confirm != newSecret {
		a.manager.Bus().Publish(events.Notification{Message: msgPasswordsDiffer, Level: events.LevelError})
		return nil
	}
	return a.manager.ChangePassword(ctx, oldSecret, newSecret)
}

func (a *App) whoami(ctx context.Context) {
	if !a.manager.RequireAuth(ctx) {
		return
	}
	s := a.manager.Current().Session
	if s == nil {
		return
	}
	fmt.Fprintf(a.out, "%s (%s) <%s>, session expires %s\n",
		s.Identity.DisplayName, s.Identity.ID, s.Identity.Email, s.ExpiresAt.Format(time.Kitchen))
}

func (a *App) portfolio(ctx context.Context) error {
	data, err := a.manager.UserData(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "theme: %s, currency: %s, notifications: %t\n",
		data.Settings.Theme, data.Settings.Currency, data.Settings.NotificationsEnabled)
	if len(data.Portfolio) == 0 {
		fmt.Fprintln(a.out, "no holdings")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tQUANTITY\tAVG PRICE\tCOST")
	for _, h := range data.Portfolio {
		currency := h.Currency
		if currency == "" {
			currency = data.Settings.Currency
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\n", h.Symbol, h.Quantity, h.AveragePrice,
			h.Quantity.Mul(h.AveragePrice).StringFixed(2), currency)
	}
	return tw.Flush()
}

func (a *App) addHolding(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: add SYMBOL QUANTITY PRICE [CURRENCY]")
	}
	quantity, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	price, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	holding := userdata.Holding{
		Symbol:       strings.ToUpper(args[0]),
		Quantity:     quantity,
		AveragePrice: price,
		AddedAt:      a.nowTime().UTC(),
	}
	if len(args) > 3 {
		holding.Currency = strings.ToUpper(args[3])
	}

	data, err := a.manager.UserData(ctx)
	if err != nil {
		return err
	}
	portfolio := append(data.Portfolio, holding)
	_, err = a.manager.SaveUserData(ctx, userdata.Update{Portfolio: &portfolio})
	return err
}

func (a *App) setting(ctx context.Context, args []string, patch func(string) userdata.SettingsPatch) error {
	if len(args) != 1 {
		return errors.New("expected exactly one value")
	}
	data, err := a.manager.SaveUserData(ctx, userdata.Update{Settings: patch(args[0])})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "theme: %s, currency: %s\n", data.Settings.Theme, data.Settings.Currency)
	return nil
}
