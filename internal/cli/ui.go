package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/events"
	"github.com/jrsteele09/go-portfolio-auth/sessions"
)

// TerminalUI prints render hooks and notifications as plain lines
type TerminalUI struct {
	mu  sync.Mutex
	out io.Writer
}

var _ sessions.UI = (*TerminalUI)(nil)

func NewTerminalUI(out io.Writer) *TerminalUI {
	return &TerminalUI{out: out}
}

func (u *TerminalUI) RenderAuthForm() {
	u.println("-- signed out: login, register or demo --")
}

func (u *TerminalUI) RenderMainApp() {
	u.println("-- portfolio --")
}

func (u *TerminalUI) RenderUserBar(identity *auth.Identity) {
	if identity == nil {
		return
	}
	u.println(fmt.Sprintf("signed in as %s <%s>", identity.DisplayName, identity.Email))
}

// Attach prints notifications published on bus
func (u *TerminalUI) Attach(bus *events.Bus) (unsubscribe func()) {
	return bus.Subscribe(events.KindNotification, func(e events.Event) {
		n := e.(events.Notification)
		prefix := "ok"
		if n.Level == events.LevelError {
			prefix = "error"
		}
		u.println(fmt.Sprintf("[%s] %s", prefix, n.Message))
	})
}

func (u *TerminalUI) println(line string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out, line)
}
