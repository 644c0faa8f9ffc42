package sessions

import "github.com/jrsteele09/go-portfolio-auth/auth"

// UI is the presentation layer the manager drives on state changes
type UI interface {
	RenderAuthForm()
	RenderMainApp()
	RenderUserBar(identity *auth.Identity)
}

// NopUI ignores every hook
type NopUI struct{}

func (NopUI) RenderAuthForm()                {}
func (NopUI) RenderMainApp()                 {}
func (NopUI) RenderUserBar(_ *auth.Identity) {}
