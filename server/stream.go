package server

import (
	"encoding/json"
	"sync"

	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/events"
	"github.com/jrsteele09/go-portfolio-auth/sessions"
	"github.com/rs/zerolog/log"
)

// Views the browser can be told to show
const (
	ViewAuthForm = "authForm"
	ViewMainApp  = "mainApp"
)

const (
	eventRender  = "render"
	eventUserBar = "userBar"

	streamBuffer = 32
)

type message struct {
	event string
	data  []byte
}

type renderPayload struct {
	View string `json:"view"`
}

type userBarPayload struct {
	User *auth.Identity `json:"user"`
}

// UI implements sessions.UI for browsers connected to the event stream. The
// last rendered view and user bar are replayed to every new stream so a
// reloaded page starts where the session is.
type UI struct {
	mu      sync.Mutex
	nextID  int
	streams map[int]chan message
	view    string
	userBar *auth.Identity
}

var _ sessions.UI = (*UI)(nil)

func NewUI() *UI {
	return &UI{
		streams: make(map[int]chan message),
		view:    ViewAuthForm,
	}
}

func (u *UI) RenderAuthForm() {
	u.mu.Lock()
	u.view = ViewAuthForm
	u.userBar = nil
	u.mu.Unlock()
	u.broadcast(eventRender, renderPayload{View: ViewAuthForm})
}

func (u *UI) RenderMainApp() {
	u.mu.Lock()
	u.view = ViewMainApp
	u.mu.Unlock()
	u.broadcast(eventRender, renderPayload{View: ViewMainApp})
}

func (u *UI) RenderUserBar(identity *auth.Identity) {
	u.mu.Lock()
	u.userBar = identity
	u.mu.Unlock()
	u.broadcast(eventUserBar, userBarPayload{User: identity})
}

// View returns the view last rendered
func (u *UI) View() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.view
}

// publish forwards a bus event to every stream
func (u *UI) publish(e events.Event) {
	u.broadcast(string(e.Kind()), e)
}

// subscribe opens a stream primed with the current view
func (u *UI) subscribe() (<-chan message, func()) {
	ch := make(chan message, streamBuffer)

	u.mu.Lock()
	id := u.nextID
	u.nextID++
	u.streams[id] = ch
	initial := []message{encode(eventRender, renderPayload{View: u.view})}
	if u.userBar != nil {
		initial = append(initial, encode(eventUserBar, userBarPayload{User: u.userBar}))
	}
	for _, m := range initial {
		ch <- m
	}
	u.mu.Unlock()

	return ch, func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		if _, ok := u.streams[id]; ok {
			delete(u.streams, id)
			close(ch)
		}
	}
}

// closeAll ends every open stream
func (u *UI) closeAll() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, ch := range u.streams {
		delete(u.streams, id)
		close(ch)
	}
}

func (u *UI) broadcast(event string, payload any) {
	m := encode(event, payload)

	u.mu.Lock()
	defer u.mu.Unlock()
	for id, ch := range u.streams {
		select {
		case ch <- m:
		default:
			log.Warn().Int("stream", id).Str("event", event).Msg("Event stream is full, dropping event")
		}
	}
}

func encode(event string, payload any) message {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Err(err).Str("event", event).Msg("Failed to encode stream event")
		data = []byte("{}")
	}
	return message{event: event, data: data}
}
