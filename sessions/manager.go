// Package sessions owns the single time-limited session of the application:
// login, registration, sliding expiry, logout and the hand-off to the user's
// scoped data.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-portfolio-auth/auth"
	"github.com/jrsteele09/go-portfolio-auth/events"
	apperrors "github.com/jrsteele09/go-portfolio-auth/internal/errors"
	"github.com/jrsteele09/go-portfolio-auth/userdata"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout is the sliding session lifetime
const DefaultTimeout = 30 * time.Minute

var (
	// ErrBusy is returned when a login, registration or password change is
	// already in flight.
	ErrBusy = errors.New("another authentication request is in progress")

	// ErrSuperseded is returned when a login or registration finished after
	// the session changed underneath it; the result was discarded.
	ErrSuperseded = errors.New("session changed while the request was pending")
)

// User-facing notification texts
const (
	msgWelcome         = "Welcome %s!"
	msgRegistered      = "User registered successfully"
	msgLoggedOut       = "You have logged out successfully"
	msgExpired         = "Your session has expired"
	msgAuthRequired    = "You must log in to perform this action"
	msgPasswordChanged = "Password changed successfully"
)

// Manager is the session state machine
// Unauthenticated -> Authenticated -> Expired -> Unauthenticated.
//
// The mutex is never held across a backend, store or UI call. generation
// changes whenever a session is established or ended, so results of calls
// that were pending across such a change are recognised and discarded.
type Manager struct {
	backend   auth.Backend
	scope     *userdata.Scope
	snapshots *SnapshotStore
	bus       *events.Bus
	ui        UI
	clock     Clock
	timeout   time.Duration

	mu         sync.Mutex
	state      State
	session    *Session
	generation uint64
	timer      Timer
	timerSeq   uint64
	inFlight   bool

	unsubscribe func()
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithClock replaces the wall clock (primarily for testing)
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithTimeout sets the sliding session lifetime
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithUI sets the presentation hooks
func WithUI(ui UI) ManagerOption {
	return func(m *Manager) {
		m.ui = ui
	}
}

// WithBus sets the event bus
func WithBus(bus *events.Bus) ManagerOption {
	return func(m *Manager) {
		m.bus = bus
	}
}

func NewManager(backend auth.Backend, scope *userdata.Scope, snapshots *SnapshotStore, options ...ManagerOption) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("[sessions.NewManager] backend is required")
	}
	if scope == nil {
		return nil, errors.New("[sessions.NewManager] userdata scope is required")
	}
	if snapshots == nil {
		return nil, errors.New("[sessions.NewManager] snapshot store is required")
	}

	m := &Manager{
		backend:   backend,
		scope:     scope,
		snapshots: snapshots,
		bus:       events.NewBus(),
		ui:        NopUI{},
		clock:     SystemClock{},
		timeout:   DefaultTimeout,
		state:     StateUnauthenticated,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.timeout <= 0 {
		return nil, fmt.Errorf("[sessions.NewManager] timeout must be positive, got %s", m.timeout)
	}

	if notifier, ok := backend.(auth.StateNotifier); ok {
		m.unsubscribe = notifier.OnStateChange(m.onProviderState)
	}
	return m, nil
}

// Bus returns the bus the manager publishes on
func (m *Manager) Bus() *events.Bus {
	return m.bus
}

// Close stops the expiry timer and detaches from the backend
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopTimerLocked()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Current returns a copy of the manager's state and session
func (m *Manager) Current() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Session: m.session.clone()}
}

// Resume restores the persisted session if it was touched less than the
// timeout ago. Any other outcome ends in a silent logout.
func (m *Manager) Resume(ctx context.Context) bool {
	if !m.begin() {
		return m.Current().State == StateAuthenticated
	}
	defer m.finish()

	snap, err := m.snapshots.Read(ctx)
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		log.Debug().Msg("No session to resume")
	case err != nil:
		log.Warn().Err(err).Msg("Discarding unreadable session snapshot")
	case m.clock.Now().Sub(snap.Time()) >= m.timeout:
		log.Info().Str("identity", snap.Identity.ID).Msg("Stored session is stale")
	default:
		gen, err := m.establish(ctx, snap.Identity, m.currentGeneration())
		if err != nil {
			return false
		}
		log.Info().Str("identity", snap.Identity.ID).Msg("Session resumed")
		return m.postAuth(ctx, gen, snap.Identity) == nil && m.Current().State == StateAuthenticated
	}

	m.Logout(ctx, false)
	return false
}

// Login verifies credentials with the backend and establishes a session
func (m *Manager) Login(ctx context.Context, credentials auth.Credentials) (*auth.Identity, error) {
	if !m.begin() {
		return nil, ErrBusy
	}
	defer m.finish()

	startGen := m.currentGeneration()
	id, err := m.backend.Login(ctx, credentials)
	if err != nil {
		m.notifyError(err)
		return nil, err
	}

	gen, err := m.establish(ctx, id, startGen)
	if err != nil {
		return nil, err
	}
	m.notify(fmt.Sprintf(msgWelcome, id.DisplayName), events.LevelSuccess)
	if err := m.postAuth(ctx, gen, id); err != nil {
		return nil, err
	}
	return cloneIdentity(id), nil
}

// Register creates an account with the backend and establishes a session for it
func (m *Manager) Register(ctx context.Context, profile auth.Profile) (*auth.Identity, error) {
	if !m.begin() {
		return nil, ErrBusy
	}
	defer m.finish()

	startGen := m.currentGeneration()
	id, err := m.backend.Register(ctx, profile)
	if err != nil {
		m.notifyError(err)
		return nil, err
	}

	gen, err := m.establish(ctx, id, startGen)
	if err != nil {
		return nil, err
	}
	m.notify(msgRegistered, events.LevelSuccess)
	if err := m.postAuth(ctx, gen, id); err != nil {
		return nil, err
	}
	return cloneIdentity(id), nil
}

// RequireAuth slides the expiry of a live session and reports true. Without
// one it tells the user to log in, shows the auth form and reports false.
func (m *Manager) RequireAuth(ctx context.Context) bool {
	now := m.clock.Now()

	m.mu.Lock()
	if m.state == StateAuthenticated && !m.session.Valid(now) {
		// the timer has not fired yet but the session is already over;
		// expire tells the user and shows the auth form
		seq := m.timerSeq
		m.mu.Unlock()
		m.expire(seq)
		return false
	}
	if m.state != StateAuthenticated {
		m.mu.Unlock()
		m.notify(msgAuthRequired, events.LevelError)
		m.ui.RenderAuthForm()
		return false
	}

	m.session.ExpiresAt = now.Add(m.timeout)
	m.armTimerLocked()
	id := cloneIdentity(m.session.Identity)
	m.mu.Unlock()

	if err := m.snapshots.Write(ctx, id, now); err != nil {
		log.Err(err).Str("identity", id.ID).Msg("Failed to refresh session snapshot")
	}
	return true
}

// Logout ends the session unconditionally. notify controls whether the user
// is told about it.
func (m *Manager) Logout(ctx context.Context, notify bool) {
	var note *events.Notification
	if notify {
		note = &events.Notification{Message: msgLoggedOut, Level: events.LevelSuccess}
	}
	m.end(ctx, nil, true, note)
}

// ChangePassword replaces the signed-in identity's secret. A result that
// arrives after the session ended or was replaced is discarded.
func (m *Manager) ChangePassword(ctx context.Context, oldSecret, newSecret string) error {
	if !m.begin() {
		return ErrBusy
	}
	defer m.finish()

	if !m.RequireAuth(ctx) {
		return auth.SessionExpiredErr
	}
	gen, id, ok := m.live()
	if !ok {
		return auth.SessionExpiredErr
	}

	err := m.backend.ChangePassword(ctx, id, oldSecret, newSecret)
	if m.currentGeneration() != gen {
		log.Warn().Err(err).Str("identity", id.ID).Msg("Discarding password change result for an ended session")
		return auth.SessionExpiredErr
	}
	if err != nil {
		m.notifyError(err)
		return err
	}
	m.notify(msgPasswordChanged, events.LevelSuccess)
	return nil
}

// UserData returns the signed-in identity's scoped data
func (m *Manager) UserData(ctx context.Context) (*userdata.ScopedData, error) {
	if !m.RequireAuth(ctx) {
		return nil, auth.SessionExpiredErr
	}
	_, id, ok := m.live()
	if !ok {
		return nil, auth.SessionExpiredErr
	}
	return m.scope.Load(ctx, id)
}

// SaveUserData applies update to the signed-in identity's scoped data
func (m *Manager) SaveUserData(ctx context.Context, update userdata.Update) (*userdata.ScopedData, error) {
	if !m.RequireAuth(ctx) {
		return nil, auth.SessionExpiredErr
	}
	gen, id, ok := m.live()
	if !ok {
		return nil, auth.SessionExpiredErr
	}

	data, err := m.scope.Save(ctx, id, update)
	if err != nil {
		m.notifyError(err)
		return nil, err
	}

	m.mu.Lock()
	if m.generation == gen && m.session != nil {
		m.session.Identity.Settings = data.Settings
		id = cloneIdentity(m.session.Identity)
	}
	m.mu.Unlock()

	if err := m.snapshots.Write(ctx, id, m.clock.Now()); err != nil {
		log.Err(err).Str("identity", id.ID).Msg("Failed to refresh session snapshot")
	}
	return data, nil
}

// establish installs a new session for id unless the generation moved away
// from startGen while the backend call was pending.
func (m *Manager) establish(ctx context.Context, id *auth.Identity, startGen uint64) (uint64, error) {
	now := m.clock.Now()
	id = cloneIdentity(id)

	m.mu.Lock()
	if m.generation != startGen {
		m.mu.Unlock()
		log.Warn().Str("identity", id.ID).Msg("Discarding authentication result for a changed session")
		if err := m.backend.Logout(ctx); err != nil {
			log.Err(err).Str("identity", id.ID).Msg("Backend logout failed")
		}
		return 0, ErrSuperseded
	}
	m.generation++
	gen := m.generation
	m.state = StateAuthenticated
	m.session = &Session{ID: uuid.NewString(), Identity: id, IssuedAt: now, ExpiresAt: now.Add(m.timeout)}
	m.armTimerLocked()
	m.mu.Unlock()

	if err := m.snapshots.Write(ctx, id, now); err != nil {
		log.Err(err).Str("identity", id.ID).Msg("Failed to persist session snapshot")
		m.failTransition(ctx, gen, err)
		return 0, err
	}

	log.Info().Str("identity", id.ID).Msg("Session established")
	m.bus.Publish(events.AuthStateChanged{Identity: cloneIdentity(id)})
	return gen, nil
}

// postAuth loads the identity's data and shows the main application. A load
// failure ends the session.
func (m *Manager) postAuth(ctx context.Context, gen uint64, id *auth.Identity) error {
	data, err := m.scope.Load(ctx, id)
	if err != nil {
		log.Err(err).Str("identity", id.ID).Msg("Failed to load user data")
		m.failTransition(ctx, gen, err)
		return err
	}
	if m.currentGeneration() != gen {
		return nil
	}

	m.ui.RenderMainApp()
	m.ui.RenderUserBar(cloneIdentity(id))
	m.bus.Publish(events.DataReady{
		Identity:      cloneIdentity(id),
		UserData:      data.Settings,
		PortfolioData: data.Portfolio,
	})
	return nil
}

// failTransition resolves a half-established session to unauthenticated
func (m *Manager) failTransition(ctx context.Context, gen uint64, err error) {
	note := &events.Notification{Message: auth.UserMessage(err), Level: events.LevelError}
	m.end(ctx, func() bool { return m.generation == gen }, true, note)
}

// expire runs when the timer armed with seq fires
func (m *Manager) expire(seq uint64) {
	ended := m.end(context.Background(), func() bool {
		if m.timerSeq != seq || m.state != StateAuthenticated {
			return false
		}
		m.state = StateExpired
		return true
	}, true, &events.Notification{Message: msgExpired, Level: events.LevelError})

	if ended {
		log.Info().Msg("Session expired")
	}
}

// onProviderState handles pushes from a backend whose provider can end the
// session on its own. Sign-ins are ignored: they arrive through the direct
// call results.
func (m *Manager) onProviderState(id *auth.Identity) {
	if id != nil {
		return
	}
	ended := m.end(context.Background(), func() bool {
		return m.state == StateAuthenticated
	}, false, nil)
	if ended {
		log.Info().Msg("Provider signed the user out")
	}
}

// end moves to unauthenticated. check, when set, runs under the lock and can
// veto the transition. Reports whether the transition happened.
func (m *Manager) end(ctx context.Context, check func() bool, callBackend bool, note *events.Notification) bool {
	m.mu.Lock()
	if check != nil && !check() {
		m.mu.Unlock()
		return false
	}
	wasAuthenticated := m.state != StateUnauthenticated
	identity := ""
	if m.session != nil {
		identity = m.session.Identity.ID
	}
	m.generation++
	m.state = StateUnauthenticated
	m.session = nil
	m.stopTimerLocked()
	m.mu.Unlock()

	if err := m.snapshots.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear session snapshot")
	}
	// without a session there is no backend sign-in to end
	if callBackend && wasAuthenticated {
		if err := m.backend.Logout(ctx); err != nil {
			log.Err(err).Str("identity", identity).Msg("Backend logout failed")
		}
	}
	if note != nil {
		m.bus.Publish(*note)
	}
	m.ui.RenderAuthForm()
	if wasAuthenticated {
		log.Info().Str("identity", identity).Msg("Session ended")
		m.bus.Publish(events.AuthStateChanged{})
	}
	return true
}

func (m *Manager) armTimerLocked() {
	m.stopTimerLocked()
	m.timerSeq++
	seq := m.timerSeq
	m.timer = m.clock.AfterFunc(m.timeout, func() { m.expire(seq) })
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerSeq++
}

func (m *Manager) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return false
	}
	m.inFlight = true
	return true
}

func (m *Manager) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// live returns the generation and identity of the current session
func (m *Manager) live() (uint64, *auth.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated || m.session == nil {
		return 0, nil, false
	}
	return m.generation, cloneIdentity(m.session.Identity), true
}

func (m *Manager) notify(message string, level events.Level) {
	m.bus.Publish(events.Notification{Message: message, Level: level})
}

func (m *Manager) notifyError(err error) {
	log.Err(err).Msg("Authentication request failed")
	m.notify(auth.UserMessage(err), events.LevelError)
}
