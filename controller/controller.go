// Package controller drives the rewrite request lifecycle: it owns the cached
// configuration and the global key binding, admits at most one session at a
// time, calls the rewriter, and opens and resolves the suggestion surface.
package controller

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	retouch "github.com/Paranoid-AF/retouch"
	"github.com/Paranoid-AF/retouch/keybind"
	"github.com/Paranoid-AF/retouch/rewrite"
)

// DefaultBusyNoticeInterval is the minimum gap between "Already Working"
// notifications for triggers dropped while a session is active.
const DefaultBusyNoticeInterval = 3 * time.Second

var (
	// ErrStaleSession is returned when a surface reports back for a session
	// that is no longer awaiting a decision.
	ErrStaleSession = errors.New("session is not awaiting a suggestion")
	// ErrInvalidSettings wraps validation failures of a settings update.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("controller closed")
)

// Options configures a Controller. All collaborators are required.
type Options struct {
	Store     ConfigStore
	Rewriter  rewrite.Rewriter
	Clipboard Clipboard
	Notifier  Notifier
	Presenter Presenter
	Hotkeys   Registrar

	// RequestTimeout bounds each rewrite call. Zero means no deadline.
	RequestTimeout time.Duration
	// BusyNoticeInterval throttles notifications for dropped triggers.
	// Zero means DefaultBusyNoticeInterval; negative disables them.
	BusyNoticeInterval time.Duration
}

// SettingsUpdate is the payload of the settings surface. An empty APIKey
// keeps the stored key.
type SettingsUpdate struct {
	Prompt string
	Model  string
	Hotkey string
	APIKey string
}

// Controller is the request-lifecycle state machine.
type Controller struct {
	store     ConfigStore
	rewriter  rewrite.Rewriter
	clipboard Clipboard
	notifier  Notifier
	presenter Presenter
	hotkeys   Registrar
	timeout   time.Duration
	busy      *rate.Limiter

	ctx      context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup

	// settingsMu serializes config mutations (file I/O and re-registration).
	settingsMu sync.Mutex

	mu         sync.Mutex
	cfg        retouch.Config
	binding    string
	started    bool
	state      State
	session    *Session
	suggestion Surface
	settings   Surface
	entropy    io.Reader
	closed     bool
}

// New creates a controller with the configuration currently in the store.
// Call Start to register the key binding.
func New(opts Options) *Controller {
	ctx, shutdown := context.WithCancel(context.Background())

	interval := opts.BusyNoticeInterval
	if interval == 0 {
		interval = DefaultBusyNoticeInterval
	}
	var busy *rate.Limiter
	if interval > 0 {
		busy = rate.NewLimiter(rate.Every(interval), 1)
	}

	return &Controller{
		store:     opts.Store,
		rewriter:  opts.Rewriter,
		clipboard: opts.Clipboard,
		notifier:  opts.Notifier,
		presenter: opts.Presenter,
		hotkeys:   opts.Hotkeys,
		timeout:   opts.RequestTimeout,
		busy:      busy,
		ctx:       ctx,
		shutdown:  shutdown,
		cfg:       opts.Store.Load(),
		state:     Idle,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

// Start registers the configured key binding. If registration fails the
// controller keeps running unbound, and the next settings update or reload
// registers its binding.
func (c *Controller) Start() error {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	c.mu.Lock()
	binding := c.cfg.Hotkey
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	err := c.hotkeys.Register(binding, c.hotkeyPressed)

	c.mu.Lock()
	c.started = true
	if err == nil {
		c.binding = binding
	}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("register hotkey %s: %w", binding, err)
	}

	slog.Info("hotkey registered", "binding", binding)
	return nil
}

func (c *Controller) hotkeyPressed() {
	c.Trigger()
}

// Trigger starts a session from the clipboard text. It returns the session
// and true when the trigger was admitted, even if the session failed at once
// (empty clipboard, missing key). It returns the active session and false
// when another session holds the slot. The rewrite call runs on its own
// goroutine; Trigger never waits for it.
func (c *Controller) Trigger() (Session, bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Session{}, false
	}
	if c.session != nil {
		active := *c.session
		state := c.state
		c.mu.Unlock()
		slog.Debug("trigger ignored", "session", active.ID, "state", state)
		c.notifyBusy()
		return active, false
	}

	session := &Session{
		ID:      ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String(),
		State:   SessionPending,
		Started: time.Now(),
	}
	c.session = session
	c.state = RequestPending
	cfg := c.cfg
	c.mu.Unlock()

	id := session.ID
	slog.Info("session started", "session", id)

	text, err := c.clipboard.ReadText()
	if err != nil {
		slog.Warn("clipboard read failed", "session", id, "error", err)
		text = ""
	}
	if strings.TrimSpace(text) == "" {
		return c.fail(id, retouch.NewEmptyInput()), true
	}

	credential := retouch.ResolveAPIKey(cfg)
	if credential == "" {
		return c.fail(id, retouch.NewMissingCredential()), true
	}

	req := rewrite.Request{
		SourceText:     text,
		PromptTemplate: cfg.Prompt,
		ModelID:        retouch.ResolveModel(cfg),
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.timeout)
	} else {
		ctx, cancel = context.WithCancel(c.ctx)
	}

	c.mu.Lock()
	if c.closed || c.session == nil || c.session.ID != id {
		c.mu.Unlock()
		cancel()
		return Session{}, false
	}
	c.session.SourceText = text
	c.session.State = SessionInFlight
	snapshot := *c.session
	c.wg.Add(1)
	c.mu.Unlock()

	slog.Debug("rewrite started", "session", id, "chars", len(text), "model", req.ModelID)
	go c.run(ctx, cancel, id, req, credential)
	return snapshot, true
}

// run performs the outbound call and moves the session to
// AwaitingSuggestion or back to Idle.
func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, id string, req rewrite.Request, credential string) {
	defer c.wg.Done()
	defer cancel()

	suggestion, err := c.rewriter.Rewrite(ctx, req, credential)
	if err != nil {
		c.fail(id, err)
		return
	}

	c.mu.Lock()
	if c.closed || c.session == nil || c.session.ID != id {
		c.mu.Unlock()
		return
	}
	c.state = AwaitingSuggestion
	c.mu.Unlock()

	slog.Info("suggestion received", "session", id, "chars", len(suggestion))

	surface, err := c.presenter.OpenSuggestion(id, suggestion)
	if err != nil {
		slog.Error("failed to open suggestion", "session", id, "error", err)
		if c.release(id) {
			c.notify("Error", "Failed to show the suggestion")
		}
		return
	}

	c.mu.Lock()
	if c.closed || c.session == nil || c.session.ID != id || c.session.State != SessionInFlight {
		// Resolved or dismissed before the surface handle came back.
		c.mu.Unlock()
		surface.Close()
		return
	}
	previous := c.suggestion
	c.suggestion = surface
	c.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
}

// fail ends session id with err and sends its notification. Cancellation
// caused by Close is not announced.
func (c *Controller) fail(id string, err error) Session {
	c.mu.Lock()
	if c.session == nil || c.session.ID != id {
		c.mu.Unlock()
		return Session{ID: id, State: SessionFailed}
	}
	ended := *c.session
	ended.State = SessionFailed
	c.session = nil
	c.state = Idle
	closed := c.closed
	c.mu.Unlock()

	var rerr *retouch.Error
	if !errors.As(err, &rerr) {
		rerr = retouch.NewTransport(err)
	}

	slog.Warn("session failed", "session", id, "kind", rerr.Kind, "error", rerr.Detail)

	if closed && rerr.Kind == retouch.KindCancelled {
		return ended
	}
	c.notify(rerr.Notice())
	return ended
}

// release frees the slot held by session id. It reports whether id was the
// active session.
func (c *Controller) release(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.ID != id {
		return false
	}
	c.session = nil
	c.state = Idle
	return true
}

// AcceptSuggestion copies text (possibly edited by the user) to the
// clipboard, closes the suggestion surface and ends the session.
func (c *Controller) AcceptSuggestion(id, text string) error {
	c.mu.Lock()
	if c.session == nil || c.session.ID != id || c.state != AwaitingSuggestion || c.session.State != SessionInFlight {
		c.mu.Unlock()
		return ErrStaleSession
	}
	c.session.State = SessionResolved
	surface := c.suggestion
	c.suggestion = nil
	c.mu.Unlock()

	// The slot stays taken until the clipboard holds the accepted text, so a
	// trigger in between cannot read the old clipboard.
	err := c.clipboard.WriteText(text)
	if surface != nil {
		surface.Close()
	}
	c.release(id)

	if err != nil {
		slog.Error("clipboard write failed", "session", id, "error", err)
		c.notify("Error", "Failed to copy the suggestion")
		return fmt.Errorf("write clipboard: %w", err)
	}

	slog.Info("suggestion accepted", "session", id, "chars", len(text))
	c.notify("Copied", "Suggested text copied to clipboard")
	return nil
}

// DismissSuggestion closes the suggestion surface without touching the
// clipboard and ends the session.
func (c *Controller) DismissSuggestion(id string) error {
	c.mu.Lock()
	if c.session == nil || c.session.ID != id || c.state != AwaitingSuggestion || c.session.State != SessionInFlight {
		c.mu.Unlock()
		return ErrStaleSession
	}
	surface := c.suggestion
	c.suggestion = nil
	c.session = nil
	c.state = Idle
	c.mu.Unlock()

	if surface != nil {
		surface.Close()
	}
	slog.Info("suggestion dismissed", "session", id)
	return nil
}

// ShowSettings opens the settings surface, closing any previous one.
func (c *Controller) ShowSettings() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	cfg := c.cfg
	c.mu.Unlock()

	surface, err := c.presenter.OpenSettings(cfg.Masked())
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}

	c.mu.Lock()
	previous := c.settings
	c.settings = surface
	c.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return nil
}

// SubmitSettings validates and persists a settings update, refreshes the
// cached configuration and moves the key binding. It is accepted in any
// state. The new binding is registered before the old one is released, so
// a press during the switch reaches one of them. If the new binding cannot
// be registered or the config cannot be saved, nothing changes.
func (c *Controller) SubmitSettings(u SettingsUpdate) error {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	if strings.TrimSpace(u.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidSettings)
	}
	if strings.TrimSpace(u.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidSettings)
	}
	binding, err := keybind.Parse(u.Hotkey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	next := c.cfg
	oldBinding := c.binding
	started := c.started
	c.mu.Unlock()

	next.Prompt = u.Prompt
	next.Model = strings.TrimSpace(u.Model)
	next.Hotkey = binding.String()
	if key := strings.TrimSpace(u.APIKey); key != "" {
		next.APIKey = key
	}

	rebound := false
	if started {
		if rebound, err = c.bind(oldBinding, next.Hotkey); err != nil {
			return err
		}
	}

	if err := c.store.Save(next); err != nil {
		if rebound {
			c.unbind(next.Hotkey)
		}
		return fmt.Errorf("save settings: %w", err)
	}

	c.mu.Lock()
	c.cfg = next
	if rebound {
		c.binding = next.Hotkey
	}
	c.mu.Unlock()

	if rebound && oldBinding != "" {
		c.unbind(oldBinding)
	}

	slog.Info("settings updated", "model", next.Model, "hotkey", next.Hotkey)
	return nil
}

// Reload re-reads the configuration from the store, e.g. after the file was
// edited by hand. If the new binding cannot be registered the old one stays
// active and is kept in the cached configuration. If no binding is active
// the new one is registered.
func (c *Controller) Reload() error {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	next := c.store.Load()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	oldBinding := c.binding
	started := c.started
	c.mu.Unlock()

	var bindErr error
	rebound := false
	if started {
		rebound, bindErr = c.bind(oldBinding, next.Hotkey)
		if bindErr != nil && oldBinding != "" {
			next.Hotkey = oldBinding
		}
	}

	c.mu.Lock()
	c.cfg = next
	if rebound {
		c.binding = next.Hotkey
	}
	c.mu.Unlock()

	if rebound && oldBinding != "" {
		c.unbind(oldBinding)
	}

	slog.Info("config reloaded", "model", next.Model, "hotkey", next.Hotkey)
	return bindErr
}

// bind registers binding next unless it is already the active binding
// current. An empty current means nothing is registered. It reports whether
// a new registration was made.
func (c *Controller) bind(current, next string) (bool, error) {
	if current == next {
		return false, nil
	}
	if err := c.hotkeys.Register(next, c.hotkeyPressed); err != nil {
		return false, fmt.Errorf("register hotkey %s: %w", next, err)
	}
	slog.Info("hotkey registered", "binding", next)
	return true, nil
}

func (c *Controller) unbind(binding string) {
	if err := c.hotkeys.Unregister(binding); err != nil {
		slog.Warn("failed to unregister hotkey", "binding", binding, "error", err)
		return
	}
	slog.Debug("hotkey unregistered", "binding", binding)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the active session, if any.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// Config returns the cached configuration.
func (c *Controller) Config() retouch.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Binding returns the currently registered key binding, or "" before Start.
func (c *Controller) Binding() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.binding
}

// Wait blocks until every outstanding rewrite call has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels any in-flight rewrite, closes open surfaces and unregisters
// the key binding. It must be called before the process exits.
func (c *Controller) Close() error {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	binding := c.binding
	c.binding = ""
	c.mu.Unlock()

	c.shutdown()
	c.wg.Wait()

	c.mu.Lock()
	surfaces := []Surface{c.suggestion, c.settings}
	c.suggestion = nil
	c.settings = nil
	c.session = nil
	c.state = Idle
	c.mu.Unlock()

	for _, s := range surfaces {
		if s != nil {
			s.Close()
		}
	}

	if binding == "" {
		return nil
	}
	if err := c.hotkeys.Unregister(binding); err != nil {
		return fmt.Errorf("unregister hotkey %s: %w", binding, err)
	}
	slog.Info("hotkey unregistered", "binding", binding)
	return nil
}

func (c *Controller) notifyBusy() {
	if c.busy == nil || !c.busy.Allow() {
		return
	}
	c.notify("Already Working", "A suggestion is already in progress")
}

func (c *Controller) notify(title, body string) {
	slog.Debug("notify", "title", title, "body", body)
	c.notifier.Notify(title, body)
}
