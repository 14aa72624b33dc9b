package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	retouch "github.com/Paranoid-AF/retouch"
	"github.com/Paranoid-AF/retouch/rewrite"
)

type memoryStore struct {
	mu      sync.Mutex
	cfg     retouch.Config
	saves   int
	saveErr error
}

func (s *memoryStore) Load() retouch.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *memoryStore) Save(cfg retouch.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if cfg.APIKey == "" {
		cfg.APIKey = s.cfg.APIKey
	}
	s.cfg = cfg
	s.saves++
	return nil
}

func (s *memoryStore) set(cfg retouch.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

type fakeClipboard struct {
	mu       sync.Mutex
	text     string
	readErr  error
	writeErr error
	written  []string
}

func (c *fakeClipboard) ReadText() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.readErr
}

func (c *fakeClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.text = text
	c.written = append(c.written, text)
	return nil
}

func (c *fakeClipboard) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

type notice struct {
	Title string
	Body  string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *fakeNotifier) Notify(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{title, body})
}

func (n *fakeNotifier) Notices() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

type fakeSurface struct {
	mu     sync.Mutex
	closed int
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSurface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed > 0
}

type shownSuggestion struct {
	SessionID string
	Text      string
	Surface   *fakeSurface
}

type shownSettings struct {
	Config  retouch.Config
	Surface *fakeSurface
}

type fakePresenter struct {
	mu            sync.Mutex
	suggestions   []shownSuggestion
	settings      []shownSettings
	suggestionErr error
}

func (p *fakePresenter) OpenSettings(cfg retouch.Config) (Surface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &fakeSurface{}
	p.settings = append(p.settings, shownSettings{cfg, s})
	return s, nil
}

func (p *fakePresenter) OpenSuggestion(id, text string) (Surface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suggestionErr != nil {
		return nil, p.suggestionErr
	}
	s := &fakeSurface{}
	p.suggestions = append(p.suggestions, shownSuggestion{id, text, s})
	return s, nil
}

func (p *fakePresenter) Suggestions() []shownSuggestion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shownSuggestion(nil), p.suggestions...)
}

func (p *fakePresenter) Settings() []shownSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shownSettings(nil), p.settings...)
}

// fakeRegistrar keeps bindings in a map and records every call in order.
type fakeRegistrar struct {
	mu       sync.Mutex
	bindings map[string]func()
	failOn   map[string]bool
	log      []string
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{bindings: make(map[string]func()), failOn: make(map[string]bool)}
}

func (r *fakeRegistrar) Register(binding string, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[binding] {
		return fmt.Errorf("binding %s is taken", binding)
	}
	if _, ok := r.bindings[binding]; ok {
		return fmt.Errorf("binding %s already registered", binding)
	}
	r.bindings[binding] = fn
	r.log = append(r.log, "register "+binding)
	return nil
}

func (r *fakeRegistrar) Unregister(binding string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[binding]; !ok {
		return errors.New("not registered")
	}
	delete(r.bindings, binding)
	r.log = append(r.log, "unregister "+binding)
	return nil
}

// Press simulates a key press and reports whether any handler ran.
func (r *fakeRegistrar) Press(binding string) bool {
	r.mu.Lock()
	fn, ok := r.bindings[binding]
	r.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

func (r *fakeRegistrar) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.bindings))
	for b := range r.bindings {
		out = append(out, b)
	}
	return out
}

func (r *fakeRegistrar) Log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

type fakeRewriter struct {
	mu       sync.Mutex
	requests []rewrite.Request
	keys     []string
	fn       func(ctx context.Context, req rewrite.Request) (string, error)
}

func (f *fakeRewriter) Rewrite(ctx context.Context, req rewrite.Request, credential string) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.keys = append(f.keys, credential)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeRewriter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeRewriter) Requests() []rewrite.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rewrite.Request(nil), f.requests...)
}

func returning(suggestion string, err error) func(context.Context, rewrite.Request) (string, error) {
	return func(context.Context, rewrite.Request) (string, error) {
		return suggestion, err
	}
}

// blocking returns a rewrite function that waits for release or ctx.
func blocking(release <-chan struct{}, suggestion string) func(context.Context, rewrite.Request) (string, error) {
	return func(ctx context.Context, _ rewrite.Request) (string, error) {
		select {
		case <-release:
			return suggestion, nil
		case <-ctx.Done():
			return "", retouch.NewCancelled(ctx.Err())
		}
	}
}
