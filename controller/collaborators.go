package controller

import (
	retouch "github.com/Paranoid-AF/retouch"
)

// ConfigStore loads and persists the configuration.
type ConfigStore interface {
	Load() retouch.Config
	Save(cfg retouch.Config) error
}

// Clipboard reads and writes the system clipboard as text.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// Notifier shows a fire-and-forget system notification.
type Notifier interface {
	Notify(title, body string)
}

// Surface is an open settings or suggestion window. Close must be safe to
// call more than once and after the user has already closed the window.
type Surface interface {
	Close() error
}

// Presenter opens the UI surfaces. A suggestion surface reports back through
// Controller.AcceptSuggestion or Controller.DismissSuggestion with its session id;
// a settings surface reports back through Controller.SubmitSettings.
type Presenter interface {
	OpenSettings(cfg retouch.Config) (Surface, error)
	OpenSuggestion(sessionID, text string) (Surface, error)
}

// Registrar registers global key bindings. fn is called from the
// registrar's listener goroutine on every press.
type Registrar interface {
	Register(binding string, fn func()) error
	Unregister(binding string) error
}
