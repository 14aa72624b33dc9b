package desktop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ncruces/zenity"

	retouch "github.com/Paranoid-AF/retouch"
	"github.com/Paranoid-AF/retouch/controller"
)

// Commands is what the dialogs report back to.
type Commands interface {
	AcceptSuggestion(id, text string) error
	DismissSuggestion(id string) error
	SubmitSettings(u controller.SettingsUpdate) error
}

type choice int

const (
	choiceAccept choice = iota
	choiceEdit
	choiceDismiss
)

// prompter is the dialog toolkit. Every call blocks until the user answers
// or ctx is done.
type prompter interface {
	Review(ctx context.Context, suggestion string) (choice, error)
	Entry(ctx context.Context, label, text string, hidden bool) (string, bool, error)
	Alert(ctx context.Context, text string)
}

// Dialogs implements controller.Presenter with native dialogs. Bind must
// be called before the first dialog opens.
type Dialogs struct {
	ui prompter

	mu       sync.Mutex
	commands Commands
}

func NewDialogs() *Dialogs {
	return &Dialogs{ui: zenityPrompter{}}
}

// Bind sets the receiver of dialog results.
func (d *Dialogs) Bind(c Commands) {
	d.mu.Lock()
	d.commands = c
	d.mu.Unlock()
}

func (d *Dialogs) target() Commands {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commands
}

// dialog is an open surface. Close cancels the dialog's context, which
// dismisses the native window.
type dialog struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *dialog) Close() error {
	s.cancel()
	return nil
}

func (d *Dialogs) open(fn func(ctx context.Context)) *dialog {
	ctx, cancel := context.WithCancel(context.Background())
	s := &dialog{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer cancel()
		fn(ctx)
	}()
	return s
}

// OpenSuggestion shows the suggestion with Accept, Edit and Dismiss.
func (d *Dialogs) OpenSuggestion(id, text string) (controller.Surface, error) {
	commands := d.target()
	if commands == nil {
		return nil, errors.New("dialogs are not bound")
	}
	return d.open(func(ctx context.Context) {
		d.suggestion(ctx, commands, id, text)
	}), nil
}

func (d *Dialogs) suggestion(ctx context.Context, commands Commands, id, text string) {
	c, err := d.ui.Review(ctx, text)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		slog.Warn("suggestion dialog failed", "session", id, "error", err)
		c = choiceDismiss
	}

	if c == choiceEdit {
		edited, ok, err := d.ui.Entry(ctx, "Edit the suggestion:", text, false)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("edit dialog failed", "session", id, "error", err)
		}
		if ok && err == nil {
			text = edited
			c = choiceAccept
		} else {
			c = choiceDismiss
		}
	}

	if c == choiceAccept {
		err = commands.AcceptSuggestion(id, text)
	} else {
		err = commands.DismissSuggestion(id)
	}
	if err != nil && !errors.Is(err, controller.ErrStaleSession) {
		slog.Warn("suggestion result rejected", "session", id, "error", err)
	}
}

// OpenSettings asks for each setting in turn. Cancelling any step discards
// the whole edit.
func (d *Dialogs) OpenSettings(cfg retouch.Config) (controller.Surface, error) {
	commands := d.target()
	if commands == nil {
		return nil, errors.New("dialogs are not bound")
	}
	return d.open(func(ctx context.Context) {
		d.settings(ctx, commands, cfg)
	}), nil
}

func (d *Dialogs) settings(ctx context.Context, commands Commands, cfg retouch.Config) {
	keyLabel := "OpenAI API key (leave empty to keep the current key):"
	if cfg.APIKey != "" {
		keyLabel = fmt.Sprintf("OpenAI API key (leave empty to keep %s):", cfg.APIKey)
	}

	steps := []struct {
		label  string
		value  string
		hidden bool
	}{
		{"Prompt:", cfg.Prompt, false},
		{"Model:", cfg.Model, false},
		{"Hotkey (e.g. CommandOrControl+Shift+G):", cfg.Hotkey, false},
		{keyLabel, "", true},
	}

	answers := make([]string, len(steps))
	for i, step := range steps {
		value, ok, err := d.ui.Entry(ctx, step.label, step.value, step.hidden)
		if err != nil && ctx.Err() == nil {
			slog.Warn("settings dialog failed", "error", err)
		}
		if err != nil || !ok {
			return
		}
		answers[i] = value
	}

	err := commands.SubmitSettings(controller.SettingsUpdate{
		Prompt: answers[0],
		Model:  answers[1],
		Hotkey: answers[2],
		APIKey: answers[3],
	})
	if err != nil && !errors.Is(err, controller.ErrClosed) {
		slog.Warn("settings rejected", "error", err)
		d.ui.Alert(ctx, "Settings were not saved: "+err.Error())
	}
}

type zenityPrompter struct{}

func (zenityPrompter) Review(ctx context.Context, suggestion string) (choice, error) {
	err := zenity.Question(suggestion,
		zenity.Context(ctx),
		zenity.Title("retouch suggestion"),
		zenity.NoIcon,
		zenity.OKLabel("Accept"),
		zenity.CancelLabel("Dismiss"),
		zenity.ExtraButton("Edit"),
	)
	switch {
	case err == nil:
		return choiceAccept, nil
	case errors.Is(err, zenity.ErrExtraButton):
		return choiceEdit, nil
	case errors.Is(err, zenity.ErrCanceled):
		return choiceDismiss, nil
	default:
		return choiceDismiss, err
	}
}

func (zenityPrompter) Entry(ctx context.Context, label, text string, hidden bool) (string, bool, error) {
	opts := []zenity.Option{
		zenity.Context(ctx),
		zenity.Title("retouch"),
		zenity.EntryText(text),
	}
	if hidden {
		opts = append(opts, zenity.HideText())
	}
	value, err := zenity.Entry(label, opts...)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (zenityPrompter) Alert(ctx context.Context, text string) {
	if err := zenity.Error(text, zenity.Context(ctx), zenity.Title("retouch")); err != nil && !errors.Is(err, zenity.ErrCanceled) {
		slog.Warn("alert dialog failed", "error", err)
	}
}
