// Package desktop adapts the operating system to the controller: global
// hotkeys, the tray menu, the clipboard, notifications and dialogs.
package desktop

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.design/x/hotkey"

	"github.com/Paranoid-AF/retouch/keybind"
)

// Hotkeys registers global key bindings with the OS. On macOS the process
// must be running the main-thread event loop (RunTray) before Register is
// called.
type Hotkeys struct {
	mu     sync.Mutex
	active map[string]*registration
}

type registration struct {
	hk   *hotkey.Hotkey
	stop chan struct{}
	done chan struct{}
}

func NewHotkeys() *Hotkeys {
	return &Hotkeys{active: make(map[string]*registration)}
}

// Register grabs binding and calls fn on every key down.
func (h *Hotkeys) Register(binding string, fn func()) error {
	b, err := keybind.Parse(binding)
	if err != nil {
		return err
	}
	name := b.String()

	mods, key, err := resolve(b, runtime.GOOS)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.active[name]; ok {
		return fmt.Errorf("%s is already registered", name)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("grab %s: %w", name, err)
	}

	r := &registration{hk: hk, stop: make(chan struct{}), done: make(chan struct{})}
	h.active[name] = r
	go r.listen(name, fn)
	return nil
}

// Unregister releases binding and stops its listener.
func (h *Hotkeys) Unregister(binding string) error {
	name := keybind.Normalize(binding)

	h.mu.Lock()
	r, ok := h.active[name]
	delete(h.active, name)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s is not registered", name)
	}

	close(r.stop)
	<-r.done
	return r.hk.Unregister()
}

func (r *registration) listen(name string, fn func()) {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		case _, ok := <-r.hk.Keydown():
			if !ok {
				return
			}
			slog.Debug("hotkey pressed", "binding", name)
			fn()
		}
	}
}

// resolve maps a parsed binding to the hotkey package's modifier and key
// codes for goos.
func resolve(b keybind.Binding, goos string) ([]hotkey.Modifier, hotkey.Key, error) {
	key, ok := keyCodes[b.Key]
	if !ok {
		return nil, 0, fmt.Errorf("key %q is not supported", b.Key)
	}
	var mods []hotkey.Modifier
	for _, m := range b.Resolve(goos) {
		code, ok := modifierCodes[m]
		if !ok {
			return nil, 0, fmt.Errorf("modifier %s is not supported on %s", m, goos)
		}
		mods = append(mods, code)
	}
	return mods, key, nil
}
