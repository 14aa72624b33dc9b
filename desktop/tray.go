package desktop

import (
	"fmt"
	"log/slog"
	"runtime"

	"fyne.io/systray"

	defaults "github.com/Paranoid-AF/retouch/default"
)

// TrayMenu holds the tray callbacks. Each is optional.
type TrayMenu struct {
	// OnReady runs on the event loop once the tray is up, or after a tray
	// failure was reported to OnError.
	OnReady    func()
	OnSettings func()
	OnQuit     func()
	OnError    func(error)
}

// RunTray runs the tray event loop and blocks until QuitTray is called. It
// must be called from the main goroutine.
func RunTray(m TrayMenu) {
	systray.Run(func() { m.ready() }, func() { slog.Debug("tray stopped") })
}

// QuitTray stops the event loop started by RunTray. It is safe to call from
// any goroutine.
func QuitTray() {
	systray.Quit()
}

func (m TrayMenu) ready() {
	if err := m.setup(); err != nil {
		slog.Error("tray setup failed", "error", err)
		if m.OnError != nil {
			m.OnError(err)
		}
	}
	if m.OnReady != nil {
		m.OnReady()
	}
}

func (m TrayMenu) setup() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tray: %v", r)
		}
	}()

	if runtime.GOOS == "windows" {
		systray.SetIcon(defaults.IconICO)
	} else {
		systray.SetIcon(defaults.IconPNG)
	}
	systray.SetTooltip("retouch")

	settings := systray.AddMenuItem("Settings", "Edit prompt, model, hotkey and API key")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit retouch")

	go func() {
		for {
			select {
			case <-settings.ClickedCh:
				if m.OnSettings != nil {
					m.OnSettings()
				}
			case <-quit.ClickedCh:
				if m.OnQuit != nil {
					m.OnQuit()
				}
				return
			}
		}
	}()
	return nil
}
