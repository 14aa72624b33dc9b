package desktop

import (
	"log/slog"

	"github.com/atotto/clipboard"
	"github.com/gen2brain/beeep"
)

// Clipboard is the system clipboard as plain text.
type Clipboard struct{}

func (Clipboard) ReadText() (string, error) {
	return clipboard.ReadAll()
}

func (Clipboard) WriteText(text string) error {
	return clipboard.WriteAll(text)
}

// Notifier posts desktop notifications. Delivery failures are logged and
// otherwise ignored.
type Notifier struct{}

func (Notifier) Notify(title, body string) {
	if err := beeep.Notify(title, body, ""); err != nil {
		slog.Warn("notification failed", "title", title, "error", err)
	}
}
