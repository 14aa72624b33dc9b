// Command retouch is the retouch desktop agent and its command-line client.
// Without a subcommand it runs the agent: a tray icon plus a global hotkey
// that rewrites the clipboard text through a chat-completions API.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/Paranoid-AF/retouch/desktop"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// The tray and hotkey event loops must own the main thread on macOS.
func init() {
	runtime.LockOSThread()
}

func main() {
	app := newApp(desktop.Clipboard{})
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
