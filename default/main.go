// Package defaults provides embedded default assets (rewrite prompt, config and tray icons).
package defaults

import _ "embed"

//go:embed default_prompt.md
var DefaultPrompt string

//go:embed default_config.json
var DefaultConfigJSON []byte

// IconPNG is the tray icon for macOS and Linux.
//
//go:embed icon.png
var IconPNG []byte

// IconICO is the tray icon for Windows.
//
//go:embed icon.ico
var IconICO []byte
