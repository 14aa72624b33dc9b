package main

import (
	"io"
	"log/slog"

	retouch "github.com/Paranoid-AF/retouch"
)

// secretAttrs are attribute keys whose values are masked in log output.
var secretAttrs = map[string]bool{
	"api_key":       true,
	"openaiApiKey":  true,
	"credential":    true,
	"authorization": true,
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: maskSecrets,
	}))
}

func maskSecrets(_ []string, a slog.Attr) slog.Attr {
	if secretAttrs[a.Key] {
		return slog.String(a.Key, retouch.MaskKey(a.Value.String()))
	}
	return a
}
