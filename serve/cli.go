package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"

	retouch "github.com/Paranoid-AF/retouch"
	"github.com/Paranoid-AF/retouch/controller"
	"github.com/Paranoid-AF/retouch/keybind"
	"github.com/Paranoid-AF/retouch/rewrite"
)

// newApp creates the CLI application with all commands.
func newApp(clip controller.Clipboard) *cli.App {
	app := &cli.App{
		Name:    "retouch",
		Usage:   "Rewrite clipboard text with a global hotkey",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "log at debug level"},
		},
		Before: func(c *cli.Context) error {
			slog.SetDefault(newLogger(c.App.ErrWriter, c.Bool("verbose")))
			return nil
		},
		Action: func(c *cli.Context) error {
			return runAgent(c, clip)
		},
		Commands: []*cli.Command{
			runCmd(clip),
			rewriteCmd(clip),
			controlCmd(retouch.ActionTrigger, "Ask the running agent to rewrite the clipboard"),
			controlCmd(retouch.ActionStatus, "Show the running agent's state"),
			controlCmd(retouch.ActionReload, "Make the running agent re-read its config"),
			configCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func runCmd(clip controller.Clipboard) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the agent (tray icon and global hotkey); the default",
		Action: func(c *cli.Context) error {
			return runAgent(c, clip)
		},
	}
}

// rewriteResult is the output of a one-shot rewrite.
type rewriteResult struct {
	Model      string `json:"model" toml:"model"`
	Suggestion string `json:"suggestion" toml:"suggestion"`
}

func rewriteCmd(clip controller.Clipboard) *cli.Command {
	return &cli.Command{
		Name:  "rewrite",
		Usage: "Rewrite text from stdin (or the clipboard) once and print the suggestion",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "clipboard", Usage: "read the text from the clipboard instead of stdin"},
			&cli.BoolFlag{Name: "copy", Usage: "copy the suggestion to the clipboard"},
			&cli.StringFlag{Name: "format", Value: "text", Usage: "output format: text|json|toml"},
			&cli.DurationFlag{Name: "timeout", Value: 60 * time.Second, Usage: "request timeout"},
		},
		Action: func(c *cli.Context) error {
			format := c.String("format")
			if format != "text" && format != "json" && format != "toml" {
				return fmt.Errorf("unknown format %q (want text, json or toml)", format)
			}

			var text string
			if c.Bool("clipboard") {
				clipped, err := clip.ReadText()
				if err != nil {
					slog.Warn("clipboard read failed", "error", err)
				}
				text = clipped
			} else {
				data, err := io.ReadAll(c.App.Reader)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return noticeError(retouch.NewEmptyInput())
			}

			cfg := retouch.NewStore(retouch.ConfigPath()).Load()
			credential := retouch.ResolveAPIKey(cfg)
			if credential == "" {
				return noticeError(retouch.NewMissingCredential())
			}

			req := rewrite.Request{
				SourceText:     text,
				PromptTemplate: cfg.Prompt,
				ModelID:        retouch.ResolveModel(cfg),
			}

			ctx := c.Context
			if timeout := c.Duration("timeout"); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			suggestion, err := rewrite.NewClient(retouch.ResolveBaseURL(cfg)).Rewrite(ctx, req, credential)
			if err != nil {
				slog.Debug("rewrite failed", "error", err)
				return noticeError(err)
			}

			if c.Bool("copy") {
				if err := clip.WriteText(suggestion); err != nil {
					return fmt.Errorf("copy suggestion: %w", err)
				}
			}

			result := rewriteResult{Model: req.ModelID, Suggestion: suggestion}
			switch format {
			case "json":
				return outputJSON(c.App.Writer, result)
			case "toml":
				return toml.NewEncoder(c.App.Writer).Encode(result)
			default:
				_, err := fmt.Fprintln(c.App.Writer, suggestion)
				return err
			}
		},
	}
}

func controlCmd(action, usage string) *cli.Command {
	return &cli.Command{
		Name:  action,
		Usage: usage,
		Action: func(c *cli.Context) error {
			resp, err := sendControl(resolveSocketPath(), action)
			if err != nil {
				return err
			}
			if err := outputJSON(c.App.Writer, resp); err != nil {
				return err
			}
			if resp.Error != nil {
				return fmt.Errorf("%s: %s", resp.Error.Code, resp.Error.Message)
			}
			return nil
		},
	}
}

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or edit the config file",
		Subcommands: []*cli.Command{
			{
				Name:  "path",
				Usage: "Print the config file path",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintln(c.App.Writer, retouch.ConfigPath())
					return err
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective config with the API key masked",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "json", Usage: "output format: json|toml"},
				},
				Action: func(c *cli.Context) error {
					cfg, warnings := retouch.NewStore(retouch.ConfigPath()).Inspect()
					for _, w := range warnings {
						slog.Warn("config", "warning", w)
					}
					cfg = cfg.Masked()
					switch c.String("format") {
					case "json":
						return outputJSON(c.App.Writer, cfg)
					case "toml":
						return toml.NewEncoder(c.App.Writer).Encode(cfg)
					default:
						return fmt.Errorf("unknown format %q (want json or toml)", c.String("format"))
					}
				},
			},
			{
				Name:  "set",
				Usage: "Change config values; the running agent picks them up",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prompt", Usage: "rewrite instruction"},
					&cli.StringFlag{Name: "model", Usage: "model identifier"},
					&cli.StringFlag{Name: "hotkey", Usage: "global key binding, e.g. CommandOrControl+Shift+G"},
					&cli.StringFlag{Name: "api-key", Usage: "OpenAI API key"},
				},
				Action: configSet,
			},
		},
	}
}

func configSet(c *cli.Context) error {
	store := retouch.NewStore(retouch.ConfigPath())
	cfg := store.Load()

	if c.IsSet("prompt") {
		if strings.TrimSpace(c.String("prompt")) == "" {
			return errors.New("prompt must not be empty")
		}
		cfg.Prompt = c.String("prompt")
	}
	if c.IsSet("model") {
		model := strings.TrimSpace(c.String("model"))
		if model == "" {
			return errors.New("model must not be empty")
		}
		cfg.Model = model
	}
	if c.IsSet("hotkey") {
		b, err := keybind.Parse(c.String("hotkey"))
		if err != nil {
			return err
		}
		cfg.Hotkey = b.String()
	}
	// An empty key keeps the stored one.
	cfg.APIKey = ""
	if c.IsSet("api-key") {
		cfg.APIKey = strings.TrimSpace(c.String("api-key"))
	}

	if err := store.Save(cfg); err != nil {
		return err
	}
	slog.Info("config saved", "path", store.Path())
	_, err := fmt.Fprintln(c.App.Writer, store.Path())
	return err
}

// noticeError turns a rewrite failure into the message the agent would
// show in its notification.
func noticeError(err error) error {
	var rerr *retouch.Error
	if !errors.As(err, &rerr) {
		return err
	}
	_, body := rerr.Notice()
	return errors.New(body)
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
