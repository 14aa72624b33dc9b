package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	retouch "github.com/Paranoid-AF/retouch"
	"github.com/Paranoid-AF/retouch/controller"
	"github.com/Paranoid-AF/retouch/desktop"
	"github.com/Paranoid-AF/retouch/rewrite"
	"github.com/Paranoid-AF/retouch/watch"
)

// requestTimeout bounds one rewrite call made from the hotkey.
const requestTimeout = 60 * time.Second

// runAgent runs the tray, hotkey, control socket and config watcher until
// the user quits or the process is signalled.
func runAgent(c *cli.Context, clip controller.Clipboard) error {
	store := retouch.NewStore(retouch.ConfigPath())
	cfg, warnings := store.Inspect()
	for _, w := range warnings {
		slog.Warn("config", "warning", w)
	}
	if err := os.MkdirAll(filepath.Dir(store.Path()), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var rewriter rewrite.Rewriter = rewrite.NewClient(retouch.ResolveBaseURL(cfg))
	if cfg.CacheTTLSeconds > 0 {
		cache := rewrite.NewCache(rewriter, time.Duration(cfg.CacheTTLSeconds)*time.Second)
		defer cache.Close()
		rewriter = cache
	}

	notifier := desktop.Notifier{}
	dialogs := desktop.NewDialogs()
	ctrl := controller.New(controller.Options{
		Store:          store,
		Rewriter:       rewriter,
		Clipboard:      clip,
		Notifier:       notifier,
		Presenter:      dialogs,
		Hotkeys:        desktop.NewHotkeys(),
		RequestTimeout: requestTimeout,
	})
	dialogs.Bind(ctrl)
	defer ctrl.Close()

	sockPath := resolveSocketPath()
	srv, err := NewServer(sockPath, ctrl)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", sockPath, err)
	}
	defer srv.Close()

	watcher, err := watch.New(store.Path(), watch.DefaultDebounce, func() {
		if err := ctrl.Reload(); err != nil {
			slog.Warn("config reload incomplete", "error", err)
		}
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The controller is closed while the tray loop still runs, so hotkeys
	// are released on the thread that owns them.
	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			slog.Info("shutting down")
			ctrl.Close()
			desktop.QuitTray()
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Serve)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdown()
		srv.Close()
		return nil
	})

	slog.Info("starting", "config", store.Path(), "socket", sockPath, "model", retouch.ResolveModel(cfg))

	desktop.RunTray(desktop.TrayMenu{
		OnReady: func() {
			if err := ctrl.Start(); err != nil {
				slog.Error("failed to register hotkey", "error", err)
				notifier.Notify("Hotkey Error", fmt.Sprintf("Could not register %s", ctrl.Config().Hotkey))
				return
			}
			slog.Info("ready", "hotkey", ctrl.Binding())
		},
		OnSettings: func() {
			if err := ctrl.ShowSettings(); err != nil {
				slog.Error("failed to open settings", "error", err)
			}
		},
		OnQuit: shutdown,
		OnError: func(err error) {
			notifier.Notify("Tray Icon Error", "The tray icon could not be created; use the hotkey or the retouch command")
		},
	})

	shutdown()
	stop()
	return g.Wait()
}
