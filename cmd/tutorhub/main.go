package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/geocoder89/tutorhub/internal/app"
	"github.com/geocoder89/tutorhub/internal/backend"
	"github.com/geocoder89/tutorhub/internal/bootstrap"
	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/peterh/liner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tutorhub:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	log := observability.NewConsoleLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	platform, err := bootstrap.Open(ctx, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer platform.Close()

	svc := platform.Service(log, nil)
	sess := backend.NewSession(svc)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(complete)

	historyPath := filepath.Join(filepath.Dir(cfg.PrefsFile), "history")
	loadHistory(line, historyPath, log)
	defer saveHistory(line, historyPath, log)

	sh := newShell(line, os.Stdout, liner.TerminalSupported())
	ctrl := app.New(sess, svc, app.NewFileThemeStore(cfg.PrefsFile), app.Options{
		Logger:      log,
		OnChange:    sh.markDirty,
		OnTheme:     sh.setDark,
		PrefersDark: cfg.PrefersDark,
	})
	sh.ctrl = ctrl

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	defer ctrl.Close()
	defer sh.close()

	sh.settle(ctx, nil)
	sh.printf("type help for commands\n")

	for ctx.Err() == nil {
		text, err := line.Prompt(sh.prompt())
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			continue
		case errors.Is(err, io.EOF):
			fmt.Println()
			return nil
		case err != nil:
			return fmt.Errorf("read prompt: %w", err)
		}

		if strings.TrimSpace(text) == "" {
			continue
		}
		line.AppendHistory(text)

		err = sh.exec(ctx, text)
		if errors.Is(err, errQuit) {
			return nil
		}
		sh.settle(ctx, err)
	}
	return nil
}

func loadHistory(line *liner.State, path string, log *slog.Logger) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := line.ReadHistory(f); err != nil {
		log.Warn("could not read history", "path", path, "err", err)
	}
}

func saveHistory(line *liner.State, path string, log *slog.Logger) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warn("could not save history", "path", path, "err", err)
		return
	}
	f, err := os.Create(path)
	if err != nil {
		log.Warn("could not save history", "path", path, "err", err)
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		log.Warn("could not save history", "path", path, "err", err)
	}
}
