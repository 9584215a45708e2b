package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/irrigo/irrigo/internal/app"
	"github.com/irrigo/irrigo/internal/platform"
	"github.com/irrigo/irrigo/internal/ui"
)

type launchOptions struct {
	StartHidden bool
}

func main() {
	opts, err := parseLaunchOptions(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		fmt.Println("usage: irrigo [--start-hidden]")
		return
	}
	if err != nil {
		slog.Error("parse launch options", "error", err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		if errors.Is(err, platform.ErrAlreadyRunning) {
			slog.Info("irrigo is already running")
			return
		}
		slog.Error("run gui", "error", err)
		os.Exit(1)
	}
}

func run(opts launchOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	lock, err := platform.LockInstance(paths.RootDir, app.Name)
	switch {
	case errors.Is(err, platform.ErrLockUnsupported):
		slog.Warn("single instance lock unavailable", "error", err)
	case err != nil:
		return err
	default:
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				slog.Warn("release instance lock", "error", releaseErr)
			}
		}()
	}

	rt, err := app.InitializeWithPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("initialize app runtime: %w", err)
	}

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			if closeErr := rt.Close(); closeErr != nil {
				slog.Warn("close runtime", "error", closeErr)
			}
		})
	}
	defer closeRuntime()

	// Started hidden means the window is in the background from the first tick.
	rt.SetForeground(!opts.StartHidden)
	rt.StartLink()

	dep := ui.BuildRuntimeDependencies(rt, ui.LaunchOptions{StartHidden: opts.StartHidden}, func() {
		stop()
		closeRuntime()
	})
	if err := ui.Run(dep); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}

	return nil
}

func parseLaunchOptions(args []string) (launchOptions, error) {
	fs := flag.NewFlagSet("irrigo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts launchOptions
	fs.BoolVar(&opts.StartHidden, "start-hidden", false, "start minimized to the system tray")
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if fs.NArg() > 0 {
		return launchOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	return opts, nil
}
