package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns the run context. The first SIGINT or SIGTERM
// cancels it: the runner stops before the next target user and the executor
// fails the current user's unsent operations, so the printed summary covers
// everything applied up to that point. A second signal exits immediately
// without a summary.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return watchSignals(parent, logger, sigCh, func() { signal.Stop(sigCh) }, os.Exit)
}

func watchSignals(
	parent context.Context, logger *slog.Logger,
	sigCh <-chan os.Signal, stop func(), exit func(int),
) context.Context {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		defer stop()

		select {
		case sig := <-sigCh:
			logger.Info("received signal, stopping before the next user",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, exiting without a summary",
				slog.String("signal", sig.String()),
			)
			exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}
