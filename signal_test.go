package main

import (
	"context"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestShutdownContext_SIGTERMCancels(t *testing.T) {
	ctx := shutdownContext(t.Context(), discardLogger())

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled within 2 seconds of SIGTERM")
	}
}

func TestWatchSignals_SecondSignalExits(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	exited := make(chan int, 1)

	ctx := watchSignals(t.Context(), discardLogger(), sigCh, func() {}, func(code int) { exited <- code })

	sigCh <- os.Interrupt

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("first signal did not cancel the run")
	}

	assert.Empty(t, exited, "the first signal only cancels")

	sigCh <- syscall.SIGTERM

	select {
	case code := <-exited:
		assert.Equal(t, 1, code)
	case <-time.After(2 * time.Second):
		t.Fatal("second signal did not exit")
	}
}

func TestWatchSignals_ParentCancelStopsWatching(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})

	ctx := watchSignals(parent, discardLogger(), make(chan os.Signal), func() { close(stopped) }, func(int) {
		t.Error("exit called after parent cancel")
	})

	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("signal watcher still running after parent cancel")
	}

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
