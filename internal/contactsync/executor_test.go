package contactsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/contactsync/internal/graph"
)

// nopProvider is a TokenProvider for sessions that never reach the network.
type nopProvider struct{}

func (nopProvider) Acquire(_ context.Context) (graph.Token, error) {
	return graph.Token{Value: "token", ExpiresIn: time.Hour}, nil
}

// fakeSender records every request and answers from per-path overrides.
type fakeSender struct {
	mu sync.Mutex

	batchCalls [][]graph.Request
	sent       []graph.Request

	// batchErr, when set, is returned by Batch calls numbered >= batchErrFrom (0-based).
	batchErr     error
	batchErrFrom int

	// failPaths maps request paths to the error they produce.
	failPaths map[string]error
}

func (f *fakeSender) Send(_ context.Context, req graph.Request) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, req)

	if err, ok := f.failPaths[req.Path]; ok {
		return http.StatusBadRequest, err
	}

	return statusFor(req.Method), nil
}

func (f *fakeSender) Batch(_ context.Context, reqs []graph.Request) ([]graph.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := len(f.batchCalls)
	f.batchCalls = append(f.batchCalls, reqs)

	if f.batchErr != nil && call >= f.batchErrFrom {
		return nil, f.batchErr
	}

	out := make([]graph.Response, len(reqs))
	for i, req := range reqs {
		out[i] = graph.Response{ID: req.ID, Status: statusFor(req.Method)}

		if err, ok := f.failPaths[req.Path]; ok {
			out[i].Status = http.StatusBadRequest
			out[i].Err = err
		}
	}

	return out, nil
}

func statusFor(method string) int {
	switch method {
	case http.MethodPost:
		return http.StatusCreated
	case http.MethodDelete:
		return http.StatusNoContent
	default:
		return http.StatusOK
	}
}

func createOps(n int) []Operation {
	ops := make([]Operation, 0, n)
	for i := range n {
		ops = append(ops, NewCreate("user-1", "", graph.ContactPayload{
			DisplayName: fmt.Sprintf("Contact %d", i),
		}))
	}

	return ops
}

func deleteOps(n int) []Operation {
	ops := make([]Operation, 0, n)
	for i := range n {
		ops = append(ops, NewDelete("user-1", &graph.ContactRecord{ID: fmt.Sprintf("c%d", i)}))
	}

	return ops
}

func TestExecuteAll_BatchesInChunks(t *testing.T) {
	sender := &fakeSender{}
	session := graph.NewSession(nopProvider{}, true)
	exec := NewExecutor(sender, session, ExecutorOptions{BatchSize: 20}, testLogger(t))

	ops := createOps(45)
	results := exec.ExecuteAll(t.Context(), ops)

	require.Len(t, results, 45)
	require.Len(t, sender.batchCalls, 3)
	assert.Len(t, sender.batchCalls[0], 20)
	assert.Len(t, sender.batchCalls[1], 20)
	assert.Len(t, sender.batchCalls[2], 5)
	assert.Empty(t, sender.sent)

	for i, res := range results {
		assert.Same(t, ops[i], res.Op, "results keep input order")
		assert.True(t, res.OK())
		assert.Equal(t, http.StatusCreated, res.Status)
	}

	assert.Equal(t, ops[0].Token(), sender.batchCalls[0][0].ID, "token is the correlation id")
}

func TestExecuteAll_BatchSizeCapped(t *testing.T) {
	sender := &fakeSender{}
	session := graph.NewSession(nopProvider{}, true)
	exec := NewExecutor(sender, session, ExecutorOptions{BatchSize: 100}, testLogger(t))

	exec.ExecuteAll(t.Context(), createOps(25))

	require.Len(t, sender.batchCalls, 2)
	assert.Len(t, sender.batchCalls[0], graph.MaxBatchSize)
}

func TestExecuteAll_FallbackIsPermanent(t *testing.T) {
	sender := &fakeSender{
		batchErr:     graph.NewGraphError(http.StatusMethodNotAllowed, "req", "batch unsupported"),
		batchErrFrom: 1,
	}
	session := graph.NewSession(nopProvider{}, true)
	exec := NewExecutor(sender, session, ExecutorOptions{BatchSize: 5}, testLogger(t))

	results := exec.ExecuteAll(t.Context(), createOps(12))

	// First chunk batched, second chunk rejected, everything after sequential.
	require.Len(t, sender.batchCalls, 2)
	assert.Len(t, sender.sent, 7)
	assert.False(t, session.BatchSupported())

	for _, res := range results {
		assert.True(t, res.OK())
	}

	// A later call on the same session never tries batch again.
	exec.ExecuteAll(t.Context(), createOps(3))
	assert.Len(t, sender.batchCalls, 2)
	assert.Len(t, sender.sent, 10)

	// Nor does a fresh executor sharing the session.
	other := NewExecutor(sender, session, ExecutorOptions{}, testLogger(t))
	other.ExecuteAll(t.Context(), deleteOps(2))
	assert.Len(t, sender.batchCalls, 2)
}

func TestExecuteAll_BatchDisabledFromStart(t *testing.T) {
	sender := &fakeSender{}
	session := graph.NewSession(nopProvider{}, false)
	exec := NewExecutor(sender, session, ExecutorOptions{}, testLogger(t))

	results := exec.ExecuteAll(t.Context(), deleteOps(3))

	assert.Empty(t, sender.batchCalls)
	require.Len(t, sender.sent, 3)

	for i, res := range results {
		assert.Equal(t, http.StatusNoContent, res.Status)
		assert.Equal(t, http.MethodDelete, sender.sent[i].Method)
	}
}

func TestExecuteAll_PerOperationFailureIsolated(t *testing.T) {
	for _, batch := range []bool{true, false} {
		t.Run(fmt.Sprintf("batch=%v", batch), func(t *testing.T) {
			ops := deleteOps(3)
			failing := graph.ContactPath("user-1", "c1")
			wantErr := graph.NewGraphError(http.StatusBadRequest, "r1", "bad")

			sender := &fakeSender{failPaths: map[string]error{failing: wantErr}}
			session := graph.NewSession(nopProvider{}, batch)
			exec := NewExecutor(sender, session, ExecutorOptions{}, testLogger(t))

			results := exec.ExecuteAll(t.Context(), ops)

			require.Len(t, results, 3)
			assert.True(t, results[0].OK())
			assert.ErrorIs(t, results[1].Err, graph.ErrBadRequest)
			assert.True(t, results[2].OK())
		})
	}
}

func TestExecuteAll_DryRunSendsNothing(t *testing.T) {
	sender := &fakeSender{}
	session := graph.NewSession(nopProvider{}, true)
	exec := NewExecutor(sender, session, ExecutorOptions{DryRun: true}, testLogger(t))

	results := exec.ExecuteAll(t.Context(), createOps(4))

	assert.Empty(t, sender.batchCalls)
	assert.Empty(t, sender.sent)

	for _, res := range results {
		assert.True(t, res.Skipped)
		assert.False(t, res.OK())
	}
}

func TestExecuteAll_SequentialPacing(t *testing.T) {
	sender := &fakeSender{}
	session := graph.NewSession(nopProvider{}, false)
	exec := NewExecutor(sender, session, ExecutorOptions{PacingDelay: 20 * time.Millisecond}, testLogger(t))

	start := time.Now()
	exec.ExecuteAll(t.Context(), deleteOps(4))

	// Burst of one: the first request is immediate, three more wait a slot each.
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
	assert.Len(t, sender.sent, 4)
}

func TestExecuteAll_CanceledContextFailsRemaining(t *testing.T) {
	sender := &fakeSender{}
	session := graph.NewSession(nopProvider{}, false)
	exec := NewExecutor(sender, session, ExecutorOptions{PacingDelay: time.Hour}, testLogger(t))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	results := exec.ExecuteAll(ctx, deleteOps(2))

	for _, res := range results {
		assert.True(t, errors.Is(res.Err, context.Canceled))
	}
}

func TestExecuteAll_TokenFailureFailsRemaining(t *testing.T) {
	tokenErr := fmt.Errorf("%w: idp down", graph.ErrTokenAcquisition)

	t.Run("batch", func(t *testing.T) {
		sender := &fakeSender{batchErr: tokenErr}
		session := graph.NewSession(nopProvider{}, true)
		exec := NewExecutor(sender, session, ExecutorOptions{BatchSize: 2}, testLogger(t))

		results := exec.ExecuteAll(t.Context(), createOps(5))

		assert.Len(t, sender.batchCalls, 1)
		assert.Empty(t, sender.sent)
		assert.True(t, session.BatchSupported())

		for _, res := range results {
			assert.ErrorIs(t, res.Err, graph.ErrTokenAcquisition)
		}
	})

	t.Run("sequential", func(t *testing.T) {
		sender := &fakeSender{failPaths: map[string]error{graph.ContactPath("user-1", "c1"): tokenErr}}
		session := graph.NewSession(nopProvider{}, false)
		exec := NewExecutor(sender, session, ExecutorOptions{}, testLogger(t))

		results := exec.ExecuteAll(t.Context(), deleteOps(4))

		assert.Len(t, sender.sent, 2, "nothing is sent after the failure")
		assert.True(t, results[0].OK())

		for _, res := range results[1:] {
			assert.ErrorIs(t, res.Err, graph.ErrTokenAcquisition)
		}
	})
}
