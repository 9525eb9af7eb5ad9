package contactsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/tonimelisma/contactsync/internal/graph"
)

// errBatchUnsupported signals that a $batch submission failed and the
// executor must fall back to sequential requests. It never leaves this file.
var errBatchUnsupported = errors.New("contactsync: batch submission unsupported")

// DefaultPacingDelay spaces sequential requests after batch fallback.
const DefaultPacingDelay = 100 * time.Millisecond

// Sender is the subset of graph.Client the executor needs.
type Sender interface {
	Send(ctx context.Context, req graph.Request) (int, error)
	Batch(ctx context.Context, reqs []graph.Request) ([]graph.Response, error)
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	BatchSize   int           // requests per $batch call, capped at graph.MaxBatchSize
	PacingDelay time.Duration // gap between sequential requests; 0 disables pacing
	DryRun      bool          // report every operation as skipped without sending
}

// Executor applies operations, grouping them into $batch calls while the
// session believes batching works and falling back permanently to paced
// sequential requests the first time a batch submission fails.
type Executor struct {
	sender    Sender
	session   *graph.Session
	logger    *slog.Logger
	batchSize int
	limiter   *rate.Limiter
	dryRun    bool
}

// NewExecutor creates an Executor bound to the run session.
func NewExecutor(sender Sender, session *graph.Session, opts ExecutorOptions, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	size := opts.BatchSize
	if size <= 0 || size > graph.MaxBatchSize {
		size = graph.MaxBatchSize
	}

	limit := rate.Inf
	if opts.PacingDelay > 0 {
		limit = rate.Every(opts.PacingDelay)
	}

	return &Executor{
		sender:    sender,
		session:   session,
		logger:    logger,
		batchSize: size,
		limiter:   rate.NewLimiter(limit, 1),
		dryRun:    opts.DryRun,
	}
}

// ExecuteAll applies ops and returns one result per operation, in input
// order. A failing operation never prevents the others from running,
// except a token acquisition failure, which fails every remaining one.
func (e *Executor) ExecuteAll(ctx context.Context, ops []Operation) []OperationResult {
	results := make([]OperationResult, len(ops))
	for i, op := range ops {
		results[i].Op = op
	}

	if e.dryRun {
		for i := range results {
			results[i].Skipped = true

			e.logger.Info("dry run: would apply operation",
				slog.String("kind", ops[i].Kind().String()),
				slog.String("user_id", ops[i].UserID()),
				slog.String("path", ops[i].request().Path),
			)
		}

		return results
	}

	next := 0

	for next < len(ops) && e.session.BatchSupported() {
		end := min(next+e.batchSize, len(ops))

		err := e.executeBatch(ctx, ops[next:end], results[next:end])
		if err == nil {
			next = end
			continue
		}

		if ctx.Err() != nil {
			failRemaining(results[next:], ctx.Err())
			return results
		}

		if errors.Is(err, graph.ErrTokenAcquisition) {
			failRemaining(results[next:], err)
			return results
		}

		if e.session.DisableBatch() {
			e.logger.Warn("batch requests unsupported, falling back to sequential requests for the rest of the run",
				slog.String("error", err.Error()),
			)
		}
	}

	for i := next; i < len(ops); i++ {
		if err := e.limiter.Wait(ctx); err != nil {
			failRemaining(results[i:], err)
			return results
		}

		e.executeOne(ctx, &results[i])

		if errors.Is(results[i].Err, graph.ErrTokenAcquisition) {
			failRemaining(results[i+1:], results[i].Err)
			return results
		}
	}

	return results
}

// executeBatch submits one chunk and fills its results. Any envelope
// failure is reported as errBatchUnsupported and leaves results untouched.
func (e *Executor) executeBatch(ctx context.Context, ops []Operation, results []OperationResult) error {
	reqs := make([]graph.Request, len(ops))
	for i, op := range ops {
		reqs[i] = op.request()
	}

	responses, err := e.sender.Batch(ctx, reqs)
	if err != nil {
		return fmt.Errorf("%w: %w", errBatchUnsupported, err)
	}

	if len(responses) != len(reqs) {
		return fmt.Errorf("%w: %d responses for %d requests", errBatchUnsupported, len(responses), len(reqs))
	}

	for i := range responses {
		results[i].Status = responses[i].Status
		results[i].Err = responses[i].Err
		e.logResult(&results[i])
	}

	return nil
}

// executeOne sends a single operation through the retrying executor.
func (e *Executor) executeOne(ctx context.Context, res *OperationResult) {
	status, err := e.sender.Send(ctx, res.Op.request())
	res.Status = status
	res.Err = err
	e.logResult(res)
}

func (e *Executor) logResult(res *OperationResult) {
	if res.Err != nil {
		e.logger.Warn("operation failed",
			slog.String("kind", res.Op.Kind().String()),
			slog.String("user_id", res.Op.UserID()),
			slog.String("token", res.Op.Token()),
			slog.Int("status", res.Status),
			slog.String("error", res.Err.Error()),
		)

		return
	}

	e.logger.Debug("operation applied",
		slog.String("kind", res.Op.Kind().String()),
		slog.String("user_id", res.Op.UserID()),
		slog.Int("status", res.Status),
	)
}

func failRemaining(results []OperationResult, err error) {
	for i := range results {
		if results[i].Err == nil && results[i].Status == 0 {
			results[i].Err = err
		}
	}
}
