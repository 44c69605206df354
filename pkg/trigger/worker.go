package trigger

import (
	"context"
	"time"

	qerrors "github.com/quarryintel/quarry-cli/pkg/errors"
	"github.com/quarryintel/quarry-cli/pkg/linker"
	"github.com/quarryintel/quarry-cli/pkg/logging"
)

// Runner resolves one extraction result. Satisfied by *linker.Orchestrator.
type Runner interface {
	Run(ctx context.Context, extractionID int64) (*linker.Summary, error)
}

// Worker dequeues resolution triggers and runs them. Failed runs are
// retried a bounded number of times, then dead-lettered. Precondition
// failures (extraction missing or not in ai_done) are dropped without
// retry, since retrying cannot make the precondition true.
type Worker struct {
	source      Source
	runner      Runner
	logger      logging.Logger
	maxAttempts int
	retryDelay  time.Duration
	pollTimeout time.Duration
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the worker's logger.
func WithWorkerLogger(logger logging.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithMaxAttempts sets how many times a trigger runs before dead-lettering.
func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause before a failed trigger is requeued.
func WithRetryDelay(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.retryDelay = d
	}
}

// WithPollTimeout sets how long each dequeue blocks.
func WithPollTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollTimeout = d
		}
	}
}

// NewWorker creates a worker consuming from source and resolving via runner.
func NewWorker(source Source, runner Runner, opts ...WorkerOption) *Worker {
	w := &Worker{
		source:      source,
		runner:      runner,
		logger:      logging.NewNopLogger(),
		maxAttempts: 3,
		retryDelay:  5 * time.Second,
		pollTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes triggers until ctx is cancelled. It returns ctx.Err() on
// shutdown; dequeue errors are logged and the loop continues.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("trigger worker started",
		logging.F("max_attempts", w.maxAttempts),
		logging.F("retry_delay", w.retryDelay.String()))

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("trigger worker stopping")
			return err
		}

		msg, err := w.source.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("trigger worker stopping")
				return ctx.Err()
			}
			w.logger.Error("failed to dequeue trigger", logging.Err(err))
			if !w.sleep(ctx, w.retryDelay) {
				return ctx.Err()
			}
			continue
		}
		if msg == nil {
			continue
		}

		w.handle(ctx, msg)
	}
}

func (w *Worker) handle(ctx context.Context, msg *Message) {
	fields := []logging.Field{
		logging.F("message_id", msg.ID),
		logging.F("extraction_id", msg.ExtractionID),
		logging.F("attempt", msg.Attempt+1),
	}

	summary, err := w.runner.Run(ctx, msg.ExtractionID)
	if err == nil {
		w.logger.Info("resolution trigger processed", append(fields,
			logging.F("outcome", string(summary.Outcome)),
			logging.F("links_written", summary.LinksWritten),
			logging.F("unmatched", summary.Unmatched))...)
		return
	}

	if qerrors.IsNotFound(err) {
		w.logger.Warn("dropping trigger for missing or unready extraction",
			append(fields, logging.Err(err))...)
		return
	}

	msg.Attempt++
	if msg.Attempt >= w.maxAttempts {
		w.logger.Error("trigger exhausted attempts, moving to DLQ",
			append(fields, logging.Err(err))...)
		if dlqErr := w.source.MoveToDLQ(ctx, msg); dlqErr != nil {
			w.logger.Error("failed to dead-letter trigger",
				append(fields, logging.Err(dlqErr))...)
		}
		return
	}

	w.logger.Warn("resolution failed, requeueing trigger",
		append(fields, logging.Err(err))...)
	if !w.sleep(ctx, w.retryDelay) {
		// Shutdown mid-backoff. Requeue without the delay so the
		// trigger is not lost.
		if rqErr := w.source.Requeue(context.WithoutCancel(ctx), msg); rqErr != nil {
			w.logger.Error("failed to requeue trigger during shutdown",
				append(fields, logging.Err(rqErr))...)
		}
		return
	}
	if rqErr := w.source.Requeue(ctx, msg); rqErr != nil {
		w.logger.Error("failed to requeue trigger", append(fields, logging.Err(rqErr))...)
	}
}

// sleep waits for d or until ctx is cancelled. Returns false on cancel.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
