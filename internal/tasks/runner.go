package tasks

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/codegraph-dev/indexer/pkg/errs"
)

// tracerName is the default OTel tracer name for task execution spans.
const tracerName = "indexerd.tasks"

// backoff bounds: 1s initial, doubling, capped at 30s.
const (
	backoffInitial    = time.Second
	backoffMultiplier = 2
	backoffCap        = 30 * time.Second
)

// Outcome is the terminal state of one task run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCancelled Outcome = "cancelled"
)

// RunResult summarizes one task's pass through the base wrapper.
type RunResult struct {
	Task     Name
	Outcome  Outcome
	Duration time.Duration
	Attempts int
	Err      error
}

// backoffDelay returns the delay before retry attempt n (1-indexed):
// 1s, 2s, 4s, ... capped at 30s.
func backoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	d := backoffInitial
	for i := 1; i < attempt; i++ {
		d *= backoffMultiplier
		if d >= backoffCap {
			return backoffCap
		}
	}

	return d
}

// Run wraps a Task's four steps (ShouldRun, Validate, Execute, Cleanup)
// with timeout enforcement, retry bookkeeping, and duration measurement.
// On success the task's result is written into jc via Set. tracer may be
// nil, in which case the global provider's tracer is used.
func Run(ctx context.Context, task Task, jc *JobContext, tracer trace.Tracer) RunResult {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	name := task.Name()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "indexerd.task."+string(name),
		trace.WithAttributes(attribute.String("task.name", string(name))))
	defer span.End()

	should, err := task.ShouldRun(ctx, jc)
	if err != nil {
		return failedResult(name, start, 0, err)
	}

	if !should {
		span.SetAttributes(attribute.Bool("task.skipped", true))

		return RunResult{Task: name, Outcome: OutcomeSkipped, Duration: time.Since(start)}
	}

	if err := task.Validate(ctx, jc); err != nil {
		return failedResult(name, start, 0, err)
	}

	result, execErr, attempts := runWithRetry(ctx, task, jc)

	if cleanupErr := task.Cleanup(context.WithoutCancel(ctx), jc); cleanupErr != nil {
		jc.Logger.Warn("task cleanup failed", "task", name, "error", cleanupErr)
	}

	duration := time.Since(start)

	if execErr != nil {
		outcome := OutcomeFailed
		if errors.Is(ctx.Err(), context.Canceled) {
			outcome = OutcomeCancelled
		}

		span.SetAttributes(attribute.String("task.outcome", string(outcome)))

		return RunResult{Task: name, Outcome: outcome, Duration: duration, Attempts: attempts, Err: execErr}
	}

	jc.Set(name, result)
	span.SetAttributes(attribute.String("task.outcome", string(OutcomeSucceeded)))

	return RunResult{Task: name, Outcome: OutcomeSucceeded, Duration: duration, Attempts: attempts}
}

// runWithRetry executes task.Execute under the task's effective timeout,
// retrying retryable failures up to task.Retries(jc) times with exponential
// backoff. It stops early on job-level cancellation.
func runWithRetry(ctx context.Context, task Task, jc *JobContext) (any, error, int) {
	timeout := task.Timeout(jc)
	retries := task.Retries(jc)

	var (
		result  any
		execErr error
	)

	attempt := 0

	for attempt = 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err(), attempt + 1
			}
		}

		execCtx := ctx

		var cancel context.CancelFunc
		if timeout > 0 {
			execCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		result, execErr = task.Execute(execCtx, jc)
		if cancel != nil {
			cancel()
		}

		if execErr == nil {
			return result, nil, attempt + 1
		}

		if ctx.Err() != nil {
			return nil, execErr, attempt + 1
		}

		if !errs.Retryable(execErr) {
			return nil, execErr, attempt + 1
		}
	}

	return nil, execErr, attempt
}

func failedResult(name Name, start time.Time, attempts int, err error) RunResult {
	return RunResult{Task: name, Outcome: OutcomeFailed, Duration: time.Since(start), Attempts: attempts, Err: err}
}
