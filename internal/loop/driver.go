package loop

import (
	"fmt"
	"time"

	"context"

	"github.com/codefionn/promptloop/internal/logger"
	"github.com/codefionn/promptloop/internal/progress"
)

// SleepFunc suspends the driver for the given duration. It returns early
// with the context error if the context is cancelled during the wait.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default SleepFunc
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Driver executes the agent loop. It owns the run state exclusively; nothing
// else mutates the counters while a run is in flight.
type Driver struct {
	cfg      *Config
	invoker  Invoker
	sleep    SleepFunc
	progress progress.Callback
	recorder Recorder

	state *RunState
}

// Option configures a Driver
type Option func(*Driver)

// WithSleep replaces the blocking sleep implementation. Tests use this to
// capture backoff durations without waiting.
func WithSleep(fn SleepFunc) Option {
	return func(d *Driver) { d.sleep = fn }
}

// WithProgress sets the progress callback for per-iteration status output
func WithProgress(cb progress.Callback) Option {
	return func(d *Driver) { d.progress = cb }
}

// WithRecorder sets the invocation recorder (run-history ledger)
func WithRecorder(r Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// New creates a Driver for one run. The config is copied so later mutation
// by the caller cannot change a run in flight.
func New(cfg *Config, invoker Invoker, opts ...Option) *Driver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfgCopy := *cfg
	d := &Driver{
		cfg:     &cfgCopy,
		invoker: invoker,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.state = NewRunState(d.cfg)
	return d
}

// State returns the driver's run state for inspection. Counters are only
// mutated by Run.
func (d *Driver) State() *RunState {
	return d.state
}

// Run executes the loop until a terminal state is reached. Each pass invokes
// the worker once, classifies its merged output, and either retries the same
// iteration (transient error, linear backoff), stops (completion or a budget
// exhausted), or advances to the next iteration.
//
// The returned error is non-nil only for context cancellation; every other
// terminal condition is expressed through Result.Status.
func (d *Driver) Run(ctx context.Context, workDir, prompt string) (*Result, error) {
	worker := d.invoker.Name()
	logger.Info("Starting run: worker=%s max_iterations=%d", worker, d.cfg.MaxIterations)

	attempt := 1
	for {
		iteration := d.state.Iteration()
		d.report(fmt.Sprintf("Iteration %d/%d (%s)", iteration, d.cfg.MaxIterations, worker))

		started := time.Now()
		output, err := d.invoker.Invoke(ctx, workDir, prompt)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			// The worker's exit code is not part of the classification
			// contract; only the output text is.
			logger.Warn("Worker exited with error: %v", err)
		}
		d.state.RecordInvocation()

		class := Classify(output)
		elapsed := time.Since(started)
		logger.Debug("Invocation classified: iteration=%d attempt=%d class=%s elapsed=%s",
			iteration, attempt, class, elapsed.Round(time.Millisecond))
		if d.recorder != nil {
			d.recorder.RecordInvocation(iteration, attempt, class, elapsed, output)
		}

		if class == ClassTransientError {
			streak := d.state.RecordTransientError()
			if streak >= d.cfg.MaxConsecutiveErrors {
				d.report(fmt.Sprintf("Aborting after %d consecutive connection errors. Check network and %s status.",
					streak, worker))
				return d.result(StatusFailedTooManyErrors, output), nil
			}
			delay := d.cfg.BaseRetryDelay * time.Duration(streak)
			d.reportEphemeral(fmt.Sprintf("Connection error (%d/%d), retrying iteration %d in %s",
				streak, d.cfg.MaxConsecutiveErrors, iteration, delay))
			if err := d.sleep(ctx, delay); err != nil {
				return nil, err
			}
			attempt++
			continue
		}

		d.state.ResetErrors()

		if class == ClassCompletion {
			d.report(fmt.Sprintf("Completion signal received on iteration %d", iteration))
			return d.result(StatusSucceeded, output), nil
		}

		if d.state.HasReachedLimit() {
			d.report(fmt.Sprintf("Reached max iterations (%d) without completion. See the progress log for details.",
				d.cfg.MaxIterations))
			return d.result(StatusFailedMaxIterations, output), nil
		}

		d.state.AdvanceIteration()
		attempt = 1
		if err := d.sleep(ctx, d.cfg.IterationDelay); err != nil {
			return nil, err
		}
	}
}

func (d *Driver) result(status Status, lastOutput string) *Result {
	logger.Info("Run finished: status=%s iterations=%d invocations=%d",
		status, d.state.Iteration(), d.state.Invocations())
	return &Result{
		Status:      status,
		Iterations:  d.state.Iteration(),
		Invocations: d.state.Invocations(),
		LastOutput:  lastOutput,
	}
}

func (d *Driver) report(msg string) {
	d.dispatch(progress.Update{Message: msg, AddNewLine: true})
}

// reportEphemeral is for status lines superseded by the next report, like
// retry waits. Persistent fronts (the web progress log) skip these.
func (d *Driver) reportEphemeral(msg string) {
	d.dispatch(progress.Update{Message: msg, AddNewLine: true, Ephemeral: true})
}

func (d *Driver) dispatch(u progress.Update) {
	if err := progress.Dispatch(d.progress, u); err != nil {
		logger.Warn("Progress callback failed: %v", err)
	}
}
