// Package loop provides the agent loop driver: the state machine that
// repeatedly invokes an external worker process against a task list until
// the worker signals completion or a failure budget is exhausted.
package loop

import (
	"context"
	"time"
)

// Invoker runs one worker invocation and returns the merged stdout+stderr
// text. The call blocks until the external process exits; bounding its
// latency is the invoker's responsibility, not the driver's.
type Invoker interface {
	// Name returns the human-readable worker name for progress output.
	Name() string

	// Invoke runs the worker in workDir with the given prompt text and
	// returns the full merged output once the process has exited.
	Invoke(ctx context.Context, workDir, prompt string) (string, error)
}

// Status describes how a run terminated.
type Status int

const (
	// StatusSucceeded means the completion marker was observed.
	StatusSucceeded Status = iota

	// StatusFailedMaxIterations means the iteration budget ran out without
	// the completion marker appearing.
	StatusFailedMaxIterations

	// StatusFailedTooManyErrors means the consecutive transient-error budget
	// was exhausted.
	StatusFailedTooManyErrors
)

// String returns a human-readable description of the status
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailedMaxIterations:
		return "failed_max_iterations"
	case StatusFailedTooManyErrors:
		return "failed_too_many_errors"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit code for the status. Both failure paths
// share exit code 1; callers that need to tell them apart use Status.
func (s Status) ExitCode() int {
	if s == StatusSucceeded {
		return 0
	}
	return 1
}

// Result is the final outcome of a run
type Result struct {
	// Status describes why the run terminated
	Status Status

	// Iterations is the number of productive iterations executed.
	// Retries of the same iteration after a transient error do not count.
	Iterations int

	// Invocations is the total number of worker invocations, retries included
	Invocations int

	// LastOutput is the merged output of the final invocation
	LastOutput string
}

// Config contains the loop driver's tuning knobs. A Config is immutable for
// the lifetime of a run.
type Config struct {
	// MaxIterations is the productive-iteration budget (default: 10)
	MaxIterations int

	// MaxConsecutiveErrors is the transient-error budget before the run is
	// aborted (default: 3)
	MaxConsecutiveErrors int

	// BaseRetryDelay is the backoff unit; the wait before the n-th
	// consecutive retry is BaseRetryDelay * n (default: 10s)
	BaseRetryDelay time.Duration

	// IterationDelay is the fixed pause between productive iterations
	// (default: 2s)
	IterationDelay time.Duration
}

// DefaultConfig returns a Config with the standard budgets
func DefaultConfig() *Config {
	return &Config{
		MaxIterations:        10,
		MaxConsecutiveErrors: 3,
		BaseRetryDelay:       10 * time.Second,
		IterationDelay:       2 * time.Second,
	}
}

// Recorder receives a record of every worker invocation. Implementations
// must not block the loop; a nil Recorder is valid and disables recording.
type Recorder interface {
	// RecordInvocation records one classified invocation. attempt is 1 for
	// the first try of an iteration and increases across retries.
	RecordInvocation(iteration, attempt int, class Classification, elapsed time.Duration, output string)
}
