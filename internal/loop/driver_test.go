package loop

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/codefionn/promptloop/internal/progress"
)

// scriptedInvoker replays a fixed sequence of outputs; further calls repeat
// the last entry.
type scriptedInvoker struct {
	outputs []string
	calls   int
}

func (s *scriptedInvoker) Name() string { return "scripted" }

func (s *scriptedInvoker) Invoke(ctx context.Context, workDir, prompt string) (string, error) {
	idx := s.calls
	if idx >= len(s.outputs) {
		idx = len(s.outputs) - 1
	}
	s.calls++
	return s.outputs[idx], nil
}

type recordedInvocation struct {
	iteration int
	attempt   int
	class     Classification
}

type testRecorder struct {
	invocations []recordedInvocation
}

func (r *testRecorder) RecordInvocation(iteration, attempt int, class Classification, elapsed time.Duration, output string) {
	r.invocations = append(r.invocations, recordedInvocation{iteration, attempt, class})
}

func testConfig(maxIterations int) *Config {
	return &Config{
		MaxIterations:        maxIterations,
		MaxConsecutiveErrors: 3,
		BaseRetryDelay:       10 * time.Second,
		IterationDelay:       2 * time.Second,
	}
}

// runScripted executes a driver over the scripted outputs with an
// instrumented sleep that records durations instead of waiting.
func runScripted(t *testing.T, cfg *Config, outputs []string) (*Result, *scriptedInvoker, []time.Duration) {
	t.Helper()

	inv := &scriptedInvoker{outputs: outputs}
	var sleeps []time.Duration
	driver := New(cfg, inv, WithSleep(func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}))

	result, err := driver.Run(context.Background(), t.TempDir(), "do the tasks")
	if err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}
	return result, inv, sleeps
}

func TestCompletionShortCircuitsRemainingBudget(t *testing.T) {
	result, inv, _ := runScripted(t, testConfig(5), []string{
		"working on US-1",
		"done\n" + CompletionMarker,
	})

	if result.Status != StatusSucceeded {
		t.Errorf("Status = %s, want %s", result.Status, StatusSucceeded)
	}
	if inv.calls != 2 {
		t.Errorf("Invoker called %d times, want 2 (completion must stop the loop)", inv.calls)
	}
	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", result.Iterations)
	}
}

func TestTransientErrorsDoNotConsumeIterationBudget(t *testing.T) {
	result, inv, _ := runScripted(t, testConfig(10), []string{
		"ECONNRESET",
		"ETIMEDOUT",
		CompletionMarker,
	})

	if result.Status != StatusSucceeded {
		t.Fatalf("Status = %s, want %s", result.Status, StatusSucceeded)
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1 (retries must not advance the counter)", result.Iterations)
	}
	if inv.calls != 3 {
		t.Errorf("Invoker called %d times, want 3", inv.calls)
	}
}

func TestErrorBudgetEnforcement(t *testing.T) {
	result, inv, sleeps := runScripted(t, testConfig(10), []string{
		"ECONNRESET",
		"ECONNRESET",
		"ECONNRESET",
		"would be a 4th attempt",
	})

	if result.Status != StatusFailedTooManyErrors {
		t.Errorf("Status = %s, want %s", result.Status, StatusFailedTooManyErrors)
	}
	if inv.calls != 3 {
		t.Errorf("Invoker called %d times, want exactly 3", inv.calls)
	}
	// Only the two backoffs before the 2nd and 3rd attempt; no sleep after
	// the fatal abort.
	if len(sleeps) != 2 {
		t.Errorf("Recorded %d sleeps, want 2", len(sleeps))
	}
}

func TestErrorCounterResetsOnCleanIteration(t *testing.T) {
	result, inv, _ := runScripted(t, testConfig(10), []string{
		"ETIMEDOUT",     // iteration 1, streak 1
		"made progress", // iteration 1 retry succeeds, streak resets
		"ENOTFOUND",     // iteration 2, streak 1
		"ECONNRESET",    // streak 2
		"ENOTFOUND",     // streak 3 -> abort
	})

	if result.Status != StatusFailedTooManyErrors {
		t.Errorf("Status = %s, want %s", result.Status, StatusFailedTooManyErrors)
	}
	if inv.calls != 5 {
		t.Errorf("Invoker called %d times, want 5 (streak must restart after a clean iteration)", inv.calls)
	}
}

func TestMaxIterationTermination(t *testing.T) {
	result, inv, _ := runScripted(t, testConfig(4), []string{"still going"})

	if result.Status != StatusFailedMaxIterations {
		t.Errorf("Status = %s, want %s", result.Status, StatusFailedMaxIterations)
	}
	if inv.calls != 4 {
		t.Errorf("Invoker called %d times, want exactly maxIterations (4)", inv.calls)
	}
	if result.Iterations != 4 {
		t.Errorf("Iterations = %d, want 4", result.Iterations)
	}
}

func TestBackoffGrowsLinearly(t *testing.T) {
	_, _, sleeps := runScripted(t, testConfig(10), []string{
		"ECONNRESET",
		"ECONNRESET",
		CompletionMarker,
	})

	if len(sleeps) != 2 {
		t.Fatalf("Recorded %d sleeps, want 2", len(sleeps))
	}
	if sleeps[0] != 10*time.Second {
		t.Errorf("First backoff = %s, want 10s", sleeps[0])
	}
	if sleeps[1] != 20*time.Second {
		t.Errorf("Second backoff = %s, want 20s (base x streak, linear)", sleeps[1])
	}
}

func TestErrorClassificationBeatsCompletion(t *testing.T) {
	result, inv, _ := runScripted(t, testConfig(5), []string{
		"ECONNRESET while printing " + CompletionMarker,
		CompletionMarker,
	})

	if result.Status != StatusSucceeded {
		t.Fatalf("Status = %s, want %s", result.Status, StatusSucceeded)
	}
	// The first output must be treated as a retryable error, not completion,
	// so the marker only takes effect on the retry.
	if inv.calls != 2 {
		t.Errorf("Invoker called %d times, want 2", inv.calls)
	}
	if result.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", result.Iterations)
	}
}

// TestTypicalRunScenario replays a representative run: one normal
// iteration, a connection error, then completion on the retry.
func TestTypicalRunScenario(t *testing.T) {
	result, inv, sleeps := runScripted(t, testConfig(5), []string{
		"normal text",
		"read tcp: ECONNRESET",
		CompletionMarker,
	})

	if result.Status != StatusSucceeded {
		t.Fatalf("Status = %s, want %s", result.Status, StatusSucceeded)
	}
	if inv.calls != 3 {
		t.Errorf("Invoker called %d times, want 3", inv.calls)
	}
	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", result.Iterations)
	}
	// Inter-iteration delay after iteration 1, then one backoff.
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second || sleeps[1] != 10*time.Second {
		t.Errorf("Sleeps = %v, want [2s 10s]", sleeps)
	}
}

func TestRecorderSeesEveryInvocation(t *testing.T) {
	inv := &scriptedInvoker{outputs: []string{
		"ETIMEDOUT",
		"clean",
		CompletionMarker,
	}}
	rec := &testRecorder{}
	driver := New(testConfig(10), inv,
		WithRecorder(rec),
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	if _, err := driver.Run(context.Background(), t.TempDir(), "prompt"); err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}

	want := []recordedInvocation{
		{1, 1, ClassTransientError},
		{1, 2, ClassContinue},
		{2, 1, ClassCompletion},
	}
	if len(rec.invocations) != len(want) {
		t.Fatalf("Recorded %d invocations, want %d", len(rec.invocations), len(want))
	}
	for i, w := range want {
		if rec.invocations[i] != w {
			t.Errorf("Invocation %d = %+v, want %+v", i, rec.invocations[i], w)
		}
	}
}

func TestRetryNoticeIsEphemeral(t *testing.T) {
	inv := &scriptedInvoker{outputs: []string{"ECONNRESET", CompletionMarker}}
	var updates []progress.Update
	driver := New(testConfig(5), inv,
		WithProgress(func(u progress.Update) error {
			updates = append(updates, u)
			return nil
		}),
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	if _, err := driver.Run(context.Background(), t.TempDir(), "prompt"); err != nil {
		t.Fatalf("Run returned unexpected error: %v", err)
	}

	var sawRetry bool
	for _, u := range updates {
		isRetry := strings.Contains(u.Message, "retrying")
		if isRetry {
			sawRetry = true
		}
		if isRetry != u.Ephemeral {
			t.Errorf("Update %q: Ephemeral = %v, want %v (only retry waits are ephemeral)",
				strings.TrimSpace(u.Message), u.Ephemeral, isRetry)
		}
	}
	if !sawRetry {
		t.Error("No retry notice was reported")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inv := &scriptedInvoker{outputs: []string{"still going"}}
	driver := New(testConfig(10), inv, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := driver.Run(ctx, t.TempDir(), "prompt")
	if err == nil {
		t.Fatal("Run should surface context cancellation")
	}
}
