package loop

import "sync"

// RunState tracks the two counters the driver owns: the 1-based productive
// iteration number and the consecutive transient-error streak. The driver is
// the only writer; the mutex exists so observers (progress reporting, the
// web hub) can read a consistent snapshot mid-run.
type RunState struct {
	mu sync.RWMutex

	iteration         int
	maxIterations     int
	consecutiveErrors int
	invocations       int
}

// NewRunState creates a RunState positioned at iteration 1 with no errors
func NewRunState(cfg *Config) *RunState {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &RunState{
		iteration:     1,
		maxIterations: cfg.MaxIterations,
	}
}

// Iteration returns the current 1-based iteration number
func (s *RunState) Iteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration
}

// MaxIterations returns the productive-iteration budget
func (s *RunState) MaxIterations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxIterations
}

// AdvanceIteration moves to the next productive iteration and returns it
func (s *RunState) AdvanceIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iteration++
	return s.iteration
}

// HasReachedLimit reports whether the current iteration is the last one
// allowed by the budget.
func (s *RunState) HasReachedLimit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iteration >= s.maxIterations
}

// ConsecutiveErrors returns the current transient-error streak length
func (s *RunState) ConsecutiveErrors() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consecutiveErrors
}

// RecordTransientError extends the error streak and returns its new length
func (s *RunState) RecordTransientError() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors++
	return s.consecutiveErrors
}

// ResetErrors clears the error streak. Called on any iteration whose output
// carried no transient-error signature.
func (s *RunState) ResetErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveErrors = 0
}

// RecordInvocation counts one worker invocation, retries included
func (s *RunState) RecordInvocation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invocations++
	return s.invocations
}

// Invocations returns the total invocation count so far
func (s *RunState) Invocations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invocations
}
