package command

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MockRunner implements Runner.
var _ Runner = (*MockRunner)(nil)

// MockRunner is a configurable mock implementation of Runner for testing.
// It records all Run calls and supports customizable behavior via the
// RunFunc field. Safe for concurrent use; the scheduler runs units in
// parallel against a single Runner.
type MockRunner struct {
	mu sync.Mutex

	// RunFunc is an optional custom function called by Run. If nil, Run
	// returns a default success result.
	RunFunc func(ctx context.Context, spec Spec) (*Result, error)

	// calls records every Spec passed to Run, in order.
	calls []Spec
}

// NewMockRunner creates a MockRunner with default behavior: every command
// succeeds with exit code 0.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// Run records the call and delegates to RunFunc if set, otherwise returns a
// default success result.
func (m *MockRunner) Run(ctx context.Context, spec Spec) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, spec)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, spec)
	}
	return &Result{
		Stdout:   "mock output",
		ExitCode: 0,
		Duration: 10 * time.Millisecond,
	}, nil
}

// Calls returns a copy of every Spec passed to Run, in call order.
func (m *MockRunner) Calls() []Spec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Spec, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Run invocations recorded so far.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// WithRunFunc sets a custom Run function and returns the receiver for
// method chaining.
func (m *MockRunner) WithRunFunc(fn func(ctx context.Context, spec Spec) (*Result, error)) *MockRunner {
	m.RunFunc = fn
	return m
}
