// Package testing provides test utilities and helpers for batchz-based applications.
//
// This package includes mock owners, a recording sink, assertion helpers and
// chaos testing tools to make testing dispatchers and their owners easier.
//
// Example usage:
//
//	func TestMyDispatcher(t *testing.T) {
//		sink := batchztest.NewRecordingSink()
//		mock := batchztest.NewMockOwner(t, "mock-owner").WithReturn("done", nil)
//
//		d := batchz.NewDispatcher(batchz.NewIdentity("test", ""), sink, 0)
//		require.NoError(t, d.Register(mock))
//		d.RunAll(context.Background(), map[string]any{"mock-owner": 42})
//
//		batchztest.AssertDispatched(t, mock, 1)
//		batchztest.AssertLines(t, sink, "- Mock data: 1 items processed")
//	}
package testing

import (
	"context"
	"errors"
	"fmt"
	mathrand "math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/batchz"
)

// MockOwner is a scripted batchz.Owner that records what the dispatcher
// hands it.
type MockOwner struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	t           *testing.T
	id          string
	label       string
	unit        string
	callCount   int64
	lastInput   any
	returnVal   string
	returnErr   error
	delay       time.Duration
	panicMsg    string
	mu          sync.RWMutex
	callHistory []MockCall
	maxHistory  int
}

// MockCall represents a single call to the mock owner.
type MockCall struct {
	Input     any
	Timestamp time.Time
	Context   context.Context
}

// NewMockOwner creates a new mock owner for testing. It reports itself as
// "Mock data" counted in "items"; Processed returns the number of calls.
func NewMockOwner(t *testing.T, id string) *MockOwner {
	return &MockOwner{
		t:          t,
		id:         id,
		label:      "Mock data",
		unit:       "items",
		maxHistory: 100, // Keep last 100 calls by default
	}
}

// WithReturn sets the result and error every dispatch returns.
func (m *MockOwner) WithReturn(val string, err error) *MockOwner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnVal = val
	m.returnErr = err
	return m
}

// WithLabel configures the label and unit reported to the dispatcher.
func (m *MockOwner) WithLabel(label, unit string) *MockOwner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.label = label
	m.unit = unit
	return m
}

// WithDelay makes every dispatch wait d or until the context ends.
func (m *MockOwner) WithDelay(d time.Duration) *MockOwner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithPanic makes every dispatch panic with msg.
// This is useful for testing that a dispatcher isolates failing owners.
func (m *MockOwner) WithPanic(msg string) *MockOwner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// WithHistorySize caps the recorded history.
// Zero disables it.
func (m *MockOwner) WithHistorySize(size int) *MockOwner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxHistory = size
	if size == 0 {
		m.callHistory = nil
	} else if len(m.callHistory) > size {
		m.callHistory = m.callHistory[len(m.callHistory)-size:]
	}
	return m
}

// ID implements batchz.Owner.
func (m *MockOwner) ID() string {
	return m.id
}

// Label implements batchz.Owner.
func (m *MockOwner) Label() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.label
}

// Unit implements batchz.Owner.
func (m *MockOwner) Unit() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unit
}

// Processed implements batchz.Owner.
func (m *MockOwner) Processed() int64 {
	return atomic.LoadInt64(&m.callCount)
}

// Dispatch implements batchz.Owner. It records the call and returns the
// configured values, potentially after a delay or panic.
func (m *MockOwner) Dispatch(ctx context.Context, input any) (string, error) {
	atomic.AddInt64(&m.callCount, 1)

	m.mu.Lock()
	m.lastInput = input
	if m.maxHistory > 0 {
		m.callHistory = append(m.callHistory, MockCall{
			Input:     input,
			Timestamp: time.Now(),
			Context:   ctx,
		})
		if len(m.callHistory) > m.maxHistory {
			m.callHistory = m.callHistory[1:]
		}
	}
	delay := m.delay
	returnVal := m.returnVal
	returnErr := m.returnErr
	panicMsg := m.panicMsg
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return returnVal, returnErr
}

// CallCount returns the number of times Dispatch has been called.
func (m *MockOwner) CallCount() int {
	return int(atomic.LoadInt64(&m.callCount))
}

// LastInput is the input of the latest dispatch, or nil.
func (m *MockOwner) LastInput() any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastInput
}

// CallHistory returns the recorded dispatches, oldest first.
func (m *MockOwner) CallHistory() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.maxHistory == 0 {
		return nil
	}
	return slices.Clone(m.callHistory)
}

// Reset clears all call tracking.
func (m *MockOwner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.StoreInt64(&m.callCount, 0)
	m.lastInput = nil
	m.callHistory = nil
}

// RecordingSink is a batchz.Sink that keeps every line it receives.
type RecordingSink struct {
	mu    sync.Mutex
	lines []string
}

// NewRecordingSink creates an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Emit implements batchz.Sink.
func (s *RecordingSink) Emit(_ context.Context, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

// Lines returns a copy of the lines received so far.
func (s *RecordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lines)
}

// Reset discards the recorded lines.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// Assertion Helpers

// AssertDispatched verifies that a mock owner was called exactly n times.
func AssertDispatched(t *testing.T, mock *MockOwner, expectedCalls int) {
	t.Helper()
	actualCalls := mock.CallCount()
	if actualCalls != expectedCalls {
		t.Errorf("expected mock owner %s to be called %d times, but was called %d times",
			mock.id, expectedCalls, actualCalls)
	}
}

// AssertNotDispatched verifies that a mock owner was never called.
func AssertNotDispatched(t *testing.T, mock *MockOwner) {
	t.Helper()
	AssertDispatched(t, mock, 0)
}

// AssertDispatchedWith verifies that a mock owner's last call received input.
func AssertDispatchedWith(t *testing.T, mock *MockOwner, expectedInput any) {
	t.Helper()
	if mock.CallCount() == 0 {
		t.Errorf("expected mock owner %s to be called with input %v, but it was never called",
			mock.id, expectedInput)
		return
	}

	actualInput := mock.LastInput()
	if fmt.Sprint(actualInput) != fmt.Sprint(expectedInput) {
		t.Errorf("expected mock owner %s to be called with input %v, but was called with %v",
			mock.id, expectedInput, actualInput)
	}
}

// AssertLines verifies that a sink received exactly the expected lines, in order.
func AssertLines(t *testing.T, sink *RecordingSink, expected ...string) {
	t.Helper()
	actual := sink.Lines()
	if !slices.Equal(actual, expected) {
		t.Errorf("expected sink lines %q, got %q", expected, actual)
	}
}

// AssertCounters verifies a counter snapshot field by field.
func AssertCounters(t *testing.T, actual, expected batchz.CounterSnapshot) {
	t.Helper()
	if actual != expected {
		t.Errorf("expected counters %+v, got %+v", expected, actual)
	}
}

// ChaosOwner wraps an owner and makes a seeded fraction of dispatches fail
// or panic, for exercising dispatcher isolation.
type ChaosOwner struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	wrapped     batchz.Owner
	failureRate float64
	panicRate   float64
	rng         *mathrand.Rand
	mu          sync.Mutex
	total       atomic.Int64
	failed      atomic.Int64
	panicked    atomic.Int64
}

// ChaosConfig sets the injection rates, each between 0 and 1.
type ChaosConfig struct {
	FailureRate float64 // returned error instead of the wrapped result
	PanicRate   float64 // panic before the wrapped owner runs
	Seed        int64   // 0 seeds from the current time
}

// NewChaosOwner wraps an owner, keeping its ID, label and unit.
func NewChaosOwner(wrapped batchz.Owner, config ChaosConfig) *ChaosOwner {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &ChaosOwner{
		wrapped:     wrapped,
		failureRate: config.FailureRate,
		panicRate:   config.PanicRate,
		rng:         mathrand.New(mathrand.NewSource(seed)), //nolint:gosec // G404: deterministic chaos
	}
}

// ID implements batchz.Owner.
func (c *ChaosOwner) ID() string { return c.wrapped.ID() }

// Label implements batchz.Owner.
func (c *ChaosOwner) Label() string { return c.wrapped.Label() }

// Unit implements batchz.Owner.
func (c *ChaosOwner) Unit() string { return c.wrapped.Unit() }

// Processed implements batchz.Owner.
func (c *ChaosOwner) Processed() int64 { return c.wrapped.Processed() }

// Dispatch implements batchz.Owner. The wrapped owner still runs when a
// failure is injected, so its counters move as they would in production.
func (c *ChaosOwner) Dispatch(ctx context.Context, input any) (string, error) {
	c.total.Add(1)

	c.mu.Lock()
	explode := c.rng.Float64() < c.panicRate
	fail := c.rng.Float64() < c.failureRate
	c.mu.Unlock()

	if explode {
		c.panicked.Add(1)
		panic(fmt.Sprintf("chaos in %s", c.wrapped.ID()))
	}

	result, err := c.wrapped.Dispatch(ctx, input)
	if fail && err == nil {
		c.failed.Add(1)
		return "", errChaos
	}
	return result, err
}

var errChaos = errors.New("chaos owner induced failure")

// Stats returns the injection counts so far.
func (c *ChaosOwner) Stats() ChaosStats {
	return ChaosStats{
		TotalCalls:  c.total.Load(),
		FailedCalls: c.failed.Load(),
		PanicCalls:  c.panicked.Load(),
	}
}

// ChaosStats counts dispatches and injected faults.
type ChaosStats struct {
	TotalCalls  int64
	FailedCalls int64
	PanicCalls  int64
}

// Failures returns the number of dispatches that did not succeed.
func (s ChaosStats) Failures() int64 {
	return s.FailedCalls + s.PanicCalls
}

func (s ChaosStats) String() string {
	return fmt.Sprintf("%d dispatches, %d failed, %d panicked", s.TotalCalls, s.FailedCalls, s.PanicCalls)
}

// Helper Functions

// WaitForCalls polls until mock has been dispatched expectedCalls times.
// It reports false if timeout passes first.
func WaitForCalls(mock *MockOwner, expectedCalls int, timeout time.Duration) bool {
	start := time.Now()
	for time.Since(start) < timeout {
		if mock.CallCount() >= expectedCalls {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// ParallelTest starts goroutines copies of testFunc and waits for them all.
func ParallelTest(t *testing.T, goroutines int, testFunc func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			testFunc(id)
		}(i)
	}

	wg.Wait()
}
