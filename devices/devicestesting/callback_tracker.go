package devicestesting

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// CallbackTracker records every value handed to a callback so tests can verify invocations, including ones
// made from another goroutine.
type CallbackTracker[T any] struct {
	mu    sync.Mutex
	calls []T
	t     *testing.T
}

// NewCallbackTracker creates a new CallbackTracker for use in tests
func NewCallbackTracker[T any](t *testing.T) *CallbackTracker[T] {
	return &CallbackTracker[T]{
		t:     t,
		calls: make([]T, 0),
	}
}

// Record is a callback that only tracks its argument.
func (ct *CallbackTracker[T]) Record(arg T) {
	ct.mu.Lock()
	ct.calls = append(ct.calls, arg)
	ct.mu.Unlock()
}

// WrapCallback wraps a callback function to track its invocations
// The wrapped function will have the same signature as the original
func WrapCallback[T any](ct *CallbackTracker[T], callback func(T) error) func(T) error {
	return func(arg T) error {
		ct.Record(arg)
		if callback != nil {
			return callback(arg)
		}
		return nil
	}
}

// Calls returns every recorded argument, oldest first.
func (ct *CallbackTracker[T]) Calls() []T {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return append([]T(nil), ct.calls...)
}

func (ct *CallbackTracker[T]) count() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return len(ct.calls)
}

// AssertCalled asserts that the callback was called exactly n times
func (ct *CallbackTracker[T]) AssertCalled(expectedCalls int, msg ...any) bool {
	return assert.Equal(ct.t, expectedCalls, ct.count(), msg...)
}

// AssertNotCalled asserts that the callback was never called
func (ct *CallbackTracker[T]) AssertNotCalled(msg ...any) bool {
	return ct.AssertCalled(0, msg...)
}

// WaitForCalls waits up to a second for at least n calls.
func (ct *CallbackTracker[T]) WaitForCalls(n int, msg ...any) bool {
	return assert.Eventually(ct.t, func() bool { return ct.count() >= n }, time.Second, 5*time.Millisecond, msg...)
}

// Last returns the most recent argument and whether there was one.
func (ct *CallbackTracker[T]) Last() (T, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if len(ct.calls) == 0 {
		var zero T
		return zero, false
	}
	return ct.calls[len(ct.calls)-1], true
}

// Reset resets the call history
func (ct *CallbackTracker[T]) Reset() {
	ct.mu.Lock()
	ct.calls = make([]T, 0)
	ct.mu.Unlock()
}
