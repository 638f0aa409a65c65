package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotBound is returned when the trail is used before Bind. This is a
// deployment defect, not a transient fault: callers must surface it as a
// non-retryable configuration error, never retry it into success.
var ErrNotBound = errors.New("audit trail not bound: worker bootstrap must call audit.Bind before work begins")

// ErrAlreadyBound is returned when Bind is called twice in one process.
var ErrAlreadyBound = errors.New("audit trail already bound")

var (
	mu    sync.RWMutex
	bound Trail
)

// Bind installs the process-wide trail. It must be called exactly once by
// worker bootstrap before any activity runs.
func Bind(t Trail) error {
	if t == nil {
		return fmt.Errorf("audit: cannot bind nil trail")
	}
	mu.Lock()
	defer mu.Unlock()
	if bound != nil {
		return ErrAlreadyBound
	}
	bound = t
	return nil
}

// Active returns the bound trail, or ErrNotBound.
func Active() (Trail, error) {
	mu.RLock()
	defer mu.RUnlock()
	if bound == nil {
		return nil, ErrNotBound
	}
	return bound, nil
}

// Record appends an event through the bound trail.
func Record(ctx context.Context, ev Event) error {
	t, err := Active()
	if err != nil {
		return err
	}
	return t.RecordEvent(ctx, ev)
}

// Query reads events through the bound trail.
func Query(ctx context.Context, f Filter) ([]Event, error) {
	t, err := Active()
	if err != nil {
		return nil, err
	}
	return t.QueryEvents(ctx, f)
}

// Reset clears the binding. Test use only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	bound = nil
}
