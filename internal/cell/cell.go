// Package cell implements the Tag Value Cell: the per-tag
// synchronization object holding one stored value, a mutual-exclusion
// guard, and a waitable "value changed" condition.
//
// The wait/notify primitive is a sync.Cond paired with the Cell's mutex —
// the same "condition paired with a guard, on which readers suspend and
// writers signal" idiom the pack documents in the FrameSupplier mailbox
// reference (other_examples/e7canasta-orion-care-sensor) and that
// tailscale's ipn/ipnlocal package uses for its own state-change
// broadcasts.
package cell

import (
	"context"
	"sync"

	"github.com/hmsnyder/tagfd/internal/tagerr"
	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// Cell is one tag's Value Cell. The zero value is not usable; construct
// with New.
type Cell struct {
	mu     sync.Mutex
	cond   *sync.Cond
	stored tagtype.Value
}

// New constructs a Cell already holding the given initial value (the
// zeroed, UNCERTAIN-quality value a freshly created tag starts with).
func New(initial tagtype.Value) *Cell {
	c := &Cell{stored: initial}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Commit validates and installs candidate as the Cell's new stored value.
// It refuses a write that would change the tag's dtype or that does not
// strictly advance the stored timestamp, and on success wakes every
// waiter blocked in WaitForChange.
func (c *Cell) Commit(candidate tagtype.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if candidate.DType != c.stored.DType {
		return tagerr.TypeMismatch
	}
	if candidate.Timestamp <= c.stored.Timestamp {
		return tagerr.StaleTimestamp
	}
	c.stored = candidate
	c.cond.Broadcast()
	return nil
}

// Snapshot returns a full copy of the stored record under the guard. The
// copy can never mix fields from two different commits: Value is a plain
// struct copied by value, and the copy happens while the mutex is held.
func (c *Cell) Snapshot() tagtype.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored
}

// CurrentStamp returns the stored timestamp under the guard.
func (c *Cell) CurrentStamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stored.Timestamp
}

// WaitForChange suspends the calling goroutine until the stored timestamp
// differs from lastSeen, returning the new snapshot. It releases the guard
// while suspended and reacquires it to re-check. If ctx is cancelled
// before a change commits, WaitForChange returns tagerr.EIntr and the
// Cell's state is left untouched — callers must not advance their own
// last-seen marker on this path.
func (c *Cell) WaitForChange(ctx context.Context, lastSeen uint64) (tagtype.Value, error) {
	// A context.Context can't interrupt sync.Cond.Wait directly, so a
	// watchdog goroutine broadcasts on our behalf when ctx is done. done
	// stops the watchdog once this call returns by any path, so repeated
	// blocking reads don't accumulate goroutines.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		case <-done:
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.stored.Timestamp == lastSeen {
		if err := ctx.Err(); err != nil {
			return tagtype.Value{}, tagerr.EIntr
		}
		c.cond.Wait()
	}
	return c.stored, nil
}
