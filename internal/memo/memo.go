// Package memo provides write-once result cells shared by concurrent callers.
//
// Cells live in an Arena and are addressed by a Key made of an owner ID and
// a field name. The first caller of Do for a key runs the computation; every
// other caller waits for that outcome. Failures are kept like values and are
// never recomputed.
package memo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle of a cell.
type State int

const (
	// Uncomputed means nobody asked for the value yet.
	Uncomputed State = iota
	// InFlight means the first caller is computing the value.
	InFlight
	// Ready means the value is available.
	Ready
	// Failed means the computation returned an error.
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Uncomputed:
		return "uncomputed"
	case InFlight:
		return "in-flight"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Key addresses one cell.
type Key struct {
	ID    uint64
	Field string
}

type cell struct {
	done  chan struct{}
	state State
	value any
	err   error
}

// Arena owns a set of cells.
// The zero value is not usable; call NewArena.
type Arena struct {
	mu     sync.Mutex
	cells  map[Key]*cell
	nextID atomic.Uint64
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{cells: make(map[Key]*cell)}
}

// NewID returns an owner ID that has not been handed out by this arena.
// IDs start at 1.
func (a *Arena) NewID() uint64 {
	return a.nextID.Add(1)
}

// State reports the state of the cell at k.
func (a *Arena) State(k Key) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.cells[k]
	if !ok {
		return Uncomputed
	}
	return c.state
}

// Len returns the number of cells that left the Uncomputed state.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cells)
}

// Do returns the value of the cell at k, computing it with fn on first use.
//
// Waiting callers give up when their own ctx is done; that does not change
// the cell. The context passed to fn is the first caller's.
func Do[T any](ctx context.Context, a *Arena, k Key, fn func(context.Context) (T, error)) (T, error) {
	a.mu.Lock()
	c, ok := a.cells[k]
	if !ok {
		c = &cell{done: make(chan struct{}), state: InFlight}
		a.cells[k] = c
	}
	a.mu.Unlock()

	if !ok {
		v, err := fn(ctx)
		a.mu.Lock()
		if err != nil {
			c.state, c.err = Failed, err
		} else {
			c.state, c.value = Ready, v
		}
		a.mu.Unlock()
		close(c.done)
		return v, err
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	if c.err != nil {
		var zero T
		return zero, c.err
	}
	v, ok := c.value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("memo: cell %d/%s holds %T", k.ID, k.Field, c.value)
	}
	return v, nil
}
