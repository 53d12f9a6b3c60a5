// Package busy holds the single "processing" flag shared by every
// long-running client operation.
package busy

import (
	"sync"

	"github.com/sabio/insight-dash/pkg/metrics"
)

// State is a snapshot of the indicator.
type State struct {
	Active bool   `json:"active"`
	Label  string `json:"label"`
}

// Indicator is the process-wide busy flag. Acquire and Release are the only
// mutators. Acquiring while already active overwrites the label; there is no
// mutual exclusion between acquirers.
type Indicator struct {
	mu        sync.Mutex
	state     State
	observers map[int]func(State)
	nextID    int
}

// New returns an inactive indicator.
func New() *Indicator {
	return &Indicator{
		observers: make(map[int]func(State)),
	}
}

// Acquire marks the indicator active with label and returns a guard whose
// Release is safe to defer.
func (b *Indicator) Acquire(label string) *Guard {
	b.set(State{Active: true, Label: label})
	return &Guard{b: b}
}

// Release marks the indicator inactive. The last label is kept for display.
func (b *Indicator) Release() {
	b.mu.Lock()
	label := b.state.Label
	b.mu.Unlock()
	b.set(State{Active: false, Label: label})
}

// State returns the current snapshot.
func (b *Indicator) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Active reports whether an operation currently holds the indicator.
func (b *Indicator) Active() bool {
	return b.State().Active
}

// Subscribe registers fn to receive every state change. The returned func
// removes the observer.
func (b *Indicator) Subscribe(fn func(State)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.observers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.observers, id)
		b.mu.Unlock()
	}
}

func (b *Indicator) set(s State) {
	b.mu.Lock()
	was := b.state.Active
	b.state = s
	observers := make([]func(State), 0, len(b.observers))
	for _, fn := range b.observers {
		observers = append(observers, fn)
	}
	b.mu.Unlock()

	// The gauge is shared by every indicator in the process.
	switch {
	case s.Active && !was:
		metrics.BusyActive.Inc()
	case !s.Active && was:
		metrics.BusyActive.Dec()
	}

	// Observers run outside the lock so they may read State.
	for _, fn := range observers {
		fn(s)
	}
}

// Guard is a scoped hold on the indicator.
type Guard struct {
	b    *Indicator
	once sync.Once
}

// Relabel changes the label while keeping the indicator active.
func (g *Guard) Relabel(label string) {
	g.b.set(State{Active: true, Label: label})
}

// Release releases the indicator once; later calls are no-ops.
func (g *Guard) Release() {
	g.once.Do(g.b.Release)
}
