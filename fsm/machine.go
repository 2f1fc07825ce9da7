package fsm

import (
	"slices"
	"sync"
)

// Machine serializes events over a Definition and holds the current snapshot.
type Machine[S any] struct {
	mu       sync.Mutex
	def      Definition[S]
	current  Snapshot[S]
	onChange []func(Snapshot[S])
}

// NewMachine starts in the initial snapshot of def.
func NewMachine[S any](def Definition[S]) *Machine[S] {
	return &Machine[S]{def: def, current: def.Initial()}
}

// OnChange registers f to be called after every accepted event. Callbacks run
// outside the lock.
func (m *Machine[S]) OnChange(f func(Snapshot[S])) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, f)
}

// Dispatch applies ev and returns the resulting snapshot.
func (m *Machine[S]) Dispatch(ev Event) (Snapshot[S], error) {
	m.mu.Lock()
	next, err := m.def.Transition(m.current, ev)
	if err != nil {
		m.mu.Unlock()
		return next, err
	}
	m.current = next
	listeners := slices.Clone(m.onChange)
	m.mu.Unlock()

	for _, f := range listeners {
		f(next)
	}
	return next, nil
}

// Snapshot returns the current snapshot.
func (m *Machine[S]) Snapshot() Snapshot[S] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Definition returns the game bound to m.
func (m *Machine[S]) Definition() Definition[S] {
	return m.def
}
