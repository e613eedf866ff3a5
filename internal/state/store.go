// internal/state/store.go
package state

import "sync"

// Store is the single writer of chat State. Dispatch applies actions in
// order under a lock and then notifies subscribers with the result.
type Store struct {
	mu        sync.Mutex
	notifyMu  sync.Mutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

// NewStore creates a Store seeded with initial.
func NewStore(initial State) *Store {
	return &Store{
		state:     initial,
		listeners: make(map[int]func(State)),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies the actions atomically and returns the resulting state.
// Listeners run on the dispatching goroutine and must not call Dispatch.
func (s *Store) Dispatch(actions ...Action) State {
	return s.Update(func(State) []Action { return actions })
}

// Update dispatches the actions fn derives from the current state, with no
// other dispatch interleaving between the read and the write.
func (s *Store) Update(fn func(State) []Action) State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	actions := fn(s.state)
	if len(actions) == 0 {
		next := s.state
		s.mu.Unlock()
		return next
	}
	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	next := s.state
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}

// Subscribe registers fn for every subsequent dispatch. The returned func
// removes it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
