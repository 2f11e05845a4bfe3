package transaction

import (
	"sync"
	"time"
)

// Transition describes one effective status change.
type Transition struct {
	TransactionID string
	From          Status
	To            Status
	Source        string
	Payload       map[string]any
	At            time.Time
}

// Observer is notified after every effective transition, outside the state lock.
type Observer func(Transition)

// CompletionFunc receives the payload that completed the transaction.
type CompletionFunc func(payload map[string]any)

// allowedTransitions lists the non-terminal moves; terminal statuses have none.
var allowedTransitions = map[Status][]Status{
	StatusPending: {
		StatusProcessing,
		StatusCompleted,
		StatusFailed,
		StatusExpired,
	},
	StatusProcessing: {
		StatusPending, // confirmation failed, wait for the poller
		StatusCompleted,
		StatusFailed,
		StatusExpired,
	},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusExpired:   {},
}

// State is the authoritative, concurrency-safe lifecycle of one transaction.
type State struct {
	mu         sync.RWMutex
	txn        *Transaction
	status     Status
	updatedAt  time.Time
	observers  []Observer
	onComplete CompletionFunc
	completed  bool
	done       chan struct{}
	now        func() time.Time
}

// NewState creates the state for txn. onComplete may be nil.
func NewState(txn *Transaction, onComplete CompletionFunc) *State {
	s := &State{
		txn:        txn,
		status:     txn.InitialStatus,
		updatedAt:  time.Now(),
		onComplete: onComplete,
		done:       make(chan struct{}),
		now:        time.Now,
	}
	if s.status.IsTerminal() {
		close(s.done)
	}
	return s
}

// Transaction returns the immutable transaction data.
func (s *State) Transaction() *Transaction {
	return s.txn
}

// Status returns the current status.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// UpdatedAt returns the time of the last effective transition.
func (s *State) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// IsTerminal reports whether the transaction reached a terminal status.
func (s *State) IsTerminal() bool {
	return s.Status().IsTerminal()
}

// Done is closed on the first terminal transition.
func (s *State) Done() <-chan struct{} {
	return s.done
}

// Observe registers an observer for subsequent transitions.
func (s *State) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// CanTransitionTo checks if the state can move to the given status.
func (s *State) CanTransitionTo(to Status) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return canTransition(s.status, to)
}

func canTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the state to `to`. It is a no-op returning false when the current
// status is terminal, equal to `to`, or the move is not allowed.
func (s *State) Transition(to Status, source string, payload map[string]any) bool {
	s.mu.Lock()
	from := s.status
	if !canTransition(from, to) {
		s.mu.Unlock()
		return false
	}
	s.status = to
	s.updatedAt = s.now()

	fireCompletion := false
	if to == StatusCompleted && !s.completed {
		s.completed = true
		fireCompletion = true
	}
	if to.IsTerminal() {
		close(s.done)
	}

	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	tr := Transition{
		TransactionID: s.txn.ID,
		From:          from,
		To:            to,
		Source:        source,
		Payload:       payload,
		At:            s.updatedAt,
	}
	s.mu.Unlock()

	if fireCompletion && s.onComplete != nil {
		s.onComplete(payload)
	}
	for _, o := range observers {
		o(tr)
	}
	return true
}
