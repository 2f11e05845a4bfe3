package testutil

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/cassiomorais/checkout/internal/application/checkout"
	"github.com/cassiomorais/checkout/internal/domain/instrument"
	"github.com/cassiomorais/checkout/internal/domain/session"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

// --- Backend Mock ---

// ConfirmCall records one ConfirmTransaction invocation.
type ConfirmCall struct {
	Identifier string
	Body       map[string]any
	At         time.Time
}

// MockBackend is a mock implementation of checkout.Backend.
type MockBackend struct {
	mu           sync.Mutex
	statusCalls  int
	listCalls    int
	confirmCalls []ConfirmCall
	deleteCalls  []string

	TransactionStatusFunc  func(ctx context.Context, auth session.AuthContext, id string) (*checkout.StatusResult, error)
	ConfirmTransactionFunc func(ctx context.Context, auth session.AuthContext, id string, body map[string]any) (*checkout.ConfirmResult, error)
	ListInstrumentsFunc    func(ctx context.Context, auth session.AuthContext) ([]instrument.Instrument, error)
	DeleteInstrumentFunc   func(ctx context.Context, auth session.AuthContext, id string) error
}

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) TransactionStatus(ctx context.Context, auth session.AuthContext, id string) (*checkout.StatusResult, error) {
	m.mu.Lock()
	m.statusCalls++
	m.mu.Unlock()
	if m.TransactionStatusFunc != nil {
		return m.TransactionStatusFunc(ctx, auth, id)
	}
	return &checkout.StatusResult{Known: true, Status: transaction.StatusPending, RawStatus: "pending"}, nil
}

func (m *MockBackend) ConfirmTransaction(ctx context.Context, auth session.AuthContext, id string, body map[string]any) (*checkout.ConfirmResult, error) {
	m.mu.Lock()
	m.confirmCalls = append(m.confirmCalls, ConfirmCall{Identifier: id, Body: maps.Clone(body), At: time.Now()})
	m.mu.Unlock()
	if m.ConfirmTransactionFunc != nil {
		return m.ConfirmTransactionFunc(ctx, auth, id, body)
	}
	return &checkout.ConfirmResult{RawStatus: "pending"}, nil
}

func (m *MockBackend) ListInstruments(ctx context.Context, auth session.AuthContext) ([]instrument.Instrument, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	if m.ListInstrumentsFunc != nil {
		return m.ListInstrumentsFunc(ctx, auth)
	}
	return nil, nil
}

func (m *MockBackend) DeleteInstrument(ctx context.Context, auth session.AuthContext, id string) error {
	m.mu.Lock()
	m.deleteCalls = append(m.deleteCalls, id)
	m.mu.Unlock()
	if m.DeleteInstrumentFunc != nil {
		return m.DeleteInstrumentFunc(ctx, auth, id)
	}
	return nil
}

// StatusCalls returns how many status polls reached the backend.
func (m *MockBackend) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}

// ListCalls returns how many instrument listings reached the backend.
func (m *MockBackend) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// ConfirmCalls returns a copy of every confirm call received.
func (m *MockBackend) ConfirmCalls() []ConfirmCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ConfirmCall, len(m.confirmCalls))
	copy(out, m.confirmCalls)
	return out
}

// DeleteCalls returns the instrument ids deletion was requested for.
func (m *MockBackend) DeleteCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleteCalls...)
}

// --- Event Repository Mock ---

// MockEventRepository is a mock implementation of transaction.EventRepository.
type MockEventRepository struct {
	mu     sync.Mutex
	events map[string][]*transaction.Event

	AddEventFunc  func(ctx context.Context, event *transaction.Event) error
	GetEventsFunc func(ctx context.Context, transactionID string) ([]*transaction.Event, error)
}

func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{events: make(map[string][]*transaction.Event)}
}

func (m *MockEventRepository) AddEvent(ctx context.Context, event *transaction.Event) error {
	if m.AddEventFunc != nil {
		return m.AddEventFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.TransactionID] = append(m.events[event.TransactionID], event)
	return nil
}

func (m *MockEventRepository) GetEvents(ctx context.Context, transactionID string) ([]*transaction.Event, error) {
	if m.GetEventsFunc != nil {
		return m.GetEventsFunc(ctx, transactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*transaction.Event(nil), m.events[transactionID]...), nil
}

// --- Locker Mock ---

// MockLocker is an in-memory checkout.Locker.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool

	TryLockFunc func(ctx context.Context, key string) (checkout.Unlock, bool, error)
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

func (m *MockLocker) TryLock(ctx context.Context, key string) (checkout.Unlock, bool, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
		return nil
	}, true, nil
}

// Hold marks key as locked by another replica.
func (m *MockLocker) Hold(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[key] = true
}

// --- Completion Publisher Mock ---

// MockCompletionPublisher records published completion events.
type MockCompletionPublisher struct {
	mu     sync.Mutex
	events []map[string]any

	PublishFunc func(ctx context.Context, transactionID string, data map[string]any) error
}

func NewMockCompletionPublisher() *MockCompletionPublisher {
	return &MockCompletionPublisher{}
}

func (m *MockCompletionPublisher) PublishCompletion(ctx context.Context, transactionID string, data map[string]any) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, transactionID, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	event := maps.Clone(data)
	event["transaction_id"] = transactionID
	m.events = append(m.events, event)
	return nil
}

// Events returns every published event.
func (m *MockCompletionPublisher) Events() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.events...)
}
