package checkout

import (
	"context"

	"github.com/cassiomorais/checkout/internal/domain/instrument"
	"github.com/cassiomorais/checkout/internal/domain/session"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

// StatusResult is the normalized answer of the transaction-status endpoint.
type StatusResult struct {
	// Known is false when the backend answered with success=false.
	Known     bool
	Status    transaction.Status
	RawStatus string
	Accounts  []map[string]any
	Raw       map[string]any
}

// ConfirmResult is the normalized answer of the confirm endpoint.
type ConfirmResult struct {
	Confirmed bool
	RawStatus string
	Raw       map[string]any
}

// Backend is the REST surface the engine talks to.
// This is an application-layer port; internal/infrastructure/backend implements it.
type Backend interface {
	TransactionStatus(ctx context.Context, auth session.AuthContext, transactionID string) (*StatusResult, error)
	ConfirmTransaction(ctx context.Context, auth session.AuthContext, identifier string, body map[string]any) (*ConfirmResult, error)
	ListInstruments(ctx context.Context, auth session.AuthContext) ([]instrument.Instrument, error)
	DeleteInstrument(ctx context.Context, auth session.AuthContext, instrumentID string) error
}

// Unlock releases a lock obtained from a Locker.
type Unlock func(ctx context.Context) error

// Locker guards a confirmation across replicas sharing the same backend.
type Locker interface {
	TryLock(ctx context.Context, key string) (Unlock, bool, error)
}
