package checkout

import (
	"time"

	"github.com/cassiomorais/checkout/internal/domain/gateway"
	"github.com/cassiomorais/checkout/internal/domain/instrument"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

// RetryState describes the confirmation retry loop.
type RetryState struct {
	Running     bool `json:"running"`
	Attempt     uint `json:"attempt"`
	MaxAttempts uint `json:"max_attempts"`
	Exhausted   bool `json:"exhausted"`
}

// Snapshot is a read-only view of an engine for the host.
type Snapshot struct {
	TransactionID      string                  `json:"transaction_id"`
	Reference          string                  `json:"reference,omitempty"`
	Status             transaction.Status      `json:"status"`
	Breakdown          transaction.Breakdown   `json:"breakdown"`
	Payable            transaction.Money       `json:"payable"`
	Channels           []gateway.Channel       `json:"channels"`
	ActiveChannel      gateway.Channel         `json:"active_channel,omitempty"`
	ActiveOption       *gateway.Option         `json:"active_option,omitempty"`
	Options            []gateway.Option        `json:"options"`
	Instruments        []instrument.Instrument `json:"instruments"`
	SelectedInstrument string                  `json:"selected_instrument,omitempty"`
	ExpiresAt          *time.Time              `json:"expires_at,omitempty"`
	Remaining          *time.Duration          `json:"-"`
	RemainingSeconds   *int64                  `json:"remaining_seconds,omitempty"`
	Accounts           []map[string]any        `json:"accounts,omitempty"`
	Retry              RetryState              `json:"retry"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// Snapshot returns the current engine view.
func (e *Engine) Snapshot() Snapshot {
	txn := e.state.Transaction()
	s := Snapshot{
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		Status:        e.state.Status(),
		Breakdown:     txn.Breakdown,
		Payable:       txn.Breakdown.Payable(),
		Channels:      e.registry.AvailableChannels(),
		ActiveChannel: e.registry.ActiveChannel(),
		Options:       e.registry.All(),
		Instruments:   e.instruments.List(),
		ExpiresAt:     txn.ExpiresAt,
		UpdatedAt:     e.state.UpdatedAt(),
	}
	if opt, ok := e.registry.ActiveOption(); ok {
		s.ActiveOption = &opt
	}
	if sel, ok := e.instruments.Selected(); ok {
		s.SelectedInstrument = sel.ID
	}

	e.mu.Lock()
	if e.remaining != nil {
		r := *e.remaining
		secs := int64(r.Round(time.Second) / time.Second)
		s.Remaining = &r
		s.RemainingSeconds = &secs
	}
	if len(e.accounts) > 0 {
		s.Accounts = append([]map[string]any(nil), e.accounts...)
	}
	s.Retry = RetryState{MaxAttempts: e.cfg.RetryAttempts}
	if e.retry != nil {
		s.Retry = e.retry.snapshot()
		s.Retry.MaxAttempts = e.cfg.RetryAttempts
	}
	e.mu.Unlock()

	return s
}
