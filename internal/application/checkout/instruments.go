package checkout

import (
	"context"
	"fmt"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/gateway"
	"github.com/cassiomorais/checkout/internal/domain/instrument"
)

// ListInstruments reloads the saved instruments from the backend. On failure the
// local collection is left unchanged.
func (e *Engine) ListInstruments(ctx context.Context) ([]instrument.Instrument, error) {
	if !e.auth.Authenticated() {
		return e.instruments.List(), domainErrors.ErrUnauthenticated
	}
	items, err := e.backend.ListInstruments(ctx, e.auth)
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to list saved instruments")
		return e.instruments.List(), fmt.Errorf("list saved instruments: %w", err)
	}
	e.instruments.Replace(items)
	e.registry.Refresh()
	return e.instruments.List(), nil
}

// Instruments returns the saved instruments currently known.
func (e *Engine) Instruments() []instrument.Instrument {
	return e.instruments.List()
}

// SelectInstrument marks a saved instrument as the one to pay with.
func (e *Engine) SelectInstrument(id string) error {
	return e.instruments.Select(id)
}

// RemoveInstrument deletes a saved instrument remotely, then locally.
func (e *Engine) RemoveInstrument(ctx context.Context, id string) error {
	if !e.instruments.Contains(id) {
		return domainErrors.ErrInstrumentNotFound
	}
	if !e.auth.Authenticated() {
		return domainErrors.ErrUnauthenticated
	}
	if err := e.backend.DeleteInstrument(ctx, e.auth, id); err != nil {
		e.logger.Warn().Err(err).Str("instrument_id", id).Msg("failed to remove saved instrument")
		return fmt.Errorf("remove saved instrument: %w", err)
	}
	e.instruments.Remove(id)
	e.registry.Refresh()
	return nil
}

// PayWithSelectedInstrument confirms the transaction against the selected saved
// instrument and completes it on success.
func (e *Engine) PayWithSelectedInstrument(ctx context.Context) (bool, error) {
	sel, ok := e.instruments.Selected()
	if !ok {
		return false, domainErrors.ErrNoInstrumentSelected
	}

	res, err := e.confirm(ctx, ConfirmationAttempt{
		Gateway:   e.cfg.SavedInstrumentGateway,
		ExtraBody: map[string]any{"card_identifier": sel.ID},
		Source:    SourceSavedInstrument,
	})
	if err != nil {
		return false, err
	}
	if !res.Confirmed {
		return false, nil
	}
	if !e.complete(ctx, SourceSavedInstrument, res.Raw) {
		return false, domainErrors.ErrTransactionTerminal
	}
	return true, nil
}

// ConfirmBankTransfer confirms a transfer the payer reports as sent.
func (e *Engine) ConfirmBankTransfer(ctx context.Context) (bool, error) {
	if e.registry.ActiveChannel() != gateway.ChannelBankTransfer {
		return false, domainErrors.ErrChannelUnavailable
	}

	res, err := e.confirm(ctx, ConfirmationAttempt{Source: SourceBankTransfer})
	if err != nil {
		return false, err
	}
	if !res.Confirmed {
		return false, nil
	}
	if !e.complete(ctx, SourceBankTransfer, res.Raw) {
		return false, domainErrors.ErrTransactionTerminal
	}
	return true, nil
}
