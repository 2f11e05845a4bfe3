package controller

import (
	"github.com/cassiomorais/checkout/internal/application/checkout"
	"github.com/cassiomorais/checkout/internal/domain/instrument"
	"github.com/cassiomorais/checkout/internal/service"
)

// --- Request DTOs ---

// OpenSessionRequest is the transaction document the console hands over.
type OpenSessionRequest = checkout.Payload

// SelectChannelRequest switches the active payment channel.
type SelectChannelRequest struct {
	Channel string `json:"channel" validate:"required,oneof=card bank_transfer saved_card"`
}

// SelectOptionRequest switches the gateway instance within the active channel.
type SelectOptionRequest struct {
	OptionID string `json:"option_id" validate:"required"`
}

// WidgetSuccessRequest is what the checkout widget reported on success.
type WidgetSuccessRequest struct {
	Reference string `json:"reference,omitempty" validate:"omitempty,max=128"`
	Status    string `json:"status,omitempty" validate:"omitempty,max=64"`
}

// SelectInstrumentRequest selects a saved instrument for payment.
type SelectInstrumentRequest struct {
	InstrumentID string `json:"instrument_id" validate:"required"`
}

// --- Response DTOs ---

// SessionResponse is a session id plus the engine snapshot.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	checkout.Snapshot
}

// ConfirmResponse reports the outcome of a confirmation path. Transport
// failures are reported here with Confirmed=false rather than as an HTTP error.
type ConfirmResponse struct {
	Confirmed bool   `json:"confirmed"`
	Error     string `json:"error,omitempty"`
	SessionResponse
}

// InstrumentsResponse lists the caller's saved instruments.
type InstrumentsResponse struct {
	Instruments        []instrument.Instrument `json:"instruments"`
	SelectedInstrument string                  `json:"selected_instrument,omitempty"`
}

// SessionListResponse lists the caller's open sessions.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// --- Conversion helpers ---

func toSessionResponse(s *service.Session) SessionResponse {
	return SessionResponse{SessionID: s.ID, Snapshot: s.Engine.Snapshot()}
}

func toInstrumentsResponse(list []instrument.Instrument, selected string) InstrumentsResponse {
	if list == nil {
		list = []instrument.Instrument{}
	}
	return InstrumentsResponse{Instruments: list, SelectedInstrument: selected}
}
