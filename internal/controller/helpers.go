package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/infrastructure/backend"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrSessionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrOptionNotFound, http.StatusNotFound, "option_not_found"},
	{domainErrors.ErrInstrumentNotFound, http.StatusNotFound, "instrument_not_found"},
	{domainErrors.ErrInvalidTransaction, http.StatusBadRequest, "invalid_transaction"},
	{domainErrors.ErrTransactionTerminal, http.StatusConflict, "transaction_terminal"},
	{domainErrors.ErrConfirmationInFlight, http.StatusConflict, "confirmation_in_flight"},
	{domainErrors.ErrCheckoutNotReady, http.StatusConflict, "checkout_not_ready"},
	{domainErrors.ErrEngineNotStarted, http.StatusConflict, "engine_not_started"},
	{domainErrors.ErrOptionNotSelectable, http.StatusUnprocessableEntity, "option_not_selectable"},
	{domainErrors.ErrChannelUnavailable, http.StatusUnprocessableEntity, "channel_unavailable"},
	{domainErrors.ErrNoInstrumentSelected, http.StatusUnprocessableEntity, "no_instrument_selected"},
	{domainErrors.ErrMissingIdentifier, http.StatusUnprocessableEntity, "missing_identifier"},
	{domainErrors.ErrMissingGateway, http.StatusUnprocessableEntity, "missing_gateway"},
	{domainErrors.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrSessionClosed, http.StatusServiceUnavailable, "shutting_down"},
	{domainErrors.ErrBackendUnavailable, http.StatusServiceUnavailable, "backend_unavailable"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	if m, ok := lookupMapping(err); ok {
		resp.Code = m.code
		writeJSON(w, m.status, resp)
		return
	}

	var httpErr *backend.HTTPError
	if errors.As(err, &httpErr) {
		resp.Code = "backend_error"
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

func lookupMapping(err error) (errorMapping, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m, true
		}
	}
	return errorMapping{}, false
}

// isRequestError reports whether err is a caller or precondition problem
// rather than a failed conversation with the backend.
func isRequestError(err error) bool {
	if errors.Is(err, domainErrors.ErrBackendUnavailable) {
		return false
	}
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		return true
	}
	_, ok := lookupMapping(err)
	return ok
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return validateStruct(dst)
}

// decodeOptional is decodeAndValidate for endpoints whose body may be empty.
func decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return validateStruct(dst)
}

func validateStruct(dst any) error {
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
