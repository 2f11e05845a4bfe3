package controller

import (
	"net/http"

	"github.com/cassiomorais/checkout/internal/application/checkout"
	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/gateway"
	"github.com/cassiomorais/checkout/internal/middleware"
	"github.com/cassiomorais/checkout/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// CheckoutController exposes checkout sessions to the console UI.
type CheckoutController struct {
	checkoutService *service.CheckoutService
}

// NewCheckoutController creates a new CheckoutController.
func NewCheckoutController(checkoutService *service.CheckoutService) *CheckoutController {
	return &CheckoutController{checkoutService: checkoutService}
}

// OpenSession handles POST /api/v1/checkout/sessions
func (h *CheckoutController) OpenSession(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req OpenSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.checkoutService.Open(r.Context(), req, p.Auth, p.Subject)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// ListSessions handles GET /api/v1/checkout/sessions
func (h *CheckoutController) ListSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	resp := SessionListResponse{Sessions: []SessionResponse{}}
	for _, sess := range h.checkoutService.List(p.Subject) {
		resp.Sessions = append(resp.Sessions, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSession handles GET /api/v1/checkout/sessions/{id}
func (h *CheckoutController) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// CloseSession handles DELETE /api/v1/checkout/sessions/{id}
func (h *CheckoutController) CloseSession(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}
	if err := h.checkoutService.Close(chi.URLParam(r, "id"), p.Subject); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectChannel handles POST /api/v1/checkout/sessions/{id}/channel
func (h *CheckoutController) SelectChannel(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectChannelRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Engine.SelectChannel(gateway.Channel(req.Channel)); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// SelectOption handles POST /api/v1/checkout/sessions/{id}/option
func (h *CheckoutController) SelectOption(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectOptionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Engine.SelectOption(req.OptionID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// CheckStatus handles POST /api/v1/checkout/sessions/{id}/status-check
func (h *CheckoutController) CheckStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if _, err := sess.Engine.CheckStatus(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// WidgetParams handles GET /api/v1/checkout/sessions/{id}/widget
func (h *CheckoutController) WidgetParams(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	params, err := sess.Engine.BeginCheckout(checkout.CheckoutOverrides{
		Email:     r.URL.Query().Get("email"),
		PublicKey: r.URL.Query().Get("public_key"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, params)
}

// WidgetSuccess handles POST /api/v1/checkout/sessions/{id}/widget/success
func (h *CheckoutController) WidgetSuccess(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req WidgetSuccessRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, err)
		return
	}

	confirmed, err := sess.Engine.CheckoutSucceeded(r.Context(), checkout.WidgetResponse{
		Reference: req.Reference,
		Status:    req.Status,
	})
	writeConfirmOutcome(w, sess, confirmed, err)
}

// WidgetClose handles POST /api/v1/checkout/sessions/{id}/widget/close
func (h *CheckoutController) WidgetClose(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	confirmed, err := sess.Engine.CheckoutClosed(r.Context())
	writeConfirmOutcome(w, sess, confirmed, err)
}

// StartConfirmRetry handles POST /api/v1/checkout/sessions/{id}/confirm-retry
func (h *CheckoutController) StartConfirmRetry(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := sess.Engine.StartConfirmationRetry(); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toSessionResponse(sess))
}

// ConfirmBankTransfer handles POST /api/v1/checkout/sessions/{id}/bank-transfer/confirm
func (h *CheckoutController) ConfirmBankTransfer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	confirmed, err := sess.Engine.ConfirmBankTransfer(r.Context())
	writeConfirmOutcome(w, sess, confirmed, err)
}

// ListInstruments handles GET /api/v1/checkout/sessions/{id}/instruments
func (h *CheckoutController) ListInstruments(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	list, err := sess.Engine.ListInstruments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInstrumentsResponse(list, sess.Engine.Snapshot().SelectedInstrument))
}

// SelectInstrument handles POST /api/v1/checkout/sessions/{id}/instruments/select
func (h *CheckoutController) SelectInstrument(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SelectInstrumentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := sess.Engine.SelectInstrument(req.InstrumentID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInstrumentsResponse(sess.Engine.Instruments(), req.InstrumentID))
}

// RemoveInstrument handles DELETE /api/v1/checkout/sessions/{id}/instruments/{instrumentID}
func (h *CheckoutController) RemoveInstrument(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := sess.Engine.RemoveInstrument(r.Context(), chi.URLParam(r, "instrumentID")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PayWithInstrument handles POST /api/v1/checkout/sessions/{id}/instruments/pay
func (h *CheckoutController) PayWithInstrument(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	confirmed, err := sess.Engine.PayWithSelectedInstrument(r.Context())
	writeConfirmOutcome(w, sess, confirmed, err)
}

// session resolves the {id} session of the authenticated caller, writing the
// error response itself when it cannot.
func (h *CheckoutController) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return nil, false
	}
	sess, err := h.checkoutService.Get(chi.URLParam(r, "id"), p.Subject)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

func writeConfirmOutcome(w http.ResponseWriter, sess *service.Session, confirmed bool, err error) {
	if err != nil && isRequestError(err) {
		writeError(w, err)
		return
	}

	resp := ConfirmResponse{Confirmed: confirmed, SessionResponse: toSessionResponse(sess)}
	if err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("confirmation failed")
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
