package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/session"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/cassiomorais/checkout/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) (*Client, session.AuthContext, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	auth := session.AuthContext{Token: "tok", BaseURL: srv.URL + "/api/", Scope: session.ScopeClient}
	return NewClient(cfg, metrics, srv.Client()), auth, metrics
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestTransactionStatus_RequestAndNormalization(t *testing.T) {
	client, auth, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/transactions/txn-1/status", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get(session.TenantHeader))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"status":   "PAID",
				"accounts": []any{map[string]any{"id": "acc-1"}},
			},
		})
	}, DefaultConfig())

	res, err := client.TransactionStatus(context.Background(), auth, "txn-1")
	require.NoError(t, err)
	assert.True(t, res.Known)
	assert.Equal(t, transaction.StatusCompleted, res.Status)
	assert.Equal(t, "PAID", res.RawStatus)
	require.Len(t, res.Accounts, 1)
	assert.Equal(t, "acc-1", res.Accounts[0]["id"])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BackendRequests.WithLabelValues(EndpointStatus, "success")))
}

func TestConfirmTransaction_SendsBody(t *testing.T) {
	client, auth, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/transactions/PSK-REF-1", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Paystack", body["payment_gateway"])
		assert.Equal(t, true, body["save_card_details"])

		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"transaction": map[string]any{"status": "successful"}}})
	}, DefaultConfig())

	res, err := client.ConfirmTransaction(context.Background(), auth, "PSK-REF-1", map[string]any{
		"payment_gateway":   "Paystack",
		"save_card_details": true,
	})
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Equal(t, "successful", res.RawStatus)
}

func TestListInstruments_ScopedPathAndTenantHeader(t *testing.T) {
	client, auth, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tenant/cards", r.URL.Path)
		assert.Equal(t, "tenant-7", r.Header.Get(session.TenantHeader))
		_, _ = io.WriteString(w, `{"cards":[{"id":12,"brand":"visa","last4":"4242","exp_month":1,"exp_year":2031},{"identifier":"","id":""}]}`)
	}, DefaultConfig())
	auth.Scope = session.ScopeTenant
	auth.TenantID = "tenant-7"

	cards, err := client.ListInstruments(context.Background(), auth)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "12", cards[0].ID)
	assert.Equal(t, "4242", cards[0].Last4)
	assert.Equal(t, "2031", cards[0].ExpYear)
}

func TestDeleteInstrument(t *testing.T) {
	var calls atomic.Int32
	client, auth, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/admin/cards/card-1", r.URL.Path)
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
	}, DefaultConfig())
	auth.Scope = session.ScopeAdmin

	require.NoError(t, client.DeleteInstrument(context.Background(), auth, "card-1"))
	assert.Error(t, client.DeleteInstrument(context.Background(), auth, "card-1"))
}

func TestClient_HTTPError(t *testing.T) {
	client, auth, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": "bad gateway name"})
	}, DefaultConfig())

	_, err := client.ConfirmTransaction(context.Background(), auth, "REF", map[string]any{})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "bad gateway name")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BackendRequests.WithLabelValues(EndpointConfirm, "http_422")))
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	cfg := DefaultConfig()
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerTimeout = time.Minute
	client, auth, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, cfg)

	for range 2 {
		_, err := client.TransactionStatus(context.Background(), auth, "txn-1")
		require.Error(t, err)
	}
	_, err := client.TransactionStatus(context.Background(), auth, "txn-1")
	assert.ErrorIs(t, err, domainErrors.ErrBackendUnavailable)
	assert.Equal(t, int32(2), hits.Load())

	// other endpoint families keep their own breaker
	_, err = client.ConfirmTransaction(context.Background(), auth, "REF", map[string]any{})
	assert.NotErrorIs(t, err, domainErrors.ErrBackendUnavailable)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	client, auth, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, cfg)

	for range 4 {
		_, err := client.TransactionStatus(context.Background(), auth, "txn-1")
		assert.NotErrorIs(t, err, domainErrors.ErrBackendUnavailable)
	}
}

func TestClient_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 30 * time.Millisecond
	client, auth, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, cfg)

	start := time.Now()
	_, err := client.TransactionStatus(context.Background(), auth, "txn-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestClient_RequiresBaseURL(t *testing.T) {
	client := NewClient(DefaultConfig(), nil, nil)
	_, err := client.TransactionStatus(context.Background(), session.AuthContext{Token: "t"}, "txn-1")
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)
}
