package backend

import (
	"testing"

	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeStatus_Order(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		want string
	}{
		{"data.status wins", map[string]any{"status": "pending", "data": map[string]any{"status": "paid"}}, "paid"},
		{"top-level status", map[string]any{"status": "approved", "data": map[string]any{"transaction": map[string]any{"status": "failed"}}}, "approved"},
		{"nested transaction status", map[string]any{"data": map[string]any{"transaction": map[string]any{"status": "completed"}}}, "completed"},
		{"non-string ignored", map[string]any{"status": true, "data": map[string]any{"status": 3}}, ""},
		{"nothing", map[string]any{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProbeStatus(tt.doc))
		})
	}
}

func TestParseStatusResponse(t *testing.T) {
	res, err := ParseStatusResponse([]byte(`{"success":false,"data":{"status":"paid"}}`))
	require.NoError(t, err)
	assert.False(t, res.Known)

	res, err = ParseStatusResponse([]byte(`{"success":true,"data":{"status":"declined"}}`))
	require.NoError(t, err)
	assert.True(t, res.Known)
	assert.Equal(t, transaction.StatusFailed, res.Status)

	res, err = ParseStatusResponse([]byte(`{"data":{"status":"awaiting_payment"}}`))
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, res.Status)

	res, err = ParseStatusResponse(nil)
	require.NoError(t, err)
	assert.False(t, res.Known)

	_, err = ParseStatusResponse([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseConfirmResponse(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"data":{"status":"Successful"}}`, true},
		{`{"status":"success"}`, true},
		{`{"data":{"transaction":{"status":"APPROVED"}}}`, true},
		{`{"status":"paid"}`, true},
		{`{"status":"completed"}`, true},
		{`{"status":"pending"}`, false},
		{`{"data":{"status":"processing"}}`, false},
		{``, false},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			res, err := ParseConfirmResponse([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Confirmed)
		})
	}
}
