package transaction_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw      string
		expected transaction.Status
	}{
		{"successful", transaction.StatusCompleted},
		{"SUCCESS", transaction.StatusCompleted},
		{" Paid ", transaction.StatusCompleted},
		{"approved", transaction.StatusCompleted},
		{"completed", transaction.StatusCompleted},
		{"failed", transaction.StatusFailed},
		{"Declined", transaction.StatusFailed},
		{"cancelled", transaction.StatusFailed},
		{"expired", transaction.StatusExpired},
		{"processing", transaction.StatusProcessing},
		{"pending", transaction.StatusPending},
		{"awaiting_payment", transaction.StatusPending},
		{"", transaction.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, transaction.ParseStatus(tt.raw))
		})
	}
}

func TestIsSuccessToken(t *testing.T) {
	for _, tok := range []string{"successful", "Completed", "PAID", "success", "approved"} {
		assert.True(t, transaction.IsSuccessToken(tok), tok)
	}
	for _, tok := range []string{"pending", "failed", "", "succeeded_partially"} {
		assert.False(t, transaction.IsSuccessToken(tok), tok)
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, transaction.StatusPending.IsTerminal())
	assert.False(t, transaction.StatusProcessing.IsTerminal())
	assert.True(t, transaction.StatusCompleted.IsTerminal())
	assert.True(t, transaction.StatusFailed.IsTerminal())
	assert.True(t, transaction.StatusExpired.IsTerminal())
	assert.False(t, transaction.Status("bogus").Valid())
}

func TestID_UnmarshalJSON(t *testing.T) {
	var p struct {
		A transaction.ID `json:"a"`
		B transaction.ID `json:"b"`
		C transaction.ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"TX-1","b":42,"c":null}`), &p))
	assert.Equal(t, transaction.ID("TX-1"), p.A)
	assert.Equal(t, transaction.ID("42"), p.B)
	assert.Equal(t, transaction.ID(""), p.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &p))
}

func TestMoney_UnmarshalJSON(t *testing.T) {
	var p struct {
		A transaction.Money `json:"a"`
		B transaction.Money `json:"b"`
		C transaction.Money `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12.5,"b":"100.10","c":""}`), &p))
	assert.Equal(t, transaction.Money(1250), p.A)
	assert.Equal(t, transaction.Money(10010), p.B)
	assert.Equal(t, transaction.Money(0), p.C)
	assert.Equal(t, "12.50", p.A.String())
	assert.Equal(t, "-0.05", transaction.Money(-5).String())
}

func TestNew_ComputesBreakdown(t *testing.T) {
	txn, err := transaction.New(transaction.Payload{
		ID:          "tx-1",
		Amount:      10000,
		Tax:         750,
		GatewayFees: 150,
		Adjustment:  -500,
		Currency:    "ngn",
	})
	require.NoError(t, err)

	assert.Equal(t, "tx-1", txn.ID)
	assert.Equal(t, transaction.Money(10400), txn.Breakdown.GrandTotal)
	assert.Equal(t, transaction.Money(10400), txn.Breakdown.Payable())
	assert.Equal(t, "NGN", txn.Breakdown.Currency)
	assert.Equal(t, transaction.StatusPending, txn.InitialStatus)
}

func TestNew_ExplicitTotalWins(t *testing.T) {
	total := transaction.Money(-300)
	txn, err := transaction.New(transaction.Payload{ID: "tx-1", Amount: 100, Total: &total})
	require.NoError(t, err)

	assert.Equal(t, transaction.Money(-300), txn.Breakdown.GrandTotal)
	assert.Equal(t, transaction.Money(0), txn.Breakdown.Payable())
}

func TestNew_IdentifierPreferredOverID(t *testing.T) {
	txn, err := transaction.New(transaction.Payload{ID: "7", Identifier: "TXN-7"})
	require.NoError(t, err)
	assert.Equal(t, "TXN-7", txn.ID)
}

func TestNew_RequiresID(t *testing.T) {
	_, err := transaction.New(transaction.Payload{Amount: 100})
	assert.ErrorIs(t, err, errors.ErrInvalidTransaction)
}

func TestNew_RejectsNegativeComponents(t *testing.T) {
	_, err := transaction.New(transaction.Payload{ID: "tx", Tax: -1})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
}

func TestNew_NormalizesInitialStatus(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	txn, err := transaction.New(transaction.Payload{ID: "tx", Status: "Successful", ExpiresAt: &exp})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, txn.InitialStatus)
	assert.Equal(t, &exp, txn.ExpiresAt)
}
