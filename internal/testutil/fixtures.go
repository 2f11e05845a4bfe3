package testutil

import (
	"time"

	"github.com/cassiomorais/checkout/internal/application/checkout"
	"github.com/cassiomorais/checkout/internal/domain/gateway"
	"github.com/cassiomorais/checkout/internal/domain/instrument"
	"github.com/cassiomorais/checkout/internal/domain/session"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

// TestAuth returns an authenticated client-scope auth context.
func TestAuth() session.AuthContext {
	return session.AuthContext{
		Token:   "test-token",
		BaseURL: "http://backend.test/api",
		Scope:   session.ScopeClient,
		Email:   "payer@example.com",
	}
}

// CardOption is a Paystack card gateway option.
func CardOption() gateway.RawOption {
	return gateway.RawOption{
		ID:          "opt-card",
		Type:        "card",
		Name:        "Card payment",
		GatewayName: "Paystack",
		Reference:   "PSK-REF-1",
		PublicKey:   "pk_test_paystack",
	}
}

// BankOption is a bank transfer option.
func BankOption() gateway.RawOption {
	return gateway.RawOption{
		ID:          "opt-bank",
		Type:        "bank_transfer",
		Name:        "Bank transfer",
		GatewayName: "Providus",
		Reference:   "BNK-REF-1",
		Details: map[string]any{
			"account_number": "0123456789",
			"bank_name":      "Providus Bank",
		},
	}
}

// SavedCard returns a raw saved card with the given identifier.
func SavedCard(id, last4 string) instrument.Raw {
	return instrument.Raw{
		Identifier:  id,
		Brand:       "visa",
		Last4:       transaction.ID(last4),
		ExpMonth:    "12",
		ExpYear:     "2030",
		GatewayName: "Paystack",
	}
}

// NewTestPayload builds a pending transaction payload of 100.00 NGN plus fees
// expiring in an hour with one card and one bank-transfer option.
func NewTestPayload() checkout.Payload {
	expires := time.Now().Add(time.Hour)
	return checkout.Payload{
		Payload: transaction.Payload{
			ID:            "txn-1",
			Reference:     "TXN-REF-1",
			Amount:        10000,
			Tax:           750,
			GatewayFees:   150,
			Currency:      "ngn",
			Status:        "pending",
			ExpiresAt:     &expires,
			CustomerEmail: "customer@example.com",
		},
		Options: []gateway.RawOption{CardOption(), BankOption()},
	}
}

// NewBarePayload builds a payload with no options and no expiry.
func NewBarePayload() checkout.Payload {
	return checkout.Payload{
		Payload: transaction.Payload{
			ID:       "txn-bare",
			Amount:   5000,
			Currency: "USD",
		},
	}
}

// FastEngineConfig returns engine timings suited to tests.
func FastEngineConfig() checkout.Config {
	cfg := checkout.DefaultConfig()
	cfg.CountdownTick = 10 * time.Millisecond
	cfg.PollInterval = 20 * time.Millisecond
	cfg.RetryDelay = 20 * time.Millisecond
	return cfg
}
