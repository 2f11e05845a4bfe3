package transaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cassiomorais/checkout/internal/domain/errors"
)

// Status is the client-observed transaction status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// IsTerminal reports whether no further transitions may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

var (
	completedTokens  = []string{"successful", "success", "completed", "paid", "approved"}
	failedTokens     = []string{"failed", "failure", "declined", "cancelled", "canceled", "error", "reversed"}
	expiredTokens    = []string{"expired", "abandoned"}
	processingTokens = []string{"processing", "in_progress", "ongoing"}
)

// ParseStatus normalizes a backend status string. Unknown values map to pending.
func ParseStatus(raw string) Status {
	token := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case contains(completedTokens, token):
		return StatusCompleted
	case contains(failedTokens, token):
		return StatusFailed
	case contains(expiredTokens, token):
		return StatusExpired
	case contains(processingTokens, token):
		return StatusProcessing
	default:
		return StatusPending
	}
}

// IsSuccessToken reports whether a confirm response status means the payment went through.
func IsSuccessToken(raw string) bool {
	return contains(completedTokens, strings.ToLower(strings.TrimSpace(raw)))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ID is an opaque transaction identifier that may arrive as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Money is an amount in minor units. It decodes from a JSON number or numeric string
// expressed in major units ("12.50" -> 1250).
type Money int64

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*m = 0
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*m = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", raw, err)
	}
	*m = Money(math.Round(f * 100))
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// String renders the amount in major units with two decimals.
func (m Money) String() string {
	cents := int64(m)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Breakdown is the amount split of a transaction, derived once from the payload.
type Breakdown struct {
	Subtotal    Money  `json:"subtotal"`
	Tax         Money  `json:"tax"`
	GatewayFees Money  `json:"gateway_fees"`
	Adjustment  Money  `json:"adjustment"`
	GrandTotal  Money  `json:"grand_total"`
	Currency    string `json:"currency"`
}

// Payable is the grand total floored at zero.
func (b Breakdown) Payable() Money {
	if b.GrandTotal < 0 {
		return 0
	}
	return b.GrandTotal
}

// PaymentMeta carries payment-level hints attached to the transaction by the backend.
type PaymentMeta struct {
	Email     string `json:"email"`
	PublicKey string `json:"public_key"`
}

// Payload is the transaction part of the payload the host opens a checkout with.
type Payload struct {
	ID            ID          `json:"id"`
	Identifier    ID          `json:"identifier"`
	Reference     string      `json:"reference"`
	Amount        Money       `json:"amount"`
	Tax           Money       `json:"tax"`
	GatewayFees   Money       `json:"gateway_fees"`
	Adjustment    Money       `json:"adjustment"`
	Total         *Money      `json:"total,omitempty"`
	Currency      string      `json:"currency"`
	Status        string      `json:"status"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	CustomerEmail string      `json:"customer_email"`
	Gateway       string      `json:"payment_gateway"`
	PaymentMeta   PaymentMeta `json:"payment_meta"`
}

// Transaction is the immutable part of a payment transaction.
type Transaction struct {
	ID              string
	Reference       string
	Breakdown       Breakdown
	InitialStatus   Status
	ExpiresAt       *time.Time
	CustomerEmail   string
	FallbackGateway string
	Meta            PaymentMeta
}

// New builds a transaction from its payload, computing the amount breakdown.
func New(p Payload) (*Transaction, error) {
	id := p.Identifier.String()
	if id == "" {
		id = p.ID.String()
	}
	if id == "" {
		return nil, errors.NewDomainError("invalid_transaction", "transaction id is required", errors.ErrInvalidTransaction)
	}
	if p.Amount < 0 || p.Tax < 0 || p.GatewayFees < 0 {
		return nil, errors.NewValidationError("amount", "components must not be negative")
	}

	b := Breakdown{
		Subtotal:    p.Amount,
		Tax:         p.Tax,
		GatewayFees: p.GatewayFees,
		Adjustment:  p.Adjustment,
		Currency:    strings.ToUpper(p.Currency),
	}
	if p.Total != nil {
		b.GrandTotal = *p.Total
	} else {
		b.GrandTotal = p.Amount + p.Tax + p.GatewayFees + p.Adjustment
	}

	status := StatusPending
	if p.Status != "" {
		status = ParseStatus(p.Status)
	}

	return &Transaction{
		ID:              id,
		Reference:       strings.TrimSpace(p.Reference),
		Breakdown:       b,
		InitialStatus:   status,
		ExpiresAt:       p.ExpiresAt,
		CustomerEmail:   strings.TrimSpace(p.CustomerEmail),
		FallbackGateway: strings.TrimSpace(p.Gateway),
		Meta:            p.PaymentMeta,
	}, nil
}
