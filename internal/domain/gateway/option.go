package gateway

import (
	"strings"

	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

// Channel is a payment channel offered to the payer.
type Channel string

const (
	ChannelCard         Channel = "card"
	ChannelBankTransfer Channel = "bank_transfer"
	ChannelSavedCard    Channel = "saved_card"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelCard || c == ChannelBankTransfer || c == ChannelSavedCard
}

// RawOption is a gateway offer as it appears in the transaction payload.
type RawOption struct {
	ID          transaction.ID `json:"id"`
	Type        string         `json:"type"`
	Channel     string         `json:"channel"`
	Name        string         `json:"name"`
	GatewayName string         `json:"gateway_name"`
	Reference   string         `json:"reference"`
	PublicKey   string         `json:"public_key"`
	Details     map[string]any `json:"details,omitempty"`
}

// Option is a classified gateway offer.
type Option struct {
	ID          string         `json:"id"`
	Channel     Channel        `json:"channel"`
	GatewayName string         `json:"gateway_name"`
	Reference   string         `json:"reference,omitempty"`
	PublicKey   string         `json:"public_key,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Classify derives the channel from the free-text type, channel and name fields.
// It returns an empty channel when nothing matches.
func Classify(raw RawOption) Channel {
	text := strings.ToLower(raw.Type + " " + raw.Channel + " " + raw.Name)
	switch {
	case strings.Contains(text, "card"):
		return ChannelCard
	case strings.Contains(text, "bank"), strings.Contains(text, "transfer"):
		return ChannelBankTransfer
	default:
		return ""
	}
}

// NewOption classifies a raw option. The gateway name falls back to the option name.
func NewOption(raw RawOption) Option {
	gw := strings.TrimSpace(raw.GatewayName)
	if gw == "" {
		gw = strings.TrimSpace(raw.Name)
	}
	id := raw.ID.String()
	if id == "" {
		id = gw
	}
	return Option{
		ID:          id,
		Channel:     Classify(raw),
		GatewayName: gw,
		Reference:   strings.TrimSpace(raw.Reference),
		PublicKey:   strings.TrimSpace(raw.PublicKey),
		Details:     raw.Details,
	}
}
