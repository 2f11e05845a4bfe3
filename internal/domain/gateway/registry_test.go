package gateway_test

import (
	"testing"

	"github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOptions() []gateway.RawOption {
	return []gateway.RawOption{
		{ID: "paystack", Type: "Card", GatewayName: "Paystack", Reference: "PSK-REF", PublicKey: "pk_test_1"},
		{ID: "flutter", Name: "Flutterwave Card", GatewayName: "Flutterwave"},
		{ID: "wema", Type: "Bank Transfer", GatewayName: "Wema", Details: map[string]any{"account_number": "0123456789"}},
		{ID: "providus", Name: "Direct transfer", GatewayName: "Providus"},
		{ID: "crypto", Type: "wallet", GatewayName: "Coinbase"},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		raw      gateway.RawOption
		expected gateway.Channel
	}{
		{"type card", gateway.RawOption{Type: "CARD"}, gateway.ChannelCard},
		{"name card", gateway.RawOption{Name: "Debit card payments"}, gateway.ChannelCard},
		{"bank", gateway.RawOption{Type: "bank"}, gateway.ChannelBankTransfer},
		{"transfer", gateway.RawOption{Channel: "Transfer"}, gateway.ChannelBankTransfer},
		{"unknown", gateway.RawOption{Type: "ussd"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, gateway.Classify(tt.raw))
		})
	}
}

func TestNewOption_GatewayFallsBackToName(t *testing.T) {
	o := gateway.NewOption(gateway.RawOption{Name: "Paystack", Type: "card"})
	assert.Equal(t, "Paystack", o.GatewayName)
	assert.Equal(t, "Paystack", o.ID)
	assert.Equal(t, gateway.ChannelCard, o.Channel)
}

func TestRegistry_DerivedCollections(t *testing.T) {
	r := gateway.NewRegistry(sampleOptions(), nil)

	assert.Len(t, r.All(), 5)
	assert.Len(t, r.CardOptions(), 2)
	assert.Len(t, r.BankTransferOptions(), 2)
	assert.Equal(t, []gateway.Channel{gateway.ChannelCard, gateway.ChannelBankTransfer}, r.AvailableChannels())
}

func TestRegistry_SavedCardChannel(t *testing.T) {
	saved := false
	r := gateway.NewRegistry(sampleOptions()[:1], func() bool { return saved })
	assert.Equal(t, []gateway.Channel{gateway.ChannelCard}, r.AvailableChannels())

	saved = true
	assert.Equal(t, []gateway.Channel{gateway.ChannelCard, gateway.ChannelSavedCard}, r.AvailableChannels())
}

func TestRegistry_NoOptions(t *testing.T) {
	r := gateway.NewRegistry(nil, nil)

	assert.Empty(t, r.AvailableChannels())
	assert.False(t, r.SelectDefault())
	_, ok := r.ActiveOption()
	assert.False(t, ok)
	assert.ErrorIs(t, r.SelectChannel(gateway.ChannelCard), errors.ErrChannelUnavailable)
}

func TestRegistry_SelectChannelResetsOption(t *testing.T) {
	r := gateway.NewRegistry(sampleOptions(), nil)

	require.NoError(t, r.SelectChannel(gateway.ChannelCard))
	require.NoError(t, r.SelectOption("flutter"))
	opt, ok := r.ActiveOption()
	require.True(t, ok)
	assert.Equal(t, "flutter", opt.ID)

	require.NoError(t, r.SelectChannel(gateway.ChannelBankTransfer))
	opt, ok = r.ActiveOption()
	require.True(t, ok)
	assert.Equal(t, "wema", opt.ID, "first bank transfer option must replace the stale card option")
	assert.Equal(t, gateway.ChannelBankTransfer, opt.Channel)
}

func TestRegistry_SelectOptionOutsideChannel(t *testing.T) {
	r := gateway.NewRegistry(sampleOptions(), nil)
	require.NoError(t, r.SelectChannel(gateway.ChannelCard))

	assert.ErrorIs(t, r.SelectOption("wema"), errors.ErrOptionNotFound)
	opt, _ := r.ActiveOption()
	assert.Equal(t, "paystack", opt.ID)
}

func TestRegistry_SelectOptionOnSavedCardIsRejected(t *testing.T) {
	r := gateway.NewRegistry(sampleOptions(), func() bool { return true })
	require.NoError(t, r.SelectChannel(gateway.ChannelSavedCard))

	assert.ErrorIs(t, r.SelectOption("paystack"), errors.ErrOptionNotSelectable)
	_, ok := r.ActiveOption()
	assert.False(t, ok)
	assert.Equal(t, gateway.ChannelSavedCard, r.ActiveChannel())
}

func TestRegistry_SelectUnknownChannel(t *testing.T) {
	r := gateway.NewRegistry(sampleOptions(), nil)
	assert.ErrorIs(t, r.SelectChannel("crypto"), errors.ErrValidationFailed)
}

func TestRegistry_SelectDefault(t *testing.T) {
	r := gateway.NewRegistry(sampleOptions()[2:], nil)
	require.True(t, r.SelectDefault())

	assert.Equal(t, gateway.ChannelBankTransfer, r.ActiveChannel())
	opt, ok := r.ActiveOption()
	require.True(t, ok)
	assert.Equal(t, "wema", opt.ID)
}

func TestRegistry_RefreshDropsVanishedSavedChannel(t *testing.T) {
	saved := true
	r := gateway.NewRegistry(sampleOptions()[:1], func() bool { return saved })
	require.NoError(t, r.SelectChannel(gateway.ChannelSavedCard))

	saved = false
	r.Refresh()

	assert.Equal(t, gateway.ChannelCard, r.ActiveChannel())
	opt, ok := r.ActiveOption()
	require.True(t, ok)
	assert.Equal(t, "paystack", opt.ID)
}
