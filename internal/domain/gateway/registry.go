package gateway

import (
	"sync"

	"github.com/cassiomorais/checkout/internal/domain/errors"
)

// Registry classifies the available gateway options and tracks the active selection.
type Registry struct {
	mu             sync.RWMutex
	options        []Option
	hasSaved       func() bool
	activeChannel  Channel
	activeOptionID string
}

// NewRegistry builds a registry from raw payload options. hasSaved reports whether any
// saved instrument exists and may be nil.
func NewRegistry(raw []RawOption, hasSaved func() bool) *Registry {
	opts := make([]Option, 0, len(raw))
	for _, r := range raw {
		opts = append(opts, NewOption(r))
	}
	if hasSaved == nil {
		hasSaved = func() bool { return false }
	}
	return &Registry{options: opts, hasSaved: hasSaved}
}

// All returns every option, classified or not.
func (r *Registry) All() []Option {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Option, len(r.options))
	copy(out, r.options)
	return out
}

// CardOptions returns the options of the card channel.
func (r *Registry) CardOptions() []Option {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byChannel(ChannelCard)
}

// BankTransferOptions returns the options of the bank transfer channel.
func (r *Registry) BankTransferOptions() []Option {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byChannel(ChannelBankTransfer)
}

func (r *Registry) byChannel(ch Channel) []Option {
	var out []Option
	for _, o := range r.options {
		if o.Channel == ch {
			out = append(out, o)
		}
	}
	return out
}

// AvailableChannels returns card, bank_transfer and saved_card, in that order, keeping only
// channels with at least one backing option or instrument.
func (r *Registry) AvailableChannels() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableChannels()
}

func (r *Registry) availableChannels() []Channel {
	channels := []Channel{}
	if len(r.byChannel(ChannelCard)) > 0 {
		channels = append(channels, ChannelCard)
	}
	if len(r.byChannel(ChannelBankTransfer)) > 0 {
		channels = append(channels, ChannelBankTransfer)
	}
	if r.hasSaved() {
		channels = append(channels, ChannelSavedCard)
	}
	return channels
}

// SelectDefault activates the first available channel. It returns false when none exists.
func (r *Registry) SelectDefault() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	channels := r.availableChannels()
	if len(channels) == 0 {
		return false
	}
	r.activate(channels[0])
	return true
}

// SelectChannel activates ch and resets the active option to the channel's first option,
// or none for saved_card.
func (r *Registry) SelectChannel(ch Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !ch.Valid() {
		return errors.NewValidationError("channel", "unknown channel "+string(ch))
	}
	for _, available := range r.availableChannels() {
		if available == ch {
			r.activate(ch)
			return nil
		}
	}
	return errors.ErrChannelUnavailable
}

func (r *Registry) activate(ch Channel) {
	r.activeChannel = ch
	r.activeOptionID = ""
	if opts := r.byChannel(ch); len(opts) > 0 {
		r.activeOptionID = opts[0].ID
	}
}

// SelectOption activates an option of the current card or bank_transfer channel.
func (r *Registry) SelectOption(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeChannel != ChannelCard && r.activeChannel != ChannelBankTransfer {
		return errors.ErrOptionNotSelectable
	}
	for _, o := range r.byChannel(r.activeChannel) {
		if o.ID == id {
			r.activeOptionID = id
			return nil
		}
	}
	return errors.ErrOptionNotFound
}

// ActiveChannel returns the selected channel, empty when none.
func (r *Registry) ActiveChannel() Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeChannel
}

// ActiveOption returns the selected option. A selection that no longer belongs to the
// active channel falls back to the channel's first option.
func (r *Registry) ActiveOption() (Option, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	opts := r.byChannel(r.activeChannel)
	if r.activeChannel == ChannelSavedCard || len(opts) == 0 {
		r.activeOptionID = ""
		return Option{}, false
	}
	for _, o := range opts {
		if o.ID == r.activeOptionID {
			return o, true
		}
	}
	r.activeOptionID = opts[0].ID
	return opts[0], true
}

// Refresh re-validates the active channel after the saved instrument collection changed.
func (r *Registry) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeChannel == "" {
		return
	}
	for _, ch := range r.availableChannels() {
		if ch == r.activeChannel {
			return
		}
	}
	channels := r.availableChannels()
	if len(channels) == 0 {
		r.activeChannel = ""
		r.activeOptionID = ""
		return
	}
	r.activate(channels[0])
}
