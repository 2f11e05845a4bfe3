package instrument

import (
	"strings"
	"sync"

	"github.com/cassiomorais/checkout/internal/domain/errors"
	"github.com/cassiomorais/checkout/internal/domain/transaction"
)

// Raw is a stored card as returned by the backend.
type Raw struct {
	ID          transaction.ID `json:"id"`
	Identifier  string         `json:"identifier"`
	Brand       string         `json:"brand"`
	CardType    string         `json:"card_type"`
	Last4       transaction.ID `json:"last4"`
	ExpMonth    transaction.ID `json:"exp_month"`
	ExpYear     transaction.ID `json:"exp_year"`
	Bank        string         `json:"bank"`
	GatewayName string         `json:"gateway_name"`
}

// Instrument is a saved payment instrument.
type Instrument struct {
	ID          string `json:"id"`
	Brand       string `json:"brand"`
	Last4       string `json:"last4"`
	ExpMonth    string `json:"exp_month"`
	ExpYear     string `json:"exp_year"`
	Bank        string `json:"bank,omitempty"`
	GatewayName string `json:"gateway_name,omitempty"`
}

// FromRaw resolves the identifier, falling back to the string form of id.
func FromRaw(r Raw) Instrument {
	id := strings.TrimSpace(r.Identifier)
	if id == "" {
		id = r.ID.String()
	}
	brand := r.Brand
	if brand == "" {
		brand = r.CardType
	}
	return Instrument{
		ID:          id,
		Brand:       brand,
		Last4:       r.Last4.String(),
		ExpMonth:    r.ExpMonth.String(),
		ExpYear:     r.ExpYear.String(),
		Bank:        r.Bank,
		GatewayName: r.GatewayName,
	}
}

// FromRawList converts a raw list, dropping entries without any identifier.
func FromRawList(raw []Raw) []Instrument {
	out := make([]Instrument, 0, len(raw))
	for _, r := range raw {
		in := FromRaw(r)
		if in.ID == "" {
			continue
		}
		out = append(out, in)
	}
	return out
}

// Collection holds the saved instruments of a checkout and the selected one.
// The selection never references a missing instrument.
type Collection struct {
	mu         sync.RWMutex
	items      []Instrument
	selectedID string
}

// NewCollection creates a collection and selects its first instrument.
func NewCollection(items []Instrument) *Collection {
	c := &Collection{}
	c.Replace(items)
	return c
}

// List returns a copy of the instruments.
func (c *Collection) List() []Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Instrument, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of instruments.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Replace swaps the whole collection and repairs the selection.
func (c *Collection) Replace(items []Instrument) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]Instrument(nil), items...)
	c.repair()
}

// Select marks id as the selected instrument.
func (c *Collection) Select(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index(id) < 0 {
		return errors.ErrInstrumentNotFound
	}
	c.selectedID = id
	return nil
}

// Selected returns the selected instrument.
func (c *Collection) Selected() (Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.index(c.selectedID); i >= 0 {
		return c.items[i], true
	}
	return Instrument{}, false
}

// Remove evicts id. The selection is cleared only when it pointed at id.
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	if c.selectedID == id {
		c.selectedID = ""
	}
	return true
}

// Contains reports whether id is in the collection.
func (c *Collection) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index(id) >= 0
}

func (c *Collection) index(id string) int {
	if id == "" {
		return -1
	}
	for i, in := range c.items {
		if in.ID == id {
			return i
		}
	}
	return -1
}

func (c *Collection) repair() {
	if c.index(c.selectedID) >= 0 {
		return
	}
	c.selectedID = ""
	if len(c.items) > 0 {
		c.selectedID = c.items[0].ID
	}
}
