package model

import (
	"fmt"
	"time"
)

// PurchaseLineItem is a single purchased line as emitted by a source adapter.
// Values are never edited in place: stages return a new value and corrections
// arrive as a new record carrying the same EventID.
type PurchaseLineItem struct {
	EventID        string     `json:"event_id"`
	UserID         string     `json:"user_id,omitempty"`
	Source         string     `json:"source"`
	MerchantName   string     `json:"merchant_name"`
	Timestamp      *time.Time `json:"timestamp"`
	ItemNameRaw    string     `json:"item_name_raw"`
	ModifiersRaw   []string   `json:"modifiers_raw"`
	Quantity       float64    `json:"quantity"`
	UnitPrice      float64    `json:"unit_price"`
	LineTotal      float64    `json:"line_total"`
	RawRef         string     `json:"raw_ref"`
	RawPayloadHash string     `json:"raw_payload_hash"`
}

// Modifiers returns a copy of the raw modifiers.
func (p PurchaseLineItem) Modifiers() []string {
	if len(p.ModifiersRaw) == 0 {
		return nil
	}
	out := make([]string, len(p.ModifiersRaw))
	copy(out, p.ModifiersRaw)
	return out
}

// Clone returns a deep copy so callers can derive a new record without
// sharing the modifier slice or timestamp pointer.
func (p PurchaseLineItem) Clone() PurchaseLineItem {
	out := p
	out.ModifiersRaw = p.Modifiers()
	if p.Timestamp != nil {
		ts := *p.Timestamp
		out.Timestamp = &ts
	}
	return out
}

// Validate checks the fields every stage depends on.
func (p PurchaseLineItem) Validate() error {
	switch {
	case p.EventID == "":
		return &ValidationError{Field: "event_id"}
	case p.Source == "":
		return &ValidationError{Field: "source"}
	case p.ItemNameRaw == "":
		return &ValidationError{Field: "item_name_raw"}
	}
	return nil
}

// ValidationError reports a structurally invalid record.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: missing required field %q", e.Field)
}
