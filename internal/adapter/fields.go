package adapter

import (
	"bytes"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sells-group/bitegraph/internal/identity"
	"github.com/sells-group/bitegraph/internal/model"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseTimestamp accepts RFC3339 and common export layouts. Values without a
// zone are read as UTC. Unparseable or empty input yields nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ParseAmount parses a number, tolerating currency symbols and thousands
// separators. Empty or malformed input yields def.
func ParseAmount(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// SplitModifiers splits a delimited modifier cell, dropping empty parts.
func SplitModifiers(s string, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NormalizeHeader lowercases a column name and joins its words with underscores.
func NormalizeHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}

// NormalizeHeaders applies NormalizeHeader to every column.
func NormalizeHeaders(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = NormalizeHeader(h)
	}
	return out
}

// Header normalizes a raw header row and rejects columns that normalize to
// the same name. Blank columns are ignored.
func Header(source string, header []string) ([]string, error) {
	out := NormalizeHeaders(header)
	seen := make(map[string]bool, len(out))
	for _, h := range out {
		if h == "" {
			continue
		}
		if seen[h] {
			return nil, Invalid(source, "duplicate column %q", h)
		}
		seen[h] = true
	}
	return out, nil
}

// Text validates raw as UTF-8 and strips a leading byte order mark.
func Text(source string, raw []byte) ([]byte, error) {
	if !utf8.Valid(raw) {
		return nil, Invalid(source, "payload is not valid UTF-8")
	}
	return bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")), nil
}

// Line is one purchased line as read from a source, before identity is assigned.
type Line struct {
	Merchant  string
	Timestamp *time.Time
	Item      string
	Modifiers []string
	Quantity  float64
	UnitPrice float64
	LineTotal float64
	OrderID   string
}

// Build builds the PurchaseLineItem for l. The event id is computed from the
// raw values; quantities of zero or less become 1.
func (l Line) Build(source string, meta model.Metadata, rawRef, payloadHash string) model.PurchaseLineItem {
	eventID := identity.EventID(identity.Input{
		Source:       source,
		MerchantName: l.Merchant,
		Timestamp:    l.Timestamp,
		ItemNameRaw:  l.Item,
		ModifiersRaw: l.Modifiers,
		LineTotal:    l.LineTotal,
		OrderID:      l.OrderID,
	})

	qty := l.Quantity
	if qty <= 0 {
		qty = 1
	}
	unit := l.UnitPrice
	if unit == 0 && l.LineTotal != 0 {
		unit = l.LineTotal / qty
	}

	var mods []string
	if len(l.Modifiers) > 0 {
		mods = append(mods, l.Modifiers...)
	}

	return model.PurchaseLineItem{
		EventID:        eventID,
		UserID:         meta.UserID,
		Source:         source,
		MerchantName:   l.Merchant,
		Timestamp:      l.Timestamp,
		ItemNameRaw:    l.Item,
		ModifiersRaw:   mods,
		Quantity:       qty,
		UnitPrice:      unit,
		LineTotal:      l.LineTotal,
		RawRef:         meta.RawRefOr(rawRef),
		RawPayloadHash: payloadHash,
	}
}
