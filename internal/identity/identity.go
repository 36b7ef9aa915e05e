// Package identity computes deterministic event identities for purchase line items.
//
// The digest input is a compatibility contract shared by every producer of
// event ids and must not change:
//
//	source US merchant US timestamp US item US modifiers US line_total [US order_id]
//
// where US is U+001F. A missing timestamp and an empty modifier list are each
// written as the sentinel U+0000. Timestamps are rendered in UTC with
// time.RFC3339Nano. Modifiers are joined with U+001E. line_total uses two fixed
// decimals. order_id is appended only when present, so presence changes the
// field count and never collides with omission. The digest is SHA-256,
// lowercase hex.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const (
	fieldSep    = "\x1f"
	modifierSep = "\x1e"
	sentinel    = "\x00"
)

// Input holds the raw, pre-normalization values that define an event.
type Input struct {
	Source       string
	MerchantName string
	Timestamp    *time.Time
	ItemNameRaw  string
	ModifiersRaw []string
	LineTotal    float64
	OrderID      string
}

// Canonical returns the exact string that is hashed.
func Canonical(in Input) string {
	ts := sentinel
	if in.Timestamp != nil {
		ts = in.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	mods := sentinel
	if len(in.ModifiersRaw) > 0 {
		mods = strings.Join(in.ModifiersRaw, modifierSep)
	}

	fields := []string{
		in.Source,
		in.MerchantName,
		ts,
		in.ItemNameRaw,
		mods,
		FormatAmount(in.LineTotal),
	}
	if in.OrderID != "" {
		fields = append(fields, in.OrderID)
	}
	return strings.Join(fields, fieldSep)
}

// EventID returns the hex SHA-256 of Canonical(in).
func EventID(in Input) string {
	sum := sha256.Sum256([]byte(Canonical(in)))
	return hex.EncodeToString(sum[:])
}

// PayloadHash returns the hex SHA-256 of a raw payload.
func PayloadHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// FormatAmount renders a monetary amount with two fixed decimals.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
