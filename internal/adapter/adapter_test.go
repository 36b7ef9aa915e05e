package adapter

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bitegraph/internal/identity"
	"github.com/sells-group/bitegraph/internal/model"
)

type stubAdapter struct {
	id     string
	format string
}

func (s stubAdapter) SourceID() string { return s.id }

func (s stubAdapter) CanParse(meta model.Metadata) bool {
	return meta.Source == s.id || (s.format != "" && meta.Format == s.format)
}

func (s stubAdapter) Parse([]byte, model.Metadata) ([]model.PurchaseLineItem, error) {
	return nil, nil
}

func TestInvalidInputError(t *testing.T) {
	t.Parallel()

	err := Invalid("uber_eats", "bad row %d", 3)
	assert.Equal(t, "adapter: invalid input for uber_eats: bad row 3", err.Error())
	assert.True(t, IsInvalidInput(err))
	assert.True(t, IsInvalidInput(fmt.Errorf("pipeline: parse: %w", err)))
	assert.False(t, IsInvalidInput(errors.New("other")))

	cause := errors.New("boom")
	wrapped := InvalidWrap("csv_import", cause, "read header")
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "read header: boom")
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(stubAdapter{id: "zeta", format: "shared"}))
	require.NoError(t, r.Register(stubAdapter{id: "alpha", format: "shared"}))

	err := r.Register(stubAdapter{id: "zeta"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	require.Error(t, r.Register(stubAdapter{}))

	a, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", a.SourceID())

	_, err = r.Get("missing")
	require.Error(t, err)
	assert.True(t, IsUnknownSource(err))

	found, err := r.Find(model.Metadata{Source: "x", Format: "shared"})
	require.NoError(t, err)
	assert.Equal(t, "zeta", found.SourceID(), "registration order decides")

	_, err = r.Find(model.Metadata{Source: "nope"})
	assert.True(t, IsUnknownSource(err))

	assert.Equal(t, []string{"alpha", "zeta"}, r.SourceIDs())
	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "zeta", all[0].SourceID())
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"2026-01-05T18:30:00Z", "2026-01-05T18:30:00Z"},
		{"2026-01-05T18:30:00-05:00", "2026-01-05T23:30:00Z"},
		{"2026-01-05 18:30:00", "2026-01-05T18:30:00Z"},
		{"2026-01-05", "2026-01-05T00:00:00Z"},
		{" 01/05/2026 ", "2026-01-05T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseTimestamp(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format(time.RFC3339))
		})
	}

	assert.Nil(t, ParseTimestamp(""))
	assert.Nil(t, ParseTimestamp("yesterday"))
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 12.5, ParseAmount("12.50", 0), 1e-9)
	assert.InDelta(t, 1234.5, ParseAmount("$1,234.50", 0), 1e-9)
	assert.InDelta(t, 1, ParseAmount("", 1), 1e-9)
	assert.InDelta(t, 7, ParseAmount("n/a", 7), 1e-9)
}

func TestSplitModifiers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"No Pickles", "Extra Mayo"}, SplitModifiers(" No Pickles, ,Extra Mayo ", ","))
	assert.Nil(t, SplitModifiers("", ","))
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "item_quantity", NormalizeHeader("Item_quantity"))
	assert.Equal(t, "restaurant_name", NormalizeHeader("  Restaurant   Name "))
	assert.Equal(t, []string{"a", "b_c"}, NormalizeHeaders([]string{"A", "B C"}))
}

func TestHeader(t *testing.T) {
	t.Parallel()

	got, err := Header("s", []string{"Item Name", "", "Quantity", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"item_name", "", "quantity", ""}, got)

	_, err = Header("s", []string{"item_name", "Item  Name"})
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.Contains(t, err.Error(), `duplicate column "item_name"`)
}

func TestText(t *testing.T) {
	t.Parallel()

	out, err := Text("s", []byte("\xef\xbb\xbfabc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	_, err = Text("s", []byte{0xff})
	assert.True(t, IsInvalidInput(err))
}

func TestLine_Build(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 5, 18, 30, 0, 0, time.UTC)
	l := Line{
		Merchant:  "Diner",
		Timestamp: &ts,
		Item:      "Burger",
		Modifiers: []string{"No Pickles"},
		LineTotal: 10,
		OrderID:   "o1",
	}
	item := l.Build("csv_import", model.Metadata{UserID: "u"}, "import.csv", "hash")

	assert.Equal(t, identity.EventID(identity.Input{
		Source:       "csv_import",
		MerchantName: "Diner",
		Timestamp:    &ts,
		ItemNameRaw:  "Burger",
		ModifiersRaw: []string{"No Pickles"},
		LineTotal:    10,
		OrderID:      "o1",
	}), item.EventID)
	assert.InDelta(t, 1, item.Quantity, 1e-9)
	assert.InDelta(t, 10, item.UnitPrice, 1e-9)
	assert.Equal(t, "u", item.UserID)
	assert.Equal(t, "import.csv", item.RawRef)
	assert.Equal(t, "hash", item.RawPayloadHash)
	require.NoError(t, item.Validate())

	item.ModifiersRaw[0] = "changed"
	assert.Equal(t, "No Pickles", l.Modifiers[0])
}
