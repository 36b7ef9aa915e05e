package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/templates"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	snap, err := templates.Default()
	require.NoError(t, err)
	return New(snap)
}

func TestMerchant(t *testing.T) {
	t.Parallel()
	n := newTestNormalizer(t)

	tests := []struct {
		in   string
		want string
	}{
		{"  SAMPLE   restaurant ", "Sample Restaurant"},
		{"mcd", "McDonald's"},
		{"MCD", "McDonald's"},
		{"sbux", "Starbucks"},
		{"blue bottle coffee", "Blue Bottle Coffee"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Merchant(tt.in))
		})
	}
}

func TestNormalize_DoesNotTouchIdentity(t *testing.T) {
	t.Parallel()
	n := newTestNormalizer(t)

	ts := time.Date(2026, 1, 15, 19, 30, 0, 0, time.UTC)
	in := model.PurchaseLineItem{
		EventID:        "abc",
		Source:         "uber_eats",
		MerchantName:   "sample  RESTAURANT",
		Timestamp:      &ts,
		ItemNameRaw:    "  Shroom   Burger ",
		ModifiersRaw:   []string{" no pickles ", "  ", "extra   mayo"},
		LineTotal:      8.99,
		RawPayloadHash: "deadbeef",
	}
	out := n.Normalize(in)

	assert.Equal(t, "abc", out.EventID)
	assert.Equal(t, "deadbeef", out.RawPayloadHash)
	assert.Equal(t, "Sample Restaurant", out.MerchantName)
	assert.Equal(t, "Shroom Burger", out.ItemNameRaw)
	assert.Equal(t, []string{"no pickles", "extra mayo"}, out.ModifiersRaw)

	// Input is unchanged.
	assert.Equal(t, "  Shroom   Burger ", in.ItemNameRaw)
	assert.Equal(t, " no pickles ", in.ModifiersRaw[0])
	assert.NotSame(t, in.Timestamp, out.Timestamp)
}

func TestNormalize_NilSnapshot(t *testing.T) {
	t.Parallel()
	n := New(nil)
	assert.Equal(t, "Mcd", n.Merchant("mcd"))
}

func TestText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a b c", Text("\ta  b\n c "))
	assert.Empty(t, Text(" \t\n"))
}
