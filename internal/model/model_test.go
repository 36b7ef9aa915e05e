package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoodKind_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		Kind FoodKind `json:"food_kind"`
	}{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"food_kind":null}`, string(data))

	data, err = json.Marshal(FoodKindGroceryRaw)
	require.NoError(t, err)
	assert.Equal(t, `"grocery_raw"`, string(data))

	var k FoodKind
	require.NoError(t, json.Unmarshal([]byte(`"beverage"`), &k))
	assert.Equal(t, FoodKindBeverage, k)
	require.NoError(t, json.Unmarshal([]byte(`null`), &k))
	assert.Equal(t, FoodKindNone, k)

	assert.Error(t, json.Unmarshal([]byte(`"snack"`), &k))
	assert.Error(t, json.Unmarshal([]byte(`3`), &k))
}

func TestParseVertical(t *testing.T) {
	t.Parallel()

	v, err := ParseVertical("non_food")
	require.NoError(t, err)
	assert.Equal(t, VerticalNonFood, v)

	_, err = ParseVertical("unknown")
	assert.Error(t, err)
}

func TestPurchaseLineItem_Validate(t *testing.T) {
	t.Parallel()

	ok := PurchaseLineItem{EventID: "e", Source: "s", ItemNameRaw: "x"}
	require.NoError(t, ok.Validate())

	tests := []struct {
		field string
		item  PurchaseLineItem
	}{
		{"event_id", PurchaseLineItem{Source: "s", ItemNameRaw: "x"}},
		{"source", PurchaseLineItem{EventID: "e", ItemNameRaw: "x"}},
		{"item_name_raw", PurchaseLineItem{EventID: "e", Source: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			err := tt.item.Validate()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestPurchaseLineItem_CloneIsDeep(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 15, 19, 30, 0, 0, time.UTC)
	in := PurchaseLineItem{ModifiersRaw: []string{"a"}, Timestamp: &ts}
	out := in.Clone()
	out.ModifiersRaw[0] = "b"
	*out.Timestamp = ts.Add(time.Hour)

	assert.Equal(t, "a", in.ModifiersRaw[0])
	assert.Equal(t, ts, *in.Timestamp)
	assert.Nil(t, PurchaseLineItem{}.Modifiers())
}

func TestPurchaseLineItem_JSONFieldNames(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(PurchaseLineItem{EventID: "e", Source: "s"})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"event_id", "source", "merchant_name", "timestamp", "item_name_raw", "modifiers_raw", "quantity", "unit_price", "line_total", "raw_ref", "raw_payload_hash"} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "user_id")
	assert.Nil(t, m["timestamp"])
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	base := FoodEventInterpretation{
		EventID:           "e",
		Vertical:          VerticalFood,
		FoodKind:          FoodKindPreparedMeal,
		CanonicalFoodID:   StringPtr("burger_mushroom_v1"),
		PortionMultiplier: 1,
		Confidence:        0.75,
		Provenance:        ProvenanceTemplateV1,
		Version:           1,
		UpdatedAt:         time.Unix(0, 0),
	}

	later := base
	later.Version = 7
	later.UpdatedAt = time.Now()
	later.Reasons = []string{}
	assert.Equal(t, base.ContentHash(), later.ContentHash())

	changed := base
	changed.Confidence = 0.76
	assert.NotEqual(t, base.ContentHash(), changed.ContentHash())

	reasons := base
	reasons.Reasons = []string{"x"}
	assert.NotEqual(t, base.ContentHash(), reasons.ContentHash())
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	assert.Error(t, Metadata{}.Validate())
	assert.NoError(t, Metadata{Source: "uber_eats"}.Validate())

	assert.Equal(t, "ref", Metadata{RawRef: "ref", FilePath: "f"}.RawRefOr("d"))
	assert.Equal(t, "f", Metadata{FilePath: "f"}.RawRefOr("d"))
	assert.Equal(t, "d", Metadata{}.RawRefOr("d"))
}

func TestStringPtr(t *testing.T) {
	t.Parallel()

	assert.Nil(t, StringPtr(""))
	assert.Equal(t, "x", Deref(StringPtr("x")))
	assert.Empty(t, Deref(nil))
}
