package classify

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/templates"
)

func newTestClassifier(t *testing.T, opts Options) *Classifier {
	t.Helper()
	snap, err := templates.Default()
	require.NoError(t, err)
	return New(snap, opts)
}

func TestClassify(t *testing.T) {
	t.Parallel()
	c := newTestClassifier(t, Options{})

	tests := []struct {
		name     string
		merchant string
		item     string
		vertical model.Vertical
		kind     model.FoodKind
		conf     float64
		reason   string
	}{
		{"merchant forces non food", "Best Buy", "USB Cable", model.VerticalNonFood, model.FoodKindNone, 1.0, "merchant_override:non_food"},
		{"merchant forces kind", "Blue Bottle Coffee", "Pastry", model.VerticalFood, model.FoodKindBeverage, 1.0, "merchant_override:beverage"},
		{"paper towels", "Sample Market", "Paper Towels", model.VerticalNonFood, model.FoodKindNone, 0.95, "non_food_keyword:paper towel"},
		{"delivery fee", "Sample Restaurant", "Delivery Fee", model.VerticalNonFood, model.FoodKindNone, 0.95, "non_food_keyword:delivery fee"},
		{"grocery raw", "Whole Foods", "Organic Bananas", model.VerticalFood, model.FoodKindGroceryRaw, 0.75, "grocery_raw_keyword:banana"},
		{"longest grocery key wins", "Safeway", "Ground Beef 1lb", model.VerticalFood, model.FoodKindGroceryRaw, 0.75, "grocery_raw_keyword:ground beef"},
		{"grocery skipped at restaurant", "Sample Restaurant", "Avocado Toast", model.VerticalFood, model.FoodKindPreparedMeal, 0.7, "merchant_category:restaurant"},
		{"latte at starbucks", "Starbucks", "Latte", model.VerticalFood, model.FoodKindBeverage, 0.7, "beverage_keyword:latte"},
		{"packaged", "Sample Market", "Tortilla Chips", model.VerticalFood, model.FoodKindGroceryPackaged, 0.65, "packaged_keyword:chips"},
		{"merchant category coffee", "Starbucks", "Blueberry Muffin", model.VerticalFood, model.FoodKindBeverage, 0.7, "merchant_category:coffee"},
		{"merchant category grocery", "Safeway", "Deli Sandwich", model.VerticalFood, model.FoodKindGroceryPackaged, 0.7, "merchant_category:grocery"},
		{"shroom burger", "Sample Restaurant", "Shroom Burger", model.VerticalFood, model.FoodKindPreparedMeal, 0.7, "merchant_category:restaurant"},
		{"no rule", "Unknown Place", "Mystery Item", model.VerticalFood, model.FoodKindPreparedMeal, 0.3, "no_rule_matched"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Classify(model.PurchaseLineItem{
				EventID:      "e1",
				Source:       "test",
				MerchantName: tt.merchant,
				ItemNameRaw:  tt.item,
			})
			assert.Equal(t, "e1", res.EventID)
			assert.Equal(t, tt.vertical, res.Vertical)
			assert.Equal(t, tt.kind, res.FoodKind)
			assert.InDelta(t, tt.conf, res.Confidence, 1e-9)
			assert.Equal(t, []string{tt.reason}, res.Reasons)
		})
	}
}

func TestClassify_AssumeFoodIfPriced(t *testing.T) {
	t.Parallel()

	item := model.PurchaseLineItem{EventID: "e1", Source: "test", MerchantName: "Nowhere", ItemNameRaw: "Thing", LineTotal: 4.5}

	off := newTestClassifier(t, Options{}).Classify(item)
	assert.Equal(t, []string{"no_rule_matched"}, off.Reasons)

	on := newTestClassifier(t, Options{AssumeFoodIfPriced: true}).Classify(item)
	assert.Equal(t, []string{"assume_food_if_priced"}, on.Reasons)
	assert.InDelta(t, ConfAssumePriced, on.Confidence, 1e-9)

	item.LineTotal = 0
	free := newTestClassifier(t, Options{AssumeFoodIfPriced: true}).Classify(item)
	assert.Equal(t, []string{"no_rule_matched"}, free.Reasons)
}

func TestClassify_EmptySnapshot(t *testing.T) {
	t.Parallel()

	snap, err := templates.Load(fstest.MapFS{})
	require.NoError(t, err)

	res := New(snap, Options{}).Classify(model.PurchaseLineItem{EventID: "e", Source: "s", MerchantName: "Best Buy", ItemNameRaw: "Paper Towels"})
	assert.Equal(t, model.VerticalFood, res.Vertical)
	assert.Equal(t, model.FoodKindPreparedMeal, res.FoodKind)
	assert.Equal(t, []string{"no_rule_matched"}, res.Reasons)
}
