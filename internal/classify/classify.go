// Package classify assigns a vertical and food kind to each line item using
// ordered rules. The first rule that fires decides.
package classify

import (
	"strings"

	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/templates"
)

// Rule confidences.
const (
	ConfMerchantOverride = 1.0
	ConfNonFoodKeyword   = 0.95
	ConfGroceryRaw       = 0.75
	ConfBeverage         = 0.7
	ConfPackaged         = 0.65
	ConfMerchantCategory = 0.7
	ConfAssumePriced     = 0.55
	ConfDefault          = 0.3
)

// Options tunes optional rules.
type Options struct {
	// AssumeFoodIfPriced classifies any priced item without a rule match as a
	// prepared meal with moderate confidence.
	AssumeFoodIfPriced bool
}

// Classifier is built once per template snapshot and is safe for concurrent use.
type Classifier struct {
	snap *templates.Snapshot
	opts Options
}

// New creates a Classifier over snap.
func New(snap *templates.Snapshot, opts Options) *Classifier {
	return &Classifier{snap: snap, opts: opts}
}

// Classify never fails; unmatched items degrade to food/prepared_meal.
func (c *Classifier) Classify(item model.PurchaseLineItem) model.ClassificationResult {
	res := c.decide(item)
	res.EventID = item.EventID
	return res
}

func (c *Classifier) decide(item model.PurchaseLineItem) model.ClassificationResult {
	rule, hasMerchant := c.snap.MatchMerchant(item.MerchantName)

	if hasMerchant {
		if rule.ForceVertical == model.VerticalNonFood {
			return result(model.VerticalNonFood, model.FoodKindNone, ConfMerchantOverride, "merchant_override:non_food")
		}
		if rule.ForceFoodKind != model.FoodKindNone {
			return result(model.VerticalFood, rule.ForceFoodKind, ConfMerchantOverride, "merchant_override:"+string(rule.ForceFoodKind))
		}
	}

	name := templates.NormalizeText(item.ItemNameRaw)

	if kw, ok := c.firstMatch(templates.KeywordsNonFood, name); ok {
		return result(model.VerticalNonFood, model.FoodKindNone, ConfNonFoodKeyword, "non_food_keyword:"+kw)
	}

	merchantKind := model.FoodKindNone
	if hasMerchant && rule.Category != "" {
		merchantKind = categoryKind(rule.Category)
	}

	// The grocery dictionary is skipped at prepared-food merchants.
	if merchantKind != model.FoodKindPreparedMeal {
		if kw, ok := c.firstMatch(templates.KeywordsGrocery, name); ok {
			return result(model.VerticalFood, model.FoodKindGroceryRaw, ConfGroceryRaw, "grocery_raw_keyword:"+kw)
		}
	}
	if kw, ok := c.firstMatch(templates.KeywordsBeverage, name); ok {
		return result(model.VerticalFood, model.FoodKindBeverage, ConfBeverage, "beverage_keyword:"+kw)
	}
	if kw, ok := c.firstMatch(templates.KeywordsPackaged, name); ok {
		return result(model.VerticalFood, model.FoodKindGroceryPackaged, ConfPackaged, "packaged_keyword:"+kw)
	}

	if merchantKind != model.FoodKindNone {
		return result(model.VerticalFood, merchantKind, ConfMerchantCategory, "merchant_category:"+strings.ToLower(rule.Category))
	}

	if c.opts.AssumeFoodIfPriced && (item.LineTotal > 0 || item.UnitPrice > 0) {
		return result(model.VerticalFood, model.FoodKindPreparedMeal, ConfAssumePriced, "assume_food_if_priced")
	}

	return result(model.VerticalFood, model.FoodKindPreparedMeal, ConfDefault, "no_rule_matched")
}

// categoryKind maps a merchant category onto the food kind it implies.
func categoryKind(category string) model.FoodKind {
	switch strings.ToLower(category) {
	case "beverage", "coffee", "tea":
		return model.FoodKindBeverage
	case "grocery", "market":
		return model.FoodKindGroceryPackaged
	default:
		return model.FoodKindPreparedMeal
	}
}

func (c *Classifier) firstMatch(set templates.KeywordSet, name string) (string, bool) {
	k, ok := c.snap.MatchKeyword(set, name)
	return k.Text, ok
}

func result(v model.Vertical, k model.FoodKind, conf float64, reason string) model.ClassificationResult {
	return model.ClassificationResult{
		Vertical:   v,
		FoodKind:   k,
		Confidence: conf,
		Reasons:    []string{reason},
	}
}
