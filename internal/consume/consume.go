// Package consume estimates how likely a purchase was actually consumed.
package consume

import (
	"math"

	"github.com/sells-group/bitegraph/internal/model"
)

// ModelVersion is stamped on every inference.
const ModelVersion = 1

// Signal is an observed-consumption hint from outside the purchase record.
type Signal struct {
	Source      string  `json:"source"`
	Probability float64 `json:"probability"`
}

// SignalSource supplies signals for an event. Implementations must be safe for
// concurrent use.
type SignalSource interface {
	SignalsFor(eventID string) []Signal
}

// SignalMap is a static SignalSource keyed by event id.
type SignalMap map[string][]Signal

// SignalsFor implements SignalSource.
func (m SignalMap) SignalsFor(eventID string) []Signal {
	return m[eventID]
}

// Engine is stateless and safe for concurrent use.
type Engine struct{}

// New creates an Engine.
func New() *Engine {
	return &Engine{}
}

// Infer never fails. The last signal, if any, overrides the food-kind default.
// Signals without a source or with a non-finite probability are ignored.
func (e *Engine) Infer(item model.PurchaseLineItem, cls model.ClassificationResult, _ model.MappingResult, signals ...Signal) model.ConsumptionInference {
	p, reasons := defaults(item, cls)
	if cls.Vertical != model.VerticalNonFood {
		for _, s := range signals {
			if s.Source == "" || math.IsNaN(s.Probability) || math.IsInf(s.Probability, 0) {
				continue
			}
			p = clamp(s.Probability)
			reasons = append(reasons, "observed_consumption:"+s.Source)
		}
	}
	return model.ConsumptionInference{
		EventID:             item.EventID,
		ConsumedProbability: clamp(p),
		ReasonCodes:         reasons,
		Version:             ModelVersion,
	}
}

func defaults(item model.PurchaseLineItem, cls model.ClassificationResult) (float64, []string) {
	if cls.Vertical == model.VerticalNonFood {
		return 0, []string{"non_food"}
	}
	switch cls.FoodKind {
	case model.FoodKindPreparedMeal:
		return 0.9, []string{"restaurant_default"}
	case model.FoodKindBeverage:
		return 0.9, []string{"beverage_default"}
	case model.FoodKindGroceryPackaged:
		if item.Quantity <= 1 && item.LineTotal <= 10 {
			return 0.5, []string{"grocery_packaged_default", "grocery_single_serve"}
		}
		return 0.35, []string{"grocery_packaged_default"}
	case model.FoodKindGroceryRaw:
		if item.Quantity <= 1 {
			return 0.4, []string{"grocery_raw_default", "grocery_small_batch"}
		}
		return 0.3, []string{"grocery_raw_default"}
	default:
		return 0.5, []string{"unknown_food_kind"}
	}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
