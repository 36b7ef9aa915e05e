package model

import "github.com/rotisserie/eris"

// Vertical is the top-level classification of a line item.
type Vertical string

const (
	VerticalFood    Vertical = "food"
	VerticalNonFood Vertical = "non_food"
)

// ParseVertical converts an interchange spelling into a Vertical.
func ParseVertical(s string) (Vertical, error) {
	switch Vertical(s) {
	case VerticalFood, VerticalNonFood:
		return Vertical(s), nil
	default:
		return "", eris.Errorf("model: unknown vertical %q (valid: food, non_food)", s)
	}
}

// FoodKind is the subtype of a food item. The empty value serializes as null.
type FoodKind string

const (
	FoodKindNone            FoodKind = ""
	FoodKindPreparedMeal    FoodKind = "prepared_meal"
	FoodKindGroceryRaw      FoodKind = "grocery_raw"
	FoodKindGroceryPackaged FoodKind = "grocery_packaged"
	FoodKindBeverage        FoodKind = "beverage"
)

// ParseFoodKind converts an interchange spelling into a FoodKind.
// The empty string parses as FoodKindNone.
func ParseFoodKind(s string) (FoodKind, error) {
	switch FoodKind(s) {
	case FoodKindNone, FoodKindPreparedMeal, FoodKindGroceryRaw, FoodKindGroceryPackaged, FoodKindBeverage:
		return FoodKind(s), nil
	default:
		return "", eris.Errorf("model: unknown food_kind %q", s)
	}
}

// MarshalJSON writes null for FoodKindNone.
func (k FoodKind) MarshalJSON() ([]byte, error) {
	if k == FoodKindNone {
		return []byte("null"), nil
	}
	return []byte(`"` + string(k) + `"`), nil
}

// UnmarshalJSON accepts null or a known spelling.
func (k *FoodKind) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*k = FoodKindNone
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return eris.Errorf("model: food_kind must be a string, got %s", s)
	}
	parsed, err := ParseFoodKind(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Provenance tags which rule, template, or user action produced a decision.
type Provenance string

const (
	ProvenanceRulesV1      Provenance = "rules_v1"
	ProvenanceTemplateV1   Provenance = "template_v1"
	ProvenanceUserOverride Provenance = "user_override"
	ProvenanceLLMInferred  Provenance = "llm_inferred"
)

// GraphSource records how an ingredient graph was produced.
type GraphSource string

const (
	GraphSourceTemplate    GraphSource = "template"
	GraphSourceUserCurated GraphSource = "user_curated"
	GraphSourceInferred    GraphSource = "inferred"
)
