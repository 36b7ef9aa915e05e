package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// ClassificationResult is the classifier's decision for one item.
type ClassificationResult struct {
	EventID    string   `json:"event_id"`
	Vertical   Vertical `json:"vertical"`
	FoodKind   FoodKind `json:"food_kind"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// MappingResult links a classified item to a canonical food and ingredient profile.
// Nil ids mean the item was emitted unmapped.
type MappingResult struct {
	EventID             string     `json:"event_id"`
	CanonicalFoodID     *string    `json:"canonical_food_id"`
	IngredientProfileID *string    `json:"ingredient_profile_id"`
	Confidence          float64    `json:"confidence"`
	Reasons             []string   `json:"reasons"`
	Provenance          Provenance `json:"provenance"`
}

// ConsumptionInference estimates whether a purchase was consumed.
type ConsumptionInference struct {
	EventID             string   `json:"event_id"`
	ConsumedProbability float64  `json:"consumed_probability"`
	ReasonCodes         []string `json:"reason_codes"`
	Version             int      `json:"version"`
}

// FoodEventInterpretation is one version of the interpretation overlay for an event.
type FoodEventInterpretation struct {
	EventID             string     `json:"event_id"`
	Vertical            Vertical   `json:"vertical"`
	FoodKind            FoodKind   `json:"food_kind"`
	CanonicalFoodID     *string    `json:"canonical_food_id"`
	IngredientProfileID *string    `json:"ingredient_profile_id"`
	PortionMultiplier   float64    `json:"portion_multiplier"`
	Confidence          float64    `json:"confidence"`
	Provenance          Provenance `json:"provenance"`
	Reasons             []string   `json:"reasons"`
	Version             int        `json:"version"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// interpretationContent is the subset of fields that defines whether two
// versions say the same thing.
type interpretationContent struct {
	EventID             string     `json:"event_id"`
	Vertical            Vertical   `json:"vertical"`
	FoodKind            FoodKind   `json:"food_kind"`
	CanonicalFoodID     *string    `json:"canonical_food_id"`
	IngredientProfileID *string    `json:"ingredient_profile_id"`
	PortionMultiplier   float64    `json:"portion_multiplier"`
	Confidence          float64    `json:"confidence"`
	Provenance          Provenance `json:"provenance"`
	Reasons             []string   `json:"reasons"`
}

// ContentHash is the SHA-256 of the canonical JSON of every field except
// Version and UpdatedAt.
func (f FoodEventInterpretation) ContentHash() string {
	reasons := f.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	data, _ := json.Marshal(interpretationContent{
		EventID:             f.EventID,
		Vertical:            f.Vertical,
		FoodKind:            f.FoodKind,
		CanonicalFoodID:     f.CanonicalFoodID,
		IngredientProfileID: f.IngredientProfileID,
		PortionMultiplier:   f.PortionMultiplier,
		Confidence:          f.Confidence,
		Provenance:          f.Provenance,
		Reasons:             reasons,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalFood is reference data a raw item name resolves to.
type CanonicalFood struct {
	CanonicalFoodID            string   `json:"canonical_food_id" yaml:"canonical_food_id"`
	Name                       string   `json:"name" yaml:"name"`
	Aliases                    []string `json:"aliases" yaml:"aliases"`
	FoodKind                   FoodKind `json:"food_kind" yaml:"food_kind"`
	DefaultIngredientProfileID string   `json:"default_ingredient_profile_id" yaml:"default_ingredient_profile_id"`
	Confidence                 float64  `json:"confidence" yaml:"confidence"`
}

// IngredientAmount is one component of an ingredient graph.
type IngredientAmount struct {
	IngredientID   string  `json:"ingredient_id" yaml:"ingredient_id"`
	AmountRelative float64 `json:"amount_relative" yaml:"amount_relative"`
	Notes          string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// IngredientGraph is the versioned component breakdown of a canonical food.
type IngredientGraph struct {
	IngredientProfileID string             `json:"ingredient_profile_id" yaml:"ingredient_profile_id"`
	CanonicalFoodID     string             `json:"canonical_food_id" yaml:"canonical_food_id"`
	Ingredients         []IngredientAmount `json:"ingredients" yaml:"ingredients"`
	Version             int                `json:"version" yaml:"version"`
	Source              GraphSource        `json:"source" yaml:"source"`
	CreatedAt           *time.Time         `json:"created_at" yaml:"created_at"`
}

// NutritionProfile holds summed nutrient totals for a mapped event.
type NutritionProfile struct {
	CaloriesKcal float64 `json:"calories_kcal"`
	ProteinG     float64 `json:"protein_g"`
	CarbsG       float64 `json:"carbs_g"`
	FatG         float64 `json:"fat_g"`
	FiberG       float64 `json:"fiber_g"`
	SugarG       float64 `json:"sugar_g"`
	SodiumMg     float64 `json:"sodium_mg"`
}

// NutritionFlavorResult is the output of the enrichment stage.
type NutritionFlavorResult struct {
	EventID                string             `json:"event_id"`
	IngredientProfileID    string             `json:"ingredient_profile_id"`
	Nutrition              NutritionProfile   `json:"nutrition"`
	FlavorAxes             map[string]float64 `json:"flavor_axes"`
	IngredientCount        int                `json:"ingredient_count"`
	CoveredIngredientCount int                `json:"covered_ingredient_count"`
	Confidence             float64            `json:"confidence"`
	Reasons                []string           `json:"reasons"`
	Provenance             Provenance         `json:"provenance"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
