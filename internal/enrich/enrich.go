// Package enrich derives nutrition totals and a flavor profile for mapped
// food items from the snapshot's ingredient graphs.
package enrich

import (
	"math"

	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/templates"
)

// FlavorAxes lists the flavor dimensions reported for every enriched item.
var FlavorAxes = []string{"spicy", "sweet", "umami", "creamy", "fried", "acidic", "smoky", "fresh"}

// Enricher is built once per snapshot and is safe for concurrent use.
type Enricher struct {
	snap *templates.Snapshot
}

// New creates an Enricher over snap.
func New(snap *templates.Snapshot) *Enricher {
	return &Enricher{snap: snap}
}

// Enrich returns nil for non-food or unprofiled items.
func (e *Enricher) Enrich(item model.PurchaseLineItem, cls model.ClassificationResult, mapping model.MappingResult) *model.NutritionFlavorResult {
	if cls.Vertical != model.VerticalFood || mapping.IngredientProfileID == nil {
		return nil
	}
	profileID := *mapping.IngredientProfileID

	out := &model.NutritionFlavorResult{
		EventID:             item.EventID,
		IngredientProfileID: profileID,
		FlavorAxes:          emptyFlavor(),
		Reasons:             []string{},
		Provenance:          model.ProvenanceTemplateV1,
	}

	graph, ok := e.snap.Profile(profileID)
	if !ok {
		out.Reasons = append(out.Reasons, "ingredient_profile_missing")
		return out
	}

	qty := math.Max(item.Quantity, 0)
	var nutrients [7]float64
	flavor := emptyFlavor()
	var weight float64

	for _, entry := range graph.Ingredients {
		if entry.IngredientID == "" {
			continue
		}
		out.IngredientCount++
		def, ok := e.snap.Ingredient(entry.IngredientID)
		if !ok {
			out.Reasons = append(out.Reasons, "unknown_ingredient:"+entry.IngredientID)
			continue
		}
		out.CoveredIngredientCount++

		amount := math.Max(entry.AmountRelative, 0)
		factor := def.ServingGrams * amount * qty / 100
		for i, field := range nutrientFields {
			nutrients[i] += def.NutrientsPer100g[field] * factor
		}

		weight += amount
		for _, axis := range FlavorAxes {
			flavor[axis] += clamp(def.FlavorProfile[axis]) * amount
		}
	}

	if weight > 0 {
		for axis, v := range flavor {
			flavor[axis] = round(v/weight, 4)
		}
	}
	out.FlavorAxes = flavor
	out.Nutrition = model.NutritionProfile{
		CaloriesKcal: round(nutrients[0], 2),
		ProteinG:     round(nutrients[1], 2),
		CarbsG:       round(nutrients[2], 2),
		FatG:         round(nutrients[3], 2),
		FiberG:       round(nutrients[4], 2),
		SugarG:       round(nutrients[5], 2),
		SodiumMg:     round(nutrients[6], 2),
	}

	if out.IngredientCount > 0 {
		coverage := float64(out.CoveredIngredientCount) / float64(out.IngredientCount)
		out.Confidence = round(clamp(mapping.Confidence*coverage), 4)
	}
	if out.CoveredIngredientCount == 0 {
		out.Reasons = append(out.Reasons, "no_covered_ingredients")
	}
	return out
}

var nutrientFields = [7]string{"calories_kcal", "protein_g", "carbs_g", "fat_g", "fiber_g", "sugar_g", "sodium_mg"}

func emptyFlavor() map[string]float64 {
	m := make(map[string]float64, len(FlavorAxes))
	for _, axis := range FlavorAxes {
		m[axis] = 0
	}
	return m
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
