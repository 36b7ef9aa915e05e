// Package mapper resolves classified line items to canonical foods and
// ingredient profiles from the template snapshot.
package mapper

import (
	"math"
	"strings"
	"unicode"

	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/templates"
)

// Fixed scores for the non-dish paths.
const (
	GroceryRawConfidence      = 0.7
	GroceryUnmappedConfidence = 0.2
	PackagedPlaceholderID     = "unmapped_grocery_packaged"
	PackagedConfidence        = 0.2
)

// Options holds the mapper thresholds.
type Options struct {
	// MatchThreshold is the minimum fuzzy score (0-100) a candidate needs.
	MatchThreshold float64
	// MinConfidence is the lowest final confidence still reported as a match.
	MinConfidence float64
	// LowDefault is the confidence reported for unmatched dishes.
	LowDefault float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{MatchThreshold: 85, MinConfidence: 0.25, LowDefault: 0.2}
}

type alias struct {
	text string // as written in the template
	norm string
	food int
}

// Mapper is built once per template snapshot and is safe for concurrent use.
type Mapper struct {
	snap      *templates.Snapshot
	opts      Options
	foods     []model.CanonicalFood
	modifiers []templates.ModifierRule
	aliases   []alias
	exact     map[string]int // normalized alias -> index into aliases
}

// New indexes the snapshot's canonical food aliases.
func New(snap *templates.Snapshot, opts Options) *Mapper {
	m := &Mapper{snap: snap, opts: opts, exact: make(map[string]int)}
	m.foods = snap.Foods()
	m.modifiers = snap.Modifiers()
	for i, f := range m.foods {
		for _, a := range f.Aliases {
			n := templates.NormalizeText(a)
			if n == "" {
				continue
			}
			m.aliases = append(m.aliases, alias{text: a, norm: n, food: i})
			if _, dup := m.exact[n]; !dup {
				m.exact[n] = len(m.aliases) - 1
			}
		}
	}
	return m
}

// Map never fails. Items that resolve to nothing carry nil ids and a reason.
func (m *Mapper) Map(item model.PurchaseLineItem, cls model.ClassificationResult) model.MappingResult {
	res := m.resolve(item, cls)
	res.EventID = item.EventID
	return res
}

func (m *Mapper) resolve(item model.PurchaseLineItem, cls model.ClassificationResult) model.MappingResult {
	if cls.Vertical == model.VerticalNonFood {
		return model.MappingResult{
			Confidence: 0,
			Reasons:    []string{"not_food"},
			Provenance: model.ProvenanceTemplateV1,
		}
	}

	switch cls.FoodKind {
	case model.FoodKindGroceryRaw:
		return m.groceryRaw(item)
	case model.FoodKindGroceryPackaged:
		return model.MappingResult{
			CanonicalFoodID: model.StringPtr(PackagedPlaceholderID),
			Confidence:      PackagedConfidence,
			Reasons:         []string{"packaged_grocery_unmapped"},
			Provenance:      model.ProvenanceTemplateV1,
		}
	default:
		return m.dish(item)
	}
}

func (m *Mapper) groceryRaw(item model.PurchaseLineItem) model.MappingResult {
	name := templates.NormalizeText(item.ItemNameRaw)
	if k, ok := m.snap.MatchKeyword(templates.KeywordsGrocery, name); ok {
		id, _ := m.snap.GroceryFood(k.Text)
		return model.MappingResult{
			CanonicalFoodID:     model.StringPtr(id),
			IngredientProfileID: model.StringPtr(id + ".base"),
			Confidence:          GroceryRawConfidence,
			Reasons:             []string{"grocery_raw_match:" + k.Text},
			Provenance:          model.ProvenanceTemplateV1,
		}
	}
	return model.MappingResult{
		Confidence: GroceryUnmappedConfidence,
		Reasons:    []string{"grocery_raw_unmapped"},
		Provenance: model.ProvenanceTemplateV1,
	}
}

func (m *Mapper) dish(item model.PurchaseLineItem) model.MappingResult {
	name := templates.NormalizeText(item.ItemNameRaw)

	idx, score, reason := m.match(name)
	if idx < 0 {
		return m.noMatch()
	}
	food := m.foods[m.aliases[idx].food]

	conf := clamp(food.Confidence * score / 100)
	reasons := []string{reason}
	for _, mod := range item.ModifiersRaw {
		delta, code, ok := m.modifier(mod)
		if !ok || math.IsNaN(delta) || math.IsInf(delta, 0) {
			continue
		}
		conf = clamp(conf + delta)
		reasons = append(reasons, code)
	}

	if conf < m.opts.MinConfidence {
		return m.noMatch()
	}
	return model.MappingResult{
		CanonicalFoodID:     model.StringPtr(food.CanonicalFoodID),
		IngredientProfileID: model.StringPtr(food.DefaultIngredientProfileID),
		Confidence:          conf,
		Reasons:             reasons,
		Provenance:          model.ProvenanceTemplateV1,
	}
}

// match returns the alias index, its score, and the reason code, or -1.
func (m *Mapper) match(name string) (int, float64, string) {
	if name == "" {
		return -1, 0, ""
	}
	if i, ok := m.exact[name]; ok {
		return i, 100, "alias_exact:" + m.aliases[i].text
	}

	best, bestScore := -1, 0.0
	for i, a := range m.aliases {
		// Strictly greater keeps the earliest template on ties.
		if s := Score(name, a.norm); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < m.opts.MatchThreshold {
		return -1, 0, ""
	}
	return best, bestScore, "dish_fuzzy:" + m.aliases[best].text
}

// modifier finds the first rule for a modifier. Pattern rules are checked
// before prefix rules.
func (m *Mapper) modifier(raw string) (float64, string, bool) {
	mod := templates.NormalizeText(raw)
	if mod == "" {
		return 0, "", false
	}
	for _, r := range m.modifiers {
		if r.Pattern == "" {
			continue
		}
		if p := templates.NormalizeText(r.Pattern); p != "" && strings.Contains(mod, p) {
			code := r.Reason
			if code == "" {
				code = slug(p)
			}
			return r.Delta, code, true
		}
	}

	first, rest, _ := strings.Cut(mod, " ")
	for _, r := range m.modifiers {
		if r.Prefix == "" || templates.NormalizeText(r.Prefix) != first {
			continue
		}
		code := r.Reason
		if code == "" {
			code = first
			if s := slug(rest); s != "" {
				code += "_" + s
			}
		}
		return r.Delta, code, true
	}
	return 0, "", false
}

func (m *Mapper) noMatch() model.MappingResult {
	return model.MappingResult{
		Confidence: m.opts.LowDefault,
		Reasons:    []string{"no_dish_match"},
		Provenance: model.ProvenanceTemplateV1,
	}
}

// slug lowercases s and joins its alphanumeric runs with underscores.
func slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
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
