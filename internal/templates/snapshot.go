// Package templates loads the reference data (canonical foods, keyword and
// merchant rules, modifier rules, ingredient graphs) into immutable snapshots.
package templates

import (
	"maps"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/sells-group/bitegraph/internal/model"
)

// MerchantRule maps merchant name patterns to a category or a forced decision.
type MerchantRule struct {
	RawPatterns   []string       `yaml:"raw_patterns"`
	Canonical     string         `yaml:"canonical"`
	Category      string         `yaml:"category"`
	ForceVertical model.Vertical `yaml:"force_vertical"`
	ForceFoodKind model.FoodKind `yaml:"force_food_kind"`
}

// Matches reports whether any pattern occurs in the normalized merchant name.
func (r MerchantRule) Matches(normalizedMerchant string) bool {
	for _, p := range r.RawPatterns {
		p = NormalizeText(p)
		if p != "" && strings.Contains(normalizedMerchant, p) {
			return true
		}
	}
	return false
}

// ModifierRule adjusts mapping confidence for a matching modifier.
// Exactly one of Pattern or Prefix is set.
type ModifierRule struct {
	Pattern string  `yaml:"pattern"`
	Prefix  string  `yaml:"prefix"`
	Delta   float64 `yaml:"delta"`
	Reason  string  `yaml:"reason"`
}

// IngredientDefinition carries nutrient and flavor attributes for one ingredient.
type IngredientDefinition struct {
	IngredientID     string             `yaml:"ingredient_id"`
	ServingGrams     float64            `yaml:"serving_grams"`
	NutrientsPer100g map[string]float64 `yaml:"nutrients_per_100g"`
	FlavorProfile    map[string]float64 `yaml:"flavor_profile"`
}

// Keyword is a whole-word phrase matcher that tolerates a plural suffix.
type Keyword struct {
	Text string
	re   *regexp.Regexp
}

// NewKeyword compiles a keyword matcher for the normalized phrase.
func NewKeyword(text string) Keyword {
	text = NormalizeText(text)
	pattern := `(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(text) + `(?:e?s)?(?:$|[^\p{L}\p{N}])`
	return Keyword{Text: text, re: regexp.MustCompile(pattern)}
}

// Match reports whether the keyword occurs in normalized text.
func (k Keyword) Match(normalized string) bool {
	return k.Text != "" && k.re.MatchString(normalized)
}

// Snapshot is one immutable version of the reference data. Its tables are
// unexported; accessors return copies. Reloads build a new Snapshot.
type Snapshot struct {
	Version string

	foods        []model.CanonicalFood
	groceryRaw   map[string]string
	groceryKeys  []string
	keywords     [keywordSetCount][]Keyword
	merchants    []MerchantRule
	modifiers    []ModifierRule
	brandAliases map[string]string
	profiles     map[string]model.IngredientGraph
	ingredients  map[string]IngredientDefinition
}

// KeywordSet names one of the keyword tables.
type KeywordSet int

const (
	KeywordsNonFood KeywordSet = iota
	KeywordsBeverage
	KeywordsPackaged
	KeywordsGrocery

	keywordSetCount
)

// Stats counts the entries in each table.
type Stats struct {
	Foods       int `json:"foods"`
	Merchants   int `json:"merchants"`
	Modifiers   int `json:"modifiers"`
	Profiles    int `json:"profiles"`
	Ingredients int `json:"ingredients"`
}

// Stats reports table sizes.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Foods:       len(s.foods),
		Merchants:   len(s.merchants),
		Modifiers:   len(s.modifiers),
		Profiles:    len(s.profiles),
		Ingredients: len(s.ingredients),
	}
}

// Foods returns the canonical foods in load order.
func (s *Snapshot) Foods() []model.CanonicalFood {
	out := make([]model.CanonicalFood, len(s.foods))
	for i, f := range s.foods {
		f.Aliases = slices.Clone(f.Aliases)
		out[i] = f
	}
	return out
}

// GroceryFood returns the canonical food id for a raw grocery dictionary key.
func (s *Snapshot) GroceryFood(key string) (string, bool) {
	id, ok := s.groceryRaw[key]
	return id, ok
}

// Keywords returns a copy of one keyword table.
func (s *Snapshot) Keywords(set KeywordSet) []Keyword {
	if set < 0 || set >= keywordSetCount {
		return nil
	}
	return slices.Clone(s.keywords[set])
}

// MatchKeyword returns the first keyword of the set found in normalized text.
func (s *Snapshot) MatchKeyword(set KeywordSet, normalized string) (Keyword, bool) {
	if set < 0 || set >= keywordSetCount {
		return Keyword{}, false
	}
	for _, k := range s.keywords[set] {
		if k.Match(normalized) {
			return k, true
		}
	}
	return Keyword{}, false
}

// Merchants returns the merchant rules in load order.
func (s *Snapshot) Merchants() []MerchantRule {
	out := make([]MerchantRule, len(s.merchants))
	for i, r := range s.merchants {
		out[i] = r.clone()
	}
	return out
}

// MatchMerchant returns the first merchant rule matching the name.
func (s *Snapshot) MatchMerchant(merchant string) (MerchantRule, bool) {
	norm := NormalizeText(merchant)
	if norm == "" {
		return MerchantRule{}, false
	}
	for _, r := range s.merchants {
		if r.Matches(norm) {
			return r.clone(), true
		}
	}
	return MerchantRule{}, false
}

// Modifiers returns the modifier rules in load order.
func (s *Snapshot) Modifiers() []ModifierRule {
	return slices.Clone(s.modifiers)
}

// BrandAliases returns the normalized brand alias table.
func (s *Snapshot) BrandAliases() map[string]string {
	return maps.Clone(s.brandAliases)
}

// GroceryKeys returns the raw dictionary keys, longest first then alphabetical.
func (s *Snapshot) GroceryKeys() []string {
	return slices.Clone(s.groceryKeys)
}

// Profile returns the ingredient graph for a profile id.
func (s *Snapshot) Profile(id string) (model.IngredientGraph, bool) {
	g, ok := s.profiles[id]
	g.Ingredients = slices.Clone(g.Ingredients)
	return g, ok
}

// Ingredient returns the definition of one ingredient.
func (s *Snapshot) Ingredient(id string) (IngredientDefinition, bool) {
	def, ok := s.ingredients[id]
	def.NutrientsPer100g = maps.Clone(def.NutrientsPer100g)
	def.FlavorProfile = maps.Clone(def.FlavorProfile)
	return def, ok
}

func (r MerchantRule) clone() MerchantRule {
	r.RawPatterns = slices.Clone(r.RawPatterns)
	return r
}

func (s *Snapshot) index() {
	s.groceryKeys = make([]string, 0, len(s.groceryRaw))
	for k := range s.groceryRaw {
		s.groceryKeys = append(s.groceryKeys, k)
	}
	sort.Slice(s.groceryKeys, func(i, j int) bool {
		a, b := s.groceryKeys[i], s.groceryKeys[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	grocery := make([]Keyword, 0, len(s.groceryKeys))
	for _, k := range s.groceryKeys {
		grocery = append(grocery, NewKeyword(k))
	}
	s.keywords[KeywordsGrocery] = grocery
}

// NormalizeText lowercases, trims, and collapses whitespace runs.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
