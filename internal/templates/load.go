package templates

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"hash"
	"io/fs"
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bitegraph/internal/model"
)

//go:embed data
var embedded embed.FS

const defaultDishConfidence = 0.7

type merchantsFile struct {
	Merchants []MerchantRule `yaml:"merchants"`
}

type keywordsFile struct {
	NonFood  []string `yaml:"non_food"`
	Beverage []string `yaml:"beverage"`
	Packaged []string `yaml:"packaged"`
}

type dishFile struct {
	CanonicalFoods []model.CanonicalFood `yaml:"canonical_foods"`
	GroceryRaw     map[string]string     `yaml:"grocery_raw"`
}

type modifiersFile struct {
	ModifierRules []ModifierRule `yaml:"modifier_rules"`
}

type aliasesFile struct {
	BrandAliases map[string]string `yaml:"brand_aliases"`
}

type profilesFile struct {
	IngredientProfiles []model.IngredientGraph `yaml:"ingredient_profiles"`
}

type ingredientsFile struct {
	Ingredients []IngredientDefinition `yaml:"ingredients"`
}

// Default loads the template set compiled into the binary.
func Default() (*Snapshot, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, eris.Wrap(err, "templates: embedded data")
	}
	return Load(sub)
}

// LoadDir loads a template set from a directory on disk.
func LoadDir(dir string) (*Snapshot, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "templates: stat %s", dir)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("templates: %s is not a directory", dir)
	}
	return Load(os.DirFS(dir))
}

// Load builds a Snapshot from a template file system. Missing files are
// treated as empty; malformed files fail the whole load.
func Load(fsys fs.FS) (*Snapshot, error) {
	l := &loader{fsys: fsys, hash: sha256.New()}

	var merchants merchantsFile
	var keywords keywordsFile
	var modifiers modifiersFile
	var aliases aliasesFile
	var profiles profilesFile
	var ingredients ingredientsFile

	for _, f := range []struct {
		name string
		dst  any
	}{
		{"merchants.yaml", &merchants},
		{"keywords.yaml", &keywords},
		{"modifiers.yaml", &modifiers},
		{"brand_aliases.yaml", &aliases},
		{"ingredient_profiles.yaml", &profiles},
		{"ingredients.yaml", &ingredients},
	} {
		if err := l.decode(f.name, f.dst); err != nil {
			return nil, err
		}
	}

	dishPaths, err := fs.Glob(fsys, "dishes/*.yaml")
	if err != nil {
		return nil, eris.Wrap(err, "templates: glob dishes")
	}
	sort.Strings(dishPaths)

	snap := &Snapshot{
		groceryRaw:   make(map[string]string),
		brandAliases: make(map[string]string),
		profiles:     make(map[string]model.IngredientGraph),
		ingredients:  make(map[string]IngredientDefinition),
	}

	for _, path := range dishPaths {
		var dishes dishFile
		if err := l.decode(path, &dishes); err != nil {
			return nil, err
		}
		for _, food := range dishes.CanonicalFoods {
			food, ok, err := normalizeFood(food)
			if err != nil {
				return nil, eris.Wrapf(err, "templates: %s", path)
			}
			if ok {
				snap.foods = append(snap.foods, food)
			}
		}
		for k, v := range dishes.GroceryRaw {
			k = NormalizeText(k)
			if k != "" && v != "" {
				snap.groceryRaw[k] = v
			}
		}
	}

	for _, m := range merchants.Merchants {
		if len(m.RawPatterns) == 0 {
			continue
		}
		if m.ForceVertical != "" {
			if _, err := model.ParseVertical(string(m.ForceVertical)); err != nil {
				return nil, eris.Wrapf(err, "templates: merchant %q", m.Canonical)
			}
		}
		if _, err := model.ParseFoodKind(string(m.ForceFoodKind)); err != nil {
			return nil, eris.Wrapf(err, "templates: merchant %q", m.Canonical)
		}
		snap.merchants = append(snap.merchants, m)
	}

	snap.keywords[KeywordsNonFood] = compileKeywords(keywords.NonFood)
	snap.keywords[KeywordsBeverage] = compileKeywords(keywords.Beverage)
	snap.keywords[KeywordsPackaged] = compileKeywords(keywords.Packaged)

	for _, r := range modifiers.ModifierRules {
		if (r.Pattern == "") == (r.Prefix == "") {
			return nil, eris.Errorf("templates: modifier rule needs exactly one of pattern or prefix (pattern=%q prefix=%q)", r.Pattern, r.Prefix)
		}
		snap.modifiers = append(snap.modifiers, r)
	}

	for k, v := range aliases.BrandAliases {
		if k = NormalizeText(k); k != "" && v != "" {
			snap.brandAliases[k] = v
		}
	}

	for _, p := range profiles.IngredientProfiles {
		if p.IngredientProfileID == "" {
			continue
		}
		if p.Version == 0 {
			p.Version = 1
		}
		if p.Source == "" {
			p.Source = model.GraphSourceTemplate
		}
		snap.profiles[p.IngredientProfileID] = p
	}

	for _, ing := range ingredients.Ingredients {
		if ing.IngredientID == "" {
			continue
		}
		if ing.ServingGrams == 0 {
			ing.ServingGrams = 100
		}
		snap.ingredients[ing.IngredientID] = ing
	}

	snap.index()
	snap.Version = hex.EncodeToString(l.hash.Sum(nil))[:12]
	return snap, nil
}

type loader struct {
	fsys fs.FS
	hash hash.Hash
}

func (l *loader) decode(name string, dst any) error {
	data, err := fs.ReadFile(l.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "templates: read %s", name)
	}
	_, _ = l.hash.Write([]byte(name))
	_, _ = l.hash.Write([]byte{0})
	_, _ = l.hash.Write(data)
	if err := yaml.Unmarshal(data, dst); err != nil {
		return eris.Wrapf(err, "templates: parse %s", name)
	}
	return nil
}

// normalizeFood puts the display name first in the alias list and fills defaults.
func normalizeFood(f model.CanonicalFood) (model.CanonicalFood, bool, error) {
	if f.CanonicalFoodID == "" || f.Name == "" {
		return f, false, nil
	}
	kind, err := model.ParseFoodKind(string(f.FoodKind))
	if err != nil {
		return f, false, err
	}
	f.FoodKind = kind

	aliases := []string{f.Name}
	seen := map[string]bool{NormalizeText(f.Name): true}
	for _, a := range f.Aliases {
		n := NormalizeText(a)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		aliases = append(aliases, a)
	}
	f.Aliases = aliases

	if f.Confidence <= 0 || math.IsNaN(f.Confidence) {
		f.Confidence = defaultDishConfidence
	}
	if f.Confidence > 1 {
		f.Confidence = 1
	}
	return f, true, nil
}

func compileKeywords(in []string) []Keyword {
	out := make([]Keyword, 0, len(in))
	for _, k := range in {
		if NormalizeText(k) == "" {
			continue
		}
		out = append(out, NewKeyword(k))
	}
	return out
}
