// Package normalize performs cosmetic cleanup of line item text fields.
// Identity is computed from raw values, so nothing here affects event_id.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/bitegraph/internal/model"
	"github.com/sells-group/bitegraph/internal/templates"
)

// Normalizer cleans merchant, item, and modifier text.
type Normalizer struct {
	aliases map[string]string
}

// New creates a Normalizer using the snapshot's brand alias table.
func New(snap *templates.Snapshot) *Normalizer {
	n := &Normalizer{aliases: map[string]string{}}
	if snap != nil {
		n.aliases = snap.BrandAliases()
	}
	return n
}

// Normalize returns a cleaned copy of item.
func (n *Normalizer) Normalize(item model.PurchaseLineItem) model.PurchaseLineItem {
	out := item.Clone()
	out.MerchantName = n.Merchant(item.MerchantName)
	out.ItemNameRaw = Text(item.ItemNameRaw)

	var mods []string
	for _, m := range item.ModifiersRaw {
		if m = Text(m); m != "" {
			mods = append(mods, m)
		}
	}
	out.ModifiersRaw = mods
	return out
}

// Merchant resolves brand aliases and title-cases the rest.
func (n *Normalizer) Merchant(name string) string {
	lower := strings.ToLower(Text(name))
	if lower == "" {
		return ""
	}
	if canonical, ok := n.aliases[lower]; ok {
		return canonical
	}
	// cases.Caser is not safe for concurrent use.
	return cases.Title(language.Und).String(lower)
}

// Text trims and collapses whitespace runs.
func Text(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
