// Package classifier assigns each scenery pack a SceneryCategory from its
// folder name plus content signals discovered later in the pipeline. It
// consults an editable rule table before falling back to a small built-in
// substring table, and heals impossible states once airports/tiles are
// known.
package classifier

import (
	"log/slog"
	"strings"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/model"
)

// Classifier assigns categories using a user-editable rule table with a
// built-in fallback.
type Classifier struct {
	heuristics *config.Heuristics
}

// New builds a Classifier backed by the given heuristics document.
func New(h *config.Heuristics) *Classifier {
	return &Classifier{heuristics: h}
}

// builtinPatterns is the fixed fallback table consulted when no
// user-defined category rule matches. Order matters: the first match wins,
// and entries are deliberately checked most-specific first (orbx before
// the generic ortho/mesh substrings it could also satisfy).
var builtinPatterns = []struct {
	substrings []string
	category   model.SceneryCategory
}{
	{[]string{"orbx"}, model.CategoryOrbxAirport},
	{[]string{"library"}, model.CategoryLibrary},
	{[]string{"autoortho"}, model.CategoryAutoOrthoOverlay},
	{[]string{"ortho", "zortho"}, model.CategoryOrthoBase},
	{[]string{"mesh", "hd mesh", "ugs"}, model.CategoryMesh},
	{[]string{"simheaven"}, model.CategoryRegionalFluff},
}

// Classify assigns a category from name alone, before any content has been
// discovered: (1) a user category rule keyword substring match, highest
// priority first; (2) the built-in substring table; (3) Unknown.
func (c *Classifier) Classify(name, path string) model.SceneryCategory {
	if c.heuristics != nil {
		if rule, ok := config.MatchSubstring(c.heuristics.CategoryRules(), name); ok {
			if cat := model.SceneryCategory(rule.MappedValue); cat != "" {
				return cat
			}
		}
	}

	lower := strings.ToLower(name)
	for _, p := range builtinPatterns {
		for _, sub := range p.substrings {
			if strings.Contains(lower, sub) {
				return p.category
			}
		}
	}

	return model.CategoryUnknown
}

// Explain returns the category Classify would return for name, plus a short
// human-readable reason, used by the CLI's explain command.
func (c *Classifier) Explain(name, path string) (model.SceneryCategory, string) {
	if c.heuristics != nil {
		if rule, ok := config.MatchSubstring(c.heuristics.CategoryRules(), name); ok {
			if cat := model.SceneryCategory(rule.MappedValue); cat != "" {
				return cat, "user rule \"" + rule.Name + "\""
			}
		}
	}

	lower := strings.ToLower(name)
	for _, p := range builtinPatterns {
		for _, sub := range p.substrings {
			if strings.Contains(lower, sub) {
				return p.category, "built-in pattern \"" + sub + "\""
			}
		}
	}

	return model.CategoryUnknown, "no match"
}

// sameBand reports whether a and b already carry the same semantic meaning
// for healing purposes (Mesh and SpecificMesh share a band).
func sameBand(a, b model.SceneryCategory) bool {
	mesh := func(c model.SceneryCategory) bool {
		return c == model.CategoryMesh || c == model.CategorySpecificMesh
	}
	return a == b || (mesh(a) && mesh(b))
}

// Heal applies post-discovery healing to a pack whose Category was already
// assigned from its name and whose Airports/Tiles have since been
// populated by the Discovery Scanner. It returns the healed category;
// callers are responsible for assigning it back onto the pack.
func Heal(pack model.SceneryPack) model.SceneryCategory {
	cat := pack.Category

	switch {
	case len(pack.Airports) > 0 && !sameBand(cat, model.CategoryGlobalAirport) &&
		!sameBand(cat, model.CategoryLibrary) && !sameBand(cat, model.CategoryGlobalBase):
		cat = model.CategoryCustomAirport
	case len(pack.Tiles) > 0 && cat == model.CategoryUnknown:
		if strings.Contains(strings.ToLower(pack.Name), "ortho") {
			cat = model.CategoryOrthoBase
		} else {
			cat = model.CategoryRegionalOverlay
		}
	}

	// Final healing: forbid impossible states regardless of how we got here.
	if len(pack.Airports) > 0 {
		switch cat {
		case model.CategoryLibrary, model.CategoryMesh, model.CategorySpecificMesh:
			cat = model.CategoryCustomAirport
		}
	}

	if pack.IsEmpty() {
		slog.Debug("classifier: empty pack after discovery", "name", pack.Name, "category", cat)
	}

	return cat
}
