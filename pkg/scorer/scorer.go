// Package scorer implements the scoring model: mapping a pack to an integer
// priority in [0,100], lower is higher priority. Evaluation order is
// override, rule match, category baseline, then a region-focus context
// modifier; each step appends a short explanation to the returned
// breadcrumb log.
package scorer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/geo"
	"xaddonmgr/pkg/model"
)

// Score computes a pack's priority score and a breadcrumb log explaining
// how it was reached. A manual override wins outright; otherwise the
// highest-priority matching rule supplies the base, falling back to the
// category table.
func Score(pack model.SceneryPack, ctx model.ScoreContext, h *config.Heuristics) (int, []string) {
	var logs []string

	if h != nil {
		if override, ok := h.Override(pack.Name); ok {
			logs = append(logs, fmt.Sprintf("override: %s pinned to %d", pack.Name, override))
			return clamp(override), logs
		}
	}

	value := 0
	var matched model.Rule
	haveMatch := false

	if h != nil {
		if rule, ok := config.MatchSubstring(h.CategoryRules(), pack.Name); ok {
			value = rule.Score
			matched = rule
			haveMatch = true
			logs = append(logs, fmt.Sprintf("rule match: %q -> base %d", rule.Name, value))
		}
	}

	if !haveMatch {
		base, ok := model.CategoryBaseline[pack.Category]
		if !ok {
			base = model.CategoryBaseline[model.CategoryUnknown]
		}
		value = base
		logs = append(logs, fmt.Sprintf("category baseline: %s -> %d", pack.Category, value))
	}

	if haveMatch && ctx.RegionFocus != "" {
		if regionMatches(pack, ctx.RegionFocus) {
			value -= matched.RegionBoost
			logs = append(logs, fmt.Sprintf("region focus %q matched: -%d", ctx.RegionFocus, matched.RegionBoost))
		} else if matched.RegionPenalty != 0 {
			value += matched.RegionPenalty
			logs = append(logs, fmt.Sprintf("region focus %q not matched: +%d", ctx.RegionFocus, matched.RegionPenalty))
		}
	}

	clamped := clamp(value)
	if clamped != value {
		logs = append(logs, fmt.Sprintf("clamped %d -> %d", value, clamped))
	}
	return clamped, logs
}

var regions = geo.NewRegionIndex()

// regionMatches reports whether the pack's name or tile footprint
// intersects the focused region: a case-insensitive substring match
// against the region token, a tile whose centre falls inside a known
// region's bounds, or (for a numeric "lat,lon" focus) a tile containing
// that point.
func regionMatches(pack model.SceneryPack, regionFocus string) bool {
	lower := strings.ToLower(regionFocus)
	if strings.Contains(strings.ToLower(pack.Name), lower) {
		return true
	}
	if code, ok := regions.Search(regionFocus); ok {
		for _, t := range pack.Tiles {
			if regions.Contains(code, float64(t.Lat)+0.5, float64(t.Lon)+0.5) {
				return true
			}
		}
	}
	lat, lon, ok := parseLatLonFocus(regionFocus)
	if !ok {
		return false
	}
	for _, t := range pack.Tiles {
		if t.Lat == int(math.Floor(lat)) && t.Lon == int(math.Floor(lon)) {
			return true
		}
	}
	return false
}

func parseLatLonFocus(s string) (lat, lon float64, ok bool) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	latVal, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lonVal, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return latVal, lonVal, true
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
