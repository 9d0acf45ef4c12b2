// Package sorter stably orders scenery packs by score, collapsing
// duplicates under a normalized name key and preserving manual pins.
package sorter

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/model"
	"xaddonmgr/pkg/scorer"
)

var (
	osCopySuffixRE = regexp.MustCompile(`\s*\(\d+\)\s*$`)
	xpSuffixRE     = regexp.MustCompile(`-?xp\d*`)
	vVersionRE     = regexp.MustCompile(`-?v\d+(\.\d+)*`)
	underscoreRE   = regexp.MustCompile(`[_\s]+`)

	versionPrefixRE = regexp.MustCompile(`(?i)v(\d+(?:\.\d+)*)`)
	versionDottedRE = regexp.MustCompile(`(\d+(?:\.\d+){1,})`)
)

// CleanName normalizes a pack name for duplicate-group keying: strips an
// "(n)" OS-copy suffix, an "xpNN" sim-version tag, and a "vN.N" version
// tag, then collapses whitespace/underscores and lowercases.
func CleanName(name string) string {
	s := strings.ToLower(name)
	s = osCopySuffixRE.ReplaceAllString(s, "")
	s = xpSuffixRE.ReplaceAllString(s, "")
	s = vVersionRE.ReplaceAllString(s, "")
	s = underscoreRE.ReplaceAllString(s, "")
	return s
}

// ExtractVersion parses a version number from name: a "vN.N..." token
// first, else any dotted numeric token, else nothing found.
func ExtractVersion(name string) ([]int, bool) {
	if m := versionPrefixRE.FindStringSubmatch(name); m != nil {
		return parseVersionParts(m[1]), true
	}
	if m := versionDottedRE.FindStringSubmatch(name); m != nil {
		return parseVersionParts(m[1]), true
	}
	return nil, false
}

func parseVersionParts(s string) []int {
	parts := strings.Split(s, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, _ := strconv.Atoi(p)
		out[i] = n
	}
	return out
}

// compareVersions returns >0 if a > b, <0 if a < b, 0 if equal, comparing
// component-wise with missing trailing components treated as 0.
func compareVersions(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			return av - bv
		}
	}
	return 0
}

// minGroupNameLen is the shortest clean name eligible for duplicate
// grouping; shorter names are too generic to safely collapse (mirrors the
// original's "<3 chars or equals customscenery" skip rule).
const minGroupNameLen = 3

func eligibleForGrouping(clean string) bool {
	return len(clean) >= minGroupNameLen && clean != "customscenery"
}

// Sort stably orders packs by score in place: group duplicates, score each
// pack, stable-sort by (score, original index), then reinsert hidden
// duplicates (rescored) behind their winners. h may be nil only in tests that don't
// exercise overrides/rules.
func Sort(packs []model.SceneryPack, h *config.Heuristics, ctx model.ScoreContext) {
	groups := groupDuplicates(packs)

	type scored struct {
		pack  model.SceneryPack
		idx   int
		score int
	}
	entries := make([]scored, 0, len(packs))
	for i, p := range packs {
		s, _ := scorer.Score(p, ctx, h)
		p.Score = s
		entries = append(entries, scored{pack: p, idx: i, score: s})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score < entries[j].score
		}
		return entries[i].idx < entries[j].idx
	})

	result := make([]model.SceneryPack, 0, len(packs))
	placed := map[string]bool{}
	for _, e := range entries {
		name := e.pack.Name
		if placed[name] {
			continue
		}
		if group, ok := groups[name]; ok && group.winner == name {
			placed[name] = true
			result = append(result, e.pack)
			for _, loserName := range group.losers {
				if loser, ok := findByName(packs, loserName); ok {
					loser.Status = model.StatusDuplicateHidden
					loser.DuplicateOf = name
					loserScore, _ := scorer.Score(loser, ctx, h)
					loser.Score = loserScore
					result = append(result, loser)
					placed[loserName] = true
				}
			}
			continue
		}
		if _, inGroup := groups[name]; inGroup {
			// A non-winner member whose winner hasn't been placed yet: skip,
			// it will be emitted right after its winner above.
			continue
		}
		placed[name] = true
		result = append(result, e.pack)
	}

	copy(packs, result)
}

func findByName(packs []model.SceneryPack, name string) (model.SceneryPack, bool) {
	for _, p := range packs {
		if p.Name == name {
			return p, true
		}
	}
	return model.SceneryPack{}, false
}

type duplicateGroup struct {
	winner string
	losers []string
}

// groupDuplicates partitions packs by CleanName and picks a winner per
// group of size > 1: highest parsed version, falling back to the latest
// ModTime when neither member has a parseable version.
func groupDuplicates(packs []model.SceneryPack) map[string]duplicateGroup {
	byClean := map[string][]model.SceneryPack{}
	order := map[string]int{}
	for i, p := range packs {
		clean := CleanName(p.Name)
		if !eligibleForGrouping(clean) {
			continue
		}
		byClean[clean] = append(byClean[clean], p)
		if _, ok := order[p.Name]; !ok {
			order[p.Name] = i
		}
	}

	result := map[string]duplicateGroup{}
	for _, members := range byClean {
		if len(members) < 2 {
			continue
		}
		winnerIdx := 0
		for i := 1; i < len(members); i++ {
			if beats(members[i], members[winnerIdx]) {
				winnerIdx = i
			}
		}
		winner := members[winnerIdx].Name
		var loserPacks []model.SceneryPack
		for i, m := range members {
			if i != winnerIdx {
				loserPacks = append(loserPacks, m)
			}
		}
		// Losers are placed immediately after the winner, best-next-version
		// first; when neither loser has a version, the later ModTime goes
		// first, and original discovery order breaks any remaining tie.
		sort.SliceStable(loserPacks, func(i, j int) bool {
			if beats(loserPacks[i], loserPacks[j]) {
				return true
			}
			if beats(loserPacks[j], loserPacks[i]) {
				return false
			}
			return order[loserPacks[i].Name] < order[loserPacks[j].Name]
		})
		losers := make([]string, len(loserPacks))
		for i, m := range loserPacks {
			losers[i] = m.Name
		}
		group := duplicateGroup{winner: winner, losers: losers}
		for _, m := range members {
			result[m.Name] = group
		}
	}
	return result
}

// beats reports whether candidate should win over current: a higher parsed
// version wins; if neither has a version, the later ModTime wins.
func beats(candidate, current model.SceneryPack) bool {
	cv, cok := ExtractVersion(candidate.Name)
	kv, kok := ExtractVersion(current.Name)
	switch {
	case cok && kok:
		return compareVersions(cv, kv) > 0
	case cok && !kok:
		return true
	case !cok && kok:
		return false
	default:
		return candidate.ModTime.After(current.ModTime)
	}
}
