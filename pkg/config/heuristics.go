package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"xaddonmgr/pkg/model"
)

// Heuristics wraps a model.HeuristicsConfig with the lookup structures and
// edit operations the rest of the system drives it through. Mirrors the
// Load/BuildLookup/Get* accessor shape of a category-rule document, adapted
// from scoring Wikidata categories to scoring scenery packs.
type Heuristics struct {
	mu  sync.RWMutex
	doc model.HeuristicsConfig

	watcher *fsnotify.Watcher
	path    string
}

// LoadHeuristics reads <config>/heuristics.json, creating it with built-in
// defaults if absent. All fields are optional on read; defaults are
// materialised on first save.
func LoadHeuristics(path string) (*Heuristics, error) {
	h := &Heuristics{doc: defaultHeuristics()}
	h.path = path

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read heuristics file: %w", err)
		}
		var doc model.HeuristicsConfig
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse heuristics file: %w", err)
		}
		h.mergeOnto(doc)
		return h, nil
	}

	if err := h.Save(); err != nil {
		return nil, fmt.Errorf("failed to save default heuristics file: %w", err)
	}
	return h, nil
}

// mergeOnto overlays a partially-populated document read from disk onto the
// built-in defaults, field by field, so omitted sections keep their
// defaults rather than becoming nil.
func (h *Heuristics) mergeOnto(doc model.HeuristicsConfig) {
	if doc.CategoryRules != nil {
		h.doc.CategoryRules = doc.CategoryRules
	}
	if doc.AircraftRules != nil {
		h.doc.AircraftRules = doc.AircraftRules
	}
	if doc.TimeRules != nil {
		h.doc.TimeRules = doc.TimeRules
	}
	if doc.WeatherRules != nil {
		h.doc.WeatherRules = doc.WeatherRules
	}
	if doc.DurationRules != nil {
		h.doc.DurationRules = doc.DurationRules
	}
	if doc.SurfaceRules != nil {
		h.doc.SurfaceRules = doc.SurfaceRules
	}
	if doc.FlightTypeRules != nil {
		h.doc.FlightTypeRules = doc.FlightTypeRules
	}
	if doc.Overrides != nil {
		h.doc.Overrides = doc.Overrides
	}
	if doc.AircraftOverrides != nil {
		h.doc.AircraftOverrides = doc.AircraftOverrides
	}
}

func defaultHeuristics() model.HeuristicsConfig {
	return model.HeuristicsConfig{
		CategoryRules: model.RuleTable{
			{Name: "orbx-airport", Keywords: []string{"orbx"}, MappedValue: string(model.CategoryOrbxAirport), Priority: 100, Score: 12},
			{Name: "library", Keywords: []string{"library"}, MappedValue: string(model.CategoryLibrary), Priority: 90, Score: 45},
			// auto-ortho must outrank ortho-base: "autoortho" names also
			// contain the bare "ortho" keyword.
			{Name: "auto-ortho", Keywords: []string{"autoortho"}, MappedValue: string(model.CategoryAutoOrthoOverlay), Priority: 85, Score: 48},
			{Name: "ortho-base", Keywords: []string{"ortho", "zortho"}, MappedValue: string(model.CategoryOrthoBase), Priority: 80, Score: 58},
			{Name: "mesh", Keywords: []string{"mesh", "hd mesh", "ugs"}, MappedValue: string(model.CategoryMesh), Priority: 70, Score: 60},
			{Name: "regional-fluff", Keywords: []string{"simheaven"}, MappedValue: string(model.CategoryRegionalFluff), Priority: 60, Score: 30},
		},
		AircraftRules:   model.RuleTable{},
		TimeRules:       model.RuleTable{},
		WeatherRules:    model.RuleTable{},
		DurationRules:   model.RuleTable{},
		SurfaceRules:    model.RuleTable{},
		FlightTypeRules: model.RuleTable{},
		Overrides:       map[string]int{},
		AircraftOverrides: map[string][]string{},
	}
}

// Doc returns a copy of the underlying document, safe for concurrent read.
func (h *Heuristics) Doc() model.HeuristicsConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.doc
}

// Save writes the document to its backing file. Unknown fields are not
// preserved (we own the full schema), but defaults are always present.
func (h *Heuristics) Save() error {
	h.mu.RLock()
	doc := h.doc
	h.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal heuristics: %w", err)
	}
	if err := os.WriteFile(h.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write heuristics file: %w", err)
	}
	return nil
}

// SetOverride pins pack name to score, clamped to [0,100].
func (h *Heuristics) SetOverride(name string, score int) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.doc.Overrides == nil {
		h.doc.Overrides = map[string]int{}
	}
	h.doc.Overrides[name] = score
}

// ClearOverrides removes every manual pin.
func (h *Heuristics) ClearOverrides() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.doc.Overrides = map[string]int{}
}

// ApplyOverrides replaces the override map wholesale, e.g. when activating
// a Profile's scenery_overrides.
func (h *Heuristics) ApplyOverrides(overrides map[string]int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	merged := make(map[string]int, len(overrides))
	for k, v := range overrides {
		merged[k] = v
	}
	h.doc.Overrides = merged
}

// Override returns the pinned score for name, if any.
func (h *Heuristics) Override(name string) (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.doc.Overrides[name]
	return v, ok
}

// sortedByPriorityDesc returns a copy of the table ordered by descending
// Priority, so the first match in iteration order wins.
func sortedByPriorityDesc(rules model.RuleTable) model.RuleTable {
	out := make(model.RuleTable, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// CategoryRules returns the category rule table, descending priority.
func (h *Heuristics) CategoryRules() model.RuleTable {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedByPriorityDesc(h.doc.CategoryRules)
}

// RulesFor returns the named keyword-rule table (aircraft, time, weather,
// duration, surface, flight_type), descending priority.
func (h *Heuristics) RulesFor(category string) model.RuleTable {
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch category {
	case "aircraft":
		return sortedByPriorityDesc(h.doc.AircraftRules)
	case "time":
		return sortedByPriorityDesc(h.doc.TimeRules)
	case "weather":
		return sortedByPriorityDesc(h.doc.WeatherRules)
	case "duration":
		return sortedByPriorityDesc(h.doc.DurationRules)
	case "surface":
		return sortedByPriorityDesc(h.doc.SurfaceRules)
	case "flight_type":
		return sortedByPriorityDesc(h.doc.FlightTypeRules)
	default:
		return nil
	}
}

// MatchSubstring reports whether any rule keyword is a case-insensitive
// substring of name, returning the first (highest priority) match.
func MatchSubstring(rules model.RuleTable, name string) (model.Rule, bool) {
	lower := strings.ToLower(name)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return r, true
			}
		}
	}
	return model.Rule{}, false
}

// RefreshRegexSet is a no-op kept for edit-operation contract parity:
// keywords are matched as plain substrings rather than compiled regexes,
// so there is nothing to recompile after a rule edit.
func (h *Heuristics) RefreshRegexSet() {}

// Reload re-reads the backing file and overlays it onto the built-in
// defaults, replacing the in-memory document. A missing or unparseable
// file leaves the current document untouched and returns the error.
func (h *Heuristics) Reload() error {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("failed to read heuristics file: %w", err)
	}
	var doc model.HeuristicsConfig
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse heuristics file: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.doc = defaultHeuristics()
	h.mergeOnto(doc)
	return nil
}

// Watch starts an fsnotify watch on the heuristics file and invokes onChange
// whenever it is modified externally (e.g. hand-edited while the manager is
// running). The watcher is stopped by Close.
func (h *Heuristics) Watch(onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	h.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) == filepath.Clean(h.path) && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if one is running.
func (h *Heuristics) Close() error {
	if h.watcher != nil {
		return h.watcher.Close()
	}
	return nil
}
