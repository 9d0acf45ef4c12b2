// Package discovery implements the Discovery Scanner: walking the
// installation's scenery directories, finding scenery roots by content
// signals, and enumerating each pack's airports and tiles with the
// Discovery Cache short-circuiting unchanged directories.
package discovery

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"xaddonmgr/pkg/aptdat"
	"xaddonmgr/pkg/cache"
	"xaddonmgr/pkg/logging"
	"xaddonmgr/pkg/model"
)

// rootSignals are the directory-entry names that mark a folder as a scenery
// root, matched case-insensitively.
var rootSignals = []string{
	"earth nav data",
	"library.txt",
	"apt.dat",
	"earth.wed.xml",
	"earth.wed.bak.xml",
	"mars nav data",
}

// DiscoveredFolder is one top-level scenery folder found by ScanScenery.
type DiscoveredFolder struct {
	Name    string
	Path    string
	ModTime time.Time

	// Roots are the scenery roots found inside the folder, the folder
	// itself when it carries a signal or nothing nested does.
	Roots []string
}

// Scanner walks an installation's scenery directories.
type Scanner struct {
	// Exclusions are canonical path prefixes to skip, trailing-slash
	// normalised. An excluded path and everything beneath it are skipped.
	Exclusions []string
}

// excluded reports whether path falls under one of the exclusion prefixes.
func (s *Scanner) excluded(canonical string) bool {
	p := normalizePrefix(canonical)
	for _, e := range s.Exclusions {
		if strings.HasPrefix(p, normalizePrefix(e)) {
			return true
		}
	}
	return false
}

func normalizePrefix(p string) string {
	p = filepath.ToSlash(filepath.Clean(p))
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// ScanScenery enumerates the immediate children of customSceneryDir and
// locates each child's scenery roots via a bounded recursive descent (two
// levels deep). An unreadable scenery directory is logged and yields no
// folders; an entry whose info cannot be read is kept with a zero ModTime.
func (s *Scanner) ScanScenery(customSceneryDir string) []DiscoveredFolder {
	entries, err := os.ReadDir(customSceneryDir)
	if err != nil {
		slog.Warn("discovery: cannot read scenery dir", "dir", customSceneryDir, "error", err)
		return nil
	}

	var found []DiscoveredFolder
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(customSceneryDir, e.Name())
		canonical, err := filepath.Abs(path)
		if err != nil {
			canonical = path
		}
		if s.excluded(canonical) {
			continue
		}

		info, err := e.Info()
		var mtime time.Time
		if err == nil {
			mtime = info.ModTime()
		}

		found = append(found, DiscoveredFolder{
			Name:    e.Name(),
			Path:    path,
			ModTime: mtime,
			Roots:   FindPackRoots(path),
		})
	}
	return found
}

// AddonKind is the coarse type of a discovered add-on.
type AddonKind string

const (
	AddonScenery  AddonKind = "scenery"
	AddonAircraft AddonKind = "aircraft"
	AddonPlugin   AddonKind = "plugin"
)

// DiscoveredAddon is a non-scenery add-on found by Scan: an aircraft or a
// plugin. The Profile Store keys its aircraft_states/plugin_states on
// these names.
type DiscoveredAddon struct {
	Name string
	Path string
	Kind AddonKind
}

// Scan enumerates the installation's aircraft and plugin folders. Like
// ScanScenery it only looks at immediate children and honours the
// exclusion list; content signals (.acf files, lin/mac/win plugin
// binaries) are not inspected because folder placement alone identifies
// the kind.
func (s *Scanner) Scan(installRoot string) []DiscoveredAddon {
	var found []DiscoveredAddon
	collect := func(dir string, kind AddonKind) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name())
			canonical, err := filepath.Abs(path)
			if err != nil {
				canonical = path
			}
			if s.excluded(canonical) {
				continue
			}
			found = append(found, DiscoveredAddon{Name: e.Name(), Path: path, Kind: kind})
		}
	}
	collect(filepath.Join(installRoot, "Aircraft"), AddonAircraft)
	collect(filepath.Join(installRoot, "Resources", "plugins"), AddonPlugin)
	return found
}

// ScanGlobalAirports is the dedicated pass for the Global Airports pack
// under Global Scenery; it runs even when the path would otherwise be
// excluded.
func (s *Scanner) ScanGlobalAirports(installRoot string) (DiscoveredFolder, bool) {
	dir := filepath.Join(installRoot, "Global Scenery", "Global Airports")
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return DiscoveredFolder{}, false
	}
	return DiscoveredFolder{
		Name:    "Global Airports",
		Path:    dir,
		ModTime: info.ModTime(),
		Roots:   FindPackRoots(dir),
	}, true
}

// FindPackRoots returns the scenery roots inside packPath: the path itself
// when it carries a root signal, plus any signalled sub-directory up to two
// levels deep. A folder with no signals anywhere still yields itself so
// name-based classification can proceed.
func FindPackRoots(packPath string) []string {
	var roots []string
	if isSceneryRoot(packPath) {
		roots = append(roots, packPath)
	}

	entries, err := os.ReadDir(packPath)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			sub := filepath.Join(packPath, e.Name())
			if isSceneryRoot(sub) {
				roots = append(roots, sub)
				continue
			}
			subEntries, err := os.ReadDir(sub)
			if err != nil {
				continue
			}
			for _, se := range subEntries {
				if !se.IsDir() {
					continue
				}
				subSub := filepath.Join(sub, se.Name())
				if isSceneryRoot(subSub) {
					roots = append(roots, subSub)
				}
			}
		}
	}

	if len(roots) == 0 {
		roots = append(roots, packPath)
	}
	return roots
}

func isSceneryRoot(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		for _, sig := range rootSignals {
			if name == sig {
				return true
			}
		}
	}
	return false
}

// EnumerateContent discovers a pack's airports and tiles across its roots.
// Tile enumeration honours the resources/default-scenery exemptions unless
// the pack is Global Airports.
func EnumerateContent(folder DiscoveredFolder) ([]model.Airport, []model.Tile) {
	var airports []model.Airport
	for _, root := range folder.Roots {
		if aptPath := aptdat.FindAptDat(root); aptPath != "" {
			found, errs := aptdat.ParseAptDat(aptPath)
			for _, err := range errs {
				slog.Debug("discovery: apt.dat diagnostic", "pack", folder.Name, "error", err)
			}
			airports = append(airports, found...)
		}
	}
	airports = mergeAirports(airports)

	var tiles []model.Tile
	isGlobalAirports := strings.Contains(strings.ToLower(folder.Path), "global airports") ||
		strings.Contains(strings.ToLower(folder.Path), "global_airports")
	if isGlobalAirports || !aptdat.IsTileExempt(folder.Path) {
		seen := map[model.Tile]bool{}
		for _, root := range folder.Roots {
			found, err := aptdat.ScanTiles(root)
			if err != nil {
				slog.Debug("discovery: tile scan failed", "pack", folder.Name, "error", err)
				continue
			}
			for _, t := range found {
				if !seen[t] {
					seen[t] = true
					tiles = append(tiles, t)
				}
			}
		}
		// The continent-pack cut applies to the pack total, not per root.
		if len(tiles) > aptdat.MaxTilesPerPack {
			tiles = nil
		}
	}
	return airports, tiles
}

func mergeAirports(airports []model.Airport) []model.Airport {
	seen := map[string]bool{}
	out := airports[:0]
	for _, a := range airports {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	// aptdat returns each file's airports sorted; across multiple roots the
	// concatenation may not be, so restore the global order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// PackUpdate is the result of processing one pack in the data-parallel
// stage: the enriched pack plus an optional cache record for folders whose
// content had to be re-enumerated.
type PackUpdate struct {
	Pack model.SceneryPack

	// CachePath keys CacheEntry in the Discovery Cache; empty when the
	// cache already held a valid entry for this pack.
	CachePath  string
	CacheEntry *model.CacheEntry
}

// Classify is the name-based classification hook the parallel stage calls;
// wired to classifier.Classify by the Manager so this package doesn't
// depend on the rule engine.
type Classify func(name, path string) model.SceneryCategory

// Heal is the post-discovery healing hook, wired to classifier.Heal.
type Heal func(pack model.SceneryPack) model.SceneryCategory

// ProcessPacks runs classification + content enumeration for each pack in
// parallel over an immutable input list, consulting the cache read-only and
// returning independent update records. The caller folds the cache entries
// back in under the writer lock. A nil done channel disables cancellation;
// otherwise processing stops between packs once done is closed.
func ProcessPacks(packs []model.SceneryPack, folders map[string]DiscoveredFolder, c *cache.Cache, classify Classify, heal Heal, done <-chan struct{}) []PackUpdate {
	workers := runtime.NumCPU()
	if workers > len(packs) {
		workers = len(packs)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	results := make([]PackUpdate, len(packs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = processOne(packs[i], folders, c, classify, heal)
			}
		}()
	}

feed:
	for i := range packs {
		select {
		case <-done:
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	select {
	case <-done:
		// Cancelled: pending cache updates are discarded, the caller keeps
		// its pre-operation pack list.
		return nil
	default:
	}
	return results
}

func processOne(pack model.SceneryPack, folders map[string]DiscoveredFolder, c *cache.Cache, classify Classify, heal Heal) PackUpdate {
	if classify != nil && (pack.Category == "" || pack.Category == model.CategoryUnknown) {
		pack.Category = classify(pack.Name, pack.Path)
	}

	folder, ok := folders[pack.Name]
	if !ok {
		if heal != nil {
			pack.Category = heal(pack)
		}
		return PackUpdate{Pack: pack}
	}
	pack.ModTime = folder.ModTime

	canonical, err := filepath.Abs(folder.Path)
	if err != nil {
		canonical = folder.Path
	}

	result := PackUpdate{}
	if entry, ok := c.Get(canonical, folder.ModTime); ok {
		pack.Airports = entry.Airports
		pack.Tiles = entry.Tiles
	} else {
		airports, tiles := EnumerateContent(folder)
		pack.Airports = airports
		pack.Tiles = tiles
		result.CachePath = canonical
		result.CacheEntry = &model.CacheEntry{
			MTime:    folder.ModTime,
			Airports: airports,
			Tiles:    tiles,
		}
	}

	if heal != nil {
		pack.Category = heal(pack)
	}
	logging.TraceDefault("discovery: processed pack", "name", pack.Name,
		"category", pack.Category, "airports", len(pack.Airports), "tiles", len(pack.Tiles))
	result.Pack = pack
	return result
}
