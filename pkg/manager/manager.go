// Package manager implements the Scenery Manager: the orchestrator owning
// the in-memory pack list, driving discovery, classification, sorting,
// validation, and manifest persistence. Each operation is serialised; saves
// go through a single-slot coalescing queue so at most one write runs at a
// time and a burst of requests collapses into one trailing save.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"xaddonmgr/pkg/cache"
	"xaddonmgr/pkg/classifier"
	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/discovery"
	"xaddonmgr/pkg/logging"
	"xaddonmgr/pkg/manifest"
	"xaddonmgr/pkg/model"
	"xaddonmgr/pkg/profile"
	"xaddonmgr/pkg/sorter"
	"xaddonmgr/pkg/validator"
)

// AuditLog records manager operations; satisfied by store.AuditStore. Nil
// disables auditing.
type AuditLog interface {
	Record(ctx context.Context, op, summary string) error
}

// Manager owns the pack list for one installation.
type Manager struct {
	mu    sync.Mutex
	packs []model.SceneryPack

	installRoot string
	manifest    *manifest.Manifest
	cache       *cache.Cache
	heuristics  *config.Heuristics
	classifier  *classifier.Classifier
	profiles    *profile.Store
	scanner     *discovery.Scanner
	audit       AuditLog

	// saveMu guards the single-slot save queue state below.
	saveMu        sync.Mutex
	saving        bool
	pendingWaiter *saveWaiter

	// onSaved observers receive the outcome of each completed save.
	onSaved []func(error)
}

// Options wires a Manager's collaborators.
type Options struct {
	InstallRoot string
	ConfigDir   string
	Heuristics  *config.Heuristics
	Profiles    *profile.Store
	Exclusions  []string
	Audit       AuditLog

	// BackupRetain caps the rotating manifest backups; 0 means the
	// default of 10.
	BackupRetain int
}

// New builds a Manager for the installation at opts.InstallRoot.
func New(opts Options) *Manager {
	iniPath := filepath.Join(opts.InstallRoot, "Custom Scenery", "scenery_packs.ini")
	m := manifest.New(iniPath, filepath.Join(opts.ConfigDir, "backups"))
	m.BackupRetain = opts.BackupRetain

	return &Manager{
		installRoot: opts.InstallRoot,
		manifest:    m,
		cache:       cache.Load(filepath.Join(opts.ConfigDir, "discovery_cache.json")),
		heuristics:  opts.Heuristics,
		classifier:  classifier.New(opts.Heuristics),
		profiles:    opts.Profiles,
		scanner:     &discovery.Scanner{Exclusions: opts.Exclusions},
		audit:       opts.Audit,
	}
}

// Packs returns a copy of the current pack list.
func (m *Manager) Packs() []model.SceneryPack {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SceneryPack, len(m.packs))
	copy(out, m.packs)
	return out
}

// OnSaved registers an observer notified after each completed save with its
// outcome. Used by callers that need a completion event rather than the
// synchronous error.
func (m *Manager) OnSaved(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSaved = append(m.onSaved, fn)
}

// Load reads the manifest, scans the installation for packs not yet listed,
// and runs the data-parallel classify+enumerate stage. Concurrent Load
// calls are serialised. On cancellation the previous pack list is kept and
// pending cache updates are discarded.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	packs, errs := m.manifest.Read()
	for _, err := range errs {
		slog.Warn("manifest read diagnostic", "error", err)
	}
	packs = dedupeManifestEntries(packs)
	slog.Info("manifest read", "packs", len(packs))

	customScenery := filepath.Join(m.installRoot, "Custom Scenery")
	found := m.scanner.ScanScenery(customScenery)
	if ga, ok := m.scanner.ScanGlobalAirports(m.installRoot); ok {
		found = append(found, ga)
	}

	folders := make(map[string]discovery.DiscoveredFolder, len(found))
	for _, f := range found {
		folders[f.Name] = f
	}

	packs = mergeDiscovered(packs, found, m.installRoot)

	updates := discovery.ProcessPacks(packs, folders, m.cache,
		m.classifier.Classify, classifier.Heal, ctx.Done())
	if updates == nil {
		// Cancelled mid-stage: keep the pre-operation state.
		return ctx.Err()
	}

	cacheUpdates := map[string]model.CacheEntry{}
	result := make([]model.SceneryPack, len(updates))
	for i, u := range updates {
		result[i] = u.Pack
		if u.CacheEntry != nil {
			cacheUpdates[u.CachePath] = *u.CacheEntry
		}
	}
	m.cache.PutAll(cacheUpdates)
	if err := m.cache.Save(); err != nil {
		slog.Warn("failed to persist discovery cache", "error", err)
	}

	m.packs = result
	logging.LogEvent(logging.Event{Type: "LOAD", Title: "Scenery loaded",
		Summary: fmt.Sprintf("%d packs, %d cache updates", len(result), len(cacheUpdates))})
	m.recordAudit(ctx, "load", fmt.Sprintf("%d packs", len(result)))
	return nil
}

// dedupeManifestEntries drops repeated ini lines, collapsing the virtual
// and physical Global Airports forms onto one key.
func dedupeManifestEntries(packs []model.SceneryPack) []model.SceneryPack {
	seen := map[string]bool{}
	out := packs[:0]
	for _, p := range packs {
		key := p.Path
		if p.Name == manifest.VirtualGlobalAirports || strings.HasSuffix(strings.TrimSuffix(p.Path, "/"), "Global Airports") {
			key = "VIRTUAL:GLOBAL_AIRPORTS"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// mergeDiscovered reconciles scanned folders with the manifest-derived pack
// list: the Global Airports virtual marker adopts the physical path, and
// folders the manifest doesn't know yet are prepended, the way the
// simulator itself surfaces new scenery.
func mergeDiscovered(packs []model.SceneryPack, found []discovery.DiscoveredFolder, installRoot string) []model.SceneryPack {
	for _, f := range found {
		isGlobalAirports := f.Name == "Global Airports"

		rel, err := filepath.Rel(installRoot, f.Path)
		if err != nil {
			rel = f.Path
		}
		rel = filepath.ToSlash(rel)

		matched := false
		for i := range packs {
			if strings.TrimSuffix(packs[i].Path, "/") == rel {
				matched = true
				packs[i].Name = f.Name
				break
			}
			if isGlobalAirports && packs[i].Name == manifest.VirtualGlobalAirports {
				packs[i].Name = f.Name
				packs[i].Path = rel
				matched = true
				break
			}
		}
		if !matched {
			packs = append([]model.SceneryPack{{
				Name:     f.Name,
				Path:     rel,
				Status:   model.StatusActive,
				Category: model.CategoryUnknown,
			}}, packs...)
		}
	}
	return packs
}

// Sort orders the pack list in place using the current heuristics and the
// given context.
func (m *Manager) Sort(ctx context.Context, sctx model.ScoreContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorter.Sort(m.packs, m.heuristics, sctx)
	logging.LogEvent(logging.Event{Type: "SORT", Title: "Pack list sorted",
		Summary: fmt.Sprintf("%d packs", len(m.packs))})
	m.recordAudit(ctx, "sort", fmt.Sprintf("%d packs", len(m.packs)))
}

// Validate runs the layering validator over the current order.
func (m *Manager) Validate(ctx context.Context) model.ValidationReport {
	m.mu.Lock()
	packs := make([]model.SceneryPack, len(m.packs))
	copy(packs, m.packs)
	m.mu.Unlock()

	report := validator.Validate(packs)
	m.recordAudit(ctx, "validate", fmt.Sprintf("%d issues", len(report.Issues)))
	return report
}

// SimulateSort returns what Sort would produce plus its validation report,
// without mutating the live pack list. Used for UI previews.
func (m *Manager) SimulateSort(sctx model.ScoreContext) ([]model.SceneryPack, model.ValidationReport) {
	m.mu.Lock()
	preview := make([]model.SceneryPack, len(m.packs))
	copy(preview, m.packs)
	m.mu.Unlock()

	sorter.Sort(preview, m.heuristics, sctx)
	return preview, validator.Validate(preview)
}

// saveWaiter is the single pending slot of the save queue: every caller
// that arrives while a save is running shares it.
type saveWaiter struct {
	done chan struct{}
	err  error
}

// Save writes the manifest under the installation lock. Exactly one save
// runs at a time; a request issued while one is running is queued in a
// single slot, and any further requests coalesce with the queued one. All
// observers registered via OnSaved see each completed save's outcome.
func (m *Manager) Save(ctx context.Context) error {
	m.saveMu.Lock()
	if m.saving {
		if m.pendingWaiter == nil {
			m.pendingWaiter = &saveWaiter{done: make(chan struct{})}
		}
		w := m.pendingWaiter
		m.saveMu.Unlock()
		<-w.done
		return w.err
	}
	m.saving = true
	m.saveMu.Unlock()

	err := m.doSave(ctx)
	m.signalSaved(err)

	// Drain the coalesced slot before going idle. The queued save runs
	// detached from the first caller's context: its requesters are still
	// waiting on it.
	for {
		m.saveMu.Lock()
		w := m.pendingWaiter
		m.pendingWaiter = nil
		if w == nil {
			m.saving = false
			m.saveMu.Unlock()
			return err
		}
		m.saveMu.Unlock()

		w.err = m.doSave(context.Background())
		m.signalSaved(w.err)
		close(w.done)
	}
}

func (m *Manager) doSave(ctx context.Context) error {
	m.mu.Lock()
	packs := make([]model.SceneryPack, len(m.packs))
	copy(packs, m.packs)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.manifest.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := m.manifest.Unlock(); err != nil {
			slog.Warn("failed to unlock manifest", "error", err)
		}
	}()

	if err := m.manifest.Write(packs); err != nil {
		return err
	}
	logging.LogEvent(logging.Event{Type: "SAVE", Title: "Manifest written",
		Summary: fmt.Sprintf("%d packs", len(packs))})
	m.recordAudit(ctx, "save", fmt.Sprintf("%d packs", len(packs)))
	return nil
}

func (m *Manager) signalSaved(err error) {
	m.mu.Lock()
	observers := make([]func(error), len(m.onSaved))
	copy(observers, m.onSaved)
	m.mu.Unlock()
	for _, fn := range observers {
		fn(err)
	}
}

// Enable marks the named pack Active.
func (m *Manager) Enable(name string) bool {
	return m.setStatus(name, model.StatusActive)
}

// Disable marks the named pack Disabled.
func (m *Manager) Disable(name string) bool {
	return m.setStatus(name, model.StatusDisabled)
}

func (m *Manager) setStatus(name string, status model.SceneryStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.packs {
		if m.packs[i].Name == name {
			m.packs[i].Status = status
			return true
		}
	}
	return false
}

// Direction of a Move operation.
type Direction int

const (
	Up Direction = iota
	Down
)

// Move pins the named pack to its neighbour's score so the next sort
// places it above (Up) or below (Down) that neighbour, then swaps the two
// in the in-memory order for immediate visual effect.
func (m *Manager) Move(name string, dir Direction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := range m.packs {
		if m.packs[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	neighbour := idx - 1
	if dir == Down {
		neighbour = idx + 1
	}
	if neighbour < 0 || neighbour >= len(m.packs) {
		return false
	}

	if m.heuristics != nil {
		m.heuristics.SetOverride(name, m.packs[neighbour].Score)
	}
	m.packs[idx], m.packs[neighbour] = m.packs[neighbour], m.packs[idx]
	return true
}

// AddTag attaches a user label to the named pack.
func (m *Manager) AddTag(name, tag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.packs {
		if m.packs[i].Name != name {
			continue
		}
		for _, t := range m.packs[i].Tags {
			if t == tag {
				return true
			}
		}
		m.packs[i].Tags = append(m.packs[i].Tags, tag)
		return true
	}
	return false
}

// RemoveTag detaches a user label from the named pack.
func (m *Manager) RemoveTag(name, tag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.packs {
		if m.packs[i].Name != name {
			continue
		}
		for j, t := range m.packs[i].Tags {
			if t == tag {
				m.packs[i].Tags = append(m.packs[i].Tags[:j], m.packs[i].Tags[j+1:]...)
				return true
			}
		}
		return false
	}
	return false
}

// ActivateProfile applies the named profile in the documented order:
// scenery_states, then overrides, then re-sort, then manifest write.
func (m *Manager) ActivateProfile(ctx context.Context, name string, sctx model.ScoreContext) error {
	if m.profiles == nil {
		return fmt.Errorf("no profile store configured")
	}
	p, ok := m.profiles.Get(name)
	if !ok {
		return fmt.Errorf("profile %q does not exist", name)
	}

	m.mu.Lock()
	for i := range m.packs {
		if enabled, ok := p.SceneryStates[m.packs[i].Name]; ok {
			if enabled {
				m.packs[i].Status = model.StatusActive
			} else {
				m.packs[i].Status = model.StatusDisabled
			}
		}
	}
	m.mu.Unlock()

	if m.heuristics != nil {
		m.heuristics.ApplyOverrides(p.SceneryOverrides)
	}

	m.Sort(ctx, sctx)

	if err := m.profiles.SetActive(name); err != nil {
		return err
	}
	if err := m.profiles.Save(); err != nil {
		return err
	}
	if err := m.Save(ctx); err != nil {
		return err
	}
	m.recordAudit(ctx, "activate_profile", name)
	return nil
}

func (m *Manager) recordAudit(ctx context.Context, op, summary string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Record(ctx, op, summary); err != nil {
		slog.Debug("audit record failed", "op", op, "error", err)
	}
}
