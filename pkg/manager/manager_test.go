package manager

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/model"
	"xaddonmgr/pkg/profile"
)

const sampleApt = `I
1000 Version

1 433 1 0 KSEA Seattle Tacoma Intl
100 45.0 1 0 0.25 0 0 0 16L 47.46 -122.30 0 0 3 0 0 0 34R 47.43 -122.30 0 0 3 0 0 0
`

// newTestInstall lays out a minimal installation: Custom Scenery with two
// packs, one of which carries an apt.dat.
func newTestInstall(t *testing.T) (installRoot, configDir string) {
	t.Helper()
	installRoot = t.TempDir()
	configDir = t.TempDir()

	navDir := filepath.Join(installRoot, "Custom Scenery", "KSEA Airport", "Earth nav data")
	require.NoError(t, os.MkdirAll(navDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(navDir, "apt.dat"), []byte(sampleApt), 0o644))

	libDir := filepath.Join(installRoot, "Custom Scenery", "Some Library")
	require.NoError(t, os.MkdirAll(libDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "library.txt"), []byte("A\n"), 0o644))

	return installRoot, configDir
}

func newTestManager(t *testing.T) (*Manager, *config.Heuristics) {
	t.Helper()
	installRoot, configDir := newTestInstall(t)

	h, err := config.LoadHeuristics(filepath.Join(configDir, "heuristics.json"))
	require.NoError(t, err)
	profiles, err := profile.Load(filepath.Join(configDir, "profiles.json"))
	require.NoError(t, err)

	return New(Options{
		InstallRoot: installRoot,
		ConfigDir:   configDir,
		Heuristics:  h,
		Profiles:    profiles,
	}), h
}

func TestLoadDiscoversAndClassifies(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))

	packs := m.Packs()
	require.Len(t, packs, 2)

	byName := map[string]model.SceneryPack{}
	for _, p := range packs {
		byName[p.Name] = p
	}

	airport := byName["KSEA Airport"]
	assert.Equal(t, model.CategoryCustomAirport, airport.Category, "airport discovery promotes the pack")
	require.Len(t, airport.Airports, 1)
	assert.Equal(t, "KSEA", airport.Airports[0].ID)

	lib := byName["Some Library"]
	assert.Equal(t, model.CategoryLibrary, lib.Category)
}

func TestSortOrdersAirportAboveLibrary(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))
	m.Sort(context.Background(), model.ScoreContext{})

	packs := m.Packs()
	require.Len(t, packs, 2)
	assert.Equal(t, "KSEA Airport", packs[0].Name)
	assert.Equal(t, "Some Library", packs[1].Name)
}

func TestOverrideMovesPack(t *testing.T) {
	m, h := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))

	h.SetOverride("Some Library", 1)
	m.Sort(context.Background(), model.ScoreContext{})

	packs := m.Packs()
	assert.Equal(t, "Some Library", packs[0].Name)
	assert.Equal(t, 1, packs[0].Score)
}

func TestSaveWritesManifest(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))
	m.Sort(context.Background(), model.ScoreContext{})
	require.NoError(t, m.Save(context.Background()))

	data, err := os.ReadFile(filepath.Join(m.installRoot, "Custom Scenery", "scenery_packs.ini"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "SCENERY_PACK Custom Scenery/KSEA Airport/")
}

func TestSaveRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))
	m.Sort(context.Background(), model.ScoreContext{})
	require.NoError(t, m.Save(context.Background()))

	first := m.Packs()
	require.NoError(t, m.Load(context.Background()))
	second := m.Packs()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.Equal(t, first[i].Status, second[i].Status)
	}
}

func TestConcurrentSavesCoalesce(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))

	var completions int
	var mu sync.Mutex
	m.OnSaved(func(err error) {
		mu.Lock()
		completions++
		mu.Unlock()
		assert.NoError(t, err)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Save(context.Background()))
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, completions, 1)
	assert.LessOrEqual(t, completions, 8)
}

func TestEnableDisable(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))

	assert.True(t, m.Disable("Some Library"))
	packs := m.Packs()
	for _, p := range packs {
		if p.Name == "Some Library" {
			assert.Equal(t, model.StatusDisabled, p.Status)
		}
	}
	assert.True(t, m.Enable("Some Library"))
	assert.False(t, m.Enable("No Such Pack"))
}

func TestMovePinsToNeighbourScore(t *testing.T) {
	m, h := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))
	m.Sort(context.Background(), model.ScoreContext{})

	packs := m.Packs()
	require.Len(t, packs, 2)
	top := packs[0]

	assert.True(t, m.Move(packs[1].Name, Up))
	pinned, ok := h.Override(packs[1].Name)
	require.True(t, ok)
	assert.Equal(t, top.Score, pinned)

	// The swap takes effect immediately.
	assert.Equal(t, packs[1].Name, m.Packs()[0].Name)
}

func TestTags(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))

	assert.True(t, m.AddTag("Some Library", "payware"))
	assert.True(t, m.AddTag("Some Library", "payware"), "re-adding is a no-op")
	assert.True(t, m.RemoveTag("Some Library", "payware"))
	assert.False(t, m.RemoveTag("Some Library", "payware"))
}

func TestActivateProfileAppliesStatesAndOverrides(t *testing.T) {
	m, h := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))

	m.profiles.Put(model.Profile{
		Name:             "minimal",
		SceneryStates:    map[string]bool{"Some Library": false},
		SceneryOverrides: map[string]int{"KSEA Airport": 3},
	})

	require.NoError(t, m.ActivateProfile(context.Background(), "minimal", model.ScoreContext{}))

	packs := m.Packs()
	byName := map[string]model.SceneryPack{}
	for _, p := range packs {
		byName[p.Name] = p
	}
	assert.Equal(t, model.StatusDisabled, byName["Some Library"].Status)
	assert.Equal(t, 3, byName["KSEA Airport"].Score)

	pinned, ok := h.Override("KSEA Airport")
	require.True(t, ok)
	assert.Equal(t, 3, pinned)
	assert.Equal(t, "minimal", m.profiles.Active())
}

func TestLoadCancellationPreservesState(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))
	before := m.Packs()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Load(ctx)
	assert.Error(t, err)
	assert.Equal(t, before, m.Packs(), "cancelled load keeps the previous pack list")
}

func TestSimulateSortDoesNotMutate(t *testing.T) {
	m, h := newTestManager(t)
	require.NoError(t, m.Load(context.Background()))
	before := m.Packs()

	h.SetOverride("Some Library", 1)
	preview, report := m.SimulateSort(model.ScoreContext{})
	assert.Equal(t, "Some Library", preview[0].Name)
	assert.NotNil(t, report)
	assert.Equal(t, before, m.Packs())
}
