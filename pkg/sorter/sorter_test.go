package sorter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/model"
)

func newTestHeuristics(t *testing.T) *config.Heuristics {
	t.Helper()
	h, err := config.LoadHeuristics(filepath.Join(t.TempDir(), "heuristics.json"))
	require.NoError(t, err)
	return h
}

func names(packs []model.SceneryPack) []string {
	out := make([]string, len(packs))
	for i, p := range packs {
		out[i] = p.Name
	}
	return out
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"KSEA v1.0":          "ksea",
		"KSEA_v1.2":          "ksea",
		"KSEA v1.1":          "ksea",
		"EGLL_XP12":          "egll",
		"My Pack (2)":        "mypack",
		"HD_Mesh_v4":         "hdmesh",
		"Tower 100m Objects": "tower100mobjects",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanName(in), in)
	}
}

func TestExtractVersion(t *testing.T) {
	v, ok := ExtractVersion("KSEA v1.2")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, v)

	v, ok = ExtractVersion("Pack 2.0.5 final")
	require.True(t, ok)
	assert.Equal(t, []int{2, 0, 5}, v)

	_, ok = ExtractVersion("Tower 100m Objects")
	assert.False(t, ok)
}

func TestPinMovesPack(t *testing.T) {
	h := newTestHeuristics(t)
	packs := []model.SceneryPack{
		{Name: "A", Status: model.StatusActive, Category: model.CategoryUnknown},
		{Name: "B", Status: model.StatusActive, Category: model.CategoryUnknown},
		{Name: "C", Status: model.StatusActive, Category: model.CategoryUnknown},
	}
	h.SetOverride("B", 10)
	Sort(packs, h, model.ScoreContext{})
	assert.Equal(t, []string{"B", "A", "C"}, names(packs))
	assert.Equal(t, 10, packs[0].Score)
}

func TestStability(t *testing.T) {
	h := newTestHeuristics(t)
	packs := []model.SceneryPack{
		{Name: "First", Status: model.StatusActive, Category: model.CategoryUnknown},
		{Name: "Second", Status: model.StatusActive, Category: model.CategoryUnknown},
		{Name: "Third", Status: model.StatusActive, Category: model.CategoryUnknown},
	}
	Sort(packs, h, model.ScoreContext{})
	assert.Equal(t, []string{"First", "Second", "Third"}, names(packs),
		"equal scores preserve pre-sort order")
}

func TestSortIsPermutation(t *testing.T) {
	h := newTestHeuristics(t)
	packs := []model.SceneryPack{
		{Name: "Alpha Airport", Status: model.StatusActive, Category: model.CategoryCustomAirport},
		{Name: "Beta Overlay", Status: model.StatusActive, Category: model.CategoryRegionalOverlay},
		{Name: "Gamma Base", Status: model.StatusActive, Category: model.CategoryGlobalBase},
		{Name: "Delta", Status: model.StatusActive, Category: model.CategoryUnknown},
	}
	before := map[string]bool{}
	for _, p := range packs {
		before[p.Name] = true
	}
	Sort(packs, h, model.ScoreContext{})
	require.Len(t, packs, len(before))
	for _, p := range packs {
		assert.True(t, before[p.Name])
	}
}

func TestCategoryBandOrdering(t *testing.T) {
	h := newTestHeuristics(t)
	packs := []model.SceneryPack{
		{Name: "Planet Base", Status: model.StatusActive, Category: model.CategoryGlobalBase},
		{Name: "Region Decor", Status: model.StatusActive, Category: model.CategoryRegionalOverlay},
		{Name: "Home Field", Status: model.StatusActive, Category: model.CategoryCustomAirport},
	}
	Sort(packs, h, model.ScoreContext{})
	assert.Equal(t, []string{"Home Field", "Region Decor", "Planet Base"}, names(packs),
		"airports before overlays before base")
}

func TestDuplicatesCollapse(t *testing.T) {
	h := newTestHeuristics(t)
	packs := []model.SceneryPack{
		{Name: "KSEA v1.0", Status: model.StatusActive, Category: model.CategoryCustomAirport},
		{Name: "KSEA_v1.2", Status: model.StatusActive, Category: model.CategoryCustomAirport},
		{Name: "KSEA v1.1", Status: model.StatusActive, Category: model.CategoryCustomAirport},
	}
	Sort(packs, h, model.ScoreContext{})

	require.Equal(t, []string{"KSEA_v1.2", "KSEA v1.1", "KSEA v1.0"}, names(packs))
	assert.Equal(t, model.StatusActive, packs[0].Status)
	assert.Equal(t, model.StatusDuplicateHidden, packs[1].Status)
	assert.Equal(t, model.StatusDuplicateHidden, packs[2].Status)
	assert.Equal(t, "KSEA_v1.2", packs[1].DuplicateOf)
	assert.Equal(t, "KSEA_v1.2", packs[2].DuplicateOf)
}

func TestDuplicateWinnerByMTimeWhenUnversioned(t *testing.T) {
	h := newTestHeuristics(t)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	packs := []model.SceneryPack{
		{Name: "EGKA Shoreham", Status: model.StatusActive, Category: model.CategoryCustomAirport, ModTime: older},
		{Name: "EGKA_Shoreham", Status: model.StatusActive, Category: model.CategoryCustomAirport, ModTime: newer},
	}
	Sort(packs, h, model.ScoreContext{})
	assert.Equal(t, "EGKA_Shoreham", packs[0].Name)
	assert.Equal(t, model.StatusDuplicateHidden, packs[1].Status)
}

func TestShortNamesNotGrouped(t *testing.T) {
	h := newTestHeuristics(t)
	packs := []model.SceneryPack{
		{Name: "A1", Status: model.StatusActive, Category: model.CategoryUnknown},
		{Name: "A2", Status: model.StatusActive, Category: model.CategoryUnknown},
	}
	Sort(packs, h, model.ScoreContext{})
	assert.Equal(t, model.StatusActive, packs[0].Status)
	assert.Equal(t, model.StatusActive, packs[1].Status)
}

func TestPinnedTiesKeepPreSortOrder(t *testing.T) {
	h := newTestHeuristics(t)
	h.SetOverride("X Pack", 7)
	h.SetOverride("Y Pack", 7)
	packs := []model.SceneryPack{
		{Name: "Other", Status: model.StatusActive, Category: model.CategoryUnknown},
		{Name: "X Pack", Status: model.StatusActive, Category: model.CategoryUnknown},
		{Name: "Y Pack", Status: model.StatusActive, Category: model.CategoryUnknown},
	}
	Sort(packs, h, model.ScoreContext{})
	assert.Equal(t, []string{"X Pack", "Y Pack", "Other"}, names(packs))
}
