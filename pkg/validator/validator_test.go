package validator

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/model"
	"xaddonmgr/pkg/sorter"
)

func tiles(pairs ...[2]int) []model.Tile {
	out := make([]model.Tile, len(pairs))
	for i, p := range pairs {
		out[i] = model.Tile{Lat: p[0], Lon: p[1]}
	}
	return out
}

func issuesOfType(r model.ValidationReport, t model.IssueType) []model.ValidationIssue {
	var out []model.ValidationIssue
	for _, i := range r.Issues {
		if i.IssueType == t {
			out = append(out, i)
		}
	}
	return out
}

func TestShadowedMesh(t *testing.T) {
	packs := []model.SceneryPack{
		{Name: "Big Mesh", Status: model.StatusActive, Category: model.CategoryMesh,
			Tiles: tiles([2]int{37, -8}, [2]int{38, -9}, [2]int{39, -9})},
		{Name: "Small Mesh", Status: model.StatusActive, Category: model.CategoryMesh,
			Tiles: tiles([2]int{37, -8})},
	}
	report := Validate(packs)
	found := issuesOfType(report, model.IssueShadowedMesh)
	require.Len(t, found, 1)
	assert.Equal(t, "Small Mesh", found[0].PackName)
	assert.Equal(t, model.SeverityWarning, found[0].Severity)
}

func TestShadowedMeshRequiresSubset(t *testing.T) {
	packs := []model.SceneryPack{
		{Name: "Mesh A", Status: model.StatusActive, Category: model.CategoryMesh,
			Tiles: tiles([2]int{37, -8})},
		{Name: "Mesh B", Status: model.StatusActive, Category: model.CategoryMesh,
			Tiles: tiles([2]int{37, -8}, [2]int{50, 10})},
	}
	report := Validate(packs)
	assert.Empty(t, issuesOfType(report, model.IssueShadowedMesh))
}

func TestMeshAboveOverlay(t *testing.T) {
	packs := []model.SceneryPack{
		{Name: "Alps Mesh", Status: model.StatusActive, Category: model.CategoryMesh,
			Tiles: tiles([2]int{46, 10})},
		{Name: "Alps Overlay", Status: model.StatusActive, Category: model.CategoryRegionalOverlay,
			Tiles: tiles([2]int{46, 10})},
	}
	report := Validate(packs)
	found := issuesOfType(report, model.IssueMeshAboveOverlay)
	require.Len(t, found, 1)
	assert.Equal(t, "Alps Mesh", found[0].PackName)
}

func TestSimheavenBelowGlobal(t *testing.T) {
	packs := []model.SceneryPack{
		{Name: "Global Airports", Status: model.StatusActive, Category: model.CategoryGlobalAirport},
		{Name: "simHeaven_X-Europe", Status: model.StatusActive, Category: model.CategoryRegionalFluff},
	}
	report := Validate(packs)
	found := issuesOfType(report, model.IssueSimheavenBelowGlobal)
	require.Len(t, found, 1)
	assert.Equal(t, model.SeverityInfo, found[0].Severity)
}

func TestEmptyPackCritical(t *testing.T) {
	packs := []model.SceneryPack{
		{Name: "Broken Pack", Status: model.StatusActive, Category: model.CategoryUnknown},
		{Name: "Some Library", Status: model.StatusActive, Category: model.CategoryLibrary},
	}
	report := Validate(packs)
	found := issuesOfType(report, model.IssueEmptyPack)
	require.Len(t, found, 1)
	assert.Equal(t, "Broken Pack", found[0].PackName)
	assert.Equal(t, model.SeverityCritical, found[0].Severity)
}

func TestAutoFixIsIdempotent(t *testing.T) {
	h, err := config.LoadHeuristics(filepath.Join(t.TempDir(), "heuristics.json"))
	require.NoError(t, err)

	packs := []model.SceneryPack{
		{Name: "Bad Elevation Pack", Status: model.StatusActive, Category: model.CategorySpecificMesh,
			Tiles: tiles([2]int{46, 10})},
		{Name: "Austria Overlay", Status: model.StatusActive, Category: model.CategoryRegionalOverlay,
			Tiles: tiles([2]int{46, 10})},
	}

	report := Validate(packs)
	require.NotEmpty(t, issuesOfType(report, model.IssueMeshAboveOverlay))

	fixed := AutoFix(report, h)
	assert.Equal(t, []string{"Bad Elevation Pack"}, fixed)

	sorter.Sort(packs, h, model.ScoreContext{})
	report = Validate(packs)
	assert.Empty(t, issuesOfType(report, model.IssueMeshAboveOverlay))
}
