package classifier

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/model"
)

func newTestHeuristics(t *testing.T) *config.Heuristics {
	t.Helper()
	h, err := config.LoadHeuristics(t.TempDir() + "/heuristics.json")
	require.NoError(t, err)
	return h
}

func writeHeuristicsFixture(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestClassifyBuiltinTable(t *testing.T) {
	c := New(newTestHeuristics(t))

	cases := []struct {
		name string
		want model.SceneryCategory
	}{
		{"Orbx_NorCal_XP12", model.CategoryOrbxAirport},
		{"Library of Scenery Objects", model.CategoryLibrary},
		{"AutoOrtho Overlays USA", model.CategoryAutoOrthoOverlay},
		{"zOrtho4XP_NA", model.CategoryOrthoBase},
		{"HD Mesh Scenery v4", model.CategoryMesh},
		{"simHeaven_X-Europe", model.CategoryRegionalFluff},
		{"Some Random Folder", model.CategoryUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Classify(tc.name, "/x/"+tc.name), tc.name)
	}
}

func TestClassifyUserRuleWinsOverBuiltin(t *testing.T) {
	path := t.TempDir() + "/heuristics.json"
	require.NoError(t, writeHeuristicsFixture(path, `{
		"category_rules": [
			{"name": "force-landmark", "keywords": ["orbx"], "mapped_value": "Landmark", "priority": 999}
		]
	}`))
	h, err := config.LoadHeuristics(path)
	require.NoError(t, err)

	c := New(h)
	assert.Equal(t, model.CategoryLandmark, c.Classify("Orbx_PNW", "/x"))
}

func TestHealPromotesOnAirports(t *testing.T) {
	pack := model.SceneryPack{
		Name:     "XYZ Scenery",
		Category: model.CategoryUnknown,
		Airports: []model.Airport{{ID: "KSEA", Name: "Seattle"}},
	}
	assert.Equal(t, model.CategoryCustomAirport, Heal(pack))
}

func TestHealDoesNotPromoteGlobalAirportOrLibrary(t *testing.T) {
	withAirports := func(cat model.SceneryCategory) model.SceneryPack {
		return model.SceneryPack{Name: "n", Category: cat, Airports: []model.Airport{{ID: "KSEA"}}}
	}
	assert.Equal(t, model.CategoryGlobalAirport, Heal(withAirports(model.CategoryGlobalAirport)))
	assert.Equal(t, model.CategoryGlobalBase, Heal(withAirports(model.CategoryGlobalBase)))
}

func TestHealLibraryWithAirportsBecomesCustomAirport(t *testing.T) {
	pack := model.SceneryPack{
		Name:     "MisclassifiedLibrary",
		Category: model.CategoryLibrary,
		Airports: []model.Airport{{ID: "KJFK"}},
	}
	assert.Equal(t, model.CategoryCustomAirport, Heal(pack))
}

func TestHealUnknownWithTilesBecomesOrthoOrRegionalOverlay(t *testing.T) {
	orthoPack := model.SceneryPack{Name: "Ortho4XP Tile Pack", Category: model.CategoryUnknown, Tiles: []model.Tile{{Lat: 47, Lon: -122}}}
	assert.Equal(t, model.CategoryOrthoBase, Heal(orthoPack))

	regionalPack := model.SceneryPack{Name: "Generic Photoreal", Category: model.CategoryUnknown, Tiles: []model.Tile{{Lat: 47, Lon: -122}}}
	assert.Equal(t, model.CategoryRegionalOverlay, Heal(regionalPack))
}

func TestHealMeshWithAirportsBecomesCustomAirport(t *testing.T) {
	pack := model.SceneryPack{
		Name:     "HD Mesh v4",
		Category: model.CategoryMesh,
		Airports: []model.Airport{{ID: "KBFI"}},
	}
	assert.Equal(t, model.CategoryCustomAirport, Heal(pack))
}
