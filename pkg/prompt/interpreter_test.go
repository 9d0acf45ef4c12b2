package prompt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/model"
)

func writeDoc(t *testing.T, path string, doc model.HeuristicsConfig) error {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func newInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	h, err := config.LoadHeuristics(filepath.Join(t.TempDir(), "heuristics.json"))
	require.NoError(t, err)
	return New(h, nil)
}

func TestParseFullPrompt(t *testing.T) {
	in := newInterpreter(t)
	p := in.Parse("Flight from EGLL to KJFK using a Boeing 747 for 7 hours ignore guardrails")

	require.NotNil(t, p.Origin)
	assert.Equal(t, KindICAO, p.Origin.Kind)
	assert.Equal(t, "EGLL", p.Origin.ICAO)

	require.NotNil(t, p.Destination)
	assert.Equal(t, KindICAO, p.Destination.Kind)
	assert.Equal(t, "KJFK", p.Destination.ICAO)

	assert.Contains(t, p.Aircraft, "boeing 747")
	require.NotNil(t, p.DurationMinutes)
	assert.Equal(t, 420, *p.DurationMinutes)
	assert.True(t, p.IgnoreGuardrails)
}

func TestParseCityAliasBeatsICAOHeuristic(t *testing.T) {
	in := newInterpreter(t)
	p := in.Parse("London to Paris")

	require.NotNil(t, p.Origin)
	assert.Equal(t, KindNearCity, p.Origin.Kind)
	assert.Equal(t, "London", p.Origin.Name)
	assert.InDelta(t, 51.5074, p.Origin.Lat, 0.001)
	assert.InDelta(t, -0.1278, p.Origin.Lon, 0.001)

	require.NotNil(t, p.Destination)
	assert.Equal(t, "Paris", p.Destination.Name)
	assert.InDelta(t, 48.8566, p.Destination.Lat, 0.001)
	assert.InDelta(t, 2.3522, p.Destination.Lon, 0.001)
}

func TestParseNoiseOriginBecomesDestinationOnly(t *testing.T) {
	in := newInterpreter(t)
	for _, text := range []string{"quick flight to Germany", "flight to Germany", "heading to Germany"} {
		p := in.Parse(text)
		assert.Nil(t, p.Origin, text)
		require.NotNil(t, p.Destination, text)
		assert.Equal(t, KindRegion, p.Destination.Kind, text)
		assert.Equal(t, "DE", p.Destination.Name, text)
	}
}

func TestParseRegionNicknames(t *testing.T) {
	in := newInterpreter(t)
	p := in.Parse("Flight from Socal to Norcal")
	require.NotNil(t, p.Origin)
	assert.Equal(t, "US:SoCal", p.Origin.Name)
	require.NotNil(t, p.Destination)
	assert.Equal(t, "US:NorCal", p.Destination.Name)
}

func TestParseOriginOnly(t *testing.T) {
	in := newInterpreter(t)
	p := in.Parse("2 hour flight from UK")
	require.NotNil(t, p.Origin)
	assert.Equal(t, KindRegion, p.Origin.Kind)
	assert.Equal(t, "UK", p.Origin.Name)
	assert.Nil(t, p.Destination)
	require.NotNil(t, p.DurationMinutes)
	assert.Equal(t, 120, *p.DurationMinutes)
}

func TestParseHereAndAnywhere(t *testing.T) {
	in := newInterpreter(t)
	p := in.Parse("from here to anywhere")
	require.NotNil(t, p.Origin)
	assert.Equal(t, KindHere, p.Origin.Kind)
	require.NotNil(t, p.Destination)
	assert.Equal(t, KindAny, p.Destination.Kind)
}

func TestParseDurationWords(t *testing.T) {
	in := newInterpreter(t)

	p := in.Parse("Just fly for 45 mins")
	require.NotNil(t, p.DurationMinutes)
	assert.Equal(t, 45, *p.DurationMinutes)

	p = in.Parse("an hour of flying")
	require.NotNil(t, p.DurationMinutes)
	assert.Equal(t, 60, *p.DurationMinutes)

	p = in.Parse("for three hours")
	require.NotNil(t, p.DurationMinutes)
	assert.Equal(t, 180, *p.DurationMinutes)
}

func TestParseKeywords(t *testing.T) {
	in := newInterpreter(t)

	p := in.Parse("a short bush trip on grass at dawn in the rain")
	assert.Equal(t, DurationShort, p.Keywords.Duration)
	assert.Equal(t, TypeBush, p.Keywords.FlightType)
	assert.Equal(t, SurfaceSoft, p.Keywords.Surface)
	assert.Equal(t, TimeDawn, p.Keywords.Time)
	assert.Equal(t, "rain", p.Keywords.Weather)
}

func TestBushImpliesSoftSurface(t *testing.T) {
	in := newInterpreter(t)
	p := in.Parse("backcountry flying in Idaho")
	assert.Equal(t, TypeBush, p.Keywords.FlightType)
	assert.Equal(t, SurfaceSoft, p.Keywords.Surface)
}

func TestWordBoundaryMatching(t *testing.T) {
	in := newInterpreter(t)

	// "day" must not match inside "daylight savings" -> still matches
	// "daylight" alias, but "midday" must not match "day".
	p := in.Parse("flight at midday somewhere")
	assert.Empty(t, p.Keywords.Time)

	p = in.Parse("a day flight")
	assert.Equal(t, TimeDay, p.Keywords.Time)
}

func TestAircraftWeatherNoiseRejected(t *testing.T) {
	in := newInterpreter(t)
	p := in.Parse("flight to EGLL in a storm")
	assert.Empty(t, p.Aircraft)
	assert.Equal(t, "storm", p.Keywords.Weather)
}

func TestAircraftNormalization(t *testing.T) {
	in := newInterpreter(t)

	p := in.Parse("fly to KJFK using an airliner")
	assert.Equal(t, "Airliner", p.Aircraft)

	p = in.Parse("to EGLL with a private jet")
	assert.Equal(t, "Business Jet", p.Aircraft)

	p = in.Parse("to PAKT in a floatplane")
	assert.Equal(t, "General Aviation", p.Aircraft)

	p = in.Parse("to EGLL in a chopper")
	assert.Equal(t, "Helicopter", p.Aircraft)
}

func TestUserAircraftRuleWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heuristics.json")
	h, err := config.LoadHeuristics(path)
	require.NoError(t, err)
	doc := h.Doc()
	minNM := 50.0
	maxNM := 300.0
	speed := 120.0
	doc.AircraftRules = model.RuleTable{{
		Name: "my-cub", Keywords: []string{"cub"}, MappedValue: "General Aviation",
		Priority: 100, MinDistanceNM: &minNM, MaxDistanceNM: &maxNM, SpeedKts: &speed,
	}}
	require.NoError(t, writeDoc(t, path, doc))
	h, err = config.LoadHeuristics(path)
	require.NoError(t, err)

	in := New(h, nil)
	p := in.Parse("flight to PAKT in my cub")
	assert.Equal(t, "General Aviation", p.Aircraft)
	require.NotNil(t, p.AircraftMinNM)
	assert.Equal(t, 50.0, *p.AircraftMinNM)
	require.NotNil(t, p.AircraftSpeedKts)
	assert.Equal(t, 120.0, *p.AircraftSpeedKts)
}

func TestParseIsIdempotentAndPure(t *testing.T) {
	in := newInterpreter(t)
	text := "Flight from EGLL to KJFK using a Boeing 747 for 7 hours"
	first := in.Parse(text)
	second := in.Parse(text)
	assert.Equal(t, first, second)
}

func TestFuzzyCityFallback(t *testing.T) {
	in := newInterpreter(t)
	// "londdon" is not a valid ICAO candidate (7 alnum chars... it is) --
	// use a spaced typo so the ICAO heuristic can't claim it.
	p := in.Parse("flight to new yorkk")
	require.NotNil(t, p.Destination)
	assert.Equal(t, KindNearCity, p.Destination.Kind)
	assert.Equal(t, "New York", p.Destination.Name)
}

func TestUnparseableFragmentsStayDefault(t *testing.T) {
	in := newInterpreter(t)
	p := in.Parse("")
	assert.Nil(t, p.Origin)
	assert.Nil(t, p.Destination)
	assert.Empty(t, p.Aircraft)
	assert.Nil(t, p.DurationMinutes)
	assert.False(t, p.IgnoreGuardrails)
}
