package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceZero(t *testing.T) {
	p := Point{Lat: 51.5074, Lon: -0.1278}
	assert.InDelta(t, 0.0, Distance(p, p), 0.001)
}

func TestDistanceKnownPair(t *testing.T) {
	london := Point{Lat: 51.5074, Lon: -0.1278}
	paris := Point{Lat: 48.8566, Lon: 2.3522}
	d := Distance(london, paris)
	// London-Paris great circle distance is ~344km.
	assert.InDelta(t, 344000, d, 10000)
}

func TestDestinationPointRoundTrip(t *testing.T) {
	start := Point{Lat: 40.0, Lon: -100.0}
	dest := DestinationPoint(start, 100000, 90)
	brg := Bearing(start, dest)
	assert.InDelta(t, 90.0, brg, 1.0)
}

func TestNormalizeAngle(t *testing.T) {
	assert.InDelta(t, -10.0, NormalizeAngle(350.0), 0.001)
	assert.InDelta(t, 10.0, NormalizeAngle(-350.0), 0.001)
	assert.InDelta(t, 0.0, NormalizeAngle(360.0), 0.001)
}

func TestEmbeddedCityDataLoads(t *testing.T) {
	require.NotEmpty(t, builtinCities, "embedded citydata.json must parse")
	for key, city := range builtinCities {
		assert.Equal(t, NormalizeForMatch(key), key, "keys are pre-normalized")
		assert.NotEmpty(t, city.Name)
	}
}

func TestCityIndexLookup(t *testing.T) {
	idx := NewCityIndex()
	city, ok := idx.Lookup(NormalizeForMatch("  The London "))
	require.True(t, ok)
	assert.Equal(t, "London", city.Name)
}

func TestCityIndexNear(t *testing.T) {
	idx := NewCityIndex()
	city, ok := idx.Near(51.47, -0.45, 50000)
	require.True(t, ok)
	assert.Equal(t, "London", city.Name)

	_, ok = idx.Near(0, 0, 1000)
	assert.False(t, ok)
}

func TestNormalizeForMatch(t *testing.T) {
	assert.Equal(t, "new york", NormalizeForMatch("New York"))
	assert.Equal(t, "san francisco", NormalizeForMatch("  San,  Francisco "))
	assert.Equal(t, "uk", NormalizeForMatch("The UK"))
}

func TestRegionIndexResolve(t *testing.T) {
	r := NewRegionIndex()
	code, ok := r.Resolve("socal")
	require.True(t, ok)
	assert.Equal(t, "US:SoCal", code)

	_, ok = r.Resolve("nonexistent-region-xyz")
	assert.False(t, ok)
}

func TestRegionIndexContains(t *testing.T) {
	r := NewRegionIndex()
	assert.True(t, r.Contains("US:SoCal", 34.05, -118.24))
	assert.False(t, r.Contains("UK", 34.05, -118.24))
}

func TestRegionIndexDistanceMeters(t *testing.T) {
	r := NewRegionIndex()

	inside, ok := r.DistanceMeters("UK", 51.5, -0.12)
	require.True(t, ok)
	assert.Equal(t, 0.0, inside)

	// Paris is outside the UK box but well under 500km from it.
	outside, ok := r.DistanceMeters("UK", 48.85, 2.35)
	require.True(t, ok)
	assert.Greater(t, outside, 0.0)
	assert.Less(t, outside, 500000.0)

	_, ok = r.DistanceMeters("XX", 0, 0)
	assert.False(t, ok)
}

func TestFuzzyLookup(t *testing.T) {
	idx := NewCityIndex()
	city, ok := idx.FuzzyLookup("seattl", func(q, alias string) bool {
		return len(q) >= 5 && len(alias)-len(q) == 1 && alias[:len(q)] == q
	})
	require.True(t, ok)
	assert.Equal(t, "Seattle", city.Name)
}
