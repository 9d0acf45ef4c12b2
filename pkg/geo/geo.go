// Package geo is the Geo Index: Haversine distance/bearing math plus a
// city/region resolver used by the Prompt Interpreter to turn "near Paris"
// or "Socal" into a coordinate the Discovery Scanner and Scorer can reason
// about with a region focus.
package geo

import (
	"math"
	"strings"

	"github.com/uber/h3-go/v4"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Distance calculates the Haversine distance between two points in meters.
func Distance(p1, p2 Point) float64 {
	const R = 6371000 // Earth radius in meters
	dLat := (p2.Lat - p1.Lat) * (math.Pi / 180.0)
	dLon := (p2.Lon - p1.Lon) * (math.Pi / 180.0)
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// DestinationPoint calculates the destination point from a start point,
// given distance (in meters) and bearing (in degrees).
func DestinationPoint(start Point, distMeters, bearing float64) Point {
	const R = 6371000 // Earth radius in meters
	lat1 := start.Lat * (math.Pi / 180.0)
	lon1 := start.Lon * (math.Pi / 180.0)
	brng := bearing * (math.Pi / 180.0)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(distMeters/R) +
		math.Cos(lat1)*math.Sin(distMeters/R)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(math.Sin(brng)*math.Sin(distMeters/R)*math.Cos(lat1),
		math.Cos(distMeters/R)-math.Sin(lat1)*math.Sin(lat2))

	return Point{
		Lat: lat2 * (180.0 / math.Pi),
		Lon: lon2 * (180.0 / math.Pi),
	}
}

// Bearing calculates the initial bearing (forward azimuth) from p1 to p2 in
// degrees.
func Bearing(p1, p2 Point) float64 {
	lat1 := p1.Lat * (math.Pi / 180.0)
	lat2 := p2.Lat * (math.Pi / 180.0)
	dLon := (p2.Lon - p1.Lon) * (math.Pi / 180.0)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	brng := math.Atan2(y, x)

	return math.Mod(brng*(180.0/math.Pi)+360.0, 360.0)
}

// NormalizeAngle normalizes an angle difference to the range [-180, 180].
func NormalizeAngle(angleDeg float64) float64 {
	for angleDeg > 180 {
		angleDeg -= 360
	}
	for angleDeg < -180 {
		angleDeg += 360
	}
	return angleDeg
}

// NearCity is a resolved named location: a city, or a region centroid used
// as a stand-in when the prompt only names a region.
type NearCity struct {
	Name string
	Lat  float64
	Lon  float64
}

const cellResolution = 4

// cellIndex buckets a point into an H3 cell at a fixed resolution, used as
// the CityIndex's spatial grid key in place of an ad-hoc integer lat/lon
// bucket.
func cellIndex(lat, lon float64) h3.Cell {
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), cellResolution)
	if err != nil {
		return 0
	}
	return cell
}

// CityIndex resolves free-text location names to coordinates by alias match
// against the built-in city table (exact, or fuzzy via FuzzyLookup), finds
// the nearest known city to a point, and maps region nicknames to region
// codes.
type CityIndex struct {
	aliases map[string]NearCity
	grid    map[h3.Cell][]NearCity
	regions *RegionIndex
}

// NewCityIndex builds a CityIndex from the built-in city/region dataset.
// The dataset is intentionally small: it is the same kind of "enough to be
// useful offline" embed the Discovery Scanner's tile exemption tables use,
// not a full geonames mirror.
func NewCityIndex() *CityIndex {
	idx := &CityIndex{
		aliases: make(map[string]NearCity, len(builtinCities)),
		grid:    make(map[h3.Cell][]NearCity),
		regions: NewRegionIndex(),
	}
	for key, city := range builtinCities {
		idx.aliases[key] = city
		cell := cellIndex(city.Lat, city.Lon)
		idx.grid[cell] = append(idx.grid[cell], city)
	}
	return idx
}

// Lookup resolves a normalized name (see NormalizeForMatch) to a known city
// via exact alias match.
func (c *CityIndex) Lookup(normalized string) (NearCity, bool) {
	city, ok := c.aliases[normalized]
	return city, ok
}

// Near returns the nearest known city within radiusM of (lat, lon), scanning
// the H3 cell the point falls in plus its immediate ring of neighbors.
func (c *CityIndex) Near(lat, lon float64, radiusM float64) (NearCity, bool) {
	origin := cellIndex(lat, lon)
	disk, err := h3.GridDisk(origin, 1)
	if err != nil {
		disk = nil
	}
	candidates := append([]h3.Cell{origin}, disk...)

	var best NearCity
	bestDist := math.MaxFloat64
	found := false
	seen := map[h3.Cell]bool{}
	for _, cell := range candidates {
		if seen[cell] {
			continue
		}
		seen[cell] = true
		for _, city := range c.grid[cell] {
			d := Distance(Point{Lat: lat, Lon: lon}, Point{Lat: city.Lat, Lon: city.Lon})
			if d < bestDist {
				bestDist = d
				best = city
				found = true
			}
		}
	}
	if !found || bestDist > radiusM {
		return NearCity{}, false
	}
	return best, true
}

// FuzzyLookup resolves a normalized name against the alias table with a
// caller-supplied near-miss predicate, used by the Prompt Interpreter so a
// one-letter typo still lands on the intended city. The nearest accepted
// alias (shortest name difference) wins.
func (c *CityIndex) FuzzyLookup(normalized string, accept func(query, alias string) bool) (NearCity, bool) {
	if city, ok := c.aliases[normalized]; ok {
		return city, true
	}
	var best NearCity
	bestLen := -1
	found := false
	for alias, city := range c.aliases {
		if !accept(normalized, alias) {
			continue
		}
		diff := len(alias) - len(normalized)
		if diff < 0 {
			diff = -diff
		}
		if !found || diff < bestLen {
			best = city
			bestLen = diff
			found = true
		}
	}
	return best, found
}

// RegionCode resolves a normalized region nickname ("socal", "uk", "france")
// to an ISO-ish region code via the RegionIndex. Only exact nickname matches
// resolve; no containment search is made.
func (c *CityIndex) RegionCode(normalized string) (string, bool) {
	return c.regions.Resolve(normalized)
}

// NormalizeForMatch applies the alias-key normalization used throughout the
// Prompt Interpreter: strip a leading "the ", replace commas with spaces,
// collapse whitespace, and lowercase. Two inputs that normalize to the same
// string are treated as the same place.
func NormalizeForMatch(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	lower = strings.TrimPrefix(lower, "the ")
	lower = strings.ReplaceAll(lower, ",", " ")
	fields := strings.Fields(lower)
	return strings.Join(fields, " ")
}
