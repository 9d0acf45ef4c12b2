package geo

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
)

// regionDef is one entry in the built-in region table: a nickname mapping
// to a region code plus a coarse bounding polygon used for point-in-region
// containment checks (the Scorer's region-focus matching, and the API's
// distance-to-region lookup).
type regionDef struct {
	Code string
	// box is (minLon, minLat, maxLon, maxLat); regions are coarse rectangles
	// since the precise country/state polygon dataset is not embedded.
	box [4]float64
}

func rectPolygon(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	ring := orb.Ring{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}
	return orb.Polygon{ring}
}

// builtinRegions is a coarse nickname -> bounding-box table. It trades
// precision (no real coastline/border data is embedded) for coverage of
// the common nicknames pilots actually type.
var builtinRegions = map[string]regionDef{
	"uk":             {Code: "UK", box: [4]float64{-8.6, 49.8, 1.8, 60.9}},
	"united kingdom": {Code: "UK", box: [4]float64{-8.6, 49.8, 1.8, 60.9}},
	"england":        {Code: "UK", box: [4]float64{-6.4, 49.9, 1.8, 55.8}},
	"scotland":       {Code: "UK", box: [4]float64{-8.6, 54.6, -0.7, 60.9}},
	"usa":            {Code: "US", box: [4]float64{-124.8, 24.4, -66.9, 49.4}},
	"us":             {Code: "US", box: [4]float64{-124.8, 24.4, -66.9, 49.4}},
	"united states":  {Code: "US", box: [4]float64{-124.8, 24.4, -66.9, 49.4}},
	"socal":          {Code: "US:SoCal", box: [4]float64{-120.5, 32.5, -114.1, 35.8}},
	"southern california": {Code: "US:SoCal", box: [4]float64{-120.5, 32.5, -114.1, 35.8}},
	"norcal":         {Code: "US:NorCal", box: [4]float64{-124.5, 36.0, -119.0, 42.0}},
	"northern california": {Code: "US:NorCal", box: [4]float64{-124.5, 36.0, -119.0, 42.0}},
	"alaska":         {Code: "US:AK", box: [4]float64{-179.2, 51.2, -129.9, 71.5}},
	"hawaii":         {Code: "US:HI", box: [4]float64{-178.4, 18.9, -154.8, 28.5}},
	"florida":        {Code: "US:FL", box: [4]float64{-87.6, 24.4, -80.0, 31.0}},
	"france":         {Code: "FR", box: [4]float64{-5.2, 41.3, 9.6, 51.1}},
	"germany":        {Code: "DE", box: [4]float64{5.9, 47.3, 15.0, 55.1}},
	"italy":          {Code: "IT", box: [4]float64{6.6, 36.6, 18.5, 47.1}},
	"spain":          {Code: "ES", box: [4]float64{-9.3, 36.0, 4.3, 43.8}},
	"switzerland":    {Code: "CH", box: [4]float64{5.9, 45.8, 10.5, 47.8}},
	"japan":          {Code: "JP", box: [4]float64{129.4, 31.0, 145.8, 45.5}},
	"australia":      {Code: "AU", box: [4]float64{113.2, -43.6, 153.6, -10.7}},
	"new zealand":    {Code: "NZ", box: [4]float64{166.4, -47.3, 178.6, -34.4}},
	"canada":         {Code: "CA", box: [4]float64{-141.0, 41.7, -52.6, 83.1}},
	"caribbean":      {Code: "Caribbean", box: [4]float64{-85.0, 10.0, -59.0, 27.0}},
	"alps":           {Code: "Alps", box: [4]float64{5.0, 44.0, 16.5, 48.5}},
}

// RegionIndex resolves region nicknames to codes and supports point-in-region
// containment checks over the built-in bounding-box table.
type RegionIndex struct {
	polys map[string]orb.Polygon
}

// NewRegionIndex builds a RegionIndex from the built-in table.
func NewRegionIndex() *RegionIndex {
	idx := &RegionIndex{polys: make(map[string]orb.Polygon, len(builtinRegions))}
	// Nicknames sharing a code can carry different boxes (uk, england,
	// scotland); the code's polygon is the box enclosing all of them.
	boxes := make(map[string][4]float64, len(builtinRegions))
	for _, def := range builtinRegions {
		b, ok := boxes[def.Code]
		if !ok {
			b = def.box
		}
		b[0], b[1] = math.Min(b[0], def.box[0]), math.Min(b[1], def.box[1])
		b[2], b[3] = math.Max(b[2], def.box[2]), math.Max(b[3], def.box[3])
		boxes[def.Code] = b
	}
	for code, b := range boxes {
		idx.polys[code] = rectPolygon(b[0], b[1], b[2], b[3])
	}
	return idx
}

// Resolve maps a normalized nickname to its region code.
func (r *RegionIndex) Resolve(normalized string) (string, bool) {
	def, ok := builtinRegions[normalized]
	if !ok {
		return "", false
	}
	return def.Code, true
}

// Contains reports whether (lat, lon) falls inside the named region's
// bounding polygon.
func (r *RegionIndex) Contains(code string, lat, lon float64) bool {
	poly, ok := r.polys[code]
	if !ok {
		return false
	}
	return containsPoint(poly, orb.Point{lon, lat})
}

// DistanceMeters returns the approximate distance from (lat, lon) to the
// named region's boundary, 0 when the point is inside it. Distances are
// computed on the degree grid and scaled by latitude, which is accurate
// enough for "how far outside the focus region is this tile" answers.
func (r *RegionIndex) DistanceMeters(code string, lat, lon float64) (float64, bool) {
	poly, ok := r.polys[code]
	if !ok {
		return 0, false
	}
	pt := orb.Point{lon, lat}
	if containsPoint(poly, pt) {
		return 0, true
	}
	return degreesToMeters(distanceToGeometry(pt, poly), lat), true
}

// Search finds the region nickname whose normalized form contains s or is
// contained by s, used as the Prompt Interpreter's fallback when s isn't an
// exact alias match (mirrors the original's "falls back to
// geo::RegionIndex::new().search(s)").
func (r *RegionIndex) Search(s string) (string, bool) {
	norm := NormalizeForMatch(s)
	if code, ok := r.Resolve(norm); ok {
		return code, true
	}
	for nickname, def := range builtinRegions {
		if strings.Contains(norm, nickname) || strings.Contains(nickname, norm) {
			return def.Code, true
		}
	}
	return "", false
}
