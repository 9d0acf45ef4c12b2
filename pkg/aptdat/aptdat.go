// Package aptdat parses X-Plane apt.dat airport files and scans Earth/Mars
// nav data directories for tile coverage, as used by the Discovery Scanner
// to enumerate a scenery pack's content.
package aptdat

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"xaddonmgr/pkg/apperr"
	"xaddonmgr/pkg/model"
)

// Row codes for the apt.dat header lines we care about. See the X-Plane
// Scenery Gateway apt.dat spec for the full grammar; only airport headers
// and runway rows matter for classification and scoring.
const (
	rowLandAirport = "1"
	rowSeaplane    = "16"
	rowHeliport    = "17"
	rowRunway      = "100" // land runway
	rowWaterRunway = "101"
	rowHelipad     = "102"
)

// ParseAptDat parses an apt.dat file, returning airports sorted by id and
// deduplicated by id. Malformed lines are skipped with a structured
// diagnostic rather than aborting the parse.
func ParseAptDat(path string) ([]model.Airport, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{apperr.NewIOErr("open", path, err)}
	}
	defer f.Close()

	var (
		airports []model.Airport
		cur      *model.Airport
		errs     []error
		lineNo   int
	)

	flush := func() {
		if cur != nil {
			airports = append(airports, *cur)
			cur = nil
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		code := fields[0]

		switch code {
		case rowLandAirport, rowSeaplane, rowHeliport:
			flush()
			a, err := parseAirportHeader(fields, code)
			if err != nil {
				errs = append(errs, apperr.NewParseErr(path, lineNo, err.Error(), err))
				continue
			}
			cur = &a
		case rowRunway:
			if cur == nil {
				continue
			}
			applyRunway(cur, fields)
		case rowWaterRunway:
			if cur == nil {
				continue
			}
			soft := model.SurfaceWater
			cur.Surface = &soft
		case rowHelipad:
			if cur == nil {
				continue
			}
			applyHelipad(cur, fields)
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		errs = append(errs, apperr.NewIOErr("scan", path, err))
	}

	return dedupAirports(airports), errs
}

func parseAirportHeader(fields []string, code string) (model.Airport, error) {
	// 1 <elevation> <deprecated> <deprecated> <ICAO/id> <name...>
	if len(fields) < 5 {
		return model.Airport{}, fmt.Errorf("airport header has too few fields")
	}
	id := fields[4]
	name := strings.Join(fields[5:], " ")
	if name == "" {
		name = id
	}
	kind := model.AirportLand
	switch code {
	case rowSeaplane:
		kind = model.AirportSeaplane
	case rowHeliport:
		kind = model.AirportHeliport
	}
	return model.Airport{ID: id, Name: name, Kind: kind}, nil
}

func applyRunway(a *model.Airport, fields []string) {
	// 100 <width> <surface> ... <lat1> <lon1> ... <lat2> <lon2> ...
	if len(fields) < 11 {
		return
	}
	surfaceCode, err := strconv.Atoi(fields[2])
	if err == nil {
		s := surfaceFromCode(surfaceCode)
		a.Surface = &s
	}
	lat1, err1 := strconv.ParseFloat(fields[9], 64)
	lon1, err2 := strconv.ParseFloat(fields[10], 64)
	if err1 == nil && err2 == nil && a.Lat == nil {
		a.Lat = &lat1
		a.Lon = &lon1
	}
	if len(fields) >= 20 {
		lat2, e1 := strconv.ParseFloat(fields[18], 64)
		lon2, e2 := strconv.ParseFloat(fields[19], 64)
		if e1 == nil && e2 == nil && a.Lat != nil {
			length := haversineMeters(*a.Lat, *a.Lon, lat2, lon2)
			if a.MaxRunwayLenM == nil || length > *a.MaxRunwayLenM {
				a.MaxRunwayLenM = &length
			}
		}
	}
}

func applyHelipad(a *model.Airport, fields []string) {
	if len(fields) < 4 {
		return
	}
	lat, err1 := strconv.ParseFloat(fields[2], 64)
	lon, err2 := strconv.ParseFloat(fields[3], 64)
	if err1 == nil && err2 == nil && a.Lat == nil {
		a.Lat = &lat
		a.Lon = &lon
	}
}

func surfaceFromCode(code int) model.Surface {
	switch code {
	case 1, 2:
		return model.SurfaceHard
	case 13, 14, 15:
		return model.SurfaceWater
	default:
		return model.SurfaceSoft
	}
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const r = 6371000.0
	dLat := (lat2 - lat1) * (math.Pi / 180.0)
	dLon := (lon2 - lon1) * (math.Pi / 180.0)
	rlat1 := lat1 * (math.Pi / 180.0)
	rlat2 := lat2 * (math.Pi / 180.0)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(rlat1)*math.Cos(rlat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return r * c
}

func dedupAirports(airports []model.Airport) []model.Airport {
	seen := map[string]bool{}
	var out []model.Airport
	for _, a := range airports {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var tileDirPattern = regexp.MustCompile(`^[+-]\d{2}[+-]\d{3}$`)
var dsfTilePattern = regexp.MustCompile(`^([+-]\d{2})([+-]\d{3})`)

// exemptSubstrings are path substrings that exempt a pack from tile
// enumeration, matched case-insensitively. The Global Airports pack is
// never exempt even though its path contains none of these.
var exemptSubstrings = []string{"resources", "default scenery", "openSceneryX", "world2xplane"}

// IsTileExempt reports whether pack path is exempt from tile enumeration.
func IsTileExempt(packPath string) bool {
	lower := strings.ToLower(packPath)
	for _, s := range exemptSubstrings {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// MaxTilesPerPack is the threshold above which a pack's merged tile set
// is cleared: a continent-scale pack would dominate map rendering and the
// sort does not depend on tile count. Applied by the caller against the
// pack total, after tiles from every root have been merged.
const MaxTilesPerPack = 100

// ScanTiles enumerates one root's (lat, lon) coverage tiles by locating an
// Earth/Mars nav data directory and reading .dsf filenames. Packs can have
// several roots; merging and the MaxTilesPerPack cut are the caller's job.
func ScanTiles(packRoot string) ([]model.Tile, error) {
	navDir := findNavDataDir(packRoot)
	if navDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(navDir)
	if err != nil {
		return nil, apperr.NewIOErr("readdir", navDir, err)
	}

	seen := map[model.Tile]bool{}
	var tiles []model.Tile
	for _, e := range entries {
		if !e.IsDir() || !tileDirPattern.MatchString(e.Name()) {
			continue
		}
		sub := filepath.Join(navDir, e.Name())
		dsfEntries, err := os.ReadDir(sub)
		if err != nil {
			continue
		}
		for _, f := range dsfEntries {
			if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".dsf") {
				continue
			}
			m := dsfTilePattern.FindStringSubmatch(f.Name())
			if m == nil {
				continue
			}
			lat, err1 := strconv.Atoi(m[1])
			lon, err2 := strconv.Atoi(m[2])
			if err1 != nil || err2 != nil {
				continue
			}
			t := model.Tile{Lat: lat, Lon: lon}
			if !seen[t] {
				seen[t] = true
				tiles = append(tiles, t)
			}
		}
	}

	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Lat != tiles[j].Lat {
			return tiles[i].Lat < tiles[j].Lat
		}
		return tiles[i].Lon < tiles[j].Lon
	})

	return tiles, nil
}

func findNavDataDir(packRoot string) string {
	candidates := []string{"Earth nav data", "Mars nav data"}
	entries, err := os.ReadDir(packRoot)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, c := range candidates {
			if strings.EqualFold(e.Name(), c) {
				return filepath.Join(packRoot, e.Name())
			}
		}
	}
	return ""
}

// FindAptDat locates a pack's apt.dat file: first under a case-insensitive
// "Earth nav data" directory, then directly in the pack root.
func FindAptDat(packRoot string) string {
	entries, err := os.ReadDir(packRoot)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() && strings.EqualFold(e.Name(), "Earth nav data") {
			candidate := filepath.Join(packRoot, e.Name(), "apt.dat")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	direct := filepath.Join(packRoot, "apt.dat")
	if _, err := os.Stat(direct); err == nil {
		return direct
	}
	return ""
}
