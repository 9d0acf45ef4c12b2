package geo

import (
	_ "embed"
	"encoding/json"
	"log/slog"
)

// citydataJSON is the embedded city-alias table: enough well-known cities
// for "near <city>" resolution to work offline. Regenerate with
// cmd/geodata-gen from a populated-places shapefile when the table needs
// to grow. Keys are pre-normalized via NormalizeForMatch.
//
//go:embed citydata.json
var citydataJSON []byte

type cityRecord struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

var builtinCities = loadBuiltinCities()

func loadBuiltinCities() map[string]NearCity {
	var records map[string]cityRecord
	if err := json.Unmarshal(citydataJSON, &records); err != nil {
		// A broken embed is a build defect, not a runtime condition; keep
		// the index usable for region-only resolution.
		slog.Error("failed to parse embedded city data", "error", err)
		return map[string]NearCity{}
	}
	out := make(map[string]NearCity, len(records))
	for key, r := range records {
		out[key] = NearCity{Name: r.Name, Lat: r.Lat, Lon: r.Lon}
	}
	return out
}
