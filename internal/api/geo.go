package api

import (
	"net/http"
	"strconv"

	"xaddonmgr/pkg/geo"
)

// GeoHandler answers the UI's map-adjacent questions: nearest known city
// to a point, and distance to a focus region.
type GeoHandler struct {
	Cities  *geo.CityIndex
	Regions *geo.RegionIndex
}

// nearCityRadiusM bounds the "near city" search, roughly 50 nm.
const nearCityRadiusM = 93000

func (h *GeoHandler) HandleNear(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "lat and lon required", http.StatusBadRequest)
		return
	}

	resp := map[string]any{}
	if city, ok := h.Cities.Near(lat, lon, nearCityRadiusM); ok {
		resp["city"] = city
	}
	if region := r.URL.Query().Get("region"); region != "" {
		if code, ok := h.Regions.Search(region); ok {
			if dist, ok := h.Regions.DistanceMeters(code, lat, lon); ok {
				resp["region"] = code
				resp["region_distance_m"] = dist
				resp["in_region"] = dist == 0
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
