// Package prompt implements the Prompt Interpreter: a single sequential
// pass over a free-text flight request that extracts structured origin,
// destination, aircraft, duration, and keyword constraints. It consumes the
// same user-editable rule tables as the scenery scorer and never fails;
// unparseable fragments are left at their defaults.
package prompt

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/hbollon/go-edlib"

	"xaddonmgr/pkg/config"
	"xaddonmgr/pkg/geo"
	"xaddonmgr/pkg/model"
)

// Location kind tags used in model.FlightPromptLocation.
const (
	KindHere      = "here"
	KindAny       = "any"
	KindRegion    = "region"
	KindNearCity  = "near_city"
	KindICAO      = "icao"
	KindNameQuery = "name_query"
)

// Canonical keyword values.
const (
	DurationShort  = "short"
	DurationMedium = "medium"
	DurationLong   = "long"
	DurationHaul   = "haul"

	SurfaceSoft  = "soft"
	SurfaceHard  = "hard"
	SurfaceWater = "water"

	TypeBush     = "bush"
	TypeRegional = "regional"

	TimeDawn  = "dawn"
	TimeDay   = "day"
	TimeDusk  = "dusk"
	TimeNight = "night"
)

// Interpreter parses free-text flight requests.
type Interpreter struct {
	heuristics *config.Heuristics
	cities     *geo.CityIndex
}

// New builds an Interpreter over the given rule tables and geo index. Both
// may be nil; parsing then relies purely on the built-in alias tables.
func New(h *config.Heuristics, cities *geo.CityIndex) *Interpreter {
	if cities == nil {
		cities = geo.NewCityIndex()
	}
	return &Interpreter{heuristics: h, cities: cities}
}

var (
	locRE  = regexp.MustCompile(`(?:flight\s+from\s+|\bfrom\s+|^flight\s+)?(.+?)\s+\bto\b\s+(.+?)(\s+\busing\b|\s+\bin\b|\s+\bwith\b|\s+\bfor\b|\s+\bvia\b|$)`)
	toRE   = regexp.MustCompile(`(?:^(?:flight|fly|flying|heading|going|headed)\s+to\s+|^to\s+|^bound\s+for\s+)(.+?)(\s+\busing\b|\s+\bin\b|\s+\bwith\b|\s+\bfor\b|\s+\bvia\b|$)`)
	fromRE = regexp.MustCompile(`\bfrom\b\s+([a-zA-Z0-9\s,]+)`)
	acfRE  = regexp.MustCompile(`\b(?:using|in|with)\b(?:\s+a|\s+an)?\s+(.+?)(\s+\bfor\b|\s+\bfrom\b|\s+\blanding\b|\s+\barriving\b|\s+\bdeparting\b|$)`)
	durRE  = regexp.MustCompile(`(?:for\s+)?\b(\d+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|a|an)\s+(hour|hr|minute|min|m)s?\b`)
)

// noiseOrigins are words the "X to Y" pattern can capture as an origin when
// the request is really destination-only ("quick flight to Germany").
var noiseOrigins = []string{
	"flight", "hop", "trip", "run", "journey", "a", "the",
	"fly", "flying", "heading", "going", "headed", "bound",
}

// Parse interprets text in a single lowercased pass. It is pure and
// idempotent; it never returns an error.
func (in *Interpreter) Parse(text string) model.FlightPrompt {
	var p model.FlightPrompt
	clean := strings.ToLower(text)

	if strings.Contains(clean, "ignore guardrails") {
		p.IgnoreGuardrails = true
		clean = strings.ReplaceAll(clean, "ignore guardrails", "")
	}

	p.Keywords.Duration = in.matchKeyword("duration", clean, false, mapDuration, builtinDuration)
	p.Keywords.Surface = in.matchKeyword("surface", clean, false, mapSurface, builtinSurface)
	p.Keywords.FlightType = in.matchKeyword("flight_type", clean, false, mapFlightType, builtinFlightType)
	if p.Keywords.FlightType == TypeBush && p.Keywords.Surface == "" {
		// Bush flying implies unpaved strips.
		p.Keywords.Surface = SurfaceSoft
	}
	p.Keywords.Time = in.matchKeyword("time", clean, true, mapTime, builtinTime)
	p.Keywords.Weather = in.matchKeyword("weather", clean, true, mapWeather, builtinWeather)

	in.parseLocations(clean, &p)
	in.parseAircraft(clean, &p)
	parseDuration(clean, &p)

	return p
}

// matchKeyword resolves one keyword category: user rules in descending
// priority first, then the built-in alias table, both with the category's
// matching discipline (word-boundary for time/weather, substring
// otherwise).
func (in *Interpreter) matchKeyword(category, text string, wordBoundary bool, mapValue func(string) string, builtin []aliasEntry) string {
	matches := func(kw string) bool {
		kw = strings.ToLower(kw)
		if wordBoundary {
			return containsPhrase(text, kw)
		}
		return strings.Contains(text, kw)
	}

	if in.heuristics != nil {
		for _, rule := range in.heuristics.RulesFor(category) {
			for _, kw := range rule.Keywords {
				if matches(kw) {
					return mapValue(rule.MappedValue)
				}
			}
		}
	}

	for _, e := range builtin {
		for _, kw := range e.keywords {
			if matches(kw) {
				return e.value
			}
		}
	}
	return ""
}

type aliasEntry struct {
	keywords []string
	value    string
}

// Built-in alias tables, checked in order; the first hit wins. Longer,
// more specific phrases come before the generic words they contain.
var (
	builtinDuration = []aliasEntry{
		{[]string{"long haul", "ultra long", "transatlantic", "transpacific", "transcontinental"}, DurationHaul},
		{[]string{"short", "hop", "quick"}, DurationShort},
		{[]string{"medium"}, DurationMedium},
		{[]string{"long"}, DurationLong},
	}
	builtinSurface = []aliasEntry{
		{[]string{"grass", "dirt", "gravel", "strip", "unpaved"}, SurfaceSoft},
		{[]string{"paved", "tarmac", "concrete", "asphalt"}, SurfaceHard},
		{[]string{"water", "seaplane", "floatplane", "amphibian"}, SurfaceWater},
	}
	builtinFlightType = []aliasEntry{
		{[]string{"bush", "backcountry"}, TypeBush},
		{[]string{"regional"}, TypeRegional},
	}
	builtinTime = []aliasEntry{
		{[]string{"dawn", "sunrise", "morning", "golden hour", "golden"}, TimeDawn},
		{[]string{"day", "daytime", "daylight", "afternoon", "noon"}, TimeDay},
		{[]string{"dusk", "sunset", "evening", "twilight"}, TimeDusk},
		{[]string{"night", "midnight", "dark"}, TimeNight},
	}
	builtinWeather = []aliasEntry{
		{[]string{"clear", "sunny", "fair", "vfr"}, "clear"},
		{[]string{"cloudy", "overcast", "clouds"}, "cloudy"},
		{[]string{"storm", "thunder", "thunderstorm", "lightning", "severe"}, "storm"},
		{[]string{"gusty", "windy", "breezy", "turbulent", "gusts"}, "gusty"},
		{[]string{"calm", "still", "smooth", "light winds", "glassy"}, "calm"},
		{[]string{"snow", "blizzard", "ice"}, "snow"},
		{[]string{"rain", "showers", "drizzle", "wet"}, "rain"},
		{[]string{"fog", "mist", "haze", "ifr", "low vis"}, "fog"},
	}
)

// mapDuration folds a user rule's mapped_value onto the canonical enum.
func mapDuration(v string) string {
	switch strings.ToLower(v) {
	case "short", "hop", "quick", "sprint":
		return DurationShort
	case "medium", "mid":
		return DurationMedium
	case "haul", "long haul", "ultra long", "intercontinental":
		return DurationHaul
	default:
		return DurationLong
	}
}

func mapSurface(v string) string {
	switch strings.ToLower(v) {
	case "hard", "paved", "tarmac", "asphalt":
		return SurfaceHard
	case "water", "seaplane", "float":
		return SurfaceWater
	default:
		return SurfaceSoft
	}
}

func mapFlightType(v string) string {
	switch strings.ToLower(v) {
	case "bush", "backcountry", "remote", "stol":
		return TypeBush
	default:
		return TypeRegional
	}
}

func mapTime(v string) string {
	switch strings.ToLower(v) {
	case "dawn", "sunrise", "morning", "golden hour", "golden":
		return TimeDawn
	case "dusk", "sunset", "evening", "twilight", "civil twilight":
		return TimeDusk
	case "night", "midnight", "dark", "night flight", "moonlight", "late night":
		return TimeNight
	default:
		return TimeDay
	}
}

func mapWeather(v string) string {
	switch strings.ToLower(v) {
	case "cloudy", "overcast", "clouds", "mvfr", "marginal", "scattered", "few clouds", "broken":
		return "cloudy"
	case "storm", "thunder", "thunderstorm", "severe", "lifr", "low ifr", "challenge", "hard mode":
		return "storm"
	case "gusty", "windy", "breezy", "turbulent", "gusts":
		return "gusty"
	case "calm", "still", "smooth", "no wind", "light winds", "glassy":
		return "calm"
	case "snow", "blizzard", "ice", "wintry", "winter", "frozen", "snowy", "icy":
		return "snow"
	case "rain", "showers", "wet":
		return "rain"
	case "fog", "mist", "haze", "ifr", "instrument", "smoky":
		return "fog"
	default:
		return "clear"
	}
}

// containsPhrase reports whether phrase occurs in text without alphabetic
// neighbours, so "day" does not match inside "today" or "daylight".
func containsPhrase(text, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		prevOK := i == 0 || !isAlpha(text[i-1])
		nextOK := end == len(text) || !isAlpha(text[end])
		if prevOK && nextOK {
			return true
		}
		start = i + 1
	}
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNoiseOrigin(s string) bool {
	for _, n := range noiseOrigins {
		if s == n || strings.HasSuffix(s, " "+n) {
			return true
		}
	}
	return false
}

// parseLocations tries the origin/destination patterns in order: "from X
// to Y" variants, destination-only "to X", origin-only "from X", then a
// bare region/city name as destination.
func (in *Interpreter) parseLocations(clean string, p *model.FlightPrompt) {
	if caps := locRE.FindStringSubmatch(clean); caps != nil {
		originStr := strings.TrimSpace(caps[1])
		destStr := strings.TrimSpace(caps[2])
		if isNoiseOrigin(originStr) {
			p.Destination = in.resolveLocation(destStr)
		} else {
			p.Origin = in.resolveLocation(originStr)
			p.Destination = in.resolveLocation(destStr)
		}
		return
	}

	if caps := toRE.FindStringSubmatch(clean); caps != nil {
		p.Destination = in.resolveLocation(strings.TrimSpace(caps[1]))
		return
	}

	if caps := fromRE.FindStringSubmatch(clean); caps != nil {
		raw := strings.TrimSpace(caps[1])
		for _, term := range []string{" for ", " using ", " in ", " with "} {
			if i := strings.Index(raw, term); i >= 0 {
				raw = raw[:i]
			}
		}
		raw = strings.TrimSpace(raw)
		if raw != "" {
			p.Origin = in.resolveLocation(raw)
		}
	}

	if p.Origin == nil && p.Destination == nil {
		// Bare region/city name with no directional keyword.
		if loc := in.tryAlias(geo.NormalizeForMatch(clean)); loc != nil {
			p.Destination = loc
		}
	}
}

// resolveLocation turns one location fragment into a constraint. City and
// region aliases are checked before the ICAO heuristic so names like "Lima"
// resolve to the city, not a code.
func (in *Interpreter) resolveLocation(s string) *model.FlightPromptLocation {
	s = strings.TrimSpace(strings.TrimPrefix(s, "the "))
	if s == "" {
		return nil
	}
	switch s {
	case "here", "current location":
		return &model.FlightPromptLocation{Kind: KindHere}
	case "anywhere", "any", "random":
		return &model.FlightPromptLocation{Kind: KindAny}
	}

	if loc := in.tryAlias(geo.NormalizeForMatch(s)); loc != nil {
		return loc
	}

	if len(s) >= 4 && len(s) <= 7 && isAlnum(s) {
		return &model.FlightPromptLocation{Kind: KindICAO, ICAO: strings.ToUpper(s)}
	}

	return in.nameQuery(s)
}

// tryAlias resolves a normalized string against the city table, then the
// region index.
func (in *Interpreter) tryAlias(normalized string) *model.FlightPromptLocation {
	if normalized == "" {
		return nil
	}
	if city, ok := in.cities.Lookup(normalized); ok {
		return &model.FlightPromptLocation{Kind: KindNearCity, Name: city.Name, Lat: city.Lat, Lon: city.Lon}
	}
	if code, ok := in.cities.RegionCode(normalized); ok {
		return &model.FlightPromptLocation{Kind: KindRegion, Name: code}
	}
	return nil
}

// nameQuery wraps an unrecognised fragment as an airport-name query, first
// trying a fuzzy city-alias match so a one-letter typo still lands on the
// intended city.
func (in *Interpreter) nameQuery(s string) *model.FlightPromptLocation {
	norm := geo.NormalizeForMatch(s)
	if city, ok := in.cities.FuzzyLookup(norm, fuzzyMatcher); ok {
		return &model.FlightPromptLocation{Kind: KindNearCity, Name: city.Name, Lat: city.Lat, Lon: city.Lon}
	}
	return &model.FlightPromptLocation{Kind: KindNameQuery, Name: s}
}

// fuzzyMatcher accepts a candidate alias within Levenshtein distance 1 of
// the query; anything looser starts confusing distinct city names.
func fuzzyMatcher(query, alias string) bool {
	if len(query) < 5 {
		return false
	}
	dist := edlib.LevenshteinDistance(query, alias)
	return dist == 1
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if !(b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9') {
			return false
		}
	}
	return len(s) > 0
}

// weatherNoise are acf-pattern captures that describe conditions, not
// aircraft ("in a storm", "in vfr conditions").
var weatherNoise = map[string]bool{
	"vfr": true, "vfr conditions": true, "ifr": true, "ifr conditions": true,
	"a storm": true, "storm": true, "the rain": true, "rain": true,
	"the dark": true, "dark": true, "night": true, "the night": true,
	"snow": true, "heavy snow": true, "fog": true, "instrument": true,
	"visual": true, "clear skies": true, "bad weather": true, "good weather": true,
	"gusty": true, "gusty conditions": true, "gusty winds": true,
	"windy": true, "windy conditions": true, "breezy": true,
	"calm": true, "calm conditions": true, "turbulent": true, "turbulence": true,
	"stormy": true, "stormy conditions": true, "clear weather": true,
	"sunny": true, "overcast": true, "cloudy": true,
}

// modifierPhrases are multi-word duration/type phrases stripped before the
// aircraft pattern runs, so "using Boeing long haul" captures "boeing".
// Single words like "long" are left alone to keep names like "Long-EZ"
// intact.
var modifierPhrases = []string{
	"short flight", "short hop", "long haul", "long flight", "medium flight",
	"bush flight", "bush trip", "backcountry flight", "backcountry trip",
	"quick trip",
}

func (in *Interpreter) parseAircraft(clean string, p *model.FlightPrompt) {
	if in.heuristics != nil {
		for _, rule := range in.heuristics.RulesFor("aircraft") {
			for _, kw := range rule.Keywords {
				if containsPhrase(clean, strings.ToLower(kw)) {
					p.Aircraft = rule.MappedValue
					p.AircraftMinNM = rule.MinDistanceNM
					p.AircraftMaxNM = rule.MaxDistanceNM
					p.AircraftSpeedKts = rule.SpeedKts
					return
				}
			}
		}
	}

	acfInput := clean
	for _, phrase := range modifierPhrases {
		acfInput = strings.ReplaceAll(acfInput, phrase, "")
	}

	caps := acfRE.FindStringSubmatch(acfInput)
	if caps == nil {
		return
	}
	acf := strings.TrimSpace(caps[1])
	if acf == "" || weatherNoise[acf] {
		return
	}
	p.Aircraft = normalizeAircraft(acf)
}

// normalizeAircraft folds conversational aircraft descriptions onto the
// fixed tag set; explicit type names pass through unchanged.
func normalizeAircraft(acf string) string {
	lower := strings.ToLower(acf)
	switch {
	case strings.Contains(lower, "biz jet"), strings.Contains(lower, "bizjet"),
		strings.Contains(lower, "business"), strings.Contains(lower, "corporate"),
		strings.Contains(lower, "private jet"):
		return "Business Jet"
	case strings.Contains(lower, "airliner"), strings.Contains(lower, "commercial"),
		strings.Contains(lower, "passenger"), strings.Contains(lower, "heavy"),
		strings.Contains(lower, "jet"):
		return "Airliner"
	case lower == "ga", strings.Contains(lower, "general aviation"),
		strings.Contains(lower, "small plane"), strings.Contains(lower, "light aircraft"),
		strings.Contains(lower, "propeller"), strings.Contains(lower, "piston"),
		strings.Contains(lower, "civilian"), strings.Contains(lower, "puddle"),
		strings.Contains(lower, "tail"), strings.Contains(lower, "float"),
		strings.Contains(lower, "sea"),
		strings.Contains(lower, "turboprop"), strings.Contains(lower, "turbo prop"),
		strings.Contains(lower, "twin engine"), strings.Contains(lower, "twin-engine"),
		strings.Contains(lower, "single engine"), strings.Contains(lower, "single-engine"):
		return "General Aviation"
	case strings.Contains(lower, "glass"), strings.Contains(lower, "g1000"),
		strings.Contains(lower, "modern panel"):
		return "G1000"
	case strings.Contains(lower, "steam"), strings.Contains(lower, "analog"):
		return "Analog"
	case strings.Contains(lower, "warbird"), strings.Contains(lower, "wwii"),
		strings.Contains(lower, "fighter"), strings.Contains(lower, "military"),
		strings.Contains(lower, "combat"), strings.Contains(lower, "bomber"):
		return "Military"
	case strings.Contains(lower, "cargo"), strings.Contains(lower, "freight"),
		strings.Contains(lower, "transport"):
		return "Cargo"
	case strings.Contains(lower, "heli"), strings.Contains(lower, "chopper"),
		strings.Contains(lower, "rotor"):
		return "Helicopter"
	case strings.Contains(lower, "glider"), strings.Contains(lower, "sailplane"):
		return "Glider"
	default:
		return acf
	}
}

var wordNumbers = map[string]int{
	"one": 1, "a": 1, "an": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12,
}

func parseDuration(clean string, p *model.FlightPrompt) {
	caps := durRE.FindStringSubmatch(clean)
	if caps == nil {
		return
	}
	val, ok := wordNumbers[caps[1]]
	if !ok {
		n, err := strconv.Atoi(caps[1])
		if err != nil {
			n = 1
		}
		val = n
	}
	minutes := val
	if caps[2] == "hour" || caps[2] == "hr" {
		minutes = val * 60
	}
	p.DurationMinutes = &minutes
}
