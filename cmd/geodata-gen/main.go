// Command geodata-gen converts a populated-places shapefile (e.g. a Natural
// Earth extract) into the city-alias JSON table embedded at
// pkg/geo/citydata.json. Offline tooling; not part of the runtime.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"

	"xaddonmgr/pkg/geo"
)

type city struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func main() {
	inputPath := flag.String("input", "", "Path to input .shp file of populated places")
	outputPath := flag.String("output", "pkg/geo/citydata.json", "Path to output .json alias table")
	minPop := flag.Int("min-pop", 500000, "Minimum population to include")
	flag.Parse()

	if *inputPath == "" || *outputPath == "" {
		flag.Usage()
		log.Fatal("Input and output paths are required")
	}

	if err := run(*inputPath, *outputPath, *minPop); err != nil {
		log.Fatal(err)
	}
}

func run(inputPath, outputPath string, minPop int) error {
	shape, err := shp.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer shape.Close()

	fields := shape.Fields()
	nameIdx, popIdx := -1, -1
	for i, f := range fields {
		switch strings.ToUpper(strings.TrimRight(f.String(), "\x00")) {
		case "NAME", "NAMEASCII":
			if nameIdx < 0 {
				nameIdx = i
			}
		case "POP_MAX", "POP_EST":
			if popIdx < 0 {
				popIdx = i
			}
		}
	}
	if nameIdx < 0 {
		return fmt.Errorf("no NAME field in %s", inputPath)
	}

	cities := map[string]city{}
	for shape.Next() {
		n, p := shape.Shape()
		pt, ok := p.(*shp.Point)
		if !ok {
			continue
		}

		name := shape.ReadAttribute(n, nameIdx)
		if name == "" {
			continue
		}
		if popIdx >= 0 {
			var pop int
			fmt.Sscanf(shape.ReadAttribute(n, popIdx), "%d", &pop)
			if pop < minPop {
				continue
			}
		}

		// Key exactly the way the resolver normalizes queries, so the
		// embedded table and lookup agree.
		key := geo.NormalizeForMatch(name)
		cities[key] = city{Name: name, Lat: pt.Y, Lon: pt.X}
	}
	if err := shape.Err(); err != nil {
		return fmt.Errorf("error iterating shapes: %w", err)
	}

	data, err := json.MarshalIndent(cities, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cities: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("Wrote %d cities to %s\n", len(cities), outputPath)
	return nil
}
