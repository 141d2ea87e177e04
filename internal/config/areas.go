package config

import (
	"fmt"
	"os"

	"github.com/couchcryptid/accident-hotspot-service/internal/domain"
	"github.com/couchcryptid/accident-hotspot-service/internal/hotspot"
	"github.com/goccy/go-yaml"
	"github.com/paulmach/orb"
)

type areaFile struct {
	Areas []areaEntry `yaml:"areas"`
}

type areaEntry struct {
	Name   string   `yaml:"name"`
	Lat    float64  `yaml:"lat"`
	Lon    float64  `yaml:"lon"`
	Radius *float64 `yaml:"radius"`
}

// LoadAreas reads named areas from a YAML file:
//
//	areas:
//	  - name: Gandhipuram
//	    lat: 11.0168
//	    lon: 76.9558
//	    radius: 0.02   # optional, degrees
//
// Declaration order is kept; it decides which area wins where two overlap.
func LoadAreas(path string) ([]domain.NamedArea, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read AREAS_FILE: %w", err)
	}
	return ParseAreas(data)
}

// ParseAreas decodes and validates the YAML area list.
func ParseAreas(data []byte) ([]domain.NamedArea, error) {
	var f areaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse AREAS_FILE: %w", err)
	}
	if len(f.Areas) == 0 {
		return nil, fmt.Errorf("AREAS_FILE declares no areas")
	}

	areas := make([]domain.NamedArea, len(f.Areas))
	for i, e := range f.Areas {
		radius := hotspot.DefaultAreaRadius
		if e.Radius != nil {
			radius = *e.Radius
		}
		areas[i] = domain.NamedArea{Name: e.Name, Center: orb.Point{e.Lon, e.Lat}, Radius: radius}
	}

	if _, err := hotspot.NewAreaResolver(areas); err != nil {
		return nil, fmt.Errorf("AREAS_FILE: %w", err)
	}
	return areas, nil
}
