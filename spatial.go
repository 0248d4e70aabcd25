// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
)

// Heat network tiers
const (
	HNTierNone     = 0
	HNTierAdjacent = 1
	HNTierZone     = 2
	HNTierDensity  = 3
)

// noNetworkDistance marks a distance that could not be measured
const noNetworkDistance = -1.0

// SpatialSummary counts spatial tiering outcomes
type SpatialSummary struct {
	Located      int         `json:"located"`
	Unlocated    int         `json:"unlocated"`
	Precomputed  int         `json:"precomputed"`
	Zones        int         `json:"zones"`
	PipeSegments int         `json:"pipe_segments"`
	DenseCells   int         `json:"dense_cells"`
	TierCounts   map[int]int `json:"tier_counts"`
	ReadyCount   int         `json:"ready_count"`
}

// SpatialClassifier tags properties with heat network readiness from zone
// polygons, pipe routes and local heat density. Coordinates are British
// National Grid metres throughout.
type SpatialClassifier struct {
	cfg   SpatialConfig
	zones []*geom.Polygon
	pipes []*geom.LineString
	ready map[int]bool
}

// NewSpatialClassifier creates a classifier over already-parsed geometries
func NewSpatialClassifier(cfg SpatialConfig, zones []*geom.Polygon, pipes []*geom.LineString) *SpatialClassifier {
	ready := make(map[int]bool, len(cfg.ReadyTiers))
	for _, t := range cfg.ReadyTiers {
		ready[t] = true
	}
	return &SpatialClassifier{cfg: cfg, zones: zones, pipes: pipes, ready: ready}
}

// LoadSpatialClassifier reads zone and network GeoJSON files named in the config.
// Either path may be empty.
func LoadSpatialClassifier(cfg SpatialConfig) (*SpatialClassifier, error) {
	var zones []*geom.Polygon
	var pipes []*geom.LineString

	if cfg.ZonesPath != "" {
		data, err := os.ReadFile(cfg.ZonesPath)
		if err != nil {
			return nil, &StorageError{Operation: "read_zones", Path: cfg.ZonesPath, Err: err}
		}
		if zones, err = ParseZones(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", cfg.ZonesPath, err)
		}
	}

	if cfg.NetworkPath != "" {
		data, err := os.ReadFile(cfg.NetworkPath)
		if err != nil {
			return nil, &StorageError{Operation: "read_network", Path: cfg.NetworkPath, Err: err}
		}
		if pipes, err = ParseNetwork(data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", cfg.NetworkPath, err)
		}
	}

	return NewSpatialClassifier(cfg, zones, pipes), nil
}

// featureGeometries pulls the raw geometry of every feature out of a FeatureCollection
func featureGeometries(data []byte) ([]geom.T, error) {
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to decode GeoJSON: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, &DataError{DataType: "geojson", Message: fmt.Sprintf("expected FeatureCollection, got %q", fc.Type)}
	}

	geometries := make([]geom.T, 0, len(fc.Features))
	for i, f := range fc.Features {
		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			continue
		}
		var g geom.T
		if err := geojson.Unmarshal(f.Geometry, &g); err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		geometries = append(geometries, g)
	}
	return geometries, nil
}

// ParseZones reads heat network zone polygons from a GeoJSON FeatureCollection
func ParseZones(data []byte) ([]*geom.Polygon, error) {
	geometries, err := featureGeometries(data)
	if err != nil {
		return nil, err
	}

	var zones []*geom.Polygon
	for _, g := range geometries {
		switch t := g.(type) {
		case *geom.Polygon:
			zones = append(zones, t)
		case *geom.MultiPolygon:
			for i := 0; i < t.NumPolygons(); i++ {
				zones = append(zones, t.Polygon(i))
			}
		default:
			return nil, &DataError{DataType: "zones", Message: fmt.Sprintf("unsupported geometry %T", g)}
		}
	}
	return zones, nil
}

// ParseNetwork reads heat network pipe routes from a GeoJSON FeatureCollection
func ParseNetwork(data []byte) ([]*geom.LineString, error) {
	geometries, err := featureGeometries(data)
	if err != nil {
		return nil, err
	}

	var pipes []*geom.LineString
	for _, g := range geometries {
		switch t := g.(type) {
		case *geom.LineString:
			pipes = append(pipes, t)
		case *geom.MultiLineString:
			for i := 0; i < t.NumLineStrings(); i++ {
				pipes = append(pipes, t.LineString(i))
			}
		default:
			return nil, &DataError{DataType: "network", Message: fmt.Sprintf("unsupported geometry %T", g)}
		}
	}
	return pipes, nil
}

// InZone reports whether a point falls inside any zone, outside its holes
func (s *SpatialClassifier) InZone(easting, northing float64) bool {
	pt := geom.Coord{easting, northing}
	for _, zone := range s.zones {
		layout := zone.Layout()
		if zone.NumLinearRings() == 0 || !xy.IsPointInRing(layout, pt, zone.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for i := 1; i < zone.NumLinearRings(); i++ {
			if xy.IsPointInRing(layout, pt, zone.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// DistanceToNetwork returns the distance in metres to the nearest pipe, or -1 with no network loaded
func (s *SpatialClassifier) DistanceToNetwork(easting, northing float64) float64 {
	if len(s.pipes) == 0 {
		return noNetworkDistance
	}
	pt := geom.Coord{easting, northing}
	best := math.Inf(1)
	for _, pipe := range s.pipes {
		d := xy.DistanceFromPointToLineString(pipe.Layout(), pt, pipe.FlatCoords())
		best = math.Min(best, d)
	}
	return best
}

type gridCell struct{ x, y int64 }

func (s *SpatialClassifier) cellOf(easting, northing float64) gridCell {
	return gridCell{
		x: int64(math.Floor(easting / s.cfg.GridSizeM)),
		y: int64(math.Floor(northing / s.cfg.GridSizeM)),
	}
}

// heatDensity sums located demand per grid cell in kWh per m² of land
func (s *SpatialClassifier) heatDensity(props []*Property) map[gridCell]float64 {
	area := s.cfg.GridSizeM * s.cfg.GridSizeM
	density := make(map[gridCell]float64)
	for _, p := range props {
		if p.HasLocation {
			density[s.cellOf(p.Easting, p.Northing)] += p.AnnualEnergyKWh() / area
		}
	}
	return density
}

// Tier assigns the heat network tier for one located property
func (s *SpatialClassifier) Tier(distance float64, inZone bool, cellDensity float64) int {
	switch {
	case distance >= 0 && distance <= s.cfg.AdjacencyM:
		return HNTierAdjacent
	case inZone:
		return HNTierZone
	case cellDensity >= s.cfg.DensityThreshold:
		return HNTierDensity
	default:
		return HNTierNone
	}
}

// Classify tags every property. Rows with precomputed spatial columns are left
// as loaded; rows without a location stay not ready.
func (s *SpatialClassifier) Classify(props []*Property) *SpatialSummary {
	summary := &SpatialSummary{
		Zones:        len(s.zones),
		PipeSegments: len(s.pipes),
		TierCounts:   make(map[int]int),
	}

	density := s.heatDensity(props)
	for _, d := range density {
		if d >= s.cfg.DensityThreshold {
			summary.DenseCells++
		}
	}

	for _, p := range props {
		switch {
		case p.SpatialProvided:
			summary.Precomputed++
		case !p.HasLocation:
			summary.Unlocated++
			p.HNTier, p.HNReady, p.InHNZone = HNTierNone, false, false
			p.DistanceToNetworkM = noNetworkDistance
		default:
			summary.Located++
			p.InHNZone = s.InZone(p.Easting, p.Northing)
			p.DistanceToNetworkM = s.DistanceToNetwork(p.Easting, p.Northing)
			p.HNTier = s.Tier(p.DistanceToNetworkM, p.InHNZone, density[s.cellOf(p.Easting, p.Northing)])
			p.HNReady = s.ready[p.HNTier]
		}

		summary.TierCounts[p.HNTier]++
		if p.HNReady {
			summary.ReadyCount++
		}
	}
	return summary
}
