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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

// testClassifier has one 1 km square zone with a hole in the middle and a pipe running north at x=2000
func testClassifier(t *testing.T) *SpatialClassifier {
	t.Helper()

	zone := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {1000, 0}, {1000, 1000}, {0, 1000}, {0, 0}},
		{{400, 400}, {600, 400}, {600, 600}, {400, 600}, {400, 400}},
	})
	pipe := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{2000, 0}, {2000, 1000}})

	return NewSpatialClassifier(testConfig(t).Spatial, []*geom.Polygon{zone}, []*geom.LineString{pipe})
}

func TestInZone(t *testing.T) {
	s := testClassifier(t)

	assert.True(t, s.InZone(100, 100))
	assert.True(t, s.InZone(900, 500))
	assert.False(t, s.InZone(500, 500), "points in a hole are outside the zone")
	assert.False(t, s.InZone(1500, 500))
}

func TestDistanceToNetwork(t *testing.T) {
	s := testClassifier(t)

	assert.InDelta(t, 100, s.DistanceToNetwork(1900, 500), 1e-9)
	assert.InDelta(t, 500, s.DistanceToNetwork(2000, 1500), 1e-9, "beyond the end of the pipe")

	empty := NewSpatialClassifier(testConfig(t).Spatial, nil, nil)
	assert.Equal(t, noNetworkDistance, empty.DistanceToNetwork(0, 0))
}

func TestSpatialTier(t *testing.T) {
	s := testClassifier(t)

	assert.Equal(t, HNTierAdjacent, s.Tier(250, false, 0))
	assert.Equal(t, HNTierAdjacent, s.Tier(10, true, 100), "adjacency outranks the zone")
	assert.Equal(t, HNTierZone, s.Tier(251, true, 0))
	assert.Equal(t, HNTierDensity, s.Tier(1000, false, 15))
	assert.Equal(t, HNTierNone, s.Tier(1000, false, 14.9))
	assert.Equal(t, HNTierZone, s.Tier(noNetworkDistance, true, 0), "an unknown distance is never adjacent")
}

func TestSpatialClassify(t *testing.T) {
	s := testClassifier(t)

	inZone := &Property{LMKKey: "zone", HasLocation: true, Easting: 100, Northing: 100, BaselineConsumptionKWhYear: 10000}
	inHole := &Property{LMKKey: "hole", HasLocation: true, Easting: 500, Northing: 500, BaselineConsumptionKWhYear: 10000}
	dense := &Property{LMKKey: "dense", HasLocation: true, Easting: 5000, Northing: 5000, BaselineConsumptionKWhYear: 1_000_000}
	adjacent := &Property{LMKKey: "adjacent", HasLocation: true, Easting: 1900, Northing: 500, BaselineConsumptionKWhYear: 10000}
	unlocated := &Property{LMKKey: "unlocated", HNReady: true}
	precomputed := &Property{LMKKey: "precomputed", SpatialProvided: true, HNReady: true, HNTier: HNTierAdjacent, DistanceToNetworkM: 20}

	summary := s.Classify([]*Property{inZone, inHole, dense, adjacent, unlocated, precomputed})

	assert.Equal(t, HNTierZone, inZone.HNTier)
	assert.True(t, inZone.HNReady)
	assert.True(t, inZone.InHNZone)
	assert.InDelta(t, 1900, inZone.DistanceToNetworkM, 1e-9)

	assert.Equal(t, HNTierNone, inHole.HNTier)
	assert.False(t, inHole.HNReady)

	// 1 GWh over a 250 m cell is 16 kWh/m²
	assert.Equal(t, HNTierDensity, dense.HNTier)
	assert.False(t, dense.HNReady, "density tier is not a ready tier by default")

	assert.Equal(t, HNTierAdjacent, adjacent.HNTier)
	assert.True(t, adjacent.HNReady)

	assert.False(t, unlocated.HNReady)
	assert.Equal(t, noNetworkDistance, unlocated.DistanceToNetworkM)

	assert.True(t, precomputed.HNReady, "precomputed columns are kept")
	assert.Equal(t, 20.0, precomputed.DistanceToNetworkM)

	assert.Equal(t, 4, summary.Located)
	assert.Equal(t, 1, summary.Unlocated)
	assert.Equal(t, 1, summary.Precomputed)
	assert.Equal(t, 3, summary.ReadyCount)
	assert.Equal(t, 1, summary.DenseCells)
	assert.Equal(t, map[int]int{HNTierNone: 2, HNTierAdjacent: 2, HNTierZone: 1, HNTierDensity: 1}, summary.TierCounts)
}

const testZonesGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "a"}, "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
    {"type": "Feature", "properties": {"name": "b"}, "geometry": {"type": "MultiPolygon", "coordinates": [
      [[[20,0],[30,0],[30,10],[20,10],[20,0]]],
      [[[40,0],[50,0],[50,10],[40,10],[40,0]]]
    ]}},
    {"type": "Feature", "properties": {}, "geometry": null}
  ]
}`

const testNetworkGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {}, "geometry": {"type": "LineString", "coordinates": [[0,0],[100,0]]}},
    {"type": "Feature", "properties": {}, "geometry": {"type": "MultiLineString", "coordinates": [[[0,50],[100,50]],[[0,90],[100,90]]]}}
  ]
}`

func TestParseZones(t *testing.T) {
	zones, err := ParseZones([]byte(testZonesGeoJSON))
	require.NoError(t, err)
	assert.Len(t, zones, 3, "multipolygons are split and null geometries skipped")

	_, err = ParseZones([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]}}]}`))
	var dataErr *DataError
	assert.ErrorAs(t, err, &dataErr)

	_, err = ParseZones([]byte(`{"type":"Feature","geometry":null}`))
	assert.ErrorAs(t, err, &dataErr)

	_, err = ParseZones([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseNetwork(t *testing.T) {
	pipes, err := ParseNetwork([]byte(testNetworkGeoJSON))
	require.NoError(t, err)
	assert.Len(t, pipes, 3)

	_, err = ParseNetwork([]byte(testZonesGeoJSON))
	var dataErr *DataError
	assert.ErrorAs(t, err, &dataErr)
}

func TestLoadSpatialClassifier(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t).Spatial
	cfg.ZonesPath = filepath.Join(dir, "zones.geojson")
	cfg.NetworkPath = filepath.Join(dir, "network.geojson")
	require.NoError(t, os.WriteFile(cfg.ZonesPath, []byte(testZonesGeoJSON), 0644))
	require.NoError(t, os.WriteFile(cfg.NetworkPath, []byte(testNetworkGeoJSON), 0644))

	s, err := LoadSpatialClassifier(cfg)
	require.NoError(t, err)
	assert.True(t, s.InZone(25, 5))
	assert.InDelta(t, 10, s.DistanceToNetwork(50, 40), 1e-9)

	cfg.NetworkPath = filepath.Join(dir, "missing.geojson")
	_, err = LoadSpatialClassifier(cfg)
	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)

	none, err := LoadSpatialClassifier(SpatialConfig{})
	require.NoError(t, err)
	assert.False(t, none.InZone(0, 0))
}
