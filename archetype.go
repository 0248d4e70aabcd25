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
	"context"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ArchetypeStat describes one group of similar homes
type ArchetypeStat struct {
	Key                   string  `json:"key"`
	Count                 int     `json:"count"`
	MeanFloorArea         float64 `json:"mean_floor_area"`
	MeanSAP               float64 `json:"mean_sap"`
	MeanIntensity         float64 `json:"mean_intensity"`   // adjusted kWh/m²/year
	MedianIntensity       float64 `json:"median_intensity"` // adjusted kWh/m²/year
	ShareUninsulatedWalls float64 `json:"share_uninsulated_walls"`
	ShareSingleGlazing    float64 `json:"share_single_glazing"`
}

type archetypeDimension struct {
	name string
	key  func(*Property) string
}

var archetypeDimensions = []archetypeDimension{
	{"construction_age_band", func(p *Property) string { return p.ConstructionAgeBand }},
	{"wall_type", func(p *Property) string { return string(p.WallType) }},
	{"property_type", func(p *Property) string { return p.PropertyType }},
	{"epc_band", func(p *Property) string { return string(p.EPCBand) }},
}

// AnalyzeArchetypes groups properties along each dimension. The dimensions
// are independent and run concurrently.
func AnalyzeArchetypes(ctx context.Context, props []*Property, workers int) (map[string][]ArchetypeStat, error) {
	groups, err := parallelMap(ctx, workers, archetypeDimensions, func(_ context.Context, d archetypeDimension) ([]ArchetypeStat, error) {
		return groupArchetypes(props, d.key), nil
	})
	if err != nil {
		return nil, err
	}

	result := make(map[string][]ArchetypeStat, len(archetypeDimensions))
	for i, d := range archetypeDimensions {
		result[d.name] = groups[i]
	}
	return result, nil
}

// ArchetypeDimensions returns dimension names in report order
func ArchetypeDimensions() []string {
	names := make([]string, len(archetypeDimensions))
	for i, d := range archetypeDimensions {
		names[i] = d.name
	}
	return names
}

func groupArchetypes(props []*Property, key func(*Property) string) []ArchetypeStat {
	members := make(map[string][]*Property)
	for _, p := range props {
		k := key(p)
		if k == "" {
			k = "Unknown"
		}
		members[k] = append(members[k], p)
	}

	stats := make([]ArchetypeStat, 0, len(members))
	for k, group := range members {
		n := len(group)
		areas := make([]float64, n)
		saps := make([]float64, n)
		intensities := make([]float64, n)
		uninsulated, single := 0, 0
		for i, p := range group {
			areas[i] = p.FloorArea
			saps[i] = p.SAPScore
			intensities[i] = p.EnergyConsumptionAdjusted
			if !p.WallInsulated {
				uninsulated++
			}
			if p.Glazing == GlazingSingle {
				single++
			}
		}
		sort.Float64s(intensities)

		stats = append(stats, ArchetypeStat{
			Key:                   k,
			Count:                 n,
			MeanFloorArea:         stat.Mean(areas, nil),
			MeanSAP:               stat.Mean(saps, nil),
			MeanIntensity:         stat.Mean(intensities, nil),
			MedianIntensity:       stat.Quantile(0.5, stat.Empirical, intensities, nil),
			ShareUninsulatedWalls: float64(uninsulated) / float64(n),
			ShareSingleGlazing:    float64(single) / float64(n),
		})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Key < stats[j].Key })
	return stats
}
