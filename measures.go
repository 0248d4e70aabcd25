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
	"fmt"
	"sort"
	"strings"
)

// MeasureID identifies a retrofit measure in the catalogue
type MeasureID string

const (
	MeasureLoftInsulation         MeasureID = "loft_insulation"
	MeasureCavityWallInsulation   MeasureID = "cavity_wall_insulation"
	MeasureSolidWallInsulationEWI MeasureID = "solid_wall_insulation_ewi"
	MeasureSolidWallInsulationIWI MeasureID = "solid_wall_insulation_iwi"
	MeasureDoubleGlazing          MeasureID = "double_glazing"
	MeasureTripleGlazing          MeasureID = "triple_glazing"
	MeasureFloorInsulation        MeasureID = "floor_insulation"
	MeasureDraughtProofing        MeasureID = "draught_proofing"
	MeasureASHPInstallation       MeasureID = "ashp_installation"
	MeasureHybridHeatPump         MeasureID = "hybrid_heat_pump"
	MeasureEmitterUpgrade         MeasureID = "emitter_upgrade"
	MeasureHotWaterCylinder       MeasureID = "hot_water_cylinder"
	MeasureDistrictHeating        MeasureID = "district_heating_connection"
)

// MeasureCategory groups measures by what they change
type MeasureCategory string

const (
	CategoryFabric      MeasureCategory = "fabric"
	CategoryHeatPump    MeasureCategory = "heat_pump"
	CategoryHeatNetwork MeasureCategory = "heat_network"
	CategoryEmitters    MeasureCategory = "emitters"
	CategoryHotWater    MeasureCategory = "hot_water"
)

// Measure is an immutable catalogue entry
type Measure struct {
	ID                MeasureID
	Name              string
	Category          MeasureCategory
	SavingPct         float64 // fraction of absolute annual energy saved
	FixedSavingKWh    float64 // absolute annual saving, added to the fractional saving
	FlowTempReduction float64 // °C reduction in the required heat pump flow temperature
	Applies           func(p *Property) bool
}

// Applicable reports whether the measure applies to the property
func (m *Measure) Applicable(p *Property) bool {
	if m.Applies == nil {
		return true
	}
	return m.Applies(p)
}

// IsHeatPumpSide reports whether the measure only makes sense alongside a heat pump
func (m *Measure) IsHeatPumpSide() bool {
	return m.Category == CategoryHeatPump || m.Category == CategoryEmitters || m.Category == CategoryHotWater
}

func notHeatPump(p *Property) bool { return p.HeatingSystem != HeatingHeatPump }

// defaultMeasures is the static catalogue. Saving fractions can be overridden from config.
var defaultMeasures = []Measure{
	{
		ID: MeasureLoftInsulation, Name: "Loft insulation top-up", Category: CategoryFabric,
		SavingPct: 0.15, FlowTempReduction: 2,
		Applies: func(p *Property) bool { return p.LoftThicknessMM < 270 },
	},
	{
		ID: MeasureCavityWallInsulation, Name: "Cavity wall insulation", Category: CategoryFabric,
		SavingPct: 0.20, FlowTempReduction: 5,
		Applies: func(p *Property) bool { return p.WallType == WallCavity && !p.WallInsulated },
	},
	{
		ID: MeasureSolidWallInsulationEWI, Name: "Solid wall insulation (external)", Category: CategoryFabric,
		SavingPct: 0.30, FlowTempReduction: 5,
		Applies: func(p *Property) bool { return p.WallType == WallSolid && !p.WallInsulated },
	},
	{
		ID: MeasureSolidWallInsulationIWI, Name: "Solid wall insulation (internal)", Category: CategoryFabric,
		SavingPct: 0.25, FlowTempReduction: 5,
		Applies: func(p *Property) bool { return p.WallType == WallSolid && !p.WallInsulated },
	},
	{
		ID: MeasureDoubleGlazing, Name: "Double glazing", Category: CategoryFabric,
		SavingPct: 0.10, FlowTempReduction: 3,
		Applies: func(p *Property) bool { return p.Glazing == GlazingSingle },
	},
	{
		ID: MeasureTripleGlazing, Name: "Triple glazing", Category: CategoryFabric,
		SavingPct: 0.12, FlowTempReduction: 3,
		Applies: func(p *Property) bool { return p.Glazing != GlazingTriple },
	},
	{
		ID: MeasureFloorInsulation, Name: "Suspended floor insulation", Category: CategoryFabric,
		SavingPct: 0.05, FlowTempReduction: 1,
		Applies: func(p *Property) bool { return p.FloorRating != RatingGood && p.FloorRating != RatingVeryGood },
	},
	{
		ID: MeasureDraughtProofing, Name: "Draught proofing", Category: CategoryFabric,
		SavingPct: 0.05,
	},
	{
		ID: MeasureASHPInstallation, Name: "Air source heat pump", Category: CategoryHeatPump,
		Applies: notHeatPump,
	},
	{
		ID: MeasureHybridHeatPump, Name: "Hybrid heat pump", Category: CategoryHeatPump,
		Applies: notHeatPump,
	},
	{
		ID: MeasureEmitterUpgrade, Name: "Radiator upsizing", Category: CategoryEmitters,
		Applies: notHeatPump,
	},
	{
		ID: MeasureHotWaterCylinder, Name: "Hot water cylinder", Category: CategoryHotWater,
		Applies: func(p *Property) bool { return !p.HasCylinder },
	},
	{
		// Connected homes keep the measure; the cost calculator prices it at zero
		ID: MeasureDistrictHeating, Name: "Heat network connection", Category: CategoryHeatNetwork,
	},
}

// Catalogue is the validated measure registry plus package definitions
type Catalogue struct {
	measures map[MeasureID]*Measure
	packages map[string][]MeasureID
}

// NewCatalogue builds the registry from the static catalogue and config overrides.
// Every package entry must resolve to a known measure.
func NewCatalogue(cfg *Config) (*Catalogue, error) {
	c := &Catalogue{
		measures: make(map[MeasureID]*Measure, len(defaultMeasures)),
		packages: make(map[string][]MeasureID, len(cfg.Packages)),
	}

	for i := range defaultMeasures {
		m := defaultMeasures[i]
		c.measures[m.ID] = &m
	}

	for id, override := range cfg.Measures {
		m, ok := c.measures[MeasureID(id)]
		if !ok {
			return nil, &ConfigError{Field: "measures." + id, Message: "unknown measure"}
		}
		if override.SavingPct != nil {
			m.SavingPct = *override.SavingPct
		}
		if override.FixedSavingKWh != nil {
			m.FixedSavingKWh = *override.FixedSavingKWh
		}
		if override.FlowTempReduction != nil {
			m.FlowTempReduction = *override.FlowTempReduction
		}
	}

	for name, entries := range cfg.Packages {
		if _, clash := c.measures[MeasureID(name)]; clash {
			return nil, &ConfigError{Field: "packages." + name, Message: "package name shadows a measure"}
		}
		ids := make([]MeasureID, 0, len(entries))
		for _, e := range entries {
			id := MeasureID(e)
			if _, ok := c.measures[id]; !ok {
				return nil, &ConfigError{
					Field:   "packages." + name,
					Message: fmt.Sprintf("unknown measure %q", e),
				}
			}
			ids = append(ids, id)
		}
		c.packages[name] = ids
	}

	return c, nil
}

// Measure looks up a measure by id
func (c *Catalogue) Measure(id MeasureID) (*Measure, bool) {
	m, ok := c.measures[id]
	return m, ok
}

// MustMeasure looks up a measure that is known to be in the catalogue
func (c *Catalogue) MustMeasure(id MeasureID) *Measure {
	m, ok := c.measures[id]
	if !ok {
		panic(fmt.Sprintf("measure %q not in catalogue", id))
	}
	return m
}

// Package returns the ordered measures of a named package
func (c *Catalogue) Package(name string) ([]MeasureID, bool) {
	ids, ok := c.packages[name]
	return ids, ok
}

// IDs returns all catalogue ids, sorted
func (c *Catalogue) IDs() []MeasureID {
	ids := make([]MeasureID, 0, len(c.measures))
	for id := range c.measures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ResolveEntries expands a list of measure ids and package names into concrete
// measure ids, preserving order and dropping duplicates.
func (c *Catalogue) ResolveEntries(field string, entries []string) ([]MeasureID, error) {
	var resolved []MeasureID
	seen := make(map[MeasureID]bool)
	add := func(id MeasureID) {
		if !seen[id] {
			seen[id] = true
			resolved = append(resolved, id)
		}
	}

	var unknown []string
	for _, e := range entries {
		if ids, ok := c.packages[e]; ok {
			for _, id := range ids {
				add(id)
			}
			continue
		}
		if _, ok := c.measures[MeasureID(e)]; ok {
			add(MeasureID(e))
			continue
		}
		unknown = append(unknown, e)
	}

	if len(unknown) > 0 {
		return nil, &ConfigError{
			Field:   field,
			Message: fmt.Sprintf("unresolvable measure or package: %s", strings.Join(unknown, ", ")),
		}
	}
	return resolved, nil
}
