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
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Readiness tiers, from ready for a heat pump today to needing major fabric work
const (
	TierReady       = 1
	TierMinor       = 2
	TierModerate    = 3
	TierSignificant = 4
	TierMajor       = 5
)

// TierName returns the label of a readiness tier
func TierName(tier int) string {
	switch tier {
	case TierReady:
		return "Ready"
	case TierMinor:
		return "Minor"
	case TierModerate:
		return "Moderate"
	case TierSignificant:
		return "Significant"
	case TierMajor:
		return "Major"
	default:
		return "Unknown"
	}
}

// ReadinessClassifier scores fabric deficiencies into heat pump readiness tiers
type ReadinessClassifier struct {
	cfg       ReadinessConfig
	catalogue *Catalogue
	costs     *CostCalculator
}

// NewReadinessClassifier creates a classifier that prices prerequisites with costs
// and reads fabric savings from the catalogue
func NewReadinessClassifier(cfg ReadinessConfig, catalogue *Catalogue, costs *CostCalculator) *ReadinessClassifier {
	return &ReadinessClassifier{cfg: cfg, catalogue: catalogue, costs: costs}
}

// roofDeficiency returns the roof contribution before weighting: 1 poor, 0.5 partial, 0 fine
func (r *ReadinessClassifier) roofDeficiency(p *Property) float64 {
	knownThickness := p.LoftConfidence != ConfidenceLow
	switch {
	case p.RoofRating.IsPoor(), p.RoofText == RoofTextNone,
		knownThickness && p.LoftThicknessMM < r.cfg.LoftMinMM:
		return r.cfg.Weights.RoofPoor
	case p.RoofText == RoofTextPartial,
		knownThickness && p.LoftThicknessMM < r.cfg.LoftPartialMM:
		return r.cfg.Weights.RoofPartial
	default:
		return 0
	}
}

// DeficiencyScore is the weighted sum of fabric deficiencies
func (r *ReadinessClassifier) DeficiencyScore(p *Property) float64 {
	w := r.cfg.Weights
	score := 0.0

	if !p.WallInsulated {
		score += w.WallUninsulated
		if p.SolidBrick {
			score += w.SolidBrickExtra
		}
	}
	score += r.roofDeficiency(p)
	if p.Glazing == GlazingSingle {
		score += w.SingleGlazing
	}
	if p.FloorRating.IsPoor() {
		score += w.FloorPoor
	}
	switch {
	case p.SAPScore < r.cfg.SAPVeryLowBelow:
		score += w.SAPVeryLow
	case p.SAPScore < r.cfg.SAPLowBelow:
		score += w.SAPLow
	}
	return score
}

// Tier maps a deficiency score onto tiers 1-5
func (r *ReadinessClassifier) Tier(score float64) int {
	for i, bound := range r.cfg.TierBounds {
		if score <= bound {
			return i + 1
		}
	}
	return TierMajor
}

// Prerequisites lists the interventions needed before the home is heat pump ready.
// Names go through the cost alias table and come back canonical.
func (r *ReadinessClassifier) Prerequisites(p *Property, tier int) []MeasureID {
	var names []string

	if r.roofDeficiency(p) > 0 {
		names = append(names, "loft_insulation_topup")
	}
	if !p.WallInsulated {
		switch p.WallType {
		case WallCavity:
			names = append(names, string(MeasureCavityWallInsulation))
		case WallSolid:
			names = append(names, "solid_wall_insulation")
		}
	}
	if p.Glazing == GlazingSingle {
		names = append(names, "glazing_upgrade")
	}
	if tier >= TierModerate || p.EmitterNeed == EmitterLikely || p.EmitterNeed == EmitterDefinite {
		names = append(names, "radiator_upsizing")
	}
	if !p.HasCylinder {
		names = append(names, string(MeasureHotWaterCylinder))
	}
	if p.HeatingSystem != HeatingHeatPump {
		if tier == TierMajor {
			names = append(names, string(MeasureHybridHeatPump))
		} else {
			names = append(names, "ashp")
		}
	}

	ids := make([]MeasureID, 0, len(names))
	for _, n := range names {
		ids = append(ids, r.costs.Canonical(n))
	}
	return ids
}

// PostFabricIntensity is the adjusted intensity once the fabric prerequisites are installed
func (r *ReadinessClassifier) PostFabricIntensity(p *Property, prerequisites []MeasureID) float64 {
	saving := 0.0
	for _, id := range prerequisites {
		if m, ok := r.catalogue.Measure(id); ok && m.Category == CategoryFabric {
			saving += m.SavingPct
		}
	}
	return p.EnergyConsumptionAdjusted * (1 - math.Min(saving, 1))
}

// HeatPumpSize estimates heat pump capacity in kW from floor area and post-fabric demand
func (r *ReadinessClassifier) HeatPumpSize(p *Property, prerequisites []MeasureID) float64 {
	s := r.cfg.Sizing
	intensity := r.PostFabricIntensity(p, prerequisites)
	factor := s.MidFactor
	switch {
	case intensity < s.LowDemandBelow:
		factor = s.LowFactor
	case intensity > s.HighDemandAbove:
		factor = s.HighFactor
	}
	return clamp(p.FloorArea*factor, s.MinKW, s.MaxKW)
}

// Classify sets the readiness fields on a property and returns the cost details of its prerequisites
func (r *ReadinessClassifier) Classify(p *Property) []CostDetail {
	p.DeficiencyScore = r.DeficiencyScore(p)
	p.ReadinessTier = r.Tier(p.DeficiencyScore)
	p.PrerequisiteMeasures = r.Prerequisites(p, p.ReadinessTier)
	p.HeatPumpSizeKW = r.HeatPumpSize(p, p.PrerequisiteMeasures)

	var details []CostDetail
	p.PrerequisiteCost, details = r.costs.Total(p.PrerequisiteMeasures, p)
	return details
}

// ReadinessSummary counts properties per tier with their mean prerequisite cost
type ReadinessSummary struct {
	TierCounts           map[int]int     `json:"tier_counts"`
	MeanPrerequisiteCost map[int]float64 `json:"mean_prerequisite_cost"`
	TotalPrerequisite    float64         `json:"total_prerequisite_cost"`
	MeanHeatPumpKW       float64         `json:"mean_heat_pump_kw"`
	CostAudit            CostAudit       `json:"cost_audit,omitempty"`
}

// Tiers returns the populated tiers in order
func (s *ReadinessSummary) Tiers() []int {
	tiers := make([]int, 0, len(s.TierCounts))
	for t := range s.TierCounts {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)
	return tiers
}

// SummarizeReadiness aggregates classified properties
func SummarizeReadiness(props []*Property) *ReadinessSummary {
	summary := &ReadinessSummary{
		TierCounts:           make(map[int]int),
		MeanPrerequisiteCost: make(map[int]float64),
	}
	if len(props) == 0 {
		return summary
	}

	costsByTier := make(map[int][]float64)
	sizes := make([]float64, 0, len(props))
	for _, p := range props {
		summary.TierCounts[p.ReadinessTier]++
		costsByTier[p.ReadinessTier] = append(costsByTier[p.ReadinessTier], p.PrerequisiteCost)
		summary.TotalPrerequisite += p.PrerequisiteCost
		sizes = append(sizes, p.HeatPumpSizeKW)
	}
	for tier, costs := range costsByTier {
		summary.MeanPrerequisiteCost[tier] = stat.Mean(costs, nil)
	}
	summary.MeanHeatPumpKW = stat.Mean(sizes, nil)
	return summary
}
