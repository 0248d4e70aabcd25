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
)

// TippingStep is one measure on the cumulative fabric investment curve
type TippingStep struct {
	Step                int       `json:"step"`
	Measure             MeasureID `json:"measure"`
	Cost                float64   `json:"cost"`
	SavingPct           float64   `json:"saving_pct"`
	MarginalKWh         float64   `json:"marginal_kwh"`
	MarginalCostPerKWh  float64   `json:"marginal_cost_per_kwh"`
	NoSaving            bool      `json:"no_saving"`
	CumulativeCost      float64   `json:"cumulative_cost"`
	CumulativeSavingKWh float64   `json:"cumulative_saving_kwh"`
	RemainingKWh        float64   `json:"remaining_kwh"`
	IsTippingPoint      bool      `json:"is_tipping_point"`
}

// TippingCurve is the illustrative diminishing-returns curve for one representative home
type TippingCurve struct {
	BaselineDemandKWh float64       `json:"baseline_demand_kwh"`
	FloorArea         float64       `json:"floor_area"`
	Multiplier        float64       `json:"multiplier"`
	Steps             []TippingStep `json:"steps"`
	TippingStep       int           `json:"tipping_step"` // 0 when the curve has no tipping point
}

// TippingPoint returns the flagged step, if any
func (c *TippingCurve) TippingPoint() (TippingStep, bool) {
	for _, s := range c.Steps {
		if s.IsTippingPoint {
			return s, true
		}
	}
	return TippingStep{}, false
}

// AnalyzeTippingPoint applies the configured measures in order to one baseline
// demand, chaining each saving on what remains. The tipping point is the first
// step whose marginal cost per kWh exceeds multiplier × the cheapest earlier step.
func AnalyzeTippingPoint(cfg TippingConfig, catalogue *Catalogue, costs *CostCalculator) (*TippingCurve, error) {
	ids, err := catalogue.ResolveEntries("tipping_point.measures", cfg.Measures)
	if err != nil {
		return nil, err
	}

	curve := &TippingCurve{
		BaselineDemandKWh: cfg.BaselineDemandKWh,
		FloorArea:         cfg.FloorArea,
		Multiplier:        cfg.Multiplier,
	}
	representative := &Property{
		LMKKey:    "representative",
		FloorArea: cfg.FloorArea,
	}

	remaining := cfg.BaselineDemandKWh
	cumulativeCost := 0.0
	minSoFar := math.Inf(1)

	for i, id := range ids {
		ms := catalogue.MustMeasure(id)
		cost, _ := costs.Cost(id, representative)

		after := remaining * (1 - ms.SavingPct)
		marginal := remaining - after
		remaining = after
		cumulativeCost += cost

		step := TippingStep{
			Step:                i + 1,
			Measure:             id,
			Cost:                cost,
			SavingPct:           ms.SavingPct,
			MarginalKWh:         marginal,
			CumulativeCost:      cumulativeCost,
			CumulativeSavingKWh: cfg.BaselineDemandKWh - remaining,
			RemainingKWh:        remaining,
		}

		if marginal <= 0 {
			step.NoSaving = true
			curve.Steps = append(curve.Steps, step)
			continue
		}

		step.MarginalCostPerKWh = cost / marginal
		if curve.TippingStep == 0 && !math.IsInf(minSoFar, 1) && step.MarginalCostPerKWh > cfg.Multiplier*minSoFar {
			step.IsTippingPoint = true
			curve.TippingStep = step.Step
		}
		minSoFar = math.Min(minSoFar, step.MarginalCostPerKWh)
		curve.Steps = append(curve.Steps, step)
	}

	return curve, nil
}
