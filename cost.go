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
)

// CostDetail records how one measure was priced for one property
type CostDetail struct {
	Measure    MeasureID `json:"measure"`
	Requested  string    `json:"requested,omitempty"`
	Basis      string    `json:"basis"`
	Amount     float64   `json:"amount"`
	FloorArea  float64   `json:"floor_area"`
	Units      int       `json:"units,omitempty"`
	Fallback   bool      `json:"fallback"`
	CapApplied bool      `json:"cap_applied"`
	MinApplied bool      `json:"min_applied"`
	Rationale  string    `json:"rationale,omitempty"`
}

// Tally counts how often a measure was priced and how
type Tally struct {
	Count     int     `json:"count"`
	Total     float64 `json:"total"`
	Fallbacks int     `json:"fallbacks"`
	Capped    int     `json:"capped"`
}

// CostAudit accumulates cost details per measure. It is not safe for
// concurrent use and is only written by the goroutine merging results.
type CostAudit map[MeasureID]Tally

// Add records one priced measure
func (a CostAudit) Add(d CostDetail) {
	t := a[d.Measure]
	t.Count++
	t.Total += d.Amount
	if d.Fallback {
		t.Fallbacks++
	}
	if d.CapApplied {
		t.Capped++
	}
	a[d.Measure] = t
}

// FallbackMeasures lists measures priced from the legacy table at least once
func (a CostAudit) FallbackMeasures() []MeasureID {
	var ids []MeasureID
	for id, t := range a {
		if t.Fallbacks > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CostCalculator prices measures for individual properties. It only reads
// configuration, so one instance is shared by every worker.
type CostCalculator struct {
	rules             map[string]CostRule
	aliases           map[string]string
	legacy            map[string]float64
	fallbackFloorArea float64
}

// NewCostCalculator creates a calculator from the cost sections of the config
func NewCostCalculator(cfg *Config) *CostCalculator {
	return &CostCalculator{
		rules:             cfg.CostRules,
		aliases:           cfg.CostAliases,
		legacy:            cfg.CostAssumption.Legacy,
		fallbackFloorArea: cfg.CostAssumption.FallbackFloorArea,
	}
}

// Canonical resolves a measure name through the alias table
func (c *CostCalculator) Canonical(name string) MeasureID {
	if canonical, ok := c.aliases[name]; ok {
		return MeasureID(canonical)
	}
	return MeasureID(name)
}

// Cost prices a measure for a property. It never fails: a missing rule falls
// back to the legacy table and a malformed floor area to the configured fallback.
func (c *CostCalculator) Cost(id MeasureID, p *Property) (float64, CostDetail) {
	canonical := c.Canonical(string(id))
	detail := CostDetail{Measure: canonical, FloorArea: c.floorArea(p)}
	if canonical != id {
		detail.Requested = string(id)
	}

	if canonical == MeasureDistrictHeating && p != nil && p.HeatingSystem == HeatingDistrict {
		detail.Basis = BasisExistingConnection
		return 0, detail
	}

	// Assessed emitter need overrides the generic emitter rule
	if canonical == MeasureEmitterUpgrade && p != nil && p.EmitterNeed != "" {
		detail.Basis = "emitter_need"
		detail.Amount = p.EmitterUpgradeCost
		return detail.Amount, detail
	}

	rule, ok := c.rules[string(canonical)]
	if !ok {
		detail.Basis = BasisFixed
		detail.Fallback = true
		detail.Amount = c.legacy[string(canonical)]
		return detail.Amount, detail
	}

	detail.Basis = rule.Basis
	detail.Rationale = rule.Rationale

	var amount float64
	switch rule.Basis {
	case BasisPerM2:
		amount = detail.FloorArea * orOne(rule.AreaShare) * orOne(rule.AreaMultiplier) * rule.Rate
	case BasisPerUnit:
		units := int(math.Ceil(detail.FloorArea / rule.UnitSize))
		if units < rule.MinUnits {
			units = rule.MinUnits
		}
		detail.Units = units
		amount = float64(units) * rule.UnitRate
	default:
		amount = rule.Amount
		if amount == 0 {
			amount = c.legacy[string(canonical)]
		}
	}

	if rule.MinTotal > 0 && amount < rule.MinTotal {
		amount = rule.MinTotal
		detail.MinApplied = true
	}
	if rule.CapPerHome > 0 && amount > rule.CapPerHome {
		amount = rule.CapPerHome
		detail.CapApplied = true
	}

	detail.Amount = amount
	return amount, detail
}

// Total prices a list of measures and returns the sum plus per-measure details
func (c *CostCalculator) Total(ids []MeasureID, p *Property) (float64, []CostDetail) {
	total := 0.0
	details := make([]CostDetail, 0, len(ids))
	for _, id := range ids {
		amount, detail := c.Cost(id, p)
		total += amount
		details = append(details, detail)
	}
	return total, details
}

func (c *CostCalculator) floorArea(p *Property) float64 {
	if p == nil || !finite(p.FloorArea) || p.FloorArea <= 0 {
		return c.fallbackFloorArea
	}
	return p.FloorArea
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
