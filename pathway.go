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
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// HeatTechnology is the heat source a scenario moves homes onto
type HeatTechnology string

const (
	TechGas         HeatTechnology = "gas"
	TechHeatPump    HeatTechnology = "heat_pump"
	TechHeatNetwork HeatTechnology = "heat_network"
	TechHybrid      HeatTechnology = "hybrid"
)

// Valid reports whether t is a known heat technology
func (t HeatTechnology) Valid() bool {
	switch t {
	case TechGas, TechHeatPump, TechHeatNetwork, TechHybrid:
		return true
	}
	return false
}

// Routes a property can take through a scenario
const (
	RouteNone        = "none"
	RouteFabric      = "fabric"
	RouteHeatPump    = "heat_pump"
	RouteHeatNetwork = "heat_network"
)

// Scenario is a resolved pathway: concrete measures plus a heat technology
type Scenario struct {
	Name        string
	Description string
	Technology  HeatTechnology
	Measures    []MeasureID
}

// BuildScenarios resolves every configured scenario. Any unknown measure or
// package fails the whole build before a property is touched.
func BuildScenarios(cfg *Config, catalogue *Catalogue) ([]*Scenario, error) {
	if len(cfg.Scenarios) == 0 {
		return nil, &ConfigError{Field: "scenarios", Message: "no scenarios configured"}
	}

	scenarios := make([]*Scenario, 0, len(cfg.Scenarios))
	for _, sc := range cfg.Scenarios {
		tech := HeatTechnology(sc.HeatTechnology)
		if !tech.Valid() {
			return nil, &ConfigError{
				Field:   "scenarios." + sc.Name,
				Message: fmt.Sprintf("unknown heat_technology %q", sc.HeatTechnology),
			}
		}
		measures, err := catalogue.ResolveEntries("scenarios."+sc.Name, sc.Measures)
		if err != nil {
			return nil, err
		}
		if id, ok := conflictingMeasure(tech, measures, catalogue); ok {
			return nil, &ConfigError{
				Field:   "scenarios." + sc.Name,
				Message: fmt.Sprintf("measure %q cannot be used with heat_technology %q", id, tech),
			}
		}
		scenarios = append(scenarios, &Scenario{
			Name:        sc.Name,
			Description: sc.Description,
			Technology:  tech,
			Measures:    measures,
		})
	}
	return scenarios, nil
}

// conflictingMeasure finds the first measure that belongs to a different heat
// technology than the scenario's. Hybrid scenarios are routed per property instead.
func conflictingMeasure(tech HeatTechnology, measures []MeasureID, catalogue *Catalogue) (MeasureID, bool) {
	for _, id := range measures {
		ms := catalogue.MustMeasure(id)
		var conflict bool
		switch tech {
		case TechGas:
			conflict = ms.Category == CategoryHeatPump || ms.Category == CategoryHeatNetwork
		case TechHeatPump:
			conflict = ms.Category == CategoryHeatNetwork
		case TechHeatNetwork:
			conflict = ms.IsHeatPumpSide()
		}
		if conflict {
			return id, true
		}
	}
	return "", false
}

// PathwayModel applies scenarios to properties. It holds only read-only
// configuration and is shared by all workers.
type PathwayModel struct {
	catalogue       *Catalogue
	costs           *CostCalculator
	tariff          *Tariff
	adjuster        *Adjuster
	discountRate    float64
	horizonYears    int
	maxFabricSaving float64
	hnHeatRatio     float64
	defaultCOP      float64
}

// NewPathwayModel wires the scenario engine to its collaborators
func NewPathwayModel(cfg *Config, catalogue *Catalogue, costs *CostCalculator, adjuster *Adjuster) (*PathwayModel, error) {
	if cfg.Financial.AnalysisHorizonYears <= 0 {
		return nil, &ConfigError{Field: "financial.analysis_horizon_years", Message: "must be set and positive"}
	}
	if _, ok := cfg.Financial.PriceScenarios[cfg.Financial.PriceScenario]; !ok {
		return nil, &ConfigError{
			Field:   "financial.price_scenario",
			Message: fmt.Sprintf("%q is not defined", cfg.Financial.PriceScenario),
		}
	}

	return &PathwayModel{
		catalogue:       catalogue,
		costs:           costs,
		tariff:          NewTariff(cfg.Financial),
		adjuster:        adjuster,
		discountRate:    cfg.Financial.DiscountRate,
		horizonYears:    cfg.Financial.AnalysisHorizonYears,
		maxFabricSaving: cfg.Financial.MaxFabricSaving,
		hnHeatRatio:     cfg.Financial.HNHeatRatio,
		defaultCOP:      cfg.COPCurve.DefaultCOP,
	}, nil
}

// Route decides the measures and route for one property. Hybrid routing is
// mutually exclusive: a home is costed for a heat network or a heat pump, never both.
func (m *PathwayModel) Route(s *Scenario, p *Property) ([]MeasureID, string) {
	switch s.Technology {
	case TechHybrid:
		if p.HNReady {
			measures := m.without(s.Measures, func(ms *Measure) bool {
				return ms.IsHeatPumpSide() || ms.Category == CategoryHeatNetwork
			})
			return append(measures, MeasureDistrictHeating), RouteHeatNetwork
		}
		measures := m.without(s.Measures, func(ms *Measure) bool {
			return ms.Category == CategoryHeatNetwork
		})
		measures = appendMissing(measures, MeasureASHPInstallation, MeasureEmitterUpgrade)
		return measures, RouteHeatPump
	case TechHeatPump:
		return s.Measures, RouteHeatPump
	case TechHeatNetwork:
		return s.Measures, RouteHeatNetwork
	default:
		if len(s.Measures) == 0 {
			return s.Measures, RouteNone
		}
		return s.Measures, RouteFabric
	}
}

func (m *PathwayModel) without(ids []MeasureID, drop func(*Measure) bool) []MeasureID {
	kept := make([]MeasureID, 0, len(ids)+1)
	for _, id := range ids {
		if !drop(m.catalogue.MustMeasure(id)) {
			kept = append(kept, id)
		}
	}
	return kept
}

func appendMissing(ids []MeasureID, required ...MeasureID) []MeasureID {
	for _, r := range required {
		found := false
		for _, id := range ids {
			if id == r {
				found = true
				break
			}
		}
		if !found {
			ids = append(ids, r)
		}
	}
	return ids
}

// Apply models one scenario for one property. It does not modify the property.
func (m *PathwayModel) Apply(s *Scenario, p *Property) PropertyUpgrade {
	routed, route := m.Route(s, p)

	var applied []*Measure
	for _, id := range routed {
		ms := m.catalogue.MustMeasure(id)
		if ms.Applicable(p) {
			applied = append(applied, ms)
		}
	}

	ids := make([]MeasureID, len(applied))
	for i, ms := range applied {
		ids[i] = ms.ID
	}
	capital, details := m.costs.Total(ids, p)

	baseline := p.AnnualEnergyKWh()
	baseFuel := FuelFor(p.HeatingSystem)

	// Fabric fractions are additive on the absolute baseline, then capped
	fabricPct, fabricFixed, flowReduction := 0.0, 0.0, 0.0
	hasHeatPump, hasHeatNetwork := false, false
	for _, ms := range applied {
		switch ms.Category {
		case CategoryFabric:
			fabricPct += ms.SavingPct
			fabricFixed += ms.FixedSavingKWh
			flowReduction += ms.FlowTempReduction
		case CategoryHeatPump:
			hasHeatPump = true
		case CategoryHeatNetwork:
			hasHeatNetwork = true
		}
	}
	fabricKWh := math.Min(baseline*fabricPct+fabricFixed, baseline*m.maxFabricSaving)
	remaining := baseline - fabricKWh

	// Switching heat source converts the remaining demand rather than removing it
	bought, newFuel := remaining, baseFuel
	switch {
	case hasHeatPump:
		cop := m.defaultCOP
		if p.FlowTemperature > 0 {
			cop = m.adjuster.SPFAfterFabric(p.FlowTemperature, flowReduction)
		}
		bought, newFuel = remaining/cop, FuelElectricity
	case hasHeatNetwork && baseFuel != FuelHeatNetwork:
		bought, newFuel = remaining*m.hnHeatRatio, FuelHeatNetwork
	}

	energyReduction := baseline - bought
	co2Reduction := m.tariff.Emissions(baseFuel, baseline) - m.tariff.Emissions(newFuel, bought)
	billSavings := m.tariff.Cost(baseFuel, baseline) - m.tariff.Cost(newFuel, bought)

	newScore := p.SAPScore
	if p.FloorArea > 0 {
		newScore = math.Min(100, p.SAPScore+0.5*energyReduction/p.FloorArea)
	}

	newBand := BandForScore(newScore)
	if energyReduction <= 0 {
		newBand = p.EPCBand
	}

	billRange := m.adjuster.DemandUncertainty(billSavings, p.EPCAnomaly)
	payback := Payback(capital, billSavings)

	return PropertyUpgrade{
		LMKKey:                   p.LMKKey,
		Scenario:                 s.Name,
		Route:                    route,
		Measures:                 ids,
		CapitalCost:              capital,
		CurrentAnnualEnergyKWh:   baseline,
		AnnualEnergyReductionKWh: energyReduction,
		AnnualCO2ReductionKg:     co2Reduction,
		AnnualBillSavings:        billSavings,
		BillSavingsRange:         billRange,
		EnergyReductionRange:     m.adjuster.DemandUncertainty(energyReduction, p.EPCAnomaly),
		CurrentBand:              p.EPCBand,
		NewSAPScore:              newScore,
		NewEPCBand:               newBand,
		PaybackYears:             payback,
		PaybackRange:             PaybackBounds(capital, billRange),
		NPV:                      NPV(capital, billSavings, m.discountRate, m.horizonYears),
		CostDetails:              details,
	}
}

// Run models every scenario over every property on the worker pool and
// aggregates each scenario on the calling goroutine
func (m *PathwayModel) Run(ctx context.Context, scenarios []*Scenario, props []*Property, workers int, logger *Logger) ([]*ScenarioResult, []PropertyUpgrade, error) {
	results := make([]*ScenarioResult, 0, len(scenarios))
	var all []PropertyUpgrade
	warned := make(map[MeasureID]bool)

	for _, s := range scenarios {
		upgrades, err := parallelMap(ctx, workers, props, func(_ context.Context, p *Property) (PropertyUpgrade, error) {
			return m.Apply(s, p), nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}

		result := Aggregate(s, upgrades)
		for _, id := range result.CostAudit.FallbackMeasures() {
			if warned[id] {
				continue
			}
			warned[id] = true
			tally := result.CostAudit[id]
			logger.LogCostFallback(id, tally.Total/float64(tally.Count))
		}
		logger.LogScenarioSummary(result)

		results = append(results, result)
		all = append(all, upgrades...)
	}

	return results, all, nil
}

// Aggregate rolls property upgrades up into a scenario summary. Averages only
// cover the cost-effective set; the rest are counted, never averaged in.
func Aggregate(s *Scenario, upgrades []PropertyUpgrade) *ScenarioResult {
	result := &ScenarioResult{
		Scenario:       s.Name,
		Description:    s.Description,
		HeatTechnology: s.Technology,
		PropertyCount:  len(upgrades),
		PaybackBuckets: make(map[string]int, len(paybackBucketOrder)),
		BandsBefore:    make(map[EPCBand]int, len(allBands)),
		BandsAfter:     make(map[EPCBand]int, len(allBands)),
		CostAudit:      make(CostAudit),
	}
	for _, b := range paybackBucketOrder {
		result.PaybackBuckets[b] = 0
	}
	for _, b := range allBands {
		result.BandsBefore[b] = 0
		result.BandsAfter[b] = 0
	}

	var paybacks []float64
	for _, u := range upgrades {
		result.CapitalCostTotal += u.CapitalCost
		result.CurrentAnnualEnergyKWh += u.CurrentAnnualEnergyKWh
		result.AnnualEnergyReduction += u.AnnualEnergyReductionKWh
		result.AnnualCO2ReductionKg += u.AnnualCO2ReductionKg
		result.AnnualBillSavings += u.AnnualBillSavings
		result.BillSavingsRange.Low += u.BillSavingsRange.Low
		result.BillSavingsRange.High += u.BillSavingsRange.High
		result.EnergyReductionRange.Low += u.EnergyReductionRange.Low
		result.EnergyReductionRange.High += u.EnergyReductionRange.High
		result.TotalNPV += u.NPV

		result.PaybackBuckets[PaybackBucket(u.PaybackYears)]++
		if IsCostEffective(u.PaybackYears) {
			paybacks = append(paybacks, u.PaybackYears)
		} else {
			result.NotCostEffectiveCount++
		}

		result.BandsBefore[u.CurrentBand]++
		result.BandsAfter[u.NewEPCBand]++

		switch u.Route {
		case RouteHeatPump:
			result.HeatPumpRouted++
		case RouteHeatNetwork:
			result.HeatNetworkRouted++
		}

		for _, d := range u.CostDetails {
			result.CostAudit.Add(d)
		}
	}

	result.CostEffectiveCount = len(paybacks)
	if result.PropertyCount > 0 {
		result.CapitalCostPerProperty = result.CapitalCostTotal / float64(result.PropertyCount)
		result.NotCostEffectivePct = float64(result.NotCostEffectiveCount) / float64(result.PropertyCount)
	}
	if len(paybacks) > 0 {
		sort.Float64s(paybacks)
		result.AveragePaybackYears = stat.Mean(paybacks, nil)
		result.MedianPaybackYears = stat.Quantile(0.5, stat.Empirical, paybacks, nil)
	}

	return result
}
