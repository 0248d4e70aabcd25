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
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// COPCurve interpolates heat pump seasonal performance from flow temperature
type COPCurve struct {
	central interp.PiecewiseLinear
	low     interp.PiecewiseLinear
	high    interp.PiecewiseLinear
}

// NewCOPCurve fits the configured breakpoints. Array lengths must match.
func NewCOPCurve(cfg COPCurveConfig) (*COPCurve, error) {
	n := len(cfg.Temperatures)
	if len(cfg.Central) != n || len(cfg.Low) != n || len(cfg.High) != n {
		return nil, &ConfigError{
			Field:   "cop_curve",
			Message: fmt.Sprintf("central/low/high lengths (%d/%d/%d) must match temperatures (%d)", len(cfg.Central), len(cfg.Low), len(cfg.High), n),
		}
	}

	if n < 2 {
		return nil, &ConfigError{Field: "cop_curve.temperatures", Message: "needs at least two breakpoints"}
	}
	for i := 1; i < n; i++ {
		if cfg.Temperatures[i] <= cfg.Temperatures[i-1] {
			return nil, &ConfigError{Field: "cop_curve.temperatures", Message: "must be strictly ascending"}
		}
	}

	curve := &COPCurve{}
	fits := []struct {
		name string
		pl   *interp.PiecewiseLinear
		ys   []float64
	}{
		{"central", &curve.central, cfg.Central},
		{"low", &curve.low, cfg.Low},
		{"high", &curve.high, cfg.High},
	}
	for _, f := range fits {
		if err := f.pl.Fit(cfg.Temperatures, f.ys); err != nil {
			return nil, &ConfigError{Field: "cop_curve." + f.name, Message: err.Error()}
		}
	}
	return curve, nil
}

// At returns central, low and high SPF at a flow temperature, clamped at the curve ends
func (c *COPCurve) At(flowTemp float64) (central, low, high float64) {
	return c.central.Predict(flowTemp), c.low.Predict(flowTemp), c.high.Predict(flowTemp)
}

// Adjuster applies the methodological adjustments to properties
type Adjuster struct {
	prebound    PreboundConfig
	flow        FlowTemperatureConfig
	curve       *COPCurve
	sapBuckets  []SAPBucket
	demandBands DemandBounds
}

// NewAdjuster validates and prepares the adjustment parameters
func NewAdjuster(cfg *Config) (*Adjuster, error) {
	curve, err := NewCOPCurve(cfg.COPCurve)
	if err != nil {
		return nil, err
	}

	buckets := append([]SAPBucket(nil), cfg.Uncertainty.SAPBuckets...)
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].MinScore > buckets[j].MinScore })

	return &Adjuster{
		prebound:    cfg.Prebound,
		flow:        cfg.FlowTemp,
		curve:       curve,
		sapBuckets:  buckets,
		demandBands: cfg.Uncertainty.Demand,
	}, nil
}

// Apply runs prebound, flow temperature/COP and SAP uncertainty in that order
func (a *Adjuster) Apply(p *Property) {
	a.applyPrebound(p)
	a.applyFlowTemperature(p)
	p.SAPUncertainty = a.SAPUncertainty(p.SAPScore)
}

// PreboundFactor returns the factor for a band, using the default band when unknown
func (a *Adjuster) PreboundFactor(band EPCBand) float64 {
	if factor, ok := a.prebound.Factors[string(band)]; ok {
		return factor
	}
	return a.prebound.Factors[a.prebound.DefaultBand]
}

func (a *Adjuster) applyPrebound(p *Property) {
	p.PreboundFactor = a.PreboundFactor(p.EPCBand)
	p.EnergyConsumptionAdjusted = p.EnergyConsumption * p.PreboundFactor
	p.BaselineConsumptionKWhYear = p.EnergyConsumptionAdjusted * p.FloorArea
}

// FlowTemperature estimates the heat pump flow temperature a property needs
func (a *Adjuster) FlowTemperature(p *Property) float64 {
	f := a.flow
	slope := (f.TempAtSAPHigh - f.TempAtSAPLow) / (f.SAPHigh - f.SAPLow)
	base := clamp(f.TempAtSAPLow+(p.SAPScore-f.SAPLow)*slope, f.BaseMin, f.BaseMax)

	if !p.WallInsulated {
		base += f.UninsulatedWallUplift
	}
	if p.Glazing == GlazingSingle {
		base += f.SingleGlazingUplift
	}
	return clamp(base, f.FinalMin, f.FinalMax)
}

// EmitterNeedFor buckets a flow temperature into an emitter upgrade need and its cost
func (a *Adjuster) EmitterNeedFor(flowTemp float64) (EmitterNeed, float64) {
	t := a.flow.EmitterThresholds
	need := EmitterDefinite
	switch {
	case flowTemp <= t.None:
		need = EmitterNone
	case flowTemp <= t.Possible:
		need = EmitterPossible
	case flowTemp <= t.Likely:
		need = EmitterLikely
	}
	return need, a.flow.EmitterCosts[string(need)]
}

func (a *Adjuster) applyFlowTemperature(p *Property) {
	p.FlowTemperature = a.FlowTemperature(p)
	p.EmitterNeed, p.EmitterUpgradeCost = a.EmitterNeedFor(p.FlowTemperature)
	p.SPFCentral, p.SPFLow, p.SPFHigh = a.curve.At(p.FlowTemperature)
}

// SPFAfterFabric returns the central SPF once fabric work has lowered the flow temperature
func (a *Adjuster) SPFAfterFabric(flowTemp, reduction float64) float64 {
	central, _, _ := a.curve.At(math.Max(a.flow.FinalMin, flowTemp-reduction))
	return central
}

// SAPUncertainty returns the ± points measurement uncertainty for a score
func (a *Adjuster) SAPUncertainty(score float64) float64 {
	for _, b := range a.sapBuckets {
		if score >= b.MinScore {
			return b.Points
		}
	}
	if len(a.sapBuckets) == 0 {
		return 0
	}
	return a.sapBuckets[len(a.sapBuckets)-1].Points
}

// DemandUncertainty returns the low/high bounds of a savings-derived value
func (a *Adjuster) DemandUncertainty(value float64, anomaly bool) Range {
	return ApplyDemandUncertainty(value, anomaly, a.demandBands)
}

// SAPConfidenceInterval returns the mean score and its 95% confidence interval,
// mean ± 1.96 × mean uncertainty / √n
func SAPConfidenceInterval(scores, uncertainties []float64) (float64, Range) {
	if len(scores) == 0 {
		return 0, Range{}
	}
	mean := stat.Mean(scores, nil)
	meanUnc := 0.0
	if len(uncertainties) > 0 {
		meanUnc = stat.Mean(uncertainties, nil)
	}
	half := z95 * meanUnc / math.Sqrt(float64(len(scores)))
	return mean, Range{Low: mean - half, High: mean + half}
}

// ApplyDemandUncertainty widens a value into low/high bounds. Anomalous
// properties get the wider anomaly band.
func ApplyDemandUncertainty(value float64, anomaly bool, b DemandBounds) Range {
	lowPct, highPct := b.Low, b.High
	if anomaly {
		lowPct, highPct = b.AnomalyLow, b.AnomalyHigh
	}
	low, high := value*(1+lowPct), value*(1+highPct)
	if low > high {
		low, high = high, low
	}
	return Range{Low: low, High: high}
}

// PaybackBounds derives payback bounds from bill saving bounds. The low bill
// saving gives the high payback and vice versa.
func PaybackBounds(cost float64, bills Range) Range {
	return Range{
		Low:  Payback(cost, bills.High),
		High: Payback(cost, bills.Low),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
