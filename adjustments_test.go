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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdjuster(t *testing.T) (*Adjuster, *Config) {
	t.Helper()
	cfg := testConfig(t)
	adjuster, err := NewAdjuster(cfg)
	require.NoError(t, err)
	return adjuster, cfg
}

func TestDemandUncertainty(t *testing.T) {
	adjuster, _ := newTestAdjuster(t)

	normal := adjuster.DemandUncertainty(5000, false)
	assert.InDelta(t, 4000, normal.Low, 1e-9)
	assert.InDelta(t, 6000, normal.High, 1e-9)

	anomalous := adjuster.DemandUncertainty(5000, true)
	assert.InDelta(t, 3500, anomalous.Low, 1e-9)
	assert.InDelta(t, 6500, anomalous.High, 1e-9)

	negative := adjuster.DemandUncertainty(-1000, false)
	assert.InDelta(t, -1200, negative.Low, 1e-9)
	assert.InDelta(t, -800, negative.High, 1e-9)
	assert.LessOrEqual(t, negative.Low, negative.High)
}

func TestPreboundAdjustment(t *testing.T) {
	adjuster, _ := newTestAdjuster(t)

	p := &Property{EPCBand: BandD, EnergyConsumption: 200, FloorArea: 100, SAPScore: 60}
	adjuster.Apply(p)

	assert.Equal(t, 0.82, p.PreboundFactor)
	assert.InDelta(t, 164, p.EnergyConsumptionAdjusted, 1e-9)
	assert.InDelta(t, 16400, p.BaselineConsumptionKWhYear, 1e-6)
	assert.InDelta(t, 16400, p.AnnualEnergyKWh(), 1e-6)

	assert.Equal(t, 0.52, adjuster.PreboundFactor(BandG))
	assert.Equal(t, 0.82, adjuster.PreboundFactor("X"), "unknown bands use the default band")
}

func TestFlowTemperature(t *testing.T) {
	adjuster, _ := newTestAdjuster(t)

	tests := []struct {
		name      string
		sap       float64
		insulated bool
		glazing   GlazingType
		want      float64
	}{
		{"sap at low anchor", 40, true, GlazingDouble, 70},
		{"sap at high anchor", 80, true, GlazingDouble, 45},
		{"interpolated", 60, true, GlazingDouble, 57.5},
		{"very poor clamps to base max", 20, true, GlazingDouble, 75},
		{"very good clamps to base min", 90, true, GlazingDouble, 45},
		{"uninsulated wall uplift", 60, false, GlazingDouble, 62.5},
		{"both uplifts", 60, false, GlazingSingle, 65.5},
		{"final clip", 20, false, GlazingSingle, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Property{SAPScore: tt.sap, WallInsulated: tt.insulated, Glazing: tt.glazing}
			assert.InDelta(t, tt.want, adjuster.FlowTemperature(p), 1e-9)
		})
	}
}

func TestEmitterNeed(t *testing.T) {
	adjuster, _ := newTestAdjuster(t)

	tests := []struct {
		flow float64
		need EmitterNeed
		cost float64
	}{
		{45, EmitterNone, 0},
		{50, EmitterPossible, 1500},
		{55, EmitterPossible, 1500},
		{60, EmitterLikely, 3500},
		{70, EmitterDefinite, 6000},
	}

	for _, tt := range tests {
		need, cost := adjuster.EmitterNeedFor(tt.flow)
		assert.Equal(t, tt.need, need, "need at %g°C", tt.flow)
		assert.Equal(t, tt.cost, cost, "cost at %g°C", tt.flow)
	}
}

func TestCOPCurve(t *testing.T) {
	cfg := testConfig(t)
	curve, err := NewCOPCurve(cfg.COPCurve)
	require.NoError(t, err)

	central, low, high := curve.At(45)
	assert.InDelta(t, 3.5, central, 1e-9)
	assert.InDelta(t, 3.0, low, 1e-9)
	assert.InDelta(t, 3.9, high, 1e-9)

	central, _, _ = curve.At(50)
	assert.InDelta(t, 3.25, central, 1e-9)

	central, _, _ = curve.At(20)
	assert.InDelta(t, 4.0, central, 1e-9, "clamped below the first breakpoint")
	central, _, _ = curve.At(90)
	assert.InDelta(t, 2.2, central, 1e-9, "clamped above the last breakpoint")

	bad := cfg.COPCurve
	bad.High = bad.High[:2]
	_, err = NewCOPCurve(bad)
	var configErr *ConfigError
	assert.ErrorAs(t, err, &configErr)

	_, err = NewCOPCurve(COPCurveConfig{Temperatures: []float64{45}, Central: []float64{3}, Low: []float64{3}, High: []float64{3}})
	assert.ErrorAs(t, err, &configErr)
}

func TestSPFAfterFabric(t *testing.T) {
	adjuster, _ := newTestAdjuster(t)

	assert.InDelta(t, 2.78, adjuster.SPFAfterFabric(62.5, 2), 1e-9)
	assert.InDelta(t, 3.5, adjuster.SPFAfterFabric(46, 5), 1e-9, "never below the final minimum flow temperature")
	assert.Greater(t, adjuster.SPFAfterFabric(65, 10), adjuster.SPFAfterFabric(65, 0))
}

func TestApplySetsHeatPumpFields(t *testing.T) {
	cfg := testConfig(t)
	p := adjustedSemi(t, cfg, "semi")

	assert.InDelta(t, 62.5, p.FlowTemperature, 1e-9)
	assert.Equal(t, EmitterLikely, p.EmitterNeed)
	assert.Equal(t, 3500.0, p.EmitterUpgradeCost)
	assert.InDelta(t, 2.7, p.SPFCentral, 1e-9)
	assert.Equal(t, 6.0, p.SAPUncertainty)
}

func TestSAPUncertainty(t *testing.T) {
	adjuster, _ := newTestAdjuster(t)

	assert.Equal(t, 2.4, adjuster.SAPUncertainty(90))
	assert.Equal(t, 4.0, adjuster.SAPUncertainty(70))
	assert.Equal(t, 6.0, adjuster.SAPUncertainty(69.9))
	assert.Equal(t, 8.0, adjuster.SAPUncertainty(10))
}

func TestSAPConfidenceInterval(t *testing.T) {
	mean, interval := SAPConfidenceInterval([]float64{50, 60, 70, 80}, []float64{4, 4, 4, 4})
	assert.InDelta(t, 65, mean, 1e-9)
	assert.InDelta(t, 65-1.96*4/2, interval.Low, 1e-9)
	assert.InDelta(t, 65+1.96*4/2, interval.High, 1e-9)

	mean, interval = SAPConfidenceInterval(nil, nil)
	assert.Zero(t, mean)
	assert.Equal(t, Range{}, interval)
}

func TestPaybackBounds(t *testing.T) {
	bounds := PaybackBounds(1000, Range{Low: 50, High: 200})
	assert.InDelta(t, 5, bounds.Low, 1e-9)
	assert.InDelta(t, 20, bounds.High, 1e-9)

	bounds = PaybackBounds(1000, Range{Low: -50, High: 100})
	assert.InDelta(t, 10, bounds.Low, 1e-9)
	assert.True(t, math.IsInf(bounds.High, 1))
}
