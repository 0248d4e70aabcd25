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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	semiRow       = `A1,SW1A 1AA,House,Semi-Detached,1930-1949,100,250,4.5,60,D,"Cavity wall, as built, no insulation (assumed)","Pitched, 100 mm loft insulation","Suspended, no insulation (assumed)",Fully double glazed,"Boiler and radiators, mains gas",From main system,Average,Poor`
	terraceRow    = `A2,AB1 2CD,House,Mid-Terrace,1900-1929,80,320,6.1,38,F,"Solid brick, as built, no insulation (assumed)","Pitched, no insulation","Solid, no insulation (assumed)",Single glazed,"Boiler and radiators, oil",From main system,Very Poor,Poor`
	tinyFlatRow   = `A3,AB1 3CD,Flat,Mid-Terrace,,5,200,1,70,C,Cavity wall,Pitched,Solid,Double,Gas,From main system,Good,Good`
	tinyFlatRowB  = `A4,AB1 4CD,Flat,Mid-Terrace,,6,200,1,70,C,Cavity wall,Pitched,Solid,Double,Gas,From main system,Good,Good`
	duplicateSemi = semiRow
)

// runTestPipeline runs the default pipeline over two valid homes, one undersized flat and a duplicate
func runTestPipeline(t *testing.T) (*RunResult, *Config) {
	t.Helper()

	cfg := testConfig(t)
	pl, err := NewPipeline(cfg, NewDiscardLogger())
	require.NoError(t, err)

	result, err := pl.Run(context.Background(), writeEPCFile(t, semiRow, terraceRow, tinyFlatRow, duplicateSemi))
	require.NoError(t, err)
	return result, cfg
}

func TestPipelineRun(t *testing.T) {
	result, _ := runTestPipeline(t)

	require.NotNil(t, result.Validation)
	assert.Equal(t, 4, result.Validation.InputCount)
	assert.Equal(t, 2, result.Validation.ValidCount)
	assert.Equal(t, 1, result.Validation.Drops[DropFloorAreaRange])
	assert.Equal(t, 1, result.Validation.Drops[DropDuplicateKey])

	meta := result.Metadata
	for stage, want := range map[string]int{
		StageRawLoaded:     4,
		StageValidated:     2,
		StageGeocoded:      2,
		StageScenarioInput: 2,
		StageFinalModeled:  2,
	} {
		got, ok := meta.StageCount(stage)
		require.True(t, ok, "stage %s recorded", stage)
		assert.Equal(t, want, got, "stage %s", stage)
	}
	assert.Empty(t, meta.Warnings, "the validation drop is an expected drop")
	assert.False(t, meta.FinishedAt.IsZero())

	require.Len(t, result.Properties, 2)
	require.Len(t, result.Scenarios, 5)
	assert.Len(t, result.Upgrades, 10)
	for _, s := range result.Scenarios {
		assert.Equal(t, 2, s.PropertyCount, "scenario %s", s.Scenario)
	}
	baseline := result.Scenarios[0]
	assert.Zero(t, baseline.CapitalCostTotal, "baseline costs nothing")
	assert.Zero(t, baseline.AnnualCO2ReductionKg)
	current := 0.0
	for _, p := range result.Properties {
		current += p.EnergyConsumptionAdjusted * p.FloorArea
	}
	// 250 kWh/m² × 100 m² × 0.82 for band D plus 320 × 80 × 0.55 for band F
	assert.InDelta(t, 20500+14080, current, 1e-6)
	assert.InDelta(t, current, baseline.CurrentAnnualEnergyKWh, 1e-6)

	// No zones or network are configured and the geocoder is off
	require.NotNil(t, result.Spatial)
	assert.Equal(t, 2, result.Spatial.Unlocated)
	assert.Zero(t, result.Spatial.ReadyCount)
	for _, u := range result.Upgrades {
		if u.Scenario == "hybrid" {
			assert.Equal(t, RouteHeatPump, u.Route)
		}
	}

	require.NotNil(t, result.Readiness)
	assert.Equal(t, 1, result.Readiness.TierCounts[TierSignificant])
	assert.Equal(t, 1, result.Readiness.TierCounts[TierMajor])
	assert.NotEmpty(t, result.Readiness.CostAudit)

	require.NotNil(t, result.Tipping)
	assert.Equal(t, 4, result.Tipping.TippingStep)
	assert.Len(t, result.Archetypes, len(ArchetypeDimensions()))
	assert.Greater(t, result.MeanSAP, 0.0)
	assert.Less(t, result.SAPInterval.Low, result.SAPInterval.High)
}

func TestPipelineRunWithSpatialDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Spatial.Enabled = false
	pl, err := NewPipeline(cfg, NewDiscardLogger())
	require.NoError(t, err)

	result, err := pl.Run(context.Background(), writeEPCFile(t, semiRow, terraceRow))
	require.NoError(t, err)

	assert.Nil(t, result.Spatial)
	for _, p := range result.Properties {
		assert.False(t, p.HNReady)
		assert.Equal(t, noNetworkDistance, p.DistanceToNetworkM)
	}
}

func TestPipelineRequireLocationDropsUnlocated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Spatial.RequireLocation = true
	pl, err := NewPipeline(cfg, NewDiscardLogger())
	require.NoError(t, err)

	result, err := pl.Run(context.Background(), writeEPCFile(t, semiRow, terraceRow))
	require.NoError(t, err)

	count, ok := result.Metadata.StageCount(StageGeocoded)
	require.True(t, ok)
	assert.Zero(t, count)
	assert.Len(t, result.Metadata.Warnings, 1, "losing every row at the geocoded stage is unexplained")
	assert.Empty(t, result.Properties)
}

func TestPipelineRunNothingValid(t *testing.T) {
	cfg := testConfig(t)
	pl, err := NewPipeline(cfg, NewDiscardLogger())
	require.NoError(t, err)

	_, err = pl.Run(context.Background(), writeEPCFile(t, tinyFlatRow, tinyFlatRowB))

	var dataErr *DataError
	assert.ErrorAs(t, err, &dataErr)
}

func TestPipelineRunMissingInput(t *testing.T) {
	pl, _ := newTestPipeline(t)

	_, err := pl.Run(context.Background(), "/nonexistent/epc.csv")

	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)
}
