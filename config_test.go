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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := testConfig(t)

	assert.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Scenarios, 5)
	assert.Equal(t, 20, cfg.Financial.AnalysisHorizonYears)
	assert.Equal(t, 0.82, cfg.Prebound.Factors["D"])
	assert.True(t, cfg.Reconciliation.DropAllowed(StageValidated))
	assert.False(t, cfg.Reconciliation.DropAllowed(StageGeocoded))
}

func TestLoadConfigOverlaysUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatpath.yaml")
	content := `
financial:
  price_scenario: high
cost_rules:
  loft_insulation:
    basis: fixed
    amount: 900
tipping_point:
  measures: [loft_insulation]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "high", cfg.Financial.PriceScenario)
	assert.Equal(t, 0.035, cfg.Financial.DiscountRate, "unset values keep their defaults")
	assert.Equal(t, BasisFixed, cfg.CostRules["loft_insulation"].Basis)
	assert.Equal(t, 900.0, cfg.CostRules["loft_insulation"].Amount)
	assert.Contains(t, cfg.CostRules, "double_glazing", "maps merge with the defaults")
	assert.Equal(t, []string{"loft_insulation"}, cfg.TippingPoint.Measures, "lists replace the defaults")
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			name: "unknown scenario measure",
			mutate: func(c *Config) {
				c.Scenarios[1].Measures = append(c.Scenarios[1].Measures, "ground_source_magic")
			},
			message: "ground_source_magic",
		},
		{
			name: "unknown package entry",
			mutate: func(c *Config) {
				c.Packages["deep_retrofit"] = []string{"loft_insulation", "thatch"}
			},
			message: "packages.deep_retrofit",
		},
		{
			name:    "cop curve length mismatch",
			mutate:  func(c *Config) { c.COPCurve.Low = c.COPCurve.Low[:3] },
			message: "cop_curve",
		},
		{
			name:    "missing horizon",
			mutate:  func(c *Config) { c.Financial.AnalysisHorizonYears = 0 },
			message: "analysis_horizon_years",
		},
		{
			name:    "undefined price scenario",
			mutate:  func(c *Config) { c.Financial.PriceScenario = "extreme" },
			message: `"extreme"`,
		},
		{
			name:    "unknown heat technology",
			mutate:  func(c *Config) { c.Scenarios[0].HeatTechnology = "hydrogen" },
			message: "hydrogen",
		},
		{
			name: "unknown cost basis",
			mutate: func(c *Config) {
				rule := c.CostRules["floor_insulation"]
				rule.Basis = "per_room"
				c.CostRules["floor_insulation"] = rule
			},
			message: "per_room",
		},
		{
			name:    "measure without any cost",
			mutate:  func(c *Config) { delete(c.CostAssumption.Legacy, "draught_proofing") },
			message: "draught_proofing has neither a cost rule nor a legacy cost",
		},
		{
			name:    "flat flow temperature range",
			mutate:  func(c *Config) { c.FlowTemp.SAPHigh = c.FlowTemp.SAPLow },
			message: "flow_temperature.sap_high must exceed sap_low",
		},
		{
			name:    "prebound factor above one",
			mutate:  func(c *Config) { c.Prebound.Factors["G"] = 1.4 },
			message: "prebound.factors.G",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var configErr *ConfigError
			require.True(t, errors.As(err, &configErr), "expected a ConfigError, got %T", err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestNewPipelineFailsBeforeReadingData(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scenarios[2].Measures = []string{"not_a_measure"}

	_, err := NewPipeline(cfg, NewDiscardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_a_measure")
}

func TestNewPipelineLoadsSpatialLayersUpFront(t *testing.T) {
	cfg := testConfig(t)
	cfg.Spatial.Enabled = true
	cfg.Spatial.ZonesPath = filepath.Join(t.TempDir(), "missing-zones.geojson")

	_, err := NewPipeline(cfg, NewDiscardLogger())

	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)

	cfg.Spatial.Enabled = false
	_, err = NewPipeline(cfg, NewDiscardLogger())
	assert.NoError(t, err, "layers are not read when spatial classification is off")
}
