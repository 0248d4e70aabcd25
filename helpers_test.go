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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testConfig returns the embedded defaults with network access and shared state switched off
func testConfig(t *testing.T) *Config {
	t.Helper()

	cfg, err := LoadConfig("")
	require.NoError(t, err, "default config should load")

	cfg.Workers = 2
	cfg.StoragePath = t.TempDir()
	cfg.Output.Dir = t.TempDir()
	cfg.Geocoder.Enabled = false
	cfg.Financial.PriceScenario = "baseline"
	return cfg
}

// semiDetached is an unclassified gas-heated 1930s semi with unfilled cavity walls
func semiDetached(key string) *Property {
	return &Property{
		LMKKey:              key,
		Postcode:            "SW1A 1AA",
		FloorArea:           100,
		ConstructionAgeBand: "England and Wales: 1930-1949",
		PropertyType:        "House",
		BuiltForm:           "Semi-Detached",
		WallsDescription:    "Cavity wall, as built, no insulation (assumed)",
		RoofDescription:     "Pitched, 100 mm loft insulation",
		FloorDescription:    "Suspended, no insulation (assumed)",
		WindowsDescription:  "Fully double glazed",
		MainheatDescription: "Boiler and radiators, mains gas",
		HotwaterDescription: "From main system",
		RoofEnergyEff:       "Average",
		FloorEnergyEff:      "Poor",
		EnergyConsumption:   250,
		CO2Emissions:        4.5,
		SAPScore:            60,
		EPCBand:             BandD,
	}
}

// adjustedSemi is semiDetached after classification and the methodological adjustments
func adjustedSemi(t *testing.T, cfg *Config, key string) *Property {
	t.Helper()

	adjuster, err := NewAdjuster(cfg)
	require.NoError(t, err)

	p := semiDetached(key)
	ClassifyProperty(p)
	adjuster.Apply(p)
	return p
}

// epcHeader is the column order used by writeEPCFile
var epcHeader = []string{
	"LMK_KEY", "POSTCODE", "PROPERTY_TYPE", "BUILT_FORM", "CONSTRUCTION_AGE_BAND",
	"TOTAL_FLOOR_AREA", "ENERGY_CONSUMPTION_CURRENT", "CO2_EMISSIONS_CURRENT",
	"CURRENT_ENERGY_EFFICIENCY", "CURRENT_ENERGY_RATING",
	"WALLS_DESCRIPTION", "ROOF_DESCRIPTION", "FLOOR_DESCRIPTION", "WINDOWS_DESCRIPTION",
	"MAINHEAT_DESCRIPTION", "HOTWATER_DESCRIPTION", "ROOF_ENERGY_EFF", "FLOOR_ENERGY_EFF",
}

// writeEPCFile writes rows under epcHeader to a temporary CSV and returns its path
func writeEPCFile(t *testing.T, rows ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "epc.csv")
	content := strings.Join(epcHeader, ",") + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
