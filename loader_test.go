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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProperties(t *testing.T) {
	path := writeEPCFile(t,
		`A1,sw1a 1aa,House,Semi-Detached,1930-1949,"1,000",250,4.5,60,d,"Cavity wall, as built, no insulation (assumed)","Pitched, 100 mm loft insulation","Suspended, no insulation (assumed)",Fully double glazed,"Boiler and radiators, mains gas",From main system,Average,Poor`,
		`A2,SW1A 2AA,Flat,Mid-Terrace,,,n/a,,55,C,Solid brick,,,,,,,`,
	)

	props, err := LoadProperties(path)
	require.NoError(t, err)
	require.Len(t, props, 2)

	p := props[0]
	assert.Equal(t, "A1", p.LMKKey)
	assert.Equal(t, "SW1A 1AA", p.Postcode)
	assert.Equal(t, 1000.0, p.FloorArea, "thousands separators are stripped")
	assert.Equal(t, BandD, p.EPCBand)
	assert.Equal(t, 60.0, p.SAPScore)
	assert.Equal(t, "Pitched, 100 mm loft insulation", p.RoofDescription)
	assert.Equal(t, "Poor", p.FloorEnergyEff)
	assert.False(t, p.HasLocation)
	assert.False(t, p.SpatialProvided)

	blank := props[1]
	assert.True(t, math.IsNaN(blank.FloorArea), "blank numeric cells load as NaN")
	assert.True(t, math.IsNaN(blank.EnergyConsumption), "non-numeric cells load as NaN")
	assert.True(t, math.IsNaN(blank.CO2Emissions))
	assert.Empty(t, blank.HotwaterDescription)
}

func TestReadPropertiesNormalizesHeaders(t *testing.T) {
	header := "\ufefflmk-key,postcode,total-floor-area,energy-consumption-current,co2-emissions-current," +
		"current-energy-efficiency,current-energy-rating,walls-description,roof-description," +
		"floor-description,windows-description,easting,northing\n"
	row := "K1,AB1 2CD,80,200,3,65,D,Cavity wall,Pitched,Solid,Double,530000,180000\n"

	props, err := ReadProperties(strings.NewReader(header + row))
	require.NoError(t, err)
	require.Len(t, props, 1)

	p := props[0]
	assert.Equal(t, "K1", p.LMKKey)
	assert.Equal(t, 80.0, p.FloorArea)
	assert.True(t, p.HasLocation)
	assert.Equal(t, 530000.0, p.Easting)
	assert.Equal(t, 180000.0, p.Northing)
}

func TestReadPropertiesSpatialColumns(t *testing.T) {
	header := strings.Join(append(append([]string{}, requiredColumns...),
		"HN_READY", "IN_HN_ZONE", "HN_TIER", "DISTANCE_TO_NETWORK_M"), ",") + "\n"
	filler := strings.Repeat("x,", len(requiredColumns)-1) + "x"
	rows := filler + ",true,yes,1,0\n" + filler + ",,,,\n"

	props, err := ReadProperties(strings.NewReader(header + rows))
	require.NoError(t, err)
	require.Len(t, props, 2)

	assert.True(t, props[0].SpatialProvided)
	assert.True(t, props[0].HNReady)
	assert.True(t, props[0].InHNZone)
	assert.Equal(t, 1, props[0].HNTier)
	assert.Equal(t, 0.0, props[0].DistanceToNetworkM)

	assert.False(t, props[1].SpatialProvided, "blank readiness cells leave the row for spatial classification")
}

func TestReadPropertiesErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{"empty file", "", "file is empty"},
		{"header only", strings.Join(epcHeader, ",") + "\n", "no property rows found"},
		{"missing columns", "LMK_KEY,POSTCODE\nA1,SW1A 1AA\n", "TOTAL_FLOOR_AREA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadProperties(strings.NewReader(tt.content))
			var dataErr *DataError
			require.ErrorAs(t, err, &dataErr)
			assert.Contains(t, dataErr.Message, tt.message)
		})
	}
}

func TestLoadPropertiesFileErrors(t *testing.T) {
	_, err := LoadProperties(filepath.Join(t.TempDir(), "missing.csv"))
	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)

	parquet := filepath.Join(t.TempDir(), "epc.parquet")
	require.NoError(t, os.WriteFile(parquet, []byte("PAR1"), 0644))
	_, err = LoadProperties(parquet)
	var dataErr *DataError
	assert.ErrorAs(t, err, &dataErr)
}
