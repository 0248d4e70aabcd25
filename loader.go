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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// requiredColumns must be present in the input after header normalisation
var requiredColumns = []string{
	"LMK_KEY",
	"POSTCODE",
	"TOTAL_FLOOR_AREA",
	"ENERGY_CONSUMPTION_CURRENT",
	"CO2_EMISSIONS_CURRENT",
	"CURRENT_ENERGY_EFFICIENCY",
	"CURRENT_ENERGY_RATING",
	"WALLS_DESCRIPTION",
	"ROOF_DESCRIPTION",
	"FLOOR_DESCRIPTION",
	"WINDOWS_DESCRIPTION",
}

// normalizeColumnName turns "current-energy-rating" into "CURRENT_ENERGY_RATING"
func normalizeColumnName(col string) string {
	col = strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")
	return strings.ToUpper(strings.ReplaceAll(col, "-", "_"))
}

// buildColumnIndex creates a normalized column index from CSV headers
func buildColumnIndex(header []string) map[string]int {
	colIndex := make(map[string]int)
	for i, col := range header {
		normalized := normalizeColumnName(col)
		// First match wins
		if _, exists := colIndex[normalized]; !exists {
			colIndex[normalized] = i
		}
	}
	return colIndex
}

// LoadProperties reads EPC certificate rows from a CSV file
func LoadProperties(path string) ([]*Property, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return nil, &DataError{DataType: "input", Message: "parquet input is not supported, export the dataset to CSV"}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, &StorageError{Operation: "open", Path: path, Err: err}
	}
	defer file.Close()

	props, err := ReadProperties(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return props, nil
}

// ReadProperties parses EPC certificate rows from CSV
func ReadProperties(r io.Reader) ([]*Property, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow ragged rows
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &DataError{DataType: "input", Message: "file is empty"}
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	colIndex := buildColumnIndex(header)

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &DataError{
			DataType: "input",
			Message:  fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
		}
	}

	_, hasSpatial := colIndex["HN_READY"]

	var props []*Property
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", line, err)
		}

		row := csvRow{record: record, index: colIndex}
		p := &Property{
			LMKKey:              row.str("LMK_KEY"),
			Postcode:            strings.ToUpper(row.str("POSTCODE")),
			FloorArea:           row.num("TOTAL_FLOOR_AREA"),
			ConstructionAgeBand: row.str("CONSTRUCTION_AGE_BAND"),
			PropertyType:        row.str("PROPERTY_TYPE"),
			BuiltForm:           row.str("BUILT_FORM"),
			WallsDescription:    row.str("WALLS_DESCRIPTION"),
			RoofDescription:     row.str("ROOF_DESCRIPTION"),
			FloorDescription:    row.str("FLOOR_DESCRIPTION"),
			WindowsDescription:  row.str("WINDOWS_DESCRIPTION"),
			MainheatDescription: row.str("MAINHEAT_DESCRIPTION"),
			HotwaterDescription: row.str("HOTWATER_DESCRIPTION"),
			WallsEnergyEff:      row.str("WALLS_ENERGY_EFF"),
			RoofEnergyEff:       row.str("ROOF_ENERGY_EFF"),
			FloorEnergyEff:      row.str("FLOOR_ENERGY_EFF"),
			EnergyConsumption:   row.num("ENERGY_CONSUMPTION_CURRENT"),
			CO2Emissions:        row.num("CO2_EMISSIONS_CURRENT"),
			SAPScore:            row.num("CURRENT_ENERGY_EFFICIENCY"),
			EPCBand:             EPCBand(strings.ToUpper(row.str("CURRENT_ENERGY_RATING"))),
		}

		easting, northing := row.num("EASTING"), row.num("NORTHING")
		if finite(easting) && finite(northing) && (easting != 0 || northing != 0) {
			p.Easting, p.Northing, p.HasLocation = easting, northing, true
		}

		if hasSpatial && row.str("HN_READY") != "" {
			p.SpatialProvided = true
			p.HNReady = row.boolean("HN_READY")
			p.InHNZone = row.boolean("IN_HN_ZONE")
			if tier := row.num("HN_TIER"); finite(tier) {
				p.HNTier = int(tier)
			}
			if d := row.num("DISTANCE_TO_NETWORK_M"); finite(d) {
				p.DistanceToNetworkM = d
			}
		}

		props = append(props, p)
	}

	if len(props) == 0 {
		return nil, &DataError{DataType: "input", Message: "no property rows found"}
	}
	return props, nil
}

// csvRow reads typed cells by normalized column name
type csvRow struct {
	record []string
	index  map[string]int
}

func (r csvRow) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// num parses a numeric cell. Blank or non-numeric cells load as NaN.
func (r csvRow) num(col string) float64 {
	s := r.str(col)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (r csvRow) boolean(col string) bool {
	switch strings.ToLower(r.str(col)) {
	case "true", "1", "yes", "y", "t":
		return true
	default:
		return false
	}
}
