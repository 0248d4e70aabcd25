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
	"strings"
)

// Validation drop reasons
const (
	DropMissingCritical  = "missing_critical_field"
	DropNegativeValue    = "negative_value"
	DropFloorAreaRange   = "floor_area_out_of_range"
	DropSAPRange         = "sap_out_of_range"
	DropInvalidBand      = "invalid_epc_band"
	DropInconsistentForm = "inconsistent_built_form"
	DropDuplicateKey     = "duplicate_lmk_key"
)

var dropReasonOrder = []string{
	DropMissingCritical,
	DropNegativeValue,
	DropFloorAreaRange,
	DropSAPRange,
	DropInvalidBand,
	DropInconsistentForm,
	DropDuplicateKey,
}

// ValidationReport summarises rows dropped by validation
type ValidationReport struct {
	InputCount   int                 `json:"input_count"`
	ValidCount   int                 `json:"valid_count"`
	DroppedCount int                 `json:"dropped_count"`
	Drops        map[string]int      `json:"drops"`
	Samples      map[string][]string `json:"samples"`
}

// DropRate returns the fraction of input rows dropped
func (r *ValidationReport) DropRate() float64 {
	if r.InputCount == 0 {
		return 0
	}
	return float64(r.DroppedCount) / float64(r.InputCount)
}

// Validator rejects rows that break the data quality rules. Rows are dropped, never repaired.
type Validator struct {
	cfg ValidationConfig
}

// NewValidator creates a validator from the validation config
func NewValidator(cfg ValidationConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Check returns the drop reason and error for a row, or "" and nil if the row is valid
func (v *Validator) Check(p *Property) (string, error) {
	critical := map[string]float64{
		"floor_area":         p.FloorArea,
		"energy_consumption": p.EnergyConsumption,
		"co2_emissions":      p.CO2Emissions,
		"sap_score":          p.SAPScore,
	}
	for _, field := range []string{"floor_area", "energy_consumption", "co2_emissions", "sap_score"} {
		if !finite(critical[field]) {
			return DropMissingCritical, &ValidationError{Field: field, Message: "missing or non-numeric"}
		}
	}
	if p.LMKKey == "" {
		return DropMissingCritical, &ValidationError{Field: "lmk_key", Message: "missing"}
	}
	if p.EPCBand == "" {
		return DropMissingCritical, &ValidationError{Field: "epc_band", Message: "missing"}
	}

	for _, field := range []string{"floor_area", "energy_consumption", "co2_emissions"} {
		if critical[field] < 0 {
			return DropNegativeValue, &ValidationError{
				Field:   field,
				Value:   fmt.Sprintf("%g", critical[field]),
				Message: "must not be negative",
			}
		}
	}

	if p.FloorArea < v.cfg.MinFloorArea || p.FloorArea > v.cfg.MaxFloorArea {
		return DropFloorAreaRange, &ValidationError{
			Field:   "floor_area",
			Value:   fmt.Sprintf("%g", p.FloorArea),
			Message: fmt.Sprintf("outside %g-%g m²", v.cfg.MinFloorArea, v.cfg.MaxFloorArea),
		}
	}

	if p.SAPScore < 0 || p.SAPScore > 100 {
		return DropSAPRange, &ValidationError{
			Field:   "sap_score",
			Value:   fmt.Sprintf("%g", p.SAPScore),
			Message: "outside 0-100",
		}
	}

	if !p.EPCBand.Valid() {
		return DropInvalidBand, &ValidationError{Field: "epc_band", Value: string(p.EPCBand), Message: "not A-G"}
	}

	for _, pair := range v.cfg.InconsistentForms {
		if strings.EqualFold(p.PropertyType, pair.PropertyType) && strings.EqualFold(p.BuiltForm, pair.BuiltForm) {
			return DropInconsistentForm, &ValidationError{
				Field:   "built_form",
				Value:   p.PropertyType + "/" + p.BuiltForm,
				Message: "property type and built form are inconsistent",
			}
		}
	}

	return "", nil
}

// Validate drops invalid and duplicate rows. The first row for each LMK key is kept.
func (v *Validator) Validate(props []*Property) ([]*Property, *ValidationReport) {
	report := &ValidationReport{
		InputCount: len(props),
		Drops:      make(map[string]int),
		Samples:    make(map[string][]string),
	}

	seen := make(map[string]bool, len(props))
	valid := make([]*Property, 0, len(props))

	drop := func(reason, key string) {
		report.Drops[reason]++
		if len(report.Samples[reason]) < v.cfg.SampleRejected {
			report.Samples[reason] = append(report.Samples[reason], key)
		}
	}

	for _, p := range props {
		if reason, err := v.Check(p); err != nil {
			drop(reason, p.LMKKey)
			continue
		}
		if seen[p.LMKKey] {
			drop(DropDuplicateKey, p.LMKKey)
			continue
		}
		seen[p.LMKKey] = true
		valid = append(valid, p)
	}

	report.ValidCount = len(valid)
	report.DroppedCount = report.InputCount - report.ValidCount
	return valid, report
}
