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
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Output file names written under the output directory
const (
	RunResultFile        = "run_result.json"
	RunMetadataFile      = "run_metadata.json"
	ValidationReportFile = "validation_report.json"
	PropertyResultsFile  = "property_results.csv"
	PropertiesFile       = "properties_enriched.csv"
	ScenarioSummaryFile  = "scenario_summary.csv"
	CostDetailsFile      = "cost_details.csv"
	MarkdownReportFile   = "report.md"
	HTMLReportFile       = "report.html"
	PDFReportFile        = "report.pdf"
)

// Storage writes run artifacts to the output directory
type Storage struct {
	basePath string
	logger   *Logger
}

// NewStorage creates the output directory if needed
func NewStorage(basePath string, logger *Logger) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, &StorageError{
			Operation: "create_directory",
			Path:      basePath,
			Err:       err,
		}
	}

	logger.Debug("Storage initialized", "path", basePath)

	return &Storage{
		basePath: basePath,
		logger:   logger,
	}, nil
}

// Path returns the location of a named output file
func (s *Storage) Path(name string) string {
	return filepath.Join(s.basePath, name)
}

// SaveAll writes every tabular and JSON artifact for a run and returns the paths written
func (s *Storage) SaveAll(result *RunResult, writeCostDetails bool) ([]string, error) {
	steps := []struct {
		name string
		save func(string) error
	}{
		{PropertyResultsFile, func(p string) error { return s.SavePropertyResults(p, result.Upgrades) }},
		{PropertiesFile, func(p string) error { return s.SaveProperties(p, result.Properties) }},
		{ScenarioSummaryFile, func(p string) error { return s.SaveScenarioSummary(p, result.Scenarios) }},
		{ValidationReportFile, func(p string) error { return s.saveJSON(p, result.Validation) }},
		{RunResultFile, func(p string) error { return s.saveJSON(p, result) }},
	}
	if writeCostDetails {
		steps = append(steps, struct {
			name string
			save func(string) error
		}{CostDetailsFile, func(p string) error { return s.SaveCostDetails(p, result.Upgrades) }})
	}

	written := make([]string, 0, len(steps)+1)
	for _, step := range steps {
		path := s.Path(step.name)
		s.logger.LogStorageOperation("save", path)
		if err := step.save(path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// SaveMetadata persists the run metadata. Called once, after reporting.
func (s *Storage) SaveMetadata(meta *RunMetadata) (string, error) {
	path := s.Path(RunMetadataFile)
	s.logger.LogStorageOperation("save_metadata", path)
	return path, s.saveJSON(path, meta)
}

// LoadMetadata reads a persisted run metadata file
func (s *Storage) LoadMetadata(path string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := s.loadJSON(path, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SaveBytes writes a rendered report to the output directory
func (s *Storage) SaveBytes(name string, data []byte) (string, error) {
	path := s.Path(name)
	s.logger.LogStorageOperation("save", path)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return path, &StorageError{Operation: "write_file", Path: path, Err: err}
	}
	return path, nil
}

// SavePropertyResults writes one row per property per scenario
func (s *Storage) SavePropertyResults(path string, upgrades []PropertyUpgrade) error {
	header := []string{
		"lmk_key", "scenario", "route", "measures", "capital_cost",
		"current_annual_energy_kwh", "annual_energy_reduction_kwh", "energy_reduction_low", "energy_reduction_high",
		"annual_co2_reduction_kg", "annual_bill_savings", "bill_savings_low", "bill_savings_high",
		"payback_years", "payback_low", "payback_high", "npv",
		"current_band", "new_sap_score", "new_epc_band",
	}

	rows := make([][]string, 0, len(upgrades))
	for _, u := range upgrades {
		rows = append(rows, []string{
			u.LMKKey, u.Scenario, u.Route, joinMeasures(u.Measures), formatFloat(u.CapitalCost),
			formatFloat(u.CurrentAnnualEnergyKWh), formatFloat(u.AnnualEnergyReductionKWh),
			formatFloat(u.EnergyReductionRange.Low), formatFloat(u.EnergyReductionRange.High),
			formatFloat(u.AnnualCO2ReductionKg), formatFloat(u.AnnualBillSavings),
			formatFloat(u.BillSavingsRange.Low), formatFloat(u.BillSavingsRange.High),
			formatFloat(u.PaybackYears), formatFloat(u.PaybackRange.Low), formatFloat(u.PaybackRange.High), formatFloat(u.NPV),
			string(u.CurrentBand), formatFloat(u.NewSAPScore), string(u.NewEPCBand),
		})
	}
	return s.writeCSV(path, header, rows)
}

// SaveProperties writes the enriched property table
func (s *Storage) SaveProperties(path string, props []*Property) error {
	header := []string{
		"lmk_key", "postcode", "property_type", "built_form", "construction_age_band", "floor_area",
		"sap_score", "epc_band", "energy_consumption", "energy_consumption_adjusted", "prebound_factor",
		"wall_type", "wall_insulated", "glazing", "loft_thickness_mm", "loft_confidence", "heating_system",
		"epc_anomaly", "flow_temperature", "emitter_need", "spf_central", "sap_uncertainty",
		"deficiency_score", "readiness_tier", "prerequisite_cost", "prerequisite_measures", "heat_pump_size_kw",
		"has_location", "hn_tier", "hn_ready", "in_hn_zone", "distance_to_network_m",
	}

	rows := make([][]string, 0, len(props))
	for _, p := range props {
		rows = append(rows, []string{
			p.LMKKey, p.Postcode, p.PropertyType, p.BuiltForm, p.ConstructionAgeBand, formatFloat(p.FloorArea),
			formatFloat(p.SAPScore), string(p.EPCBand), formatFloat(p.EnergyConsumption),
			formatFloat(p.EnergyConsumptionAdjusted), formatFloat(p.PreboundFactor),
			string(p.WallType), strconv.FormatBool(p.WallInsulated), string(p.Glazing),
			formatFloat(p.LoftThicknessMM), string(p.LoftConfidence), string(p.HeatingSystem),
			strconv.FormatBool(p.EPCAnomaly), formatFloat(p.FlowTemperature), string(p.EmitterNeed),
			formatFloat(p.SPFCentral), formatFloat(p.SAPUncertainty),
			formatFloat(p.DeficiencyScore), strconv.Itoa(p.ReadinessTier), formatFloat(p.PrerequisiteCost),
			joinMeasures(p.PrerequisiteMeasures), formatFloat(p.HeatPumpSizeKW),
			strconv.FormatBool(p.HasLocation), strconv.Itoa(p.HNTier), strconv.FormatBool(p.HNReady),
			strconv.FormatBool(p.InHNZone), formatFloat(p.DistanceToNetworkM),
		})
	}
	return s.writeCSV(path, header, rows)
}

// SaveScenarioSummary writes one row per scenario
func (s *Storage) SaveScenarioSummary(path string, results []*ScenarioResult) error {
	header := []string{
		"scenario", "heat_technology", "property_count", "capital_cost_total", "capital_cost_per_property",
		"annual_energy_reduction_kwh", "annual_co2_reduction_kg", "annual_bill_savings",
		"bill_savings_low", "bill_savings_high", "average_payback_years", "median_payback_years",
		"cost_effective_count", "not_cost_effective_count", "not_cost_effective_pct",
		"heat_pump_routed", "heat_network_routed", "total_npv",
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Scenario, string(r.HeatTechnology), strconv.Itoa(r.PropertyCount),
			formatFloat(r.CapitalCostTotal), formatFloat(r.CapitalCostPerProperty),
			formatFloat(r.AnnualEnergyReduction), formatFloat(r.AnnualCO2ReductionKg), formatFloat(r.AnnualBillSavings),
			formatFloat(r.BillSavingsRange.Low), formatFloat(r.BillSavingsRange.High),
			formatFloat(r.AveragePaybackYears), formatFloat(r.MedianPaybackYears),
			strconv.Itoa(r.CostEffectiveCount), strconv.Itoa(r.NotCostEffectiveCount),
			strconv.FormatFloat(r.NotCostEffectivePct, 'f', 4, 64),
			strconv.Itoa(r.HeatPumpRouted), strconv.Itoa(r.HeatNetworkRouted), formatFloat(r.TotalNPV),
		})
	}
	return s.writeCSV(path, header, rows)
}

// SaveCostDetails writes the per-measure pricing audit trail
func (s *Storage) SaveCostDetails(path string, upgrades []PropertyUpgrade) error {
	header := []string{
		"lmk_key", "scenario", "measure", "requested", "basis", "amount", "floor_area",
		"units", "fallback", "cap_applied", "min_applied", "rationale",
	}

	var rows [][]string
	for _, u := range upgrades {
		for _, d := range u.CostDetails {
			rows = append(rows, []string{
				u.LMKKey, u.Scenario, string(d.Measure), d.Requested, d.Basis, formatFloat(d.Amount),
				formatFloat(d.FloorArea), strconv.Itoa(d.Units), strconv.FormatBool(d.Fallback),
				strconv.FormatBool(d.CapApplied), strconv.FormatBool(d.MinApplied), d.Rationale,
			})
		}
	}
	return s.writeCSV(path, header, rows)
}

func (s *Storage) writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return &StorageError{
			Operation: "create_file",
			Path:      path,
			Err:       err,
		}
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return &StorageError{Operation: "write_csv", Path: path, Err: err}
	}
	if err := w.WriteAll(rows); err != nil {
		return &StorageError{Operation: "write_csv", Path: path, Err: err}
	}
	return nil
}

// saveJSON saves data as JSON to a file
func (s *Storage) saveJSON(path string, data interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return &StorageError{
			Operation: "create_file",
			Path:      path,
			Err:       err,
		}
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(data); err != nil {
		return &StorageError{
			Operation: "encode_json",
			Path:      path,
			Err:       err,
		}
	}

	return nil
}

// loadJSON loads data from a JSON file
func (s *Storage) loadJSON(path string, target interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return &StorageError{
			Operation: "open_file",
			Path:      path,
			Err:       err,
		}
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(target); err != nil {
		return &StorageError{
			Operation: "decode_json",
			Path:      path,
			Err:       err,
		}
	}

	return nil
}

// formatFloat renders a CSV number; payback never reached is written as inf
func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func joinMeasures(ids []MeasureID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ";")
}
