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
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default-config.yaml
var defaultConfigYAML []byte

// Config holds the application configuration
type Config struct {
	Input          InputConfig                `yaml:"input"`
	Output         OutputConfig               `yaml:"output"`
	Validation     ValidationConfig           `yaml:"validation"`
	CostAssumption CostAssumptions            `yaml:"cost_assumptions"`
	CostAliases    map[string]string          `yaml:"cost_aliases"`
	CostRules      map[string]CostRule        `yaml:"cost_rules"`
	Measures       map[string]MeasureOverride `yaml:"measures"`
	Packages       map[string][]string        `yaml:"packages"`
	Scenarios      []ScenarioConfig           `yaml:"scenarios"`
	Financial      FinancialConfig            `yaml:"financial"`
	Prebound       PreboundConfig             `yaml:"prebound"`
	FlowTemp       FlowTemperatureConfig      `yaml:"flow_temperature"`
	COPCurve       COPCurveConfig             `yaml:"cop_curve"`
	Uncertainty    UncertaintyConfig          `yaml:"uncertainty"`
	Readiness      ReadinessConfig            `yaml:"readiness"`
	TippingPoint   TippingConfig              `yaml:"tipping_point"`
	Spatial        SpatialConfig              `yaml:"spatial"`
	Geocoder       GeocoderConfig             `yaml:"geocoder"`
	Reconciliation ReconciliationConfig       `yaml:"reconciliation"`

	// Storage for the geocoder cache
	StoragePath string `yaml:"storage_path"`

	// Worker pool size, 0 means one per CPU
	Workers int `yaml:"workers"`

	// Debugging
	Debug bool `yaml:"debug"`
}

// InputConfig locates the property dataset
type InputConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig controls where and what gets written
type OutputConfig struct {
	Dir              string `yaml:"dir"`
	WriteCostDetails bool   `yaml:"write_cost_details"`
	MetricsTextfile  string `yaml:"metrics_textfile"`
}

// ValidationConfig holds data quality thresholds
type ValidationConfig struct {
	MinFloorArea      float64    `yaml:"min_floor_area"`
	MaxFloorArea      float64    `yaml:"max_floor_area"`
	SampleRejected    int        `yaml:"sample_rejected"`
	InconsistentForms []FormPair `yaml:"inconsistent_forms"`
}

// FormPair is a property type and built form that cannot occur together
type FormPair struct {
	PropertyType string `yaml:"property_type"`
	BuiltForm    string `yaml:"built_form"`
}

// CostAssumptions is the legacy flat cost table
type CostAssumptions struct {
	FallbackFloorArea float64            `yaml:"fallback_floor_area"`
	Legacy            map[string]float64 `yaml:"legacy"`
}

// Cost bases understood by the cost calculator
const (
	BasisFixed   = "fixed"
	BasisPerM2   = "per_m2"
	BasisPerUnit = "per_unit"

	// BasisExistingConnection prices a heat network connection the home already has
	BasisExistingConnection = "existing_connection"
)

// CostRule describes how one measure is priced
type CostRule struct {
	Basis          string  `yaml:"basis"`
	Amount         float64 `yaml:"amount"`
	Rate           float64 `yaml:"rate"`
	AreaShare      float64 `yaml:"area_share"`      // defaults to 1
	AreaMultiplier float64 `yaml:"area_multiplier"` // defaults to 1
	UnitSize       float64 `yaml:"unit_size"`
	MinUnits       int     `yaml:"min_units"`
	UnitRate       float64 `yaml:"unit_rate"`
	MinTotal       float64 `yaml:"min_total"`
	CapPerHome     float64 `yaml:"cap_per_home"`
	Rationale      string  `yaml:"rationale"`
}

// MeasureOverride replaces catalogue saving values for a known measure
type MeasureOverride struct {
	SavingPct         *float64 `yaml:"saving_pct"`
	FixedSavingKWh    *float64 `yaml:"fixed_saving_kwh"`
	FlowTempReduction *float64 `yaml:"flow_temp_reduction"`
}

// ScenarioConfig declares one named pathway
type ScenarioConfig struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	HeatTechnology string   `yaml:"heat_technology"`
	Measures       []string `yaml:"measures"`
}

// FuelValues holds one number per fuel
type FuelValues struct {
	Gas         float64 `yaml:"gas"`
	Electricity float64 `yaml:"electricity"`
	HeatNetwork float64 `yaml:"heat_network"`
	Oil         float64 `yaml:"oil"`
}

// FinancialConfig holds prices, carbon factors and appraisal parameters
type FinancialConfig struct {
	DiscountRate         float64               `yaml:"discount_rate"`
	AnalysisHorizonYears int                   `yaml:"analysis_horizon_years"`
	PriceScenario        string                `yaml:"price_scenario"`
	PriceScenarios       map[string]FuelValues `yaml:"price_scenarios"`
	CarbonFactors        FuelValues            `yaml:"carbon_factors"` // kgCO2/kWh
	MaxFabricSaving      float64               `yaml:"max_fabric_saving"`
	HNHeatRatio          float64               `yaml:"hn_heat_ratio"`
}

// Prices returns the fuel prices of the active price scenario
func (f FinancialConfig) Prices() FuelValues {
	return f.PriceScenarios[f.PriceScenario]
}

// PreboundConfig maps EPC bands to prebound factors
type PreboundConfig struct {
	DefaultBand string             `yaml:"default_band"`
	Factors     map[string]float64 `yaml:"factors"`
}

// FlowTemperatureConfig holds the linear flow temperature model
type FlowTemperatureConfig struct {
	SAPLow                float64            `yaml:"sap_low"`
	TempAtSAPLow          float64            `yaml:"temp_at_sap_low"`
	SAPHigh               float64            `yaml:"sap_high"`
	TempAtSAPHigh         float64            `yaml:"temp_at_sap_high"`
	BaseMin               float64            `yaml:"base_min"`
	BaseMax               float64            `yaml:"base_max"`
	UninsulatedWallUplift float64            `yaml:"uninsulated_wall_uplift"`
	SingleGlazingUplift   float64            `yaml:"single_glazing_uplift"`
	FinalMin              float64            `yaml:"final_min"`
	FinalMax              float64            `yaml:"final_max"`
	EmitterThresholds     EmitterThresholds  `yaml:"emitter_thresholds"`
	EmitterCosts          map[string]float64 `yaml:"emitter_costs"`
}

// EmitterThresholds are the upper flow temperatures of each emitter need bucket
type EmitterThresholds struct {
	None     float64 `yaml:"none"`
	Possible float64 `yaml:"possible"`
	Likely   float64 `yaml:"likely"`
}

// COPCurveConfig is the flow temperature vs heat pump performance curve
type COPCurveConfig struct {
	DefaultCOP   float64   `yaml:"default_cop"`
	Temperatures []float64 `yaml:"temperatures"`
	Central      []float64 `yaml:"central"`
	Low          []float64 `yaml:"low"`
	High         []float64 `yaml:"high"`
}

// UncertaintyConfig holds SAP and demand uncertainty parameters
type UncertaintyConfig struct {
	SAPBuckets []SAPBucket  `yaml:"sap_buckets"`
	Demand     DemandBounds `yaml:"demand"`
}

// SAPBucket assigns an uncertainty to scores at or above MinScore
type SAPBucket struct {
	MinScore float64 `yaml:"min_score"`
	Points   float64 `yaml:"points"`
}

// DemandBounds are the relative low/high bands for savings-derived metrics
type DemandBounds struct {
	Low         float64 `yaml:"low"`
	High        float64 `yaml:"high"`
	AnomalyLow  float64 `yaml:"anomaly_low"`
	AnomalyHigh float64 `yaml:"anomaly_high"`
}

// ReadinessConfig holds the deficiency rubric and heat pump sizing
type ReadinessConfig struct {
	Weights         ReadinessWeights `yaml:"weights"`
	SAPVeryLowBelow float64          `yaml:"sap_very_low_below"`
	SAPLowBelow     float64          `yaml:"sap_low_below"`
	LoftMinMM       float64          `yaml:"loft_min_mm"`
	LoftPartialMM   float64          `yaml:"loft_partial_mm"`
	TierBounds      []float64        `yaml:"tier_bounds"`
	Sizing          SizingConfig     `yaml:"sizing"`
}

// ReadinessWeights are the deficiency score contributions
type ReadinessWeights struct {
	WallUninsulated float64 `yaml:"wall_uninsulated"`
	SolidBrickExtra float64 `yaml:"solid_brick_extra"`
	RoofPoor        float64 `yaml:"roof_poor"`
	RoofPartial     float64 `yaml:"roof_partial"`
	SingleGlazing   float64 `yaml:"single_glazing"`
	FloorPoor       float64 `yaml:"floor_poor"`
	SAPVeryLow      float64 `yaml:"sap_very_low"`
	SAPLow          float64 `yaml:"sap_low"`
}

// SizingConfig estimates heat pump capacity from floor area and demand
type SizingConfig struct {
	LowDemandBelow  float64 `yaml:"low_demand_below"`
	HighDemandAbove float64 `yaml:"high_demand_above"`
	LowFactor       float64 `yaml:"low_factor"`
	MidFactor       float64 `yaml:"mid_factor"`
	HighFactor      float64 `yaml:"high_factor"`
	MinKW           float64 `yaml:"min_kw"`
	MaxKW           float64 `yaml:"max_kw"`
}

// TippingConfig drives the fabric tipping-point curve
type TippingConfig struct {
	BaselineDemandKWh float64  `yaml:"baseline_demand_kwh"`
	FloorArea         float64  `yaml:"floor_area"`
	Multiplier        float64  `yaml:"multiplier"`
	Measures          []string `yaml:"measures"`
}

// SpatialConfig controls heat network tiering
type SpatialConfig struct {
	Enabled          bool    `yaml:"enabled"`
	ZonesPath        string  `yaml:"zones_path"`
	NetworkPath      string  `yaml:"network_path"`
	AdjacencyM       float64 `yaml:"adjacency_m"`
	GridSizeM        float64 `yaml:"grid_size_m"`
	DensityThreshold float64 `yaml:"density_threshold"` // kWh/m² of land, equal to GWh/km²
	ReadyTiers       []int   `yaml:"ready_tiers"`
	RequireLocation  bool    `yaml:"require_location"`
}

// GeocoderConfig controls the postcode lookup client
type GeocoderConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours"`
	Workers        int    `yaml:"workers"`
}

// ReconciliationConfig controls stage-count drop warnings
type ReconciliationConfig struct {
	DropThresholdPct float64  `yaml:"drop_threshold_pct"`
	AllowedDrops     []string `yaml:"allowed_drops"`
}

// DropAllowed reports whether a drop into the named stage is expected
func (r ReconciliationConfig) DropAllowed(stage string) bool {
	for _, s := range r.AllowedDrops {
		if s == stage {
			return true
		}
	}
	return false
}

// DefaultConfig returns the embedded default configuration
func DefaultConfig() (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(defaultConfigYAML, config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded default config: %w", err)
	}
	return config, nil
}

// LoadConfig loads the embedded defaults and overlays a user YAML file on top
func LoadConfig(path string) (*Config, error) {
	config, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	// If no path provided, return defaults with env var overrides
	if path == "" {
		config.applyEnvironmentVariables()
		config.applyDefaults()
		return config, nil
	}

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML over the defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentVariables()
	config.applyDefaults()

	return config, nil
}

// getDefaultStoragePath returns the default storage path
func getDefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".heatpath"
	}
	return filepath.Join(home, ".config", "heatpath")
}

// applyEnvironmentVariables overrides config with environment variables
func (c *Config) applyEnvironmentVariables() {
	if val := os.Getenv("HEATPATH_OUTPUT_DIR"); val != "" {
		c.Output.Dir = val
	}
	if val := os.Getenv("HEATPATH_CACHE_PATH"); val != "" {
		c.StoragePath = val
	}
	if val := os.Getenv("HEATPATH_PRICE_SCENARIO"); val != "" {
		c.Financial.PriceScenario = val
	}
	if val := os.Getenv("HEATPATH_DEBUG"); val == "true" || val == "1" {
		c.Debug = true
	}
}

func (c *Config) applyDefaults() {
	if c.StoragePath == "" {
		c.StoragePath = getDefaultStoragePath()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Geocoder.Workers <= 0 {
		c.Geocoder.Workers = 1
	}
}

// Validate checks the configuration before any property is processed.
// Every problem found is reported in a single ConfigError.
func (c *Config) Validate() error {
	var errors []string

	// Scenarios
	if len(c.Scenarios) == 0 {
		errors = append(errors, "scenarios: at least one scenario is required")
	}
	seen := make(map[string]bool)
	for i, s := range c.Scenarios {
		if s.Name == "" {
			errors = append(errors, fmt.Sprintf("scenarios[%d]: name is required", i))
		} else if seen[s.Name] {
			errors = append(errors, fmt.Sprintf("scenarios[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
		if !HeatTechnology(s.HeatTechnology).Valid() {
			errors = append(errors, fmt.Sprintf("scenarios.%s: unknown heat_technology %q", s.Name, s.HeatTechnology))
		}
	}

	// Measure and package references
	catalogue, err := NewCatalogue(c)
	if err != nil {
		errors = append(errors, err.Error())
	} else {
		errors = append(errors, c.validateReferences(catalogue)...)
	}

	// Cost rules
	for _, id := range sortedKeys(c.CostRules) {
		rule := c.CostRules[id]
		switch rule.Basis {
		case BasisFixed:
		case BasisPerM2:
			if rule.Rate <= 0 {
				errors = append(errors, fmt.Sprintf("cost_rules.%s: rate must be positive", id))
			}
		case BasisPerUnit:
			if rule.UnitSize <= 0 || rule.UnitRate <= 0 {
				errors = append(errors, fmt.Sprintf("cost_rules.%s: unit_size and unit_rate must be positive", id))
			}
		default:
			errors = append(errors, fmt.Sprintf("cost_rules.%s: unknown basis %q", id, rule.Basis))
		}
	}
	if c.CostAssumption.FallbackFloorArea <= 0 {
		errors = append(errors, "cost_assumptions.fallback_floor_area must be positive")
	}

	// Financial parameters
	if c.Financial.AnalysisHorizonYears <= 0 {
		errors = append(errors, "financial.analysis_horizon_years is required and must be positive")
	}
	if c.Financial.DiscountRate < 0 || c.Financial.DiscountRate >= 1 {
		errors = append(errors, "financial.discount_rate must be between 0 and 1")
	}
	if _, ok := c.Financial.PriceScenarios[c.Financial.PriceScenario]; !ok {
		errors = append(errors, fmt.Sprintf("financial.price_scenario %q is not defined in price_scenarios", c.Financial.PriceScenario))
	}
	if c.Financial.MaxFabricSaving <= 0 || c.Financial.MaxFabricSaving > 1 {
		errors = append(errors, "financial.max_fabric_saving must be in (0, 1]")
	}
	if c.Financial.HNHeatRatio <= 0 {
		errors = append(errors, "financial.hn_heat_ratio must be positive")
	}

	// Prebound factors
	for _, band := range allBands {
		factor, ok := c.Prebound.Factors[string(band)]
		if !ok {
			errors = append(errors, fmt.Sprintf("prebound.factors: missing band %s", band))
			continue
		}
		if factor <= 0 || factor > 1 {
			errors = append(errors, fmt.Sprintf("prebound.factors.%s must be in (0, 1]", band))
		}
	}
	if !EPCBand(c.Prebound.DefaultBand).Valid() {
		errors = append(errors, fmt.Sprintf("prebound.default_band %q is not an EPC band", c.Prebound.DefaultBand))
	}

	// Flow temperature
	if c.FlowTemp.SAPHigh <= c.FlowTemp.SAPLow {
		errors = append(errors, "flow_temperature.sap_high must exceed sap_low")
	}

	// COP curve
	n := len(c.COPCurve.Temperatures)
	if n < 2 {
		errors = append(errors, "cop_curve.temperatures needs at least two breakpoints")
	}
	if len(c.COPCurve.Central) != n || len(c.COPCurve.Low) != n || len(c.COPCurve.High) != n {
		errors = append(errors, fmt.Sprintf("cop_curve: central/low/high must each have %d values to match temperatures", n))
	}
	for i := 1; i < n; i++ {
		if c.COPCurve.Temperatures[i] <= c.COPCurve.Temperatures[i-1] {
			errors = append(errors, "cop_curve.temperatures must be strictly ascending")
			break
		}
	}

	// Uncertainty and readiness
	if len(c.Uncertainty.SAPBuckets) == 0 {
		errors = append(errors, "uncertainty.sap_buckets must not be empty")
	}
	if len(c.Readiness.TierBounds) != 4 || !sort.Float64sAreSorted(c.Readiness.TierBounds) {
		errors = append(errors, "readiness.tier_bounds must be four ascending values")
	}
	if c.Readiness.Sizing.MinKW > c.Readiness.Sizing.MaxKW {
		errors = append(errors, "readiness.sizing.min_kw must not exceed max_kw")
	}

	// Validation thresholds
	if c.Validation.MinFloorArea < 0 || c.Validation.MaxFloorArea <= c.Validation.MinFloorArea {
		errors = append(errors, "validation: max_floor_area must exceed a non-negative min_floor_area")
	}

	// Reconciliation
	if c.Reconciliation.DropThresholdPct < 0 || c.Reconciliation.DropThresholdPct > 1 {
		errors = append(errors, "reconciliation.drop_threshold_pct must be between 0 and 1")
	}

	if c.Spatial.GridSizeM <= 0 {
		errors = append(errors, "spatial.grid_size_m must be positive")
	}

	if len(errors) > 0 {
		return &ConfigError{
			Field:   "config",
			Message: fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - ")),
		}
	}

	return nil
}

// validateReferences checks that every measure named anywhere in the config
// resolves in the catalogue and can be priced
func (c *Config) validateReferences(catalogue *Catalogue) []string {
	var errors []string

	for _, s := range c.Scenarios {
		if _, err := catalogue.ResolveEntries("scenarios."+s.Name, s.Measures); err != nil {
			errors = append(errors, err.Error())
		}
	}
	if _, err := catalogue.ResolveEntries("tipping_point.measures", c.TippingPoint.Measures); err != nil {
		errors = append(errors, err.Error())
	}

	for _, alias := range sortedKeys(c.CostAliases) {
		if _, ok := catalogue.Measure(MeasureID(c.CostAliases[alias])); !ok {
			errors = append(errors, fmt.Sprintf("cost_aliases.%s: unknown measure %q", alias, c.CostAliases[alias]))
		}
	}
	for _, id := range sortedKeys(c.CostRules) {
		if _, ok := catalogue.Measure(MeasureID(id)); !ok {
			errors = append(errors, fmt.Sprintf("cost_rules.%s: unknown measure", id))
		}
	}
	for _, id := range sortedKeys(c.CostAssumption.Legacy) {
		if _, ok := catalogue.Measure(MeasureID(id)); !ok {
			errors = append(errors, fmt.Sprintf("cost_assumptions.legacy.%s: unknown measure", id))
		}
	}

	for _, id := range catalogue.IDs() {
		_, hasRule := c.CostRules[string(id)]
		_, hasLegacy := c.CostAssumption.Legacy[string(id)]
		if !hasRule && !hasLegacy {
			errors = append(errors, fmt.Sprintf("measure %s has neither a cost rule nor a legacy cost", id))
		}
	}

	return errors
}

// sortedKeys returns map keys in a stable order for deterministic messages
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
