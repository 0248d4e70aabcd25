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
	"time"
)

// EPCBand is an Energy Performance Certificate letter band (A best, G worst)
type EPCBand string

const (
	BandA EPCBand = "A"
	BandB EPCBand = "B"
	BandC EPCBand = "C"
	BandD EPCBand = "D"
	BandE EPCBand = "E"
	BandF EPCBand = "F"
	BandG EPCBand = "G"
)

// Valid reports whether b is one of A-G
func (b EPCBand) Valid() bool {
	for _, band := range allBands {
		if b == band {
			return true
		}
	}
	return false
}

// BandForScore maps a SAP score onto its EPC letter band
func BandForScore(score float64) EPCBand {
	for _, t := range sapBandThresholds {
		if score >= t.Min {
			return t.Band
		}
	}
	return BandG
}

// WallType is the construction type of the external walls
type WallType string

const (
	WallSolid  WallType = "solid"
	WallCavity WallType = "cavity"
	WallOther  WallType = "other"
)

// GlazingType is the dominant glazing category
type GlazingType string

const (
	GlazingSingle  GlazingType = "single"
	GlazingDouble  GlazingType = "double"
	GlazingTriple  GlazingType = "triple"
	GlazingUnknown GlazingType = "unknown"
)

// Confidence is the confidence tier of an estimate inferred from free text
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// HeatingSystem is the category of the main heating system
type HeatingSystem string

const (
	HeatingGasBoiler HeatingSystem = "gas_boiler"
	HeatingElectric  HeatingSystem = "electric"
	HeatingHeatPump  HeatingSystem = "heat_pump"
	HeatingDistrict  HeatingSystem = "district"
	HeatingOil       HeatingSystem = "oil"
	HeatingOther     HeatingSystem = "other"
)

// Rating is an EPC element energy-efficiency rating
type Rating string

const (
	RatingVeryGood Rating = "very_good"
	RatingGood     Rating = "good"
	RatingAverage  Rating = "average"
	RatingPoor     Rating = "poor"
	RatingVeryPoor Rating = "very_poor"
	RatingUnknown  Rating = "unknown"
)

// IsPoor reports whether the rating is poor or very poor
func (r Rating) IsPoor() bool {
	return r == RatingPoor || r == RatingVeryPoor
}

// EmitterNeed buckets how likely the existing radiators need upgrading for a heat pump
type EmitterNeed string

const (
	EmitterNone     EmitterNeed = "none"
	EmitterPossible EmitterNeed = "possible"
	EmitterLikely   EmitterNeed = "likely"
	EmitterDefinite EmitterNeed = "definite"
)

// Property is one EPC certificate row, enriched in place by each pipeline stage
type Property struct {
	// Identity
	LMKKey              string  `json:"lmk_key"`
	Postcode            string  `json:"postcode"`
	FloorArea           float64 `json:"floor_area"` // m²
	ConstructionAgeBand string  `json:"construction_age_band"`
	PropertyType        string  `json:"property_type"`
	BuiltForm           string  `json:"built_form"`
	WallsDescription    string  `json:"walls_description"`
	RoofDescription     string  `json:"roof_description"`
	FloorDescription    string  `json:"floor_description"`
	WindowsDescription  string  `json:"windows_description"`
	MainheatDescription string  `json:"mainheat_description"`
	HotwaterDescription string  `json:"hotwater_description"`
	WallsEnergyEff      string  `json:"walls_energy_eff"`
	RoofEnergyEff       string  `json:"roof_energy_eff"`
	FloorEnergyEff      string  `json:"floor_energy_eff"`

	// Energy
	EnergyConsumption float64 `json:"energy_consumption"` // kWh/m²/year
	CO2Emissions      float64 `json:"co2_emissions"`      // tonnes/year
	SAPScore          float64 `json:"sap_score"`
	EPCBand           EPCBand `json:"epc_band"`

	// Location (British National Grid metres)
	Easting     float64 `json:"easting,omitempty"`
	Northing    float64 `json:"northing,omitempty"`
	HasLocation bool    `json:"has_location"`

	// Derived fabric flags
	WallType        WallType      `json:"wall_type"`
	WallInsulated   bool          `json:"wall_insulated"`
	SolidBrick      bool          `json:"solid_brick"`
	Glazing         GlazingType   `json:"glazing"`
	LoftThicknessMM float64       `json:"loft_thickness_mm"`
	LoftConfidence  Confidence    `json:"loft_confidence"`
	RoofText        RoofText      `json:"roof_text"`
	RoofRating      Rating        `json:"roof_rating"`
	FloorRating     Rating        `json:"floor_rating"`
	HeatingSystem   HeatingSystem `json:"heating_system"`
	HasCylinder     bool          `json:"has_cylinder"`
	EPCAnomaly      bool          `json:"epc_anomaly"`

	// Methodological adjustments
	PreboundFactor             float64     `json:"prebound_factor"`
	EnergyConsumptionAdjusted  float64     `json:"energy_consumption_adjusted"`
	BaselineConsumptionKWhYear float64     `json:"baseline_consumption_kwh_year"`
	FlowTemperature            float64     `json:"flow_temperature"`
	EmitterNeed                EmitterNeed `json:"emitter_need,omitempty"`
	EmitterUpgradeCost         float64     `json:"emitter_upgrade_cost"`
	SPFCentral                 float64     `json:"spf_central"`
	SPFLow                     float64     `json:"spf_low"`
	SPFHigh                    float64     `json:"spf_high"`
	SAPUncertainty             float64     `json:"sap_uncertainty"`

	// Readiness
	DeficiencyScore      float64     `json:"deficiency_score"`
	ReadinessTier        int         `json:"readiness_tier"`
	PrerequisiteCost     float64     `json:"prerequisite_cost"`
	PrerequisiteMeasures []MeasureID `json:"prerequisite_measures,omitempty"`
	HeatPumpSizeKW       float64     `json:"heat_pump_size_kw"`

	// Spatial readiness
	HNReady            bool    `json:"hn_ready"`
	HNTier             int     `json:"hn_tier"`
	DistanceToNetworkM float64 `json:"distance_to_network_m"`
	InHNZone           bool    `json:"in_hn_zone"`
	SpatialProvided    bool    `json:"spatial_provided"`
}

// AnnualEnergyKWh returns the absolute annual energy demand, preferring the prebound-adjusted value
func (p *Property) AnnualEnergyKWh() float64 {
	if p.BaselineConsumptionKWhYear > 0 {
		return p.BaselineConsumptionKWhYear
	}
	return p.EnergyConsumption * p.FloorArea
}

// RoofText is what the roof description says about insulation
type RoofText string

const (
	RoofTextNone    RoofText = "none"
	RoofTextPartial RoofText = "partial"
	RoofTextGood    RoofText = "insulated"
	RoofTextUnknown RoofText = "unknown"
)

// Range is a low/central/high estimate
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// PropertyUpgrade is the result of applying one scenario to one property
type PropertyUpgrade struct {
	LMKKey                   string       `json:"lmk_key"`
	Scenario                 string       `json:"scenario"`
	Route                    string       `json:"route"`
	Measures                 []MeasureID  `json:"measures"`
	CapitalCost              float64      `json:"capital_cost"`
	CurrentAnnualEnergyKWh   float64      `json:"current_annual_energy_kwh"`
	AnnualEnergyReductionKWh float64      `json:"annual_energy_reduction_kwh"`
	AnnualCO2ReductionKg     float64      `json:"annual_co2_reduction_kg"`
	AnnualBillSavings        float64      `json:"annual_bill_savings"`
	BillSavingsRange         Range        `json:"bill_savings_range"`
	EnergyReductionRange     Range        `json:"energy_reduction_range"`
	CurrentBand              EPCBand      `json:"current_band"`
	NewSAPScore              float64      `json:"new_sap_score"`
	NewEPCBand               EPCBand      `json:"new_epc_band"`
	PaybackYears             float64      `json:"payback_years"`
	PaybackRange             Range        `json:"payback_range"`
	NPV                      float64      `json:"npv"`
	CostDetails              []CostDetail `json:"cost_details,omitempty"`
}

// ScenarioResult aggregates property-level upgrades for one scenario
type ScenarioResult struct {
	Scenario               string          `json:"scenario"`
	Description            string          `json:"description"`
	HeatTechnology         HeatTechnology  `json:"heat_technology"`
	PropertyCount          int             `json:"property_count"`
	CapitalCostTotal       float64         `json:"capital_cost_total"`
	CapitalCostPerProperty float64         `json:"capital_cost_per_property"`
	CurrentAnnualEnergyKWh float64         `json:"current_annual_energy_kwh"`
	AnnualEnergyReduction  float64         `json:"annual_energy_reduction_kwh"`
	AnnualCO2ReductionKg   float64         `json:"annual_co2_reduction_kg"`
	AnnualBillSavings      float64         `json:"annual_bill_savings"`
	BillSavingsRange       Range           `json:"bill_savings_range"`
	EnergyReductionRange   Range           `json:"energy_reduction_range"`
	AveragePaybackYears    float64         `json:"average_payback_years"`
	MedianPaybackYears     float64         `json:"median_payback_years"`
	CostEffectiveCount     int             `json:"cost_effective_count"`
	NotCostEffectiveCount  int             `json:"not_cost_effective_count"`
	NotCostEffectivePct    float64         `json:"not_cost_effective_pct"`
	PaybackBuckets         map[string]int  `json:"payback_buckets"`
	BandsBefore            map[EPCBand]int `json:"bands_before"`
	BandsAfter             map[EPCBand]int `json:"bands_after"`
	HeatPumpRouted         int             `json:"heat_pump_routed"`
	HeatNetworkRouted      int             `json:"heat_network_routed"`
	TotalNPV               float64         `json:"total_npv"`
	CostAudit              CostAudit       `json:"cost_audit,omitempty"`
}

// RunResult holds everything produced by one pipeline invocation
type RunResult struct {
	GeneratedAt   time.Time                  `json:"generated_at"`
	InputPath     string                     `json:"input_path"`
	PriceScenario string                     `json:"price_scenario"`
	Validation    *ValidationReport          `json:"validation"`
	SAPInterval   Range                      `json:"sap_interval"`
	MeanSAP       float64                    `json:"mean_sap"`
	AnomalyCount  int                        `json:"anomaly_count"`
	Readiness     *ReadinessSummary          `json:"readiness"`
	Tipping       *TippingCurve              `json:"tipping"`
	Archetypes    map[string][]ArchetypeStat `json:"archetypes"`
	Spatial       *SpatialSummary            `json:"spatial,omitempty"`
	Scenarios     []*ScenarioResult          `json:"scenarios"`
	Properties    []*Property                `json:"-"`
	Upgrades      []PropertyUpgrade          `json:"-"`
	Metadata      *RunMetadata               `json:"metadata"`

	// Charts (base64 encoded PNG images)
	PaybackChart string `json:"-"`
	TippingChart string `json:"-"`
	BandChart    string `json:"-"`
}

// finite reports whether v is neither NaN nor infinite
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
