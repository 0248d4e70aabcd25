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

const (
	// PostcodesIOEndpoint is the bulk postcode lookup endpoint used by the geocoder
	PostcodesIOEndpoint = "https://api.postcodes.io/postcodes"

	// postcodeBatchSize is the maximum number of postcodes postcodes.io accepts per request
	postcodeBatchSize = 100
)

// Pipeline stage names recorded in the run metadata, upstream first
const (
	StageRawLoaded     = "raw_loaded"
	StageValidated     = "validated"
	StageGeocoded      = "geocoded"
	StageScenarioInput = "scenario_input"
	StageFinalModeled  = "final_modeled"
)

// stageOrder lists the canonical stages from most downstream to most upstream
var stageOrder = []string{
	StageFinalModeled,
	StageScenarioInput,
	StageGeocoded,
	StageValidated,
	StageRawLoaded,
}

// sapBandThresholds maps the minimum SAP score for each EPC band, best band first
var sapBandThresholds = []struct {
	Band EPCBand
	Min  float64
}{
	{BandA, 92},
	{BandB, 81},
	{BandC, 69},
	{BandD, 55},
	{BandE, 39},
	{BandF, 21},
	{BandG, 0},
}

// allBands lists EPC bands from best to worst
var allBands = []EPCBand{BandA, BandB, BandC, BandD, BandE, BandF, BandG}

// Payback distribution bucket labels, in report order
const (
	PaybackBucket0to5     = "0-5"
	PaybackBucket5to10    = "5-10"
	PaybackBucket10to15   = "10-15"
	PaybackBucket15to20   = "15-20"
	PaybackBucketOver20   = ">20"
	PaybackBucketNotCE    = "not_cost_effective"
	costEffectiveMaxYears = 100.0
)

var paybackBucketOrder = []string{
	PaybackBucket0to5,
	PaybackBucket5to10,
	PaybackBucket10to15,
	PaybackBucket15to20,
	PaybackBucketOver20,
	PaybackBucketNotCE,
}

// z-score for a two-sided 95% confidence interval
const z95 = 1.96
