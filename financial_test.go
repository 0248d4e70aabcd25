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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayback(t *testing.T) {
	tests := []struct {
		name    string
		cost    float64
		savings float64
		want    float64
	}{
		{"ordinary", 1000, 100, 10},
		{"free measure", 0, 100, 0},
		{"no savings", 1000, 0, math.Inf(1)},
		{"negative savings", 1000, -25, math.Inf(1)},
		{"free measure with no savings never pays back", 0, 0, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Payback(tt.cost, tt.savings))
		})
	}
}

func TestPaybackBucket(t *testing.T) {
	tests := []struct {
		payback float64
		want    string
	}{
		{0, PaybackBucket0to5},
		{4.99, PaybackBucket0to5},
		{5, PaybackBucket5to10},
		{14.9, PaybackBucket10to15},
		{19, PaybackBucket15to20},
		{20, PaybackBucketOver20},
		{99, PaybackBucketOver20},
		{100, PaybackBucketNotCE},
		{math.Inf(1), PaybackBucketNotCE},
		{math.NaN(), PaybackBucketNotCE},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PaybackBucket(tt.payback), "bucket for %g", tt.payback)
	}

	assert.True(t, IsCostEffective(99.9))
	assert.False(t, IsCostEffective(100))
}

func TestNPV(t *testing.T) {
	assert.InDelta(t, 0, NPV(1000, 100, 0, 10), 1e-9)
	assert.InDelta(t, -1000, NPV(1000, 0, 0.035, 20), 1e-9)

	// Twenty years of £100 at 3.5% is worth £1,421.24 today
	assert.InDelta(t, 1421.24, NPV(0, 100, 0.035, 20), 0.01)
	assert.InDelta(t, 421.24, NPV(1000, 100, 0.035, 20), 0.01)

	assert.Zero(t, NPV(math.Inf(1), 100, 0.035, 20))
	assert.Zero(t, NPV(1000, math.NaN(), 0.035, 20))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 1.01, RoundMoney(1.005))
	assert.Equal(t, 12.35, RoundMoney(12.345))
	assert.True(t, math.IsInf(RoundMoney(math.Inf(1)), 1))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "£1,234.50", FormatCurrency(1234.5))
	assert.Equal(t, "n/a", FormatCurrency(math.Inf(1)))
	assert.Equal(t, "12.5%", FormatPercentage(0.125))
	assert.Equal(t, "0.0%", FormatPercentage(0))
	assert.Equal(t, "never", FormatYears(math.Inf(1)))
	assert.Equal(t, "7.3 yrs", FormatYears(7.26))
	assert.Equal(t, "15,000 kWh", FormatKWh(15000))
	assert.Equal(t, "1,500 kg", FormatKg(1500))
	assert.Equal(t, "1,234,567", FormatCount(1234567))
}

func TestTariff(t *testing.T) {
	cfg := testConfig(t)
	tariff := NewTariff(cfg.Financial)

	assert.Equal(t, "baseline", tariff.Scenario)
	assert.Equal(t, 0.0624, tariff.Price(FuelGas))
	assert.Equal(t, 0.245, tariff.Price(FuelElectricity))
	assert.InDelta(t, 624, tariff.Cost(FuelGas, 10000), 1e-9)
	assert.InDelta(t, 1830, tariff.Emissions(FuelGas, 10000), 1e-9)

	assert.Equal(t, FuelElectricity, FuelFor(HeatingHeatPump))
	assert.Equal(t, FuelHeatNetwork, FuelFor(HeatingDistrict))
	assert.Equal(t, FuelOil, FuelFor(HeatingOil))
	assert.Equal(t, FuelGas, FuelFor(HeatingOther))

	cfg.Financial.PriceScenario = "high"
	assert.Equal(t, 0.09, NewTariff(cfg.Financial).Price(FuelGas))
}
