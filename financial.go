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
	"math"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var (
	decimalOne     = decimal.NewFromInt(1)
	decimalHundred = decimal.NewFromInt(100)
)

// Payback returns simple payback in years. No positive bill saving means the
// measure never pays back, which takes precedence over a zero cost.
func Payback(capitalCost, billSavings float64) float64 {
	if billSavings <= 0 {
		return math.Inf(1)
	}
	if capitalCost <= 0 {
		return 0
	}
	return capitalCost / billSavings
}

// IsCostEffective reports whether a payback is finite and under the cost-effective ceiling
func IsCostEffective(payback float64) bool {
	return finite(payback) && payback < costEffectiveMaxYears
}

// PaybackBucket assigns a payback to its distribution bucket
func PaybackBucket(payback float64) string {
	switch {
	case !IsCostEffective(payback):
		return PaybackBucketNotCE
	case payback < 5:
		return PaybackBucket0to5
	case payback < 10:
		return PaybackBucket5to10
	case payback < 15:
		return PaybackBucket10to15
	case payback < 20:
		return PaybackBucket15to20
	default:
		return PaybackBucketOver20
	}
}

// NPV discounts a constant annual saving over the horizon and subtracts the up-front cost
func NPV(capitalCost, annualSaving, discountRate float64, horizonYears int) float64 {
	if !finite(capitalCost) || !finite(annualSaving) {
		return 0
	}
	factor := decimalOne.Add(decimal.NewFromFloat(discountRate))
	saving := decimal.NewFromFloat(annualSaving)

	pv := decimal.Zero
	df := decimalOne
	for year := 1; year <= horizonYears; year++ {
		df = df.Div(factor)
		pv = pv.Add(saving.Mul(df))
	}
	return pv.Sub(decimal.NewFromFloat(capitalCost)).Round(2).InexactFloat64()
}

// RoundMoney rounds a currency amount to pence
func RoundMoney(value float64) float64 {
	if !finite(value) {
		return value
	}
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

// FormatCurrency formats a value as currency
func FormatCurrency(value float64) string {
	if !finite(value) {
		return "n/a"
	}
	return "£" + humanize.FormatFloat("#,###.##", RoundMoney(value))
}

// FormatPercentage formats a fraction as a percentage
func FormatPercentage(value float64) string {
	if !finite(value) {
		return "n/a"
	}
	return decimal.NewFromFloat(value).Mul(decimalHundred).StringFixed(1) + "%"
}

// FormatYears formats a payback period
func FormatYears(value float64) string {
	if !finite(value) {
		return "never"
	}
	return fmt.Sprintf("%.1f yrs", value)
}

// FormatKWh formats an energy quantity with thousands separators
func FormatKWh(value float64) string {
	if !finite(value) {
		return "n/a"
	}
	return humanize.FormatFloat("#,###.", value) + " kWh"
}

// FormatKg formats a mass of CO2 with thousands separators
func FormatKg(value float64) string {
	if !finite(value) {
		return "n/a"
	}
	return humanize.FormatFloat("#,###.", value) + " kg"
}

// FormatCount formats an integer count with thousands separators
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}
