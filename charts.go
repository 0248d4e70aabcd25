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
	"encoding/base64"
	"fmt"

	charts "github.com/vicanso/go-charts/v2"
)

// ChartGenerator renders report charts as base64 PNGs
type ChartGenerator struct {
	theme string
}

// NewChartGenerator creates a new chart generator
func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{
		theme: "dark", // Match our HTML report dark theme
	}
}

// GeneratePaybackChart creates a bar chart of the payback distribution, one series per scenario
func (cg *ChartGenerator) GeneratePaybackChart(results []*ScenarioResult) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("no scenario results available")
	}

	values := make([][]float64, 0, len(results))
	legendLabels := make([]string, 0, len(results))
	for _, r := range results {
		series := make([]float64, 0, len(paybackBucketOrder))
		for _, bucket := range paybackBucketOrder {
			series = append(series, float64(r.PaybackBuckets[bucket]))
		}
		values = append(values, series)
		legendLabels = append(legendLabels, r.Scenario)
	}

	labels := make([]string, 0, len(paybackBucketOrder))
	for _, bucket := range paybackBucketOrder {
		labels = append(labels, paybackBucketLabel(bucket))
	}

	p, err := charts.BarRender(
		values,
		charts.TitleTextOptionFunc("Payback Distribution (homes)"),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc(legendLabels, charts.PositionRight),
		charts.ThemeOptionFunc(cg.theme),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(cg.padding()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render payback chart: %w", err)
	}
	return encodeChart(p)
}

// GenerateTippingChart creates a line chart of marginal cost per kWh saved along the fabric curve
func (cg *ChartGenerator) GenerateTippingChart(curve *TippingCurve) (string, error) {
	if curve == nil || len(curve.Steps) == 0 {
		return "", fmt.Errorf("no tipping curve available")
	}

	labels := make([]string, 0, len(curve.Steps))
	marginal := make([]float64, 0, len(curve.Steps))
	cumulative := make([]float64, 0, len(curve.Steps))
	for _, s := range curve.Steps {
		labels = append(labels, fmt.Sprintf("%d", s.Step))
		marginal = append(marginal, s.MarginalCostPerKWh)
		cumulative = append(cumulative, s.CumulativeCost/1000)
	}

	p, err := charts.LineRender(
		[][]float64{marginal, cumulative},
		charts.TitleTextOptionFunc("Fabric Tipping Point"),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc([]string{"Marginal £/kWh saved", "Cumulative cost (£k)"}, charts.PositionRight),
		charts.ThemeOptionFunc(cg.theme),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(cg.padding()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render tipping chart: %w", err)
	}
	return encodeChart(p)
}

// GenerateBandShiftChart compares EPC band counts before and after one scenario
func (cg *ChartGenerator) GenerateBandShiftChart(result *ScenarioResult) (string, error) {
	if result == nil || result.PropertyCount == 0 {
		return "", fmt.Errorf("no scenario result available")
	}

	labels := make([]string, 0, len(allBands))
	before := make([]float64, 0, len(allBands))
	after := make([]float64, 0, len(allBands))
	for _, band := range allBands {
		labels = append(labels, string(band))
		before = append(before, float64(result.BandsBefore[band]))
		after = append(after, float64(result.BandsAfter[band]))
	}

	p, err := charts.BarRender(
		[][]float64{before, after},
		charts.TitleTextOptionFunc(fmt.Sprintf("EPC Bands: %s", result.Scenario)),
		charts.XAxisDataOptionFunc(labels),
		charts.LegendLabelsOptionFunc([]string{"Before", "After"}, charts.PositionRight),
		charts.ThemeOptionFunc(cg.theme),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(cg.padding()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render band chart: %w", err)
	}
	return encodeChart(p)
}

// GenerateAll fills the chart fields of a run result. Chart failures are
// logged and leave the chart empty.
func (cg *ChartGenerator) GenerateAll(result *RunResult, logger *Logger) {
	var err error
	if result.PaybackChart, err = cg.GeneratePaybackChart(result.Scenarios); err != nil {
		logger.Warn("Failed to generate payback chart", "error", err)
	}
	if result.TippingChart, err = cg.GenerateTippingChart(result.Tipping); err != nil {
		logger.Warn("Failed to generate tipping chart", "error", err)
	}
	if headline := headlineScenario(result.Scenarios); headline != nil {
		if result.BandChart, err = cg.GenerateBandShiftChart(headline); err != nil {
			logger.Warn("Failed to generate band chart", "error", err)
		}
	}
}

func (cg *ChartGenerator) padding() charts.Box {
	return charts.Box{
		Top:    20,
		Right:  20,
		Bottom: 20,
		Left:   20,
	}
}

// encodeChart converts a rendered chart to base64 for embedding in HTML
func encodeChart(p *charts.Painter) (string, error) {
	buf, err := p.Bytes()
	if err != nil {
		return "", fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// headlineScenario picks the scenario with the largest annual CO2 reduction
func headlineScenario(results []*ScenarioResult) *ScenarioResult {
	var best *ScenarioResult
	for _, r := range results {
		if best == nil || r.AnnualCO2ReductionKg > best.AnnualCO2ReductionKg {
			best = r
		}
	}
	return best
}

// paybackBucketLabel turns a bucket key into a display label
func paybackBucketLabel(bucket string) string {
	switch bucket {
	case PaybackBucketOver20:
		return "20+ yrs"
	case PaybackBucketNotCE:
		return "Not cost-effective"
	default:
		return bucket + " yrs"
	}
}
