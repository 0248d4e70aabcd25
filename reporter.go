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
	"io"
	"os"
	"sort"
	"strings"
)

// Reporter generates markdown reports from run results
type Reporter struct {
	logger *Logger
}

// NewReporter creates a new report generator
func NewReporter(logger *Logger) *Reporter {
	return &Reporter{
		logger: logger,
	}
}

// GenerateReport writes the markdown report to outputPath, or stdout when empty
func (r *Reporter) GenerateReport(result *RunResult, outputPath string) error {
	r.logger.Info("Generating report")

	var writer io.Writer
	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	r.WriteReport(writer, result)

	if outputPath != "" {
		r.logger.Info("Report saved", "path", outputPath)
	}

	return nil
}

// WriteReport renders every report section
func (r *Reporter) WriteReport(w io.Writer, result *RunResult) {
	r.writeHeader(w, result)
	r.writeSummary(w, result)
	r.writeValidation(w, result)
	r.writeReadiness(w, result)
	r.writeSpatial(w, result)
	r.writeScenarios(w, result)
	r.writePaybackDistribution(w, result)
	r.writeBandShift(w, result)
	r.writeTippingPoint(w, result)
	r.writeArchetypes(w, result)
	r.writeReconciliation(w, result)
	r.writeFooter(w)
}

func (r *Reporter) writeHeader(w io.Writer, result *RunResult) {
	fmt.Fprintf(w, "# Heat Pathway Retrofit Analysis\n\n")
	fmt.Fprintf(w, "**Generated:** %s\n\n", result.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**Input:** `%s`\n\n", result.InputPath)
	fmt.Fprintf(w, "**Price scenario:** %s\n\n", result.PriceScenario)
	if result.Metadata != nil {
		fmt.Fprintf(w, "**Run ID:** `%s`\n\n", result.Metadata.RunID)
	}
	fmt.Fprintf(w, "**heatpath version:** %s\n\n", GetVersion())
	fmt.Fprintf(w, "---\n\n")
}

func (r *Reporter) writeSummary(w io.Writer, result *RunResult) {
	fmt.Fprintf(w, "## 📊 Summary\n\n")
	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Properties modelled | %s |\n", FormatCount(len(result.Properties)))
	fmt.Fprintf(w, "| Mean SAP score | %.1f (95%% CI %.1f to %.1f) |\n",
		result.MeanSAP, result.SAPInterval.Low, result.SAPInterval.High)
	fmt.Fprintf(w, "| EPC anomalies flagged | %s |\n", FormatCount(result.AnomalyCount))
	if result.Readiness != nil {
		fmt.Fprintf(w, "| Mean heat pump size | %.1f kW |\n", result.Readiness.MeanHeatPumpKW)
	}
	fmt.Fprintf(w, "\n")

	if headline := headlineScenario(result.Scenarios); headline != nil {
		fmt.Fprintf(w, "> **Largest carbon saving:** %s, %s of CO₂ a year for %s capital\n\n",
			headline.Scenario,
			FormatKg(headline.AnnualCO2ReductionKg),
			FormatCurrency(headline.CapitalCostTotal),
		)
	}
}

func (r *Reporter) writeValidation(w io.Writer, result *RunResult) {
	v := result.Validation
	if v == nil {
		return
	}

	fmt.Fprintf(w, "## 🧹 Data Quality\n\n")
	fmt.Fprintf(w, "%s of %s rows passed validation (%s dropped).\n\n",
		FormatCount(v.ValidCount), FormatCount(v.InputCount), FormatPercentage(v.DropRate()))

	if v.DroppedCount == 0 {
		return
	}
	fmt.Fprintf(w, "| Reason | Rows | Examples |\n")
	fmt.Fprintf(w, "|--------|-----:|----------|\n")
	for _, reason := range dropReasonOrder {
		n := v.Drops[reason]
		if n == 0 {
			continue
		}
		fmt.Fprintf(w, "| %s | %s | %s |\n", reason, FormatCount(n), strings.Join(v.Samples[reason], ", "))
	}
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writeReadiness(w io.Writer, result *RunResult) {
	s := result.Readiness
	if s == nil {
		return
	}

	fmt.Fprintf(w, "## 🔧 Heat Pump Readiness\n\n")
	fmt.Fprintf(w, "| Tier | Homes | Mean prerequisite cost |\n")
	fmt.Fprintf(w, "|------|------:|-----------------------:|\n")
	for _, tier := range s.Tiers() {
		fmt.Fprintf(w, "| %d. %s | %s | %s |\n",
			tier, TierName(tier), FormatCount(s.TierCounts[tier]), FormatCurrency(s.MeanPrerequisiteCost[tier]))
	}
	fmt.Fprintf(w, "\n**Total prerequisite investment:** %s\n\n", FormatCurrency(s.TotalPrerequisite))
}

func (r *Reporter) writeSpatial(w io.Writer, result *RunResult) {
	s := result.Spatial
	if s == nil {
		return
	}

	fmt.Fprintf(w, "## 🏙️ Heat Network Readiness\n\n")
	fmt.Fprintf(w, "- Located: %s, unlocated: %s, precomputed: %s\n",
		FormatCount(s.Located), FormatCount(s.Unlocated), FormatCount(s.Precomputed))
	fmt.Fprintf(w, "- Zones: %d, pipe segments: %d, dense grid cells: %d\n",
		s.Zones, s.PipeSegments, s.DenseCells)
	fmt.Fprintf(w, "- Heat network ready: **%s**\n\n", FormatCount(s.ReadyCount))

	fmt.Fprintf(w, "| Tier | Homes |\n")
	fmt.Fprintf(w, "|------|------:|\n")
	for _, tier := range []int{HNTierAdjacent, HNTierZone, HNTierDensity, HNTierNone} {
		fmt.Fprintf(w, "| %s | %s |\n", hnTierName(tier), FormatCount(s.TierCounts[tier]))
	}
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writeScenarios(w io.Writer, result *RunResult) {
	fmt.Fprintf(w, "## 🏠 Scenarios\n\n")
	fmt.Fprintf(w, "| Scenario | Capital cost | Per home | Bill savings / yr | CO₂ saved / yr | Mean payback | Median payback | Not cost-effective |\n")
	fmt.Fprintf(w, "|----------|-------------:|---------:|------------------:|------------------:|-------------:|---------------:|-------------------:|\n")
	for _, s := range result.Scenarios {
		fmt.Fprintf(w, "| %s | %s | %s | %s (%s to %s) | %s | %s | %s | %s |\n",
			s.Scenario,
			FormatCurrency(s.CapitalCostTotal),
			FormatCurrency(s.CapitalCostPerProperty),
			FormatCurrency(s.AnnualBillSavings),
			FormatCurrency(s.BillSavingsRange.Low),
			FormatCurrency(s.BillSavingsRange.High),
			FormatKg(s.AnnualCO2ReductionKg),
			paybackCell(s.AveragePaybackYears, s.CostEffectiveCount),
			paybackCell(s.MedianPaybackYears, s.CostEffectiveCount),
			FormatPercentage(s.NotCostEffectivePct),
		)
	}
	fmt.Fprintf(w, "\n")

	for _, s := range result.Scenarios {
		if s.HeatTechnology != TechHybrid {
			continue
		}
		fmt.Fprintf(w, "*%s routing: %s homes to a heat network, %s to a heat pump.*\n\n",
			s.Scenario, FormatCount(s.HeatNetworkRouted), FormatCount(s.HeatPumpRouted))
	}

	fallbacks := map[MeasureID]bool{}
	for _, s := range result.Scenarios {
		for _, id := range s.CostAudit.FallbackMeasures() {
			fallbacks[id] = true
		}
	}
	if len(fallbacks) > 0 {
		ids := make([]string, 0, len(fallbacks))
		for id := range fallbacks {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		fmt.Fprintf(w, "⚠️ Priced from legacy flat costs (no cost rule): %s\n\n", strings.Join(ids, ", "))
	}
}

func (r *Reporter) writePaybackDistribution(w io.Writer, result *RunResult) {
	if len(result.Scenarios) == 0 {
		return
	}

	fmt.Fprintf(w, "## ⏱️ Payback Distribution\n\n")
	fmt.Fprintf(w, "| Scenario |")
	for _, bucket := range paybackBucketOrder {
		fmt.Fprintf(w, " %s |", paybackBucketLabel(bucket))
	}
	fmt.Fprintf(w, "\n|----------|")
	for range paybackBucketOrder {
		fmt.Fprintf(w, "---:|")
	}
	fmt.Fprintf(w, "\n")
	for _, s := range result.Scenarios {
		fmt.Fprintf(w, "| %s |", s.Scenario)
		for _, bucket := range paybackBucketOrder {
			fmt.Fprintf(w, " %s |", FormatCount(s.PaybackBuckets[bucket]))
		}
		fmt.Fprintf(w, "\n")
	}
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writeBandShift(w io.Writer, result *RunResult) {
	if len(result.Scenarios) == 0 {
		return
	}

	fmt.Fprintf(w, "## 📈 EPC Band Shift\n\n")
	fmt.Fprintf(w, "| Scenario |")
	for _, band := range allBands {
		fmt.Fprintf(w, " %s |", band)
	}
	fmt.Fprintf(w, "\n|----------|")
	for range allBands {
		fmt.Fprintf(w, "---|")
	}
	fmt.Fprintf(w, "\n")

	if first := result.Scenarios[0]; first != nil {
		fmt.Fprintf(w, "| *current* |")
		for _, band := range allBands {
			fmt.Fprintf(w, " %d |", first.BandsBefore[band])
		}
		fmt.Fprintf(w, "\n")
	}
	for _, s := range result.Scenarios {
		fmt.Fprintf(w, "| %s |", s.Scenario)
		for _, band := range allBands {
			fmt.Fprintf(w, " %d |", s.BandsAfter[band])
		}
		fmt.Fprintf(w, "\n")
	}
	fmt.Fprintf(w, "\n")
}

func (r *Reporter) writeTippingPoint(w io.Writer, result *RunResult) {
	curve := result.Tipping
	if curve == nil || len(curve.Steps) == 0 {
		return
	}

	fmt.Fprintf(w, "## 🧱 Fabric Tipping Point\n\n")
	fmt.Fprintf(w, "Representative home: %s kWh a year over %.0f m².\n\n",
		FormatKWh(curve.BaselineDemandKWh), curve.FloorArea)
	fmt.Fprintf(w, "| Step | Measure | Cost | kWh saved | £ per kWh | Cumulative cost |\n")
	fmt.Fprintf(w, "|-----:|---------|-----:|----------:|----------:|----------------:|\n")
	for _, s := range curve.Steps {
		marker := ""
		if s.IsTippingPoint {
			marker = " ⚠️"
		}
		perKWh := fmt.Sprintf("%.2f", s.MarginalCostPerKWh)
		if s.NoSaving {
			perKWh = "no saving"
		}
		fmt.Fprintf(w, "| %d | %s%s | %s | %s | %s | %s |\n",
			s.Step, s.Measure, marker, FormatCurrency(s.Cost), FormatKWh(s.MarginalKWh), perKWh, FormatCurrency(s.CumulativeCost))
	}

	if tp, ok := curve.TippingPoint(); ok {
		fmt.Fprintf(w, "\n> **Tipping point:** step %d (%s) costs more than %.1f× the cheapest earlier kWh saved.\n\n",
			tp.Step, tp.Measure, curve.Multiplier)
	} else {
		fmt.Fprintf(w, "\n> No tipping point within the configured measures.\n\n")
	}
}

func (r *Reporter) writeArchetypes(w io.Writer, result *RunResult) {
	if len(result.Archetypes) == 0 {
		return
	}

	fmt.Fprintf(w, "## 🏘️ Archetypes\n\n")
	for _, dim := range ArchetypeDimensions() {
		stats := result.Archetypes[dim]
		if len(stats) == 0 {
			continue
		}
		fmt.Fprintf(w, "### %s\n\n", strings.ReplaceAll(dim, "_", " "))
		fmt.Fprintf(w, "| Group | Homes | Mean floor area | Mean SAP | Mean kWh/m² | Median kWh/m² | Uninsulated walls | Single glazed |\n")
		fmt.Fprintf(w, "|-------|------:|----------------:|---------:|------------:|--------------:|------------------:|--------------:|\n")
		for _, s := range stats {
			fmt.Fprintf(w, "| %s | %s | %.0f m² | %.1f | %.0f | %.0f | %s | %s |\n",
				s.Key, FormatCount(s.Count), s.MeanFloorArea, s.MeanSAP, s.MeanIntensity, s.MedianIntensity,
				FormatPercentage(s.ShareUninsulatedWalls), FormatPercentage(s.ShareSingleGlazing))
		}
		fmt.Fprintf(w, "\n")
	}
}

func (r *Reporter) writeReconciliation(w io.Writer, result *RunResult) {
	if result.Metadata == nil {
		return
	}

	fmt.Fprintf(w, "## 🧮 Count Reconciliation\n\n")
	fmt.Fprintf(w, "%s\n", result.Metadata.ReconciliationMarkdown())
}

func (r *Reporter) writeFooter(w io.Writer) {
	fmt.Fprintf(w, "---\n\n")
	fmt.Fprintf(w, "*Generated by heatpath %s. Estimates are modelled from EPC records and carry the uncertainty ranges shown.*\n", GetVersion())
}

// paybackCell formats an average payback, or n/a when no home is cost-effective
func paybackCell(years float64, costEffective int) string {
	if costEffective == 0 {
		return "n/a"
	}
	return FormatYears(years)
}

func hnTierName(tier int) string {
	switch tier {
	case HNTierAdjacent:
		return "Adjacent to network"
	case HNTierZone:
		return "In heat network zone"
	case HNTierDensity:
		return "High heat density"
	default:
		return "Not ready"
	}
}
