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
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMarginLeft   = 15.0
	pdfMarginTop    = 15.0
	pdfMarginRight  = 15.0
	pdfMarginBottom = 15.0
	pdfContentWidth = 210.0 - pdfMarginLeft - pdfMarginRight
)

// pdfText converts UTF-8 text to the Latin-1 bytes the standard PDF fonts expect
func pdfText(s string) string {
	return strings.NewReplacer(
		"£", "\xa3",
		"²", "\xb2",
		"₂", "2",
		"×", "x",
	).Replace(s)
}

// PDFSummaryReport renders a printable scenario summary
type PDFSummaryReport struct {
	pdf    *fpdf.Fpdf
	result *RunResult
}

// GeneratePDFReport creates the PDF summary for a run
func GeneratePDFReport(result *RunResult) ([]byte, error) {
	report := &PDFSummaryReport{
		pdf:    fpdf.New("P", "mm", "A4", ""),
		result: result,
	}

	report.pdf.SetMargins(pdfMarginLeft, pdfMarginTop, pdfMarginRight)
	report.pdf.SetAutoPageBreak(true, pdfMarginBottom)

	report.addTitlePage()
	report.addScenarioPage()
	report.addReadinessPage()

	var buf bytes.Buffer
	if err := report.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *PDFSummaryReport) heading(text string) {
	r.pdf.SetFont("Arial", "B", 14)
	r.pdf.SetTextColor(0, 51, 102)
	r.pdf.CellFormat(pdfContentWidth, 10, pdfText(text), "", 1, "L", false, 0, "")
	r.pdf.SetFont("Arial", "", 10)
	r.pdf.SetTextColor(50, 50, 50)
}

func (r *PDFSummaryReport) addTitlePage() {
	r.pdf.AddPage()

	r.pdf.SetFont("Arial", "B", 26)
	r.pdf.SetTextColor(0, 51, 102)
	r.pdf.Ln(40)
	r.pdf.CellFormat(pdfContentWidth, 15, "Heat Pathway Retrofit Analysis", "", 1, "C", false, 0, "")

	r.pdf.SetFont("Arial", "I", 11)
	r.pdf.SetTextColor(80, 80, 80)
	r.pdf.Ln(10)
	r.pdf.CellFormat(pdfContentWidth, 8, fmt.Sprintf("Generated: %s", r.result.GeneratedAt.Format("2 January 2006")), "", 1, "C", false, 0, "")
	r.pdf.CellFormat(pdfContentWidth, 8, pdfText(fmt.Sprintf("Price scenario: %s", r.result.PriceScenario)), "", 1, "C", false, 0, "")
	if r.result.Metadata != nil {
		r.pdf.CellFormat(pdfContentWidth, 8, fmt.Sprintf("Run %s", r.result.Metadata.RunID), "", 1, "C", false, 0, "")
	}

	r.pdf.Ln(20)
	r.pdf.SetFillColor(245, 247, 250)
	r.pdf.SetDrawColor(200, 200, 200)
	r.pdf.SetFont("Arial", "B", 12)
	r.pdf.SetTextColor(0, 51, 102)
	r.pdf.CellFormat(pdfContentWidth, 8, "Sample", "1", 1, "C", true, 0, "")

	r.pdf.SetFont("Arial", "", 11)
	r.pdf.SetTextColor(50, 50, 50)
	lines := []string{
		fmt.Sprintf("Properties modelled: %s", FormatCount(len(r.result.Properties))),
		fmt.Sprintf("Mean SAP %.1f (95%% CI %.1f to %.1f)", r.result.MeanSAP, r.result.SAPInterval.Low, r.result.SAPInterval.High),
		fmt.Sprintf("EPC anomalies flagged: %s", FormatCount(r.result.AnomalyCount)),
	}
	for i, line := range lines {
		border := "LR"
		if i == len(lines)-1 {
			border = "LRB"
		}
		r.pdf.CellFormat(pdfContentWidth, 7, pdfText(line), border, 1, "C", true, 0, "")
	}

	r.pdf.Ln(15)
	r.pdf.SetFont("Arial", "I", 9)
	r.pdf.SetTextColor(120, 120, 120)
	r.pdf.MultiCell(pdfContentWidth, 4.5,
		"Estimates are modelled from EPC records with prebound, flow temperature and uncertainty adjustments. They are not quotes.",
		"", "C", false)
}

func (r *PDFSummaryReport) addScenarioPage() {
	r.pdf.AddPage()
	r.heading("Scenarios")

	widths := []float64{36, 30, 28, 30, 28, 28}
	headers := []string{"Scenario", "Capital cost", "Bills / yr", "CO2 / yr", "Median payback", "Not cost-eff."}

	r.pdf.SetFont("Arial", "B", 9)
	r.pdf.SetFillColor(0, 51, 102)
	r.pdf.SetTextColor(255, 255, 255)
	for i, h := range headers {
		r.pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	r.pdf.Ln(-1)

	r.pdf.SetFont("Arial", "", 9)
	r.pdf.SetTextColor(50, 50, 50)
	for i, s := range r.result.Scenarios {
		fill := i%2 == 1
		r.pdf.SetFillColor(245, 247, 250)
		cells := []string{
			s.Scenario,
			FormatCurrency(s.CapitalCostTotal),
			FormatCurrency(s.AnnualBillSavings),
			FormatKg(s.AnnualCO2ReductionKg),
			paybackCell(s.MedianPaybackYears, s.CostEffectiveCount),
			FormatPercentage(s.NotCostEffectivePct),
		}
		for j, c := range cells {
			align := "R"
			if j == 0 {
				align = "L"
			}
			r.pdf.CellFormat(widths[j], 6, pdfText(c), "1", 0, align, fill, 0, "")
		}
		r.pdf.Ln(-1)
	}

	if tp, ok := r.tippingPoint(); ok {
		r.pdf.Ln(8)
		r.heading("Fabric tipping point")
		r.pdf.MultiCell(pdfContentWidth, 5, pdfText(fmt.Sprintf(
			"Step %d (%s) costs %s per kWh saved, more than %.1f times the cheapest earlier step.",
			tp.Step, tp.Measure, FormatCurrency(tp.MarginalCostPerKWh), r.result.Tipping.Multiplier)), "", "L", false)
	}
}

func (r *PDFSummaryReport) tippingPoint() (TippingStep, bool) {
	if r.result.Tipping == nil {
		return TippingStep{}, false
	}
	return r.result.Tipping.TippingPoint()
}

func (r *PDFSummaryReport) addReadinessPage() {
	s := r.result.Readiness
	if s == nil {
		return
	}

	r.pdf.AddPage()
	r.heading("Heat pump readiness")

	for _, tier := range s.Tiers() {
		r.pdf.CellFormat(80, 6, fmt.Sprintf("%d. %s", tier, TierName(tier)), "B", 0, "L", false, 0, "")
		r.pdf.CellFormat(40, 6, FormatCount(s.TierCounts[tier]), "B", 0, "R", false, 0, "")
		r.pdf.CellFormat(60, 6, pdfText(FormatCurrency(s.MeanPrerequisiteCost[tier])), "B", 1, "R", false, 0, "")
	}

	if meta := r.result.Metadata; meta != nil {
		r.pdf.Ln(10)
		r.heading("Count reconciliation")
		for _, st := range meta.Stages {
			line := fmt.Sprintf("%-16s %8s  (drop %s)", st.Name, FormatCount(st.Count), FormatPercentage(st.DropPct))
			r.pdf.CellFormat(pdfContentWidth, 5, line, "", 1, "L", false, 0, "")
		}
		for _, w := range meta.Warnings {
			r.pdf.SetTextColor(180, 60, 0)
			r.pdf.MultiCell(pdfContentWidth, 5, pdfText(w), "", "L", false)
		}
	}
}
