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
	"html"
	"io"
	"os"
)

// HTMLReporter generates HTML reports from run results
type HTMLReporter struct {
	logger *Logger
}

// NewHTMLReporter creates a new HTML report generator
func NewHTMLReporter(logger *Logger) *HTMLReporter {
	return &HTMLReporter{
		logger: logger,
	}
}

// GenerateHTMLReport writes the HTML report to outputPath, or stdout when empty
func (r *HTMLReporter) GenerateHTMLReport(result *RunResult, outputPath string) error {
	r.logger.Info("Generating HTML report")

	var writer io.Writer
	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create HTML report file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	r.WriteHTMLReport(writer, result)

	if outputPath != "" {
		r.logger.Info("HTML report saved", "path", outputPath)
	}

	return nil
}

// WriteHTMLReport renders every section
func (r *HTMLReporter) WriteHTMLReport(w io.Writer, result *RunResult) {
	r.writeHTMLHeader(w, result)
	r.writeHTMLSummary(w, result)
	r.writeHTMLScenarios(w, result)
	r.writeHTMLReadiness(w, result)
	r.writeHTMLTipping(w, result)
	r.writeHTMLReconciliation(w, result)
	r.writeHTMLFooter(w)
}

func (r *HTMLReporter) writeHTMLHeader(w io.Writer, result *RunResult) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Heat Pathway Retrofit Analysis</title>
    <style>
        :root {
            --primary-color: #E4572E;
            --secondary-color: #00C896;
            --warning-color: #FFB800;
            --bg-color: #0A0F1E;
            --card-bg: #1A2332;
            --text-color: #E8EAF6;
            --text-muted: #9FA8DA;
            --border-color: #2A3550;
        }

        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            background: var(--bg-color);
            color: var(--text-color);
            line-height: 1.6;
            padding: 20px;
        }

        .container {
            max-width: 1200px;
            margin: 0 auto;
        }

        header {
            background: linear-gradient(135deg, var(--primary-color), var(--secondary-color));
            padding: 40px;
            border-radius: 16px;
            margin-bottom: 30px;
        }

        h1 {
            font-size: 2.5em;
            margin-bottom: 10px;
        }

        .subtitle {
            color: rgba(255, 255, 255, 0.9);
        }

        .card {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 30px;
            margin-bottom: 30px;
            border: 1px solid var(--border-color);
        }

        h2 {
            color: var(--primary-color);
            margin-bottom: 20px;
            border-bottom: 2px solid var(--border-color);
            padding-bottom: 10px;
        }

        table {
            width: 100%%;
            border-collapse: collapse;
            margin: 20px 0;
        }

        th, td {
            padding: 12px;
            text-align: left;
            border-bottom: 1px solid var(--border-color);
        }

        th {
            background: rgba(228, 87, 46, 0.1);
            color: var(--primary-color);
        }

        .metric-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
        }

        .metric-card {
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 20px;
            text-align: center;
        }

        .metric-value {
            font-size: 2em;
            font-weight: bold;
            color: var(--secondary-color);
        }

        .metric-label {
            color: var(--text-muted);
        }

        .chart {
            width: 100%%;
            margin: 20px 0;
            border-radius: 8px;
        }

        .warning {
            border-left: 4px solid var(--warning-color);
            padding: 10px 20px;
            margin: 15px 0;
        }

        footer {
            text-align: center;
            padding: 30px;
            color: var(--text-muted);
        }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>🔥 Heat Pathway Retrofit Analysis</h1>
            <div class="subtitle">Generated: %s</div>
            <div class="subtitle">Input: %s, price scenario %s</div>
            <div class="subtitle" style="opacity: 0.7; font-size: 0.9em; margin-top: 10px;">heatpath %s</div>
        </header>
`,
		result.GeneratedAt.Format("Monday, 2 January 2006 at 15:04"),
		html.EscapeString(result.InputPath),
		html.EscapeString(result.PriceScenario),
		GetVersion(),
	)
}

func (r *HTMLReporter) writeHTMLSummary(w io.Writer, result *RunResult) {
	meanKW := 0.0
	if result.Readiness != nil {
		meanKW = result.Readiness.MeanHeatPumpKW
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>📊 Summary</h2>
            <div class="metric-grid">
                <div class="metric-card">
                    <div class="metric-label">Properties modelled</div>
                    <div class="metric-value">%s</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Mean SAP (95%% CI)</div>
                    <div class="metric-value">%.1f</div>
                    <div class="metric-label">%.1f to %.1f</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">EPC anomalies</div>
                    <div class="metric-value">%s</div>
                </div>
                <div class="metric-card">
                    <div class="metric-label">Mean heat pump size</div>
                    <div class="metric-value">%.1f kW</div>
                </div>
            </div>
        </div>
`,
		FormatCount(len(result.Properties)),
		result.MeanSAP, result.SAPInterval.Low, result.SAPInterval.High,
		FormatCount(result.AnomalyCount),
		meanKW,
	)
}

func (r *HTMLReporter) writeHTMLScenarios(w io.Writer, result *RunResult) {
	fmt.Fprintf(w, `
        <div class="card">
            <h2>🏠 Scenarios</h2>
            <table>
                <thead>
                    <tr>
                        <th>Scenario</th>
                        <th>Capital cost</th>
                        <th>Bill savings / yr</th>
                        <th>CO₂ saved / yr</th>
                        <th>Median payback</th>
                        <th>Not cost-effective</th>
                    </tr>
                </thead>
                <tbody>
`)
	for _, s := range result.Scenarios {
		fmt.Fprintf(w, `                    <tr>
                        <td>%s</td>
                        <td>%s</td>
                        <td>%s</td>
                        <td>%s</td>
                        <td>%s</td>
                        <td>%s</td>
                    </tr>
`,
			html.EscapeString(s.Scenario),
			FormatCurrency(s.CapitalCostTotal),
			FormatCurrency(s.AnnualBillSavings),
			FormatKg(s.AnnualCO2ReductionKg),
			paybackCell(s.MedianPaybackYears, s.CostEffectiveCount),
			FormatPercentage(s.NotCostEffectivePct),
		)
	}
	fmt.Fprintf(w, `                </tbody>
            </table>
`)
	writeChart(w, result.PaybackChart, "Payback distribution")
	writeChart(w, result.BandChart, "EPC band shift")
	fmt.Fprintf(w, "        </div>\n")
}

func (r *HTMLReporter) writeHTMLReadiness(w io.Writer, result *RunResult) {
	s := result.Readiness
	if s == nil {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>🔧 Heat Pump Readiness</h2>
            <table>
                <thead>
                    <tr><th>Tier</th><th>Homes</th><th>Mean prerequisite cost</th></tr>
                </thead>
                <tbody>
`)
	for _, tier := range s.Tiers() {
		fmt.Fprintf(w, "                    <tr><td>%d. %s</td><td>%s</td><td>%s</td></tr>\n",
			tier, TierName(tier), FormatCount(s.TierCounts[tier]), FormatCurrency(s.MeanPrerequisiteCost[tier]))
	}
	fmt.Fprintf(w, `                </tbody>
            </table>
        </div>
`)
}

func (r *HTMLReporter) writeHTMLTipping(w io.Writer, result *RunResult) {
	if result.Tipping == nil {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>🧱 Fabric Tipping Point</h2>
`)
	if tp, ok := result.Tipping.TippingPoint(); ok {
		fmt.Fprintf(w, "            <div class=\"warning\">Step %d (%s) costs %.2f per kWh saved, more than %.1f× the cheapest earlier step.</div>\n",
			tp.Step, html.EscapeString(string(tp.Measure)), tp.MarginalCostPerKWh, result.Tipping.Multiplier)
	} else {
		fmt.Fprintf(w, "            <p>No tipping point within the configured measures.</p>\n")
	}
	writeChart(w, result.TippingChart, "Fabric tipping point")
	fmt.Fprintf(w, "        </div>\n")
}

func (r *HTMLReporter) writeHTMLReconciliation(w io.Writer, result *RunResult) {
	meta := result.Metadata
	if meta == nil {
		return
	}

	fmt.Fprintf(w, `
        <div class="card">
            <h2>🧮 Count Reconciliation</h2>
            <table>
                <thead>
                    <tr><th>Stage</th><th>Count</th><th>Drop</th><th>Notes</th></tr>
                </thead>
                <tbody>
`)
	for _, s := range meta.Stages {
		note := s.Description
		if s.Warning != "" {
			note = "⚠️ " + s.Warning
		}
		fmt.Fprintf(w, "                    <tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			s.Name, FormatCount(s.Count), FormatPercentage(s.DropPct), html.EscapeString(note))
	}
	fmt.Fprintf(w, `                </tbody>
            </table>
        </div>
`)
}

func (r *HTMLReporter) writeHTMLFooter(w io.Writer) {
	fmt.Fprintf(w, `
        <footer>
            <p><em>Estimates are modelled from EPC records. Savings and payback carry the uncertainty ranges shown and are not quotes.</em></p>
            <p style="margin-top: 10px;">Generated by <a href="https://github.com/matthewgall/heatpath" style="color: var(--primary-color); text-decoration: none;">heatpath</a></p>
        </footer>
    </div>
</body>
</html>
`)
}

// writeChart embeds a base64 PNG, skipping charts that failed to render
func writeChart(w io.Writer, encoded, alt string) {
	if encoded == "" {
		return
	}
	fmt.Fprintf(w, "            <img class=\"chart\" alt=\"%s\" src=\"data:image/png;base64,%s\">\n", alt, encoded)
}
