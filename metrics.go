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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunMetrics exposes the outcome of one run for the node exporter textfile collector
type RunMetrics struct {
	registry *prometheus.Registry

	stageCount          *prometheus.GaugeVec
	reconcileWarnings   prometheus.Gauge
	validationDrops     *prometheus.GaugeVec
	readinessTier       *prometheus.GaugeVec
	scenarioCapital     *prometheus.GaugeVec
	scenarioBillSavings *prometheus.GaugeVec
	scenarioCO2         *prometheus.GaugeVec
	scenarioNotCE       *prometheus.GaugeVec
	costFallbacks       *prometheus.GaugeVec
	runDuration         prometheus.Gauge
	lastRun             prometheus.Gauge
}

// NewRunMetrics registers the run gauges on a private registry
func NewRunMetrics() *RunMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &RunMetrics{
		registry: reg,
		stageCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatpath_stage_properties",
			Help: "Property count recorded at each pipeline stage.",
		}, []string{"stage"}),
		reconcileWarnings: factory.NewGauge(prometheus.GaugeOpts{
			Name: "heatpath_reconciliation_warnings",
			Help: "Unexplained drops between pipeline stages.",
		}),
		validationDrops: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatpath_validation_dropped_rows",
			Help: "Rows dropped by validation, by reason.",
		}, []string{"reason"}),
		readinessTier: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatpath_readiness_tier_properties",
			Help: "Properties in each heat pump readiness tier.",
		}, []string{"tier"}),
		scenarioCapital: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatpath_scenario_capital_cost_pounds",
			Help: "Total capital cost of a scenario.",
		}, []string{"scenario"}),
		scenarioBillSavings: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatpath_scenario_bill_savings_pounds",
			Help: "Annual bill savings of a scenario.",
		}, []string{"scenario"}),
		scenarioCO2: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatpath_scenario_co2_reduction_kg",
			Help: "Annual CO2 reduction of a scenario.",
		}, []string{"scenario"}),
		scenarioNotCE: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatpath_scenario_not_cost_effective_ratio",
			Help: "Share of properties whose payback is not cost-effective.",
		}, []string{"scenario"}),
		costFallbacks: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heatpath_cost_fallbacks",
			Help: "Measures priced from the legacy flat cost table, by scenario and measure.",
		}, []string{"scenario", "measure"}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "heatpath_run_duration_seconds",
			Help: "Wall clock time of the last run.",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "heatpath_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
}

// Observe records a completed run
func (m *RunMetrics) Observe(result *RunResult) {
	if meta := result.Metadata; meta != nil {
		for _, s := range meta.Stages {
			m.stageCount.WithLabelValues(s.Name).Set(float64(s.Count))
		}
		m.reconcileWarnings.Set(float64(len(meta.Warnings)))
		m.runDuration.Set(meta.Duration().Seconds())
		if !meta.FinishedAt.IsZero() {
			m.lastRun.Set(float64(meta.FinishedAt.Unix()))
		}
	}

	if v := result.Validation; v != nil {
		for reason, n := range v.Drops {
			m.validationDrops.WithLabelValues(reason).Set(float64(n))
		}
	}

	if r := result.Readiness; r != nil {
		for tier, n := range r.TierCounts {
			m.readinessTier.WithLabelValues(strconv.Itoa(tier)).Set(float64(n))
		}
	}

	for _, s := range result.Scenarios {
		m.scenarioCapital.WithLabelValues(s.Scenario).Set(s.CapitalCostTotal)
		m.scenarioBillSavings.WithLabelValues(s.Scenario).Set(s.AnnualBillSavings)
		m.scenarioCO2.WithLabelValues(s.Scenario).Set(s.AnnualCO2ReductionKg)
		m.scenarioNotCE.WithLabelValues(s.Scenario).Set(s.NotCostEffectivePct)
		for _, id := range s.CostAudit.FallbackMeasures() {
			m.costFallbacks.WithLabelValues(s.Scenario, string(id)).Set(float64(s.CostAudit[id].Fallbacks))
		}
	}
}

// Gatherer exposes the registry
func (m *RunMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the metrics in text exposition format
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return &StorageError{Operation: "write_metrics", Path: path, Err: err}
	}
	return nil
}
