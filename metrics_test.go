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
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetricsObserve(t *testing.T) {
	result, _ := runTestPipeline(t)

	m := NewRunMetrics()
	m.Observe(result)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.stageCount.WithLabelValues(StageRawLoaded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stageCount.WithLabelValues(StageFinalModeled)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.reconcileWarnings))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationDrops.WithLabelValues(DropDuplicateKey)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readinessTier.WithLabelValues("5")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.scenarioCapital.WithLabelValues("baseline")))
	assert.Greater(t, testutil.ToFloat64(m.scenarioCapital.WithLabelValues("heat_pump")), 0.0)

	// Draught proofing has no cost rule and is priced from the legacy table
	assert.Equal(t, 2.0, testutil.ToFloat64(m.costFallbacks.WithLabelValues("fabric_only", string(MeasureDraughtProofing))))
	assert.Greater(t, testutil.ToFloat64(m.lastRun), 0.0)
}

func TestRunMetricsWriteTextfile(t *testing.T) {
	m := NewRunMetrics()
	m.Observe(&RunResult{
		Scenarios: []*ScenarioResult{{Scenario: "heat_pump", CapitalCostTotal: 16100, CostAudit: make(CostAudit)}},
	})

	path := filepath.Join(t.TempDir(), "heatpath.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `heatpath_scenario_capital_cost_pounds{scenario="heat_pump"} 16100`)

	count, err := testutil.GatherAndCount(m.Gatherer(), "heatpath_scenario_capital_cost_pounds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "heatpath.prom"))
	var storageErr *StorageError
	assert.ErrorAs(t, err, &storageErr)
}
