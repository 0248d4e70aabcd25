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
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with domain-specific methods
type Logger struct {
	*slog.Logger
}

// NewLogger creates a text-formatted logger
func NewLogger(debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(os.Stderr, opts)
	return &Logger{slog.New(handler)}
}

// NewJSONLogger creates a JSON-formatted logger
func NewJSONLogger(debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)
	return &Logger{slog.New(handler)}
}

// NewDiscardLogger creates a logger that drops everything, for tests
func NewDiscardLogger() *Logger {
	return &Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{l.With("component", component)}
}

// WithRunID adds the run identifier to the logger
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{l.With("run_id", runID)}
}

// LogAPIRequest logs an API request
func (l *Logger) LogAPIRequest(method, endpoint string) {
	l.Debug("API request",
		"method", method,
		"endpoint", endpoint,
	)
}

// LogAPIError logs an API error
func (l *Logger) LogAPIError(endpoint string, statusCode int, err error) {
	l.Error("API request failed",
		"endpoint", endpoint,
		"status_code", statusCode,
		"error", err,
	)
}

// LogPipelineStage logs pipeline stage completion
func (l *Logger) LogPipelineStage(stage string) {
	l.Info("Pipeline stage completed",
		"stage", stage,
	)
}

// LogStageCount logs a reconciliation count
func (l *Logger) LogStageCount(stage string, count, drop int) {
	l.Info("Stage count recorded",
		"stage", stage,
		"count", count,
		"drop", drop,
	)
}

// LogStageWarning logs an unexplained drop between stages
func (l *Logger) LogStageWarning(stage string, dropPct float64, message string) {
	l.Warn("Unexpected stage count drop",
		"stage", stage,
		"drop", fmt.Sprintf("%.1f%%", dropPct*100),
		"message", message,
	)
}

// LogValidationDrop logs rows dropped for one validation reason
func (l *Logger) LogValidationDrop(reason string, count int) {
	l.Info("Rows dropped by validation",
		"reason", reason,
		"count", count,
	)
}

// LogCostFallback logs a measure priced from the legacy flat cost table
func (l *Logger) LogCostFallback(measure MeasureID, amount float64) {
	l.Warn("No cost rule configured, using legacy cost",
		"measure", measure,
		"amount", FormatCurrency(amount),
	)
}

// LogScenarioSummary logs the headline numbers for a modelled scenario
func (l *Logger) LogScenarioSummary(result *ScenarioResult) {
	l.Info("Scenario modelled",
		"scenario", result.Scenario,
		"properties", result.PropertyCount,
		"capital_cost_total", FormatCurrency(result.CapitalCostTotal),
		"annual_bill_savings", FormatCurrency(result.AnnualBillSavings),
		"not_cost_effective", FormatPercentage(result.NotCostEffectivePct),
	)
}

// LogStorageOperation logs storage operations
func (l *Logger) LogStorageOperation(operation, path string) {
	l.Debug("Storage operation",
		"operation", operation,
		"path", path,
	)
}

// UserMessage outputs a message directly to stdout (bypassing structured logging)
func (l *Logger) UserMessage(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}
