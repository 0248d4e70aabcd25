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
	"strings"
	"time"

	"github.com/google/uuid"
)

// StageRecord is the property count at one pipeline stage
type StageRecord struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Source        string    `json:"source"`
	Count         int       `json:"count"`
	PreviousStage string    `json:"previous_stage,omitempty"`
	Drop          int       `json:"drop"`
	DropPct       float64   `json:"drop_pct"`
	AllowDrop     bool      `json:"allow_drop"`
	Warning       string    `json:"warning,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// RunMetadata tracks one pipeline invocation. It is created at pipeline start,
// passed to every phase, and persisted once at the end.
type RunMetadata struct {
	RunID         string        `json:"run_id"`
	Build         BuildInfo     `json:"build"`
	InputPath     string        `json:"input_path"`
	PriceScenario string        `json:"price_scenario"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at,omitempty"`
	Stages        []StageRecord `json:"stages"`
	Warnings      []string      `json:"warnings"`

	logger *Logger
}

// NewRunMetadata starts tracking a run
func NewRunMetadata(inputPath, priceScenario string, logger *Logger) *RunMetadata {
	return &RunMetadata{
		RunID:         uuid.NewString(),
		Build:         GetBuildInfo(),
		InputPath:     inputPath,
		PriceScenario: priceScenario,
		StartedAt:     time.Now().UTC(),
		Stages:        []StageRecord{},
		Warnings:      []string{},
		logger:        logger,
	}
}

// RecordStageCount records a stage count and compares it with the previous stage.
// A drop above dropThresholdPct that is not allowed appends a warning; the count
// is always recorded.
func (m *RunMetadata) RecordStageCount(name string, count int, description, source string, dropThresholdPct float64, allowDrop bool) StageRecord {
	rec := StageRecord{
		Name:        name,
		Description: description,
		Source:      source,
		Count:       count,
		AllowDrop:   allowDrop,
		RecordedAt:  time.Now().UTC(),
	}

	if len(m.Stages) > 0 {
		prev := m.Stages[len(m.Stages)-1]
		rec.PreviousStage = prev.Name
		rec.Drop = prev.Count - count
		if prev.Count > 0 {
			rec.DropPct = float64(rec.Drop) / float64(prev.Count)
		}

		if rec.DropPct > dropThresholdPct && !allowDrop {
			rec.Warning = fmt.Sprintf("%s: count fell from %d (%s) to %d, a %.1f%% drop exceeding the %.1f%% threshold",
				name, prev.Count, prev.Name, count, rec.DropPct*100, dropThresholdPct*100)
			m.Warnings = append(m.Warnings, rec.Warning)
			if m.logger != nil {
				m.logger.LogStageWarning(name, rec.DropPct, rec.Warning)
			}
		}
	}

	m.Stages = append(m.Stages, rec)
	if m.logger != nil {
		m.logger.LogStageCount(name, count, rec.Drop)
	}
	return rec
}

// StageCount returns the most recent count recorded for a stage
func (m *RunMetadata) StageCount(name string) (int, bool) {
	for i := len(m.Stages) - 1; i >= 0; i-- {
		if m.Stages[i].Name == name {
			return m.Stages[i].Count, true
		}
	}
	return 0, false
}

// FinalCount prefers the most downstream canonical stage, falling back upstream,
// then to the last stage recorded
func (m *RunMetadata) FinalCount() (int, bool) {
	for _, name := range stageOrder {
		if count, ok := m.StageCount(name); ok {
			return count, true
		}
	}
	if len(m.Stages) > 0 {
		return m.Stages[len(m.Stages)-1].Count, true
	}
	return 0, false
}

// Finish stamps the end of the run
func (m *RunMetadata) Finish() {
	m.FinishedAt = time.Now().UTC()
}

// Duration returns how long the run took, or so far if unfinished
func (m *RunMetadata) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return time.Since(m.StartedAt)
	}
	return m.FinishedAt.Sub(m.StartedAt)
}

// ReconciliationMarkdown renders the stage counts as a markdown table
func (m *RunMetadata) ReconciliationMarkdown() string {
	var b strings.Builder

	b.WriteString("| Stage | Count | Drop | Drop % | Source | Notes |\n")
	b.WriteString("|-------|------:|-----:|-------:|--------|-------|\n")
	for _, s := range m.Stages {
		note := s.Description
		switch {
		case s.Warning != "":
			note = "⚠️ " + s.Warning
		case s.AllowDrop && s.Drop > 0:
			note += " (expected drop)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			s.Name, FormatCount(s.Count), FormatCount(s.Drop), FormatPercentage(s.DropPct), s.Source, note)
	}

	if len(m.Warnings) == 0 {
		b.WriteString("\nNo unexplained drops between stages.\n")
	} else {
		fmt.Fprintf(&b, "\n%d unexplained drop(s):\n\n", len(m.Warnings))
		for _, w := range m.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
