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
	"context"
	"fmt"
	"time"
)

// Pipeline runs the full property model. Every collaborator is built from the
// configuration up front, so configuration errors surface before any data is read.
type Pipeline struct {
	cfg       *Config
	logger    *Logger
	catalogue *Catalogue
	costs     *CostCalculator
	adjuster  *Adjuster
	validator *Validator
	readiness *ReadinessClassifier
	spatial   *SpatialClassifier
	model     *PathwayModel
	scenarios []*Scenario

	// SkipGeocode disables postcode lookups for this run
	SkipGeocode bool
}

// NewPipeline validates the configuration and wires the model components
func NewPipeline(cfg *Config, logger *Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	catalogue, err := NewCatalogue(cfg)
	if err != nil {
		return nil, err
	}
	scenarios, err := BuildScenarios(cfg, catalogue)
	if err != nil {
		return nil, err
	}
	adjuster, err := NewAdjuster(cfg)
	if err != nil {
		return nil, err
	}
	costs := NewCostCalculator(cfg)
	model, err := NewPathwayModel(cfg, catalogue, costs, adjuster)
	if err != nil {
		return nil, err
	}

	var spatial *SpatialClassifier
	if cfg.Spatial.Enabled {
		if spatial, err = LoadSpatialClassifier(cfg.Spatial); err != nil {
			return nil, fmt.Errorf("spatial: %w", err)
		}
	}

	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		catalogue: catalogue,
		costs:     costs,
		adjuster:  adjuster,
		validator: NewValidator(cfg.Validation),
		readiness: NewReadinessClassifier(cfg.Readiness, catalogue, costs),
		spatial:   spatial,
		model:     model,
		scenarios: scenarios,
	}, nil
}

// Scenarios returns the resolved scenario set
func (pl *Pipeline) Scenarios() []*Scenario {
	return pl.scenarios
}

// Run executes every stage against one input file
func (pl *Pipeline) Run(ctx context.Context, inputPath string) (*RunResult, error) {
	meta := NewRunMetadata(inputPath, pl.cfg.Financial.PriceScenario, pl.logger)
	logger := pl.logger.WithRunID(meta.RunID)
	meta.logger = logger
	threshold := pl.cfg.Reconciliation.DropThresholdPct
	allowed := pl.cfg.Reconciliation.DropAllowed

	result := &RunResult{
		InputPath:     inputPath,
		PriceScenario: pl.cfg.Financial.PriceScenario,
		Metadata:      meta,
	}

	// Load
	logger.Info("Loading properties", "path", inputPath)
	props, err := LoadProperties(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load properties: %w", err)
	}
	meta.RecordStageCount(StageRawLoaded, len(props), "rows read from input", inputPath, threshold, allowed(StageRawLoaded))
	logger.LogPipelineStage("load")

	// Classify and validate
	for _, p := range props {
		ClassifyProperty(p)
	}
	props, result.Validation = pl.validator.Validate(props)
	for _, reason := range dropReasonOrder {
		if n := result.Validation.Drops[reason]; n > 0 {
			logger.LogValidationDrop(reason, n)
		}
	}
	meta.RecordStageCount(StageValidated, len(props), "rows passing data quality rules", "validator", threshold, allowed(StageValidated))
	if len(props) == 0 {
		return nil, &DataError{DataType: "properties", Message: "no properties passed validation"}
	}
	logger.LogPipelineStage("validate")

	// Methodological adjustments
	if _, err := parallelMap(ctx, pl.cfg.Workers, props, func(_ context.Context, p *Property) (struct{}, error) {
		pl.adjuster.Apply(p)
		return struct{}{}, nil
	}); err != nil {
		return nil, fmt.Errorf("adjustments: %w", err)
	}
	scores := make([]float64, len(props))
	uncertainties := make([]float64, len(props))
	for i, p := range props {
		scores[i] = p.SAPScore
		uncertainties[i] = p.SAPUncertainty
		if p.EPCAnomaly {
			result.AnomalyCount++
		}
	}
	result.MeanSAP, result.SAPInterval = SAPConfidenceInterval(scores, uncertainties)
	logger.LogPipelineStage("adjust")

	// Location and heat network readiness
	props, err = pl.locate(ctx, props, result, logger)
	if err != nil {
		return nil, err
	}
	meta.RecordStageCount(StageGeocoded, len(props), "properties carried into spatial classification", "geocoder", threshold, allowed(StageGeocoded))
	logger.LogPipelineStage("spatial")

	// Readiness, tipping point and archetypes
	audit := make(CostAudit)
	details, err := parallelMap(ctx, pl.cfg.Workers, props, func(_ context.Context, p *Property) ([]CostDetail, error) {
		return pl.readiness.Classify(p), nil
	})
	if err != nil {
		return nil, fmt.Errorf("readiness: %w", err)
	}
	for _, ds := range details {
		for _, d := range ds {
			audit.Add(d)
		}
	}
	result.Readiness = SummarizeReadiness(props)
	result.Readiness.CostAudit = audit

	if result.Tipping, err = AnalyzeTippingPoint(pl.cfg.TippingPoint, pl.catalogue, pl.costs); err != nil {
		return nil, fmt.Errorf("tipping point: %w", err)
	}
	if result.Archetypes, err = AnalyzeArchetypes(ctx, props, pl.cfg.Workers); err != nil {
		return nil, fmt.Errorf("archetypes: %w", err)
	}
	meta.RecordStageCount(StageScenarioInput, len(props), "properties entering the scenario model", "readiness", threshold, allowed(StageScenarioInput))
	logger.LogPipelineStage("readiness")

	// Scenarios
	result.Scenarios, result.Upgrades, err = pl.model.Run(ctx, pl.scenarios, props, pl.cfg.Workers, logger.WithComponent("pathway"))
	if err != nil {
		return nil, fmt.Errorf("scenario model: %w", err)
	}
	meta.RecordStageCount(StageFinalModeled, len(props), "properties modelled under every scenario", "pathway", threshold, allowed(StageFinalModeled))
	logger.LogPipelineStage("model")

	result.Properties = props
	result.GeneratedAt = time.Now().UTC()
	meta.Finish()
	return result, nil
}

// locate geocodes and spatially classifies properties. Geocoding failures are
// logged and the affected rows stay unlocated.
func (pl *Pipeline) locate(ctx context.Context, props []*Property, result *RunResult, logger *Logger) ([]*Property, error) {
	if !pl.cfg.Spatial.Enabled {
		for _, p := range props {
			if !p.SpatialProvided {
				p.HNTier, p.HNReady, p.InHNZone = HNTierNone, false, false
				p.DistanceToNetworkM = noNetworkDistance
			}
		}
		return props, nil
	}

	if pl.cfg.Geocoder.Enabled && !pl.SkipGeocode {
		geoLogger := logger.WithComponent("geocoder")
		cache, err := NewCache(pl.cfg.StoragePath, "postcodes", geoLogger)
		if err != nil {
			geoLogger.Warn("Geocode cache unavailable, continuing without it", "error", err)
		}
		geocoder := NewGeocoder(pl.cfg.Geocoder, cache, geoLogger)
		located, err := GeocodeProperties(ctx, geocoder, props)
		if err != nil {
			geoLogger.Warn("Geocoding incomplete", "error", err, "located", located)
		} else {
			geoLogger.Info("Geocoding complete", "located", located, "total", len(props))
		}
		if cache != nil {
			if err := cache.Close(); err != nil {
				geoLogger.Warn("Failed to close geocode cache", "error", err)
			}
		}
	}

	result.Spatial = pl.spatial.Classify(props)

	if !pl.cfg.Spatial.RequireLocation {
		return props, nil
	}
	kept := make([]*Property, 0, len(props))
	for _, p := range props {
		if p.HasLocation || p.SpatialProvided {
			kept = append(kept, p)
		}
	}
	return kept, nil
}
