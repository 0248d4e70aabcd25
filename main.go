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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	// Define command-line flags
	configPath := pflag.StringP("config", "c", "", "Path to configuration file (defaults are embedded)")
	inputPath := pflag.StringP("input", "i", "", "EPC property CSV (overrides config)")
	outputDir := pflag.StringP("output-dir", "o", "", "Directory for results and reports (overrides config)")
	htmlOutput := pflag.Bool("html", false, "Also generate an HTML report with charts")
	pdfOutput := pflag.Bool("pdf", false, "Also generate a PDF summary")
	skipGeocode := pflag.Bool("skip-geocode", false, "Do not look up postcodes")
	workers := pflag.IntP("workers", "w", 0, "Worker pool size (overrides config)")
	metricsPath := pflag.String("metrics-textfile", "", "Write Prometheus metrics to this file (overrides config)")
	debug := pflag.Bool("debug", false, "Enable debug logging")
	jsonLogs := pflag.Bool("json-logs", false, "Emit logs as JSON")
	showVersion := pflag.BoolP("version", "V", false, "Show version and exit")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "heatpath %s\n\n", GetVersion())
		fmt.Fprintf(os.Stderr, "Models retrofit and heat decarbonisation pathways for a sample of homes from EPC records.\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n  heatpath --input epc.csv [flags]\n\nFlags:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("heatpath %s\n", GetVersion())
		os.Exit(0)
	}

	// Load configuration
	config, err := LoadConfig(*configPath)
	if err != nil {
		NewLogger(*debug).Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Override with command-line flags
	if *inputPath != "" {
		config.Input.Path = *inputPath
	}
	if *outputDir != "" {
		config.Output.Dir = *outputDir
	}
	if *workers > 0 {
		config.Workers = *workers
	}
	if *metricsPath != "" {
		config.Output.MetricsTextfile = *metricsPath
	}
	if *debug {
		config.Debug = true
	}

	// Initialize logger
	logger := NewLogger(config.Debug)
	if *jsonLogs {
		logger = NewJSONLogger(config.Debug)
	}
	logger.Info("Starting heatpath", "version", GetVersion())

	if config.Input.Path == "" {
		logger.Error("No input file given; use --input or input.path in the config")
		pflag.Usage()
		os.Exit(1)
	}

	// Build the pipeline, failing on configuration errors before any data is read
	pipeline, err := NewPipeline(config, logger)
	if err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	pipeline.SkipGeocode = *skipGeocode
	logger.Info("Configuration loaded successfully", "scenarios", len(pipeline.Scenarios()), "workers", config.Workers)

	storage, err := NewStorage(config.Output.Dir, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Run(ctx, config.Input.Path)
	if err != nil {
		logger.Error("Pipeline failed", "error", err)
		os.Exit(1)
	}

	// Save tabular and JSON results
	written, err := storage.SaveAll(result, config.Output.WriteCostDetails)
	if err != nil {
		logger.Error("Failed to save results", "error", err)
		os.Exit(1)
	}

	// Generate reports
	reporter := NewReporter(logger)
	if err := reporter.GenerateReport(result, storage.Path(MarkdownReportFile)); err != nil {
		logger.Error("Failed to generate report", "error", err)
		os.Exit(1)
	}
	written = append(written, storage.Path(MarkdownReportFile))

	if *htmlOutput || *pdfOutput {
		NewChartGenerator().GenerateAll(result, logger)
	}
	if *htmlOutput {
		htmlReporter := NewHTMLReporter(logger)
		if err := htmlReporter.GenerateHTMLReport(result, storage.Path(HTMLReportFile)); err != nil {
			logger.Error("Failed to generate HTML report", "error", err)
			os.Exit(1)
		}
		written = append(written, storage.Path(HTMLReportFile))
	}
	if *pdfOutput {
		data, err := GeneratePDFReport(result)
		if err != nil {
			logger.Error("Failed to generate PDF report", "error", err)
			os.Exit(1)
		}
		path, err := storage.SaveBytes(PDFReportFile, data)
		if err != nil {
			logger.Error("Failed to save PDF report", "error", err)
			os.Exit(1)
		}
		written = append(written, path)
	}

	if config.Output.MetricsTextfile != "" {
		metrics := NewRunMetrics()
		metrics.Observe(result)
		if err := metrics.WriteTextfile(config.Output.MetricsTextfile); err != nil {
			logger.Warn("Failed to write metrics", "error", err)
		}
	}

	// Metadata is persisted once, last
	metaPath, err := storage.SaveMetadata(result.Metadata)
	if err != nil {
		logger.Error("Failed to save run metadata", "error", err)
		os.Exit(1)
	}
	written = append(written, metaPath)

	final, _ := result.Metadata.FinalCount()
	logger.UserMessage("Modelled %s properties across %d scenarios (run %s)",
		FormatCount(final), len(result.Scenarios), result.Metadata.RunID)
	for _, w := range result.Metadata.Warnings {
		logger.UserMessage("  warning: %s", w)
	}
	for _, path := range written {
		logger.UserMessage("  wrote %s", path)
	}

	logger.Info("Analysis completed successfully", "duration", result.Metadata.Duration())
}
