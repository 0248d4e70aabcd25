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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Location is a British National Grid coordinate in metres
type Location struct {
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
	Found    bool    `json:"found"`
}

// bulkPostcodeRequest is the postcodes.io bulk lookup body
type bulkPostcodeRequest struct {
	Postcodes []string `json:"postcodes"`
}

// bulkPostcodeResponse is the postcodes.io bulk lookup reply
type bulkPostcodeResponse struct {
	Status int `json:"status"`
	Result []struct {
		Query  string `json:"query"`
		Result *struct {
			Postcode  string   `json:"postcode"`
			Eastings  *float64 `json:"eastings"`
			Northings *float64 `json:"northings"`
		} `json:"result"`
	} `json:"result"`
}

// Geocoder resolves postcodes to grid coordinates through the postcodes.io bulk API
type Geocoder struct {
	endpoint   string
	httpClient *http.Client
	cache      *Cache
	ttl        time.Duration
	workers    int
	maxRetries int
	logger     *Logger
}

// NewGeocoder creates a geocoder. cache may be nil.
func NewGeocoder(cfg GeocoderConfig, cache *Cache, logger *Logger) *Geocoder {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = PostcodesIOEndpoint
	}
	return &Geocoder{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		cache:      cache,
		ttl:        time.Duration(cfg.CacheTTLHours) * time.Hour,
		workers:    cfg.Workers,
		maxRetries: 3,
		logger:     logger,
	}
}

// NormalizePostcode uppercases a postcode and collapses its whitespace
func NormalizePostcode(pc string) string {
	return strings.Join(strings.Fields(strings.ToUpper(pc)), " ")
}

// Lookup resolves postcodes, serving what it can from the cache and fetching
// the rest in batches on the worker pool
func (g *Geocoder) Lookup(ctx context.Context, postcodes []string) (map[string]Location, error) {
	locations := make(map[string]Location, len(postcodes))
	var pending []string
	seen := make(map[string]bool)

	for _, raw := range postcodes {
		pc := NormalizePostcode(raw)
		if pc == "" || seen[pc] {
			continue
		}
		seen[pc] = true

		if g.cache != nil {
			var loc Location
			if hit, err := g.cache.Get("postcode:"+pc, &loc); err == nil && hit {
				locations[pc] = loc
				continue
			}
		}
		pending = append(pending, pc)
	}

	g.logger.Debug("Geocoding postcodes", "cached", len(locations), "pending", len(pending))

	var batches [][]string
	for start := 0; start < len(pending); start += postcodeBatchSize {
		end := min(start+postcodeBatchSize, len(pending))
		batches = append(batches, pending[start:end])
	}

	results, err := parallelMap(ctx, g.workers, batches, g.lookupBatch)
	if err != nil {
		return locations, err
	}

	for _, batch := range results {
		for pc, loc := range batch {
			locations[pc] = loc
			if g.cache != nil {
				if err := g.cache.Set("postcode:"+pc, loc, g.ttl); err != nil {
					g.logger.Warn("Failed to cache postcode", "postcode", pc, "error", err)
				}
			}
		}
	}

	if g.cache != nil {
		if err := g.cache.Flush(); err != nil {
			g.logger.Warn("Failed to flush geocode cache", "error", err)
		}
	}

	return locations, nil
}

// lookupBatch fetches up to postcodeBatchSize postcodes, retrying transient failures
func (g *Geocoder) lookupBatch(ctx context.Context, batch []string) (map[string]Location, error) {
	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 250 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		locations, err := g.fetchBatch(ctx, batch)
		if err == nil {
			return locations, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
		g.logger.Debug("Retrying geocode batch", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (g *Geocoder) fetchBatch(ctx context.Context, batch []string) (map[string]Location, error) {
	body, err := json.Marshal(bulkPostcodeRequest{Postcodes: batch})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", GetUserAgent())

	g.logger.LogAPIRequest(http.MethodPost, g.endpoint)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{
			Endpoint: g.endpoint,
			Message:  "failed to look up postcodes",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		g.logger.LogAPIError(g.endpoint, resp.StatusCode, fmt.Errorf("%s", string(bodyBytes)))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   g.endpoint,
			Message:    string(bodyBytes),
		}
	}

	var bulk bulkPostcodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&bulk); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	locations := make(map[string]Location, len(batch))
	for _, pc := range batch {
		locations[pc] = Location{}
	}
	for _, r := range bulk.Result {
		pc := NormalizePostcode(r.Query)
		if r.Result == nil || r.Result.Eastings == nil || r.Result.Northings == nil {
			continue
		}
		locations[pc] = Location{
			Easting:  *r.Result.Eastings,
			Northing: *r.Result.Northings,
			Found:    true,
		}
	}
	return locations, nil
}

// GeocodeProperties fills in coordinates for properties that lack them and
// returns how many properties are located afterwards
func GeocodeProperties(ctx context.Context, g *Geocoder, props []*Property) (int, error) {
	var postcodes []string
	for _, p := range props {
		if !p.HasLocation && p.Postcode != "" {
			postcodes = append(postcodes, p.Postcode)
		}
	}

	if len(postcodes) > 0 {
		locations, err := g.Lookup(ctx, postcodes)
		for _, p := range props {
			if p.HasLocation {
				continue
			}
			if loc, ok := locations[NormalizePostcode(p.Postcode)]; ok && loc.Found {
				p.Easting, p.Northing, p.HasLocation = loc.Easting, loc.Northing, true
			}
		}
		if err != nil {
			return countLocated(props), err
		}
	}

	return countLocated(props), nil
}

func countLocated(props []*Property) int {
	n := 0
	for _, p := range props {
		if p.HasLocation {
			n++
		}
	}
	return n
}
