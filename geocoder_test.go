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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postcodeServer answers bulk lookups from a fixed table and counts requests
func postcodeServer(t *testing.T, known map[string][2]float64, requests *atomic.Int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, GetUserAgent(), r.Header.Get("User-Agent"))

		var req bulkPostcodeRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		type result struct {
			Postcode  string  `json:"postcode"`
			Eastings  float64 `json:"eastings"`
			Northings float64 `json:"northings"`
		}
		type entry struct {
			Query  string  `json:"query"`
			Result *result `json:"result"`
		}
		resp := struct {
			Status int     `json:"status"`
			Result []entry `json:"result"`
		}{Status: 200}

		for _, pc := range req.Postcodes {
			e := entry{Query: pc}
			if coords, ok := known[pc]; ok {
				e.Result = &result{Postcode: pc, Eastings: coords[0], Northings: coords[1]}
			}
			resp.Result = append(resp.Result, e)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func testGeocoderConfig(endpoint string) GeocoderConfig {
	return GeocoderConfig{
		Enabled:        true,
		Endpoint:       endpoint,
		TimeoutSeconds: 5,
		CacheTTLHours:  1,
		Workers:        2,
	}
}

func TestNormalizePostcode(t *testing.T) {
	assert.Equal(t, "SW1A 1AA", NormalizePostcode("  sw1a   1aa "))
	assert.Equal(t, "", NormalizePostcode("   "))
}

func TestGeocoderLookup(t *testing.T) {
	var requests atomic.Int32
	server := postcodeServer(t, map[string][2]float64{"SW1A 1AA": {529090, 179645}}, &requests)

	g := NewGeocoder(testGeocoderConfig(server.URL), nil, NewDiscardLogger())
	locations, err := g.Lookup(context.Background(), []string{"sw1a 1aa", "SW1A 1AA", "ZZ9 9ZZ", ""})
	require.NoError(t, err)

	assert.Equal(t, int32(1), requests.Load(), "duplicates collapse into one batch")
	require.Len(t, locations, 2)
	assert.Equal(t, Location{Easting: 529090, Northing: 179645, Found: true}, locations["SW1A 1AA"])
	assert.False(t, locations["ZZ9 9ZZ"].Found, "unknown postcodes are returned as not found")
}

func TestGeocoderServesFromCache(t *testing.T) {
	var requests atomic.Int32
	server := postcodeServer(t, map[string][2]float64{"AB1 2CD": {1, 2}}, &requests)
	dir := t.TempDir()

	cache, err := NewCache(dir, "postcodes", NewDiscardLogger())
	require.NoError(t, err)
	g := NewGeocoder(testGeocoderConfig(server.URL), cache, NewDiscardLogger())

	_, err = g.Lookup(context.Background(), []string{"AB1 2CD"})
	require.NoError(t, err)
	require.Equal(t, int32(1), requests.Load())

	// A fresh cache over the same directory sees the flushed entry
	reopened, err := NewCache(dir, "postcodes", NewDiscardLogger())
	require.NoError(t, err)
	g = NewGeocoder(testGeocoderConfig(server.URL), reopened, NewDiscardLogger())

	locations, err := g.Lookup(context.Background(), []string{"ab1 2cd"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load(), "no request for a cached postcode")
	assert.Equal(t, Location{Easting: 1, Northing: 2, Found: true}, locations["AB1 2CD"])
}

func TestGeocoderRetriesTransientFailures(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":200,"result":[{"query":"AB1 2CD","result":{"postcode":"AB1 2CD","eastings":10,"northings":20}}]}`))
	}))
	defer server.Close()

	g := NewGeocoder(testGeocoderConfig(server.URL), nil, NewDiscardLogger())
	locations, err := g.Lookup(context.Background(), []string{"AB1 2CD"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), requests.Load())
	assert.True(t, locations["AB1 2CD"].Found)
}

func TestGeocoderDoesNotRetryClientErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"error":"Invalid JSON submitted"}`))
	}))
	defer server.Close()

	g := NewGeocoder(testGeocoderConfig(server.URL), nil, NewDiscardLogger())
	_, err := g.Lookup(context.Background(), []string{"AB1 2CD"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, apiErr.IsRetryable())
	assert.Equal(t, int32(1), requests.Load())
}

func TestGeocodeProperties(t *testing.T) {
	var requests atomic.Int32
	server := postcodeServer(t, map[string][2]float64{"SW1A 1AA": {529090, 179645}}, &requests)
	g := NewGeocoder(testGeocoderConfig(server.URL), nil, NewDiscardLogger())

	known := &Property{LMKKey: "known", Postcode: "sw1a 1aa"}
	unknown := &Property{LMKKey: "unknown", Postcode: "ZZ9 9ZZ"}
	already := &Property{LMKKey: "already", Postcode: "SW1A 1AA", HasLocation: true, Easting: 5, Northing: 6}
	blank := &Property{LMKKey: "blank"}

	located, err := GeocodeProperties(context.Background(), g, []*Property{known, unknown, already, blank})
	require.NoError(t, err)

	assert.Equal(t, 2, located)
	assert.True(t, known.HasLocation)
	assert.Equal(t, 529090.0, known.Easting)
	assert.False(t, unknown.HasLocation)
	assert.Equal(t, 5.0, already.Easting, "existing coordinates are kept")
	assert.False(t, blank.HasLocation)
}
