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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSetGet(t *testing.T) {
	cache, err := NewCache(t.TempDir(), "test", NewDiscardLogger())
	require.NoError(t, err)

	require.NoError(t, cache.Set("postcode:AB1 2CD", Location{Easting: 1, Northing: 2, Found: true}, time.Hour))

	var loc Location
	hit, err := cache.Get("postcode:AB1 2CD", &loc)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, Location{Easting: 1, Northing: 2, Found: true}, loc)

	hit, err = cache.Get("postcode:missing", &loc)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheExpiry(t *testing.T) {
	cache, err := NewCache(t.TempDir(), "test", NewDiscardLogger())
	require.NoError(t, err)

	require.NoError(t, cache.Set("stale", 1, -time.Minute))

	var v int
	hit, err := cache.Get("stale", &v)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, cache.Len())
}

func TestCachePersistence(t *testing.T) {
	dir := t.TempDir()

	cache, err := NewCache(dir, "postcodes", NewDiscardLogger())
	require.NoError(t, err)
	require.NoError(t, cache.Set("live", "kept", time.Hour))
	require.NoError(t, cache.Set("stale", "dropped", -time.Minute))
	require.NoError(t, cache.Close())

	_, err = os.Stat(filepath.Join(dir, "cache_postcodes.json"))
	require.NoError(t, err)

	reopened, err := NewCache(dir, "postcodes", NewDiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())

	var s string
	hit, err := reopened.Get("live", &s)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "kept", s)
}

func TestCacheCorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache_postcodes.json"), []byte("{not json"), 0644))

	cache, err := NewCache(dir, "postcodes", NewDiscardLogger())
	require.NoError(t, err)
	assert.Zero(t, cache.Len())
}
