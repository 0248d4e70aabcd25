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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheEntry represents a single cached item with expiration
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// CacheStore holds all cache entries for a namespace
type CacheStore struct {
	Entries map[string]*CacheEntry `json:"entries"`
}

// Cache is a JSON file-backed TTL cache, one file per namespace. Writes are
// held in memory until Flush or Close.
type Cache struct {
	filePath  string
	namespace string
	store     *CacheStore
	dirty     bool
	mutex     sync.RWMutex
	logger    *Logger
}

// NewCache opens (or starts) the cache file for a namespace under basePath
func NewCache(basePath, namespace string, logger *Logger) (*Cache, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, &StorageError{Operation: "create_cache_dir", Path: basePath, Err: err}
	}
	cacheFile := filepath.Join(basePath, fmt.Sprintf("cache_%s.json", namespace))

	cache := &Cache{
		filePath:  cacheFile,
		namespace: namespace,
		store:     &CacheStore{Entries: make(map[string]*CacheEntry)},
		logger:    logger,
	}

	// Load existing cache from file
	if err := cache.load(); err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to load cache, starting fresh", "error", err)
		}
	}

	cache.dropExpired()

	logger.Debug("Cache initialized", "path", cacheFile, "namespace", namespace, "entries", len(cache.store.Entries))

	return cache, nil
}

// Set stores a value with a TTL
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	now := time.Now()
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.store.Entries[key] = &CacheEntry{
		Data:      valueJSON,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	c.dirty = true
	return nil
}

// Get retrieves a value if it exists and hasn't expired
func (c *Cache) Get(key string, target interface{}) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.store.Entries[key]
	if !exists || time.Now().After(entry.ExpiresAt) {
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, target); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// Len returns the number of live entries
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	n := 0
	for _, entry := range c.store.Entries {
		if !now.After(entry.ExpiresAt) {
			n++
		}
	}
	return n
}

// Flush writes pending entries to disk
func (c *Cache) Flush() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.dirty {
		return nil
	}
	if err := c.save(); err != nil {
		return err
	}
	c.dirty = false
	c.logger.Debug("Cache flushed", "namespace", c.namespace, "entries", len(c.store.Entries))
	return nil
}

// Close drops expired entries and flushes
func (c *Cache) Close() error {
	c.mutex.Lock()
	c.dropExpired()
	c.mutex.Unlock()
	return c.Flush()
}

// dropExpired removes expired entries (must be called with lock held or before sharing)
func (c *Cache) dropExpired() {
	now := time.Now()
	removed := 0
	for key, entry := range c.store.Entries {
		if now.After(entry.ExpiresAt) {
			delete(c.store.Entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
		c.logger.Info("Dropped expired cache entries", "namespace", c.namespace, "count", removed)
	}
}

// load reads the cache from disk
func (c *Cache) load() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, c.store); err != nil {
		return fmt.Errorf("failed to unmarshal cache file: %w", err)
	}
	if c.store.Entries == nil {
		c.store.Entries = make(map[string]*CacheEntry)
	}

	return nil
}

// save writes the cache to disk
func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.WriteFile(c.filePath, data, 0644); err != nil {
		return &StorageError{Operation: "write_cache", Path: c.filePath, Err: err}
	}

	return nil
}
