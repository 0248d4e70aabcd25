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
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorRetryable(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, (&APIError{StatusCode: code}).IsRetryable(), "status %d", code)
	}
	for _, code := range []int{0, 400, 404} {
		assert.False(t, (&APIError{StatusCode: code}).IsRetryable(), "status %d", code)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	storageErr := &StorageError{Operation: "open", Path: "epc.csv", Err: fs.ErrNotExist}
	wrapped := fmt.Errorf("failed to load: %w", storageErr)

	assert.ErrorIs(t, wrapped, fs.ErrNotExist)
	var target *StorageError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, "epc.csv", target.Path)

	cause := errors.New("connection refused")
	assert.ErrorIs(t, &APIError{Endpoint: "x", Err: cause}, cause)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "validation error for floor_area (5): outside 10-1000 m²",
		(&ValidationError{Field: "floor_area", Value: "5", Message: "outside 10-1000 m²"}).Error())
	assert.Equal(t, "validation error for lmk_key: missing",
		(&ValidationError{Field: "lmk_key", Message: "missing"}).Error())
	assert.Equal(t, "configuration error for scenarios: no scenarios configured",
		(&ConfigError{Field: "scenarios", Message: "no scenarios configured"}).Error())
	assert.Equal(t, "data error for input: file is empty",
		(&DataError{DataType: "input", Message: "file is empty"}).Error())
	assert.Contains(t, (&APIError{StatusCode: 503, Endpoint: "https://api.postcodes.io/postcodes", Message: "down"}).Error(), "status 503")
}
