//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package webgpu

import (
	"github.com/born-ml/exprgraph/backend"
	internalwebgpu "github.com/born-ml/exprgraph/internal/backend/webgpu"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// New binds the high-performance adapter. Call Close when done to free GPU
// resources.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
func New(seed uint64) (*Backend, error) {
	return internalwebgpu.New(seed)
}
