// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU backend. Importing it registers the
// backend for the "gpu" device.
//
// The backend is built on windows only. Elsewhere IsAvailable reports false
// and requesting a GPU device fails.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    b, err = backend.NewWithConfig("gpu", seed)
//	} else {
//	    b = cpu.NewWithSeed(seed)
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/exprgraph/internal/backend/webgpu"
)

// IsAvailable checks if WebGPU is available on the current system.
//
// It is useful for graceful fallback to the CPU backend when no compatible
// GPU or driver is present.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
