// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU backend. Importing it registers the backend
// for the "cpu" device.
package cpu

import (
	"github.com/born-ml/exprgraph/backend"
	internalcpu "github.com/born-ml/exprgraph/internal/backend/cpu"
)

// Backend represents the CPU backend implementation.
//
// Kernels run in pure Go and split rows across goroutines when the work is
// large enough.
type Backend = internalcpu.Backend

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// New creates a CPU backend with the default seed.
//
// Example:
//
//	b := cpu.New()
//	g := graph.New(b)
//	defer g.Close()
func New() *Backend {
	return internalcpu.New()
}

// NewWithSeed creates a CPU backend whose dropout masks derive from seed.
func NewWithSeed(seed uint64) *Backend {
	return internalcpu.NewWithSeed(seed)
}
