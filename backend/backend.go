// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend selects the device every graph runs its kernels on.
//
// Backends register themselves for a device type when their package is
// imported, so import the ones you need:
//
//	import (
//	    "github.com/born-ml/exprgraph/backend"
//	    _ "github.com/born-ml/exprgraph/backend/cpu"
//	    _ "github.com/born-ml/exprgraph/backend/webgpu"
//	)
//
//	b, err := backend.New() // honours EXPRGRAPH_BACKEND and EXPRGRAPH_SEED
package backend

import (
	"github.com/born-ml/exprgraph/internal/backend"
)

// Backend binds a compute device and exposes its kernels.
type Backend = backend.Backend

// DeviceID identifies a specific device, e.g. GPU 0.
type DeviceID = backend.DeviceID

// Environment variables read by New.
const (
	ConfigEnvVar = backend.ConfigEnvVar
	SeedEnvVar   = backend.SeedEnvVar
)

// DefaultSeed is used when no seed is configured.
const DefaultSeed = backend.DefaultSeed

// New returns a backend for the configuration in the environment, falling
// back to the CPU with DefaultSeed.
func New() (Backend, error) {
	return backend.New()
}

// NewWithConfig creates the backend for a "<type>[:<index>]" config string,
// such as "cpu" or "gpu:0".
func NewWithConfig(config string, seed uint64) (Backend, error) {
	return backend.NewWithConfig(config, seed)
}

// ParseDeviceID parses a "<type>[:<index>]" config string.
func ParseDeviceID(config string) (DeviceID, error) {
	return backend.ParseDeviceID(config)
}
