//go:build !windows

package webgpu

import (
	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
)

func init() {
	backend.Register(tensor.GPU, func(id backend.DeviceID, _ uint64) (backend.Backend, error) {
		return nil, errors.Errorf("webgpu backend for %s is only built on windows", id)
	})
}

// IsAvailable reports whether a WebGPU adapter can be requested.
func IsAvailable() bool {
	return false
}
