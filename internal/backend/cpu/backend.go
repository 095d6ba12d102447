// Package cpu implements the CPU backend: kernels run synchronously in pure
// Go, split across goroutines when the work is large enough.
package cpu

import (
	"sync/atomic"

	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/parallel"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
)

func init() {
	backend.Register(tensor.CPU, func(id backend.DeviceID, seed uint64) (backend.Backend, error) {
		if id.No != 0 {
			return nil, errors.Errorf("cpu backend has a single device, got %s", id)
		}
		return NewWithSeed(seed), nil
	})
}

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// Backend implements backend.Backend on the host CPU.
type Backend struct {
	*backend.Base
	parallel       parallel.Config
	allocatedBytes atomic.Int64
}

// New creates a CPU backend with the default seed.
func New() *Backend {
	return NewWithSeed(backend.DefaultSeed)
}

// NewWithSeed creates a CPU backend with the given random seed.
func NewWithSeed(seed uint64) *Backend {
	return NewForDevice(backend.CPU0, seed)
}

// NewForDevice creates the host kernel library reporting id as its device.
// Accelerator backends embed it for the kernels they do not dispatch.
func NewForDevice(id backend.DeviceID, seed uint64) *Backend {
	return &Backend{
		Base:     backend.NewBase(id, seed),
		parallel: parallel.DefaultConfig(),
	}
}

// SetParallel replaces the parallel execution configuration.
func (cpu *Backend) SetParallel(cfg parallel.Config) {
	cpu.parallel = cfg
}

// Name returns the backend name.
func (cpu *Backend) Name() string {
	return "cpu"
}

// SetDevice does nothing: the CPU has no current-device state.
func (cpu *Backend) SetDevice() {}

// Synchronize does nothing: CPU kernels complete before returning.
func (cpu *Backend) Synchronize() {}

// NewTensor allocates a zero-filled float32 tensor.
func (cpu *Backend) NewTensor(shape tensor.Shape) (*tensor.RawTensor, error) {
	t, err := tensor.Zeros(shape, cpu.DeviceID().Type)
	if err != nil {
		return nil, err
	}
	cpu.allocatedBytes.Add(int64(t.ByteSize()))
	return t, nil
}

// AllocatedBytes returns the total bytes handed out by NewTensor.
func (cpu *Backend) AllocatedBytes() int64 {
	return cpu.allocatedBytes.Load()
}

// Close releases nothing; it exists to satisfy backend.Backend.
func (cpu *Backend) Close() error {
	return nil
}

// checkSameElements panics if a and b differ in element count.
func checkSameElements(kernel string, a, b *tensor.RawTensor) {
	if a.NumElements() != b.NumElements() {
		panic(errors.Errorf("%s: element count mismatch %s vs %s", kernel, a.Shape(), b.Shape()))
	}
}
