// Package backend defines the device context every kernel-dispatching node
// runs against, and the kernel library the nodes call into.
//
// A Backend is created once per device, lives for the whole session and is
// closed at shutdown. Nodes never look a backend up ambiently: the graph
// passes it explicitly to every Forward and Backward call.
package backend

import (
	"math"
	"sync/atomic"

	"github.com/born-ml/exprgraph/internal/tensor"
)

// Backend binds a compute device and exposes its kernels.
type Backend interface {
	Kernels

	// Name returns the short name of the backend ("cpu", "webgpu").
	Name() string

	// DeviceID returns the bound device.
	DeviceID() DeviceID

	// SetDevice binds the calling context to this backend's device.
	// It does nothing on backends without a current-device notion.
	SetDevice()

	// Synchronize blocks until all queued device work has completed.
	// Callers must synchronize before reading tensor contents on the host.
	Synchronize()

	// SetClip sets the global gradient clipping threshold. Zero disables it.
	SetClip(clip float32)

	// Clip returns the global gradient clipping threshold.
	Clip() float32

	// Seed returns the random seed the backend was created with.
	Seed() uint64

	// NewTensor allocates a zero-filled float32 tensor on the device.
	NewTensor(shape tensor.Shape) (*tensor.RawTensor, error)

	// Close releases the device resources.
	Close() error
}

// Base holds the state shared by every Backend implementation.
// Implementations embed *Base.
type Base struct {
	deviceID DeviceID
	seed     uint64
	clip     atomic.Uint32 // float32 bits
}

// NewBase creates the shared state for a backend bound to id.
func NewBase(id DeviceID, seed uint64) *Base {
	return &Base{deviceID: id, seed: seed}
}

// DeviceID returns the bound device.
func (b *Base) DeviceID() DeviceID {
	return b.deviceID
}

// Seed returns the random seed.
func (b *Base) Seed() uint64 {
	return b.seed
}

// SetClip sets the global gradient clipping threshold.
func (b *Base) SetClip(clip float32) {
	b.clip.Store(math.Float32bits(clip))
}

// Clip returns the global gradient clipping threshold.
func (b *Base) Clip() float32 {
	return math.Float32frombits(b.clip.Load())
}
