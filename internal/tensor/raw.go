package tensor

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Device represents the kind of compute device a tensor lives on.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	GPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return "unknown"
	}
}

// tensorBuffer is a reference-counted buffer shared by a tensor and its views.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

// release decrements the reference count and deallocates if it reaches 0.
func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
	}
}

// RawTensor is the low-level tensor representation.
//
// Several RawTensors may share one buffer: a view created with View holds a
// reference on the buffer, so the memory stays valid until both the owner
// and every view have been released.
type RawTensor struct {
	buffer   *tensorBuffer
	shape    Shape
	dtype    DataType
	device   Device
	offset   int // In elements.
	released atomic.Bool
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid shape")
	}
	return &RawTensor{
		buffer: newTensorBuffer(shape.Elements() * dtype.Size()),
		shape:  shape,
		dtype:  dtype,
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// Offset returns the position of the first element inside the shared buffer.
func (r *RawTensor) Offset() int {
	return r.offset
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.Elements()
}

// ByteSize returns the memory covered by this tensor in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the bytes covered by this tensor.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	start := r.offset * r.dtype.Size()
	return r.bytes()[start : start+r.ByteSize()]
}

func (r *RawTensor) bytes() []byte {
	data := r.buffer.data
	if data == nil {
		panic(errors.Errorf("tensor %s %s: storage already released", r.dtype, r.shape))
	}
	return data
}

func (r *RawTensor) first() unsafe.Pointer {
	return unsafe.Pointer(&r.Data()[0])
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(errors.Errorf("tensor dtype is %s, not float32", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by Data()
	return unsafe.Slice((*float32)(r.first()), r.NumElements())
}

// AsFloat16 interprets the data as []float16.Float16.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16() []float16.Float16 {
	if r.dtype != Float16 {
		panic(errors.Errorf("tensor dtype is %s, not float16", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by Data()
	return unsafe.Slice((*float16.Float16)(r.first()), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(errors.Errorf("tensor dtype is %s, not int32", r.dtype))
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by Data()
	return unsafe.Slice((*int32)(r.first()), r.NumElements())
}

// View returns a tensor reading and writing the same storage with a new
// shape, starting offset elements after this tensor's first element.
//
// The view holds a reference on the storage; call Release on it when done.
func (r *RawTensor) View(shape Shape, offset int) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid view shape")
	}
	start := r.offset + offset
	total := len(r.bytes()) / r.dtype.Size()
	if offset < 0 || start+shape.Elements() > total {
		return nil, errors.Errorf("view %s at offset %d exceeds storage of %d elements", shape, start, total)
	}
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  shape,
		dtype:  r.dtype,
		device: r.device,
		offset: start,
	}, nil
}

// SharesStorage reports whether r and other read the same buffer.
func (r *RawTensor) SharesStorage(other *RawTensor) bool {
	return other != nil && r.buffer == other.buffer
}

// Copy returns a deep copy of the tensor with its own storage.
func (r *RawTensor) Copy() *RawTensor {
	c, err := NewRaw(r.shape, r.dtype, r.device)
	if err != nil {
		panic(err)
	}
	copy(c.Data(), r.Data())
	return c
}

// Release drops this tensor's reference on the storage. The memory is freed
// once the owner and all views are released. Releasing twice is a no-op.
func (r *RawTensor) Release() {
	if r.released.Swap(true) {
		return
	}
	r.buffer.release()
}

// Released reports whether Release was called on this tensor.
func (r *RawTensor) Released() bool {
	return r.released.Load()
}

// IsUnique returns true if no view shares this tensor's storage.
func (r *RawTensor) IsUnique() bool {
	return r.buffer.refCount.Load() == 1
}
