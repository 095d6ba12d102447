//go:build windows

package webgpu

import (
	"fmt"
	"sync"

	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/backend/cpu"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func init() {
	backend.Register(tensor.GPU, func(id backend.DeviceID, seed uint64) (backend.Backend, error) {
		if id.No != 0 {
			return nil, errors.Errorf("webgpu backend only binds the default adapter, got %s", id)
		}
		return New(seed)
	})
}

// Compile-time check that Backend implements backend.Backend.
var _ backend.Backend = (*Backend)(nil)

// Backend implements backend.Backend on a WebGPU adapter.
type Backend struct {
	*cpu.Backend

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	adapterInfo *wgpu.AdapterInfoGo
	bufferPool  *BufferPool

	mu        sync.RWMutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline

	pendingMu       sync.Mutex
	pendingCommands []*wgpu.CommandBuffer
}

// New binds the high-performance adapter of this system.
func New(seed uint64) (b *Backend, err error) {
	// wgpu panics when the native library cannot be loaded.
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, errors.Wrap(err, "webgpu: failed to create instance")
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrap(err, "webgpu: failed to request adapter")
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(err, "webgpu: failed to request device")
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.New("webgpu: failed to get queue")
	}
	info, err := adapter.GetInfo()
	if err != nil {
		klog.Warningf("webgpu: adapter info unavailable: %v", err)
		info = &wgpu.AdapterInfoGo{}
	}

	b = &Backend{
		Backend:     cpu.NewForDevice(backend.DeviceID{Type: tensor.GPU}, seed),
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		adapterInfo: info,
		bufferPool:  NewBufferPool(device),
		shaders:     make(map[string]*wgpu.ShaderModule),
		pipelines:   make(map[string]*wgpu.ComputePipeline),
	}
	klog.V(1).Infof("webgpu: bound adapter %q (%s)", info.Device, info.Vendor)
	return b, nil
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "webgpu"
}

// AdapterInfo returns information about the bound adapter. Fields are empty
// when the driver did not report them.
func (b *Backend) AdapterInfo() *wgpu.AdapterInfoGo {
	return b.adapterInfo
}

// SetDevice does nothing: WebGPU has no current-device state.
func (b *Backend) SetDevice() {}

// Synchronize submits every queued command buffer and blocks until the
// device queue is empty.
func (b *Backend) Synchronize() {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if len(b.pendingCommands) > 0 {
		b.queue.Submit(b.pendingCommands...)
		for _, cmd := range b.pendingCommands {
			cmd.Release()
		}
		b.pendingCommands = b.pendingCommands[:0]
	}
	for !b.device.Poll(true) {
	}
}

// enqueue appends a recorded command buffer, submitted at the next
// Synchronize or readback.
func (b *Backend) enqueue(cmd *wgpu.CommandBuffer) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	b.pendingCommands = append(b.pendingCommands, cmd)
}

// Close releases all WebGPU resources. Closing twice is a no-op.
func (b *Backend) Close() error {
	if b.device == nil {
		return nil
	}
	b.Synchronize()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.bufferPool.Clear()
	for _, p := range b.pipelines {
		p.Release()
	}
	b.pipelines = nil
	for _, s := range b.shaders {
		s.Release()
	}
	b.shaders = nil

	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
	b.queue, b.device, b.adapter, b.instance = nil, nil, nil, nil
	return nil
}

// IsAvailable reports whether a WebGPU adapter can be requested.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return false
	}
	defer instance.Release()
	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}
