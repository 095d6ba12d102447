//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// maxPooledPerUsage bounds the idle buffers kept for each usage.
const maxPooledPerUsage = 64

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// PoolStats counts buffer pool traffic.
type PoolStats struct {
	Allocated, Hits, Misses uint64
	Pooled                  int
}

// BufferPool recycles scratch buffers (kernel outputs and readback staging)
// between kernel calls.
type BufferPool struct {
	device *wgpu.Device

	mu    sync.Mutex
	idle  map[wgpu.BufferUsage][]pooledBuffer
	stats PoolStats
}

// NewBufferPool creates an empty pool for device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{
		device: device,
		idle:   make(map[wgpu.BufferUsage][]pooledBuffer),
	}
}

// Acquire returns an idle buffer with exactly usage and at least size bytes,
// or creates one.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	idle := p.idle[usage]
	for i, pb := range idle {
		if pb.size >= size {
			p.idle[usage] = append(idle[:i], idle[i+1:]...)
			p.stats.Hits++
			return pb.buffer
		}
	}
	p.stats.Misses++
	p.stats.Allocated++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{Usage: usage, Size: size})
}

// Release returns a buffer acquired with size and usage. The buffer is freed
// when the pool for usage is full.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle[usage]) >= maxPooledPerUsage {
		buffer.Release()
		return
	}
	p.idle[usage] = append(p.idle[usage], pooledBuffer{buffer: buffer, size: size})
}

// Clear frees every idle buffer.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for usage, idle := range p.idle {
		for _, pb := range idle {
			pb.buffer.Release()
		}
		delete(p.idle, usage)
	}
}

// Stats returns a snapshot of the pool counters.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	for _, idle := range p.idle {
		s.Pooled += len(idle)
	}
	return s
}
