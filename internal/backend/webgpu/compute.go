//go:build windows

package webgpu

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/born-ml/exprgraph/internal/backend"
	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
)

var (
	storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	stagingUsage = wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
)

// compileShader compiles WGSL code, caching the module by name.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	shader, exists := b.shaders[name]
	b.mu.RUnlock()
	if exists {
		return shader
	}

	shader = b.device.CreateShaderModuleWGSL(code)
	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()
	return shader
}

// pipeline returns the cached compute pipeline for name, compiling code on
// first use.
func (b *Backend) pipeline(name, code string) *wgpu.ComputePipeline {
	b.mu.RLock()
	p, exists := b.pipelines[name]
	b.mu.RUnlock()
	if exists {
		return p
	}

	p = b.device.CreateComputePipelineSimple(nil, b.compileShader(name, code), "main")
	b.mu.Lock()
	b.pipelines[name] = p
	b.mu.Unlock()
	return p
}

// upload creates a storage buffer holding data.
func (b *Backend) upload(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            storageUsage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	//nolint:gosec // mapped range is exactly size bytes
	copy(unsafe.Slice((*byte)(buffer.GetMappedRange(0, size)), size), data)
	buffer.Unmap()
	return buffer
}

// uniform creates a 16-byte aligned uniform buffer holding the element
// count and an optional float parameter.
func (b *Backend) uniform(size int, param float32) *wgpu.Buffer {
	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(size)) //nolint:gosec // tensor sizes fit u32
	binary.LittleEndian.PutUint32(params[4:8], math.Float32bits(param))

	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             16,
		MappedAtCreation: wgpu.True,
	})
	//nolint:gosec // mapped range is exactly 16 bytes
	copy(unsafe.Slice((*byte)(buffer.GetMappedRange(0, 16)), 16), params)
	buffer.Unmap()
	return buffer
}

// dispatch records one compute pass over n elements and queues it.
func (b *Backend) dispatch(p *wgpu.ComputePipeline, n int, entries ...wgpu.BindGroupEntry) {
	bindGroup := b.device.CreateBindGroupSimple(p.GetBindGroupLayout(0), entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32((n+workgroupSize-1)/workgroupSize), 1, 1) //nolint:gosec // non-negative
	pass.End()
	b.enqueue(encoder.Finish(nil))
}

// readInto copies src back into the host storage of dst, submitting every
// queued command first.
func (b *Backend) readInto(dst *tensor.RawTensor, src *wgpu.Buffer) {
	size := uint64(dst.ByteSize()) //nolint:gosec // non-negative
	staging := b.bufferPool.Acquire(size, stagingUsage)
	defer b.bufferPool.Release(staging, size, stagingUsage)

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	b.enqueue(encoder.Finish(nil))
	b.Synchronize()

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		panic(errors.Wrap(err, "webgpu: failed to map staging buffer"))
	}
	//nolint:gosec // mapped range is exactly size bytes
	copy(dst.Data(), unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size))
	staging.Unmap()
}

func checkFloat32(kernel string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(errors.Errorf("%s: webgpu only supports float32, got %s", kernel, t.DType()))
		}
	}
}

func checkSameElements(kernel string, a, b *tensor.RawTensor) {
	if a.NumElements() != b.NumElements() {
		panic(errors.Errorf("%s: element count mismatch %s vs %s", kernel, a.Shape(), b.Shape()))
	}
}

// Unary computes out = op(in) on the device.
func (b *Backend) Unary(op backend.UnaryOp, out, in *tensor.RawTensor) {
	name, code, ok := unaryShader(op)
	if !ok {
		b.Backend.Unary(op, out, in)
		return
	}
	checkSameElements("unary "+op.String(), out, in)
	checkFloat32("unary "+op.String(), out, in)

	n, size := in.NumElements(), uint64(in.ByteSize()) //nolint:gosec // non-negative
	input := b.upload(in.Data())
	defer input.Release()
	output := b.bufferPool.Acquire(size, storageUsage)
	defer b.bufferPool.Release(output, size, storageUsage)
	params := b.uniform(n, 0)
	defer params.Release()

	b.dispatch(b.pipeline(name, code), n,
		wgpu.BufferBindingEntry(0, input, 0, size),
		wgpu.BufferBindingEntry(1, output, 0, size),
		wgpu.BufferBindingEntry(2, params, 0, 16),
	)
	b.readInto(out, output)
}

// UnaryGrad computes grad += adj * op'(in) on the device.
func (b *Backend) UnaryGrad(op backend.UnaryOp, grad, adj, val, in *tensor.RawTensor) {
	name, code, fromVal, ok := unaryGradShader(op)
	if !ok {
		b.Backend.UnaryGrad(op, grad, adj, val, in)
		return
	}
	src := in
	if fromVal {
		src = val
	}
	checkSameElements("unary grad "+op.String(), grad, adj)
	checkSameElements("unary grad "+op.String(), grad, src)
	checkFloat32("unary grad "+op.String(), grad, adj, src)

	n, size := grad.NumElements(), uint64(grad.ByteSize()) //nolint:gosec // non-negative
	gradBuf := b.upload(grad.Data())
	defer gradBuf.Release()
	adjBuf := b.upload(adj.Data())
	defer adjBuf.Release()
	srcBuf := b.upload(src.Data())
	defer srcBuf.Release()
	params := b.uniform(n, 0)
	defer params.Release()

	b.dispatch(b.pipeline(name, code), n,
		wgpu.BufferBindingEntry(0, gradBuf, 0, size),
		wgpu.BufferBindingEntry(1, adjBuf, 0, size),
		wgpu.BufferBindingEntry(2, srcBuf, 0, size),
		wgpu.BufferBindingEntry(3, params, 0, 16),
	)
	b.readInto(grad, gradBuf)
}

// ClipValues clamps every element of t into [-clip, clip] on the device.
func (b *Backend) ClipValues(t *tensor.RawTensor, clip float32) {
	checkFloat32("clip", t)
	n, size := t.NumElements(), uint64(t.ByteSize()) //nolint:gosec // non-negative
	data := b.upload(t.Data())
	defer data.Release()
	params := b.uniform(n, clip)
	defer params.Release()

	b.dispatch(b.pipeline("clip", clipShader), n,
		wgpu.BufferBindingEntry(0, data, 0, size),
		wgpu.BufferBindingEntry(1, params, 0, 16),
	)
	b.readInto(t, data)
}
