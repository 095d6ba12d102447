// Package webgpu implements a GPU backend on top of go-webgpu
// (github.com/go-webgpu/webgpu), zero-CGO WebGPU bindings.
//
// Elementwise kernels and gradient clipping run as WGSL compute shaders. The
// remaining kernels run on the host through the embedded CPU kernel library,
// since tensor storage stays host-visible.
//
// The backend is only built on windows; elsewhere requesting a GPU device
// returns an error and IsAvailable reports false.
package webgpu
