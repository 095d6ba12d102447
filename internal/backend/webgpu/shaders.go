//go:build windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/exprgraph/internal/backend"
)

// workgroupSize matches @workgroup_size in every shader.
const workgroupSize = 256

// unaryShaderTemplate computes output = f(x) elementwise.
const unaryShaderTemplate = `
struct Params {
    size: u32,
}

@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> output: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let x = input[idx];
    output[idx] = %s;
}
`

// unaryGradShaderTemplate accumulates grad += adj * f'(s), where s is the
// forward value or the input depending on the function.
const unaryGradShaderTemplate = `
struct Params {
    size: u32,
}

@group(0) @binding(0) var<storage, read_write> grad: array<f32>;
@group(0) @binding(1) var<storage, read> adj: array<f32>;
@group(0) @binding(2) var<storage, read> src: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let s = src[idx];
    grad[idx] = grad[idx] + adj[idx] * (%s);
}
`

// clipShader clamps data into [-clip, clip] in place.
const clipShader = `
struct Params {
    size: u32,
    clip: f32,
}

@group(0) @binding(0) var<storage, read_write> data: array<f32>;
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    data[idx] = clamp(data[idx], -params.clip, params.clip);
}
`

// unaryExprs holds the WGSL body of each function dispatched to the device.
var unaryExprs = map[backend.UnaryOp]string{
	backend.Sigmoid: "select(exp(x) / (1.0 + exp(x)), 1.0 / (1.0 + exp(-x)), x >= 0.0)",
	backend.Tanh:    "tanh(x)",
	backend.ReLU:    "max(x, 0.0)",
	backend.Log:     "log(x)",
	backend.Exp:     "exp(x)",
	backend.Neg:     "-x",
}

// gradExpr is the derivative in terms of s, and whether s is the forward
// value (true) or the input (false).
type gradExpr struct {
	expr    string
	fromVal bool
}

var unaryGradExprs = map[backend.UnaryOp]gradExpr{
	backend.Sigmoid: {"s * (1.0 - s)", true},
	backend.Tanh:    {"1.0 - s * s", true},
	backend.ReLU:    {"select(0.0, 1.0, s > 0.0)", false},
	backend.Log:     {"1.0 / s", false},
	backend.Exp:     {"s", true},
}

func unaryShader(op backend.UnaryOp) (name, code string, ok bool) {
	expr, ok := unaryExprs[op]
	if !ok {
		return "", "", false
	}
	return "unary_" + op.String(), fmt.Sprintf(unaryShaderTemplate, expr), true
}

func unaryGradShader(op backend.UnaryOp) (name, code string, fromVal, ok bool) {
	g, ok := unaryGradExprs[op]
	if !ok {
		return "", "", false, false
	}
	return "unary_grad_" + op.String(), fmt.Sprintf(unaryGradShaderTemplate, g.expr), g.fromVal, true
}
