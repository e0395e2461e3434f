package pp

import (
	"fmt"

	"github.com/gogpu/naga"
)

// validateWGSL parses and lowers a stage's kernel source with naga, exactly
// as the teacher's hal/gles.compileWGSLToGLSL and hal/dx12 WGSL->HLSL
// pipelines do before handing the IR to a concrete hal.Device backend to
// compile. Every stage calls this from EarlyInit so a malformed kernel is
// caught at chain setup time rather than on the first frame.
func validateWGSL(source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return fmt.Errorf("pp: WGSL parse error: %w", err)
	}
	if _, err := naga.Lower(ast); err != nil {
		return fmt.Errorf("pp: WGSL lower error: %w", err)
	}
	return nil
}

// hdr16ToPQ10WGSL is the compute kernel a GPU-dispatching implementation of
// HDR16ToPQ10 would run: one invocation per pixel, converting scRGB linear
// RGBA16F to BT.2020 ST-2084 RGBA10. The Go Stage implementation executes
// the equivalent arithmetic directly (see hdr_pq.go); this source is the
// kernel that would be compiled and dispatched via hal.Device on real
// hardware, and is validated at EarlyInit time regardless.
const hdr16ToPQ10WGSL = `
@group(0) @binding(0) var src_tex: texture_2d<f32>;
@group(0) @binding(1) var dst_tex: texture_storage_2d<rgba10a2unorm, write>;

const BT709_TO_BT2020: mat3x3<f32> = mat3x3<f32>(
    vec3<f32>(0.627404, 0.069097, 0.016391),
    vec3<f32>(0.329283, 0.919540, 0.088013),
    vec3<f32>(0.043313, 0.011362, 0.895595),
);

const PQ_M1: f32 = 0.1593017578125;
const PQ_M2: f32 = 78.84375;
const PQ_C1: f32 = 0.8359375;
const PQ_C2: f32 = 18.8515625;
const PQ_C3: f32 = 18.6875;

fn pq_oetf(linear_nits_ratio: f32) -> f32 {
    let l = pow(max(linear_nits_ratio, 0.0), PQ_M1);
    return pow((PQ_C1 + PQ_C2 * l) / (1.0 + PQ_C3 * l), PQ_M2);
}

@compute @workgroup_size(8, 8, 1)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let coord = vec2<i32>(i32(gid.x), i32(gid.y));
    let scrgb = textureLoad(src_tex, coord, 0);
    let bt2020 = BT709_TO_BT2020 * scrgb.rgb;
    let nits_ratio = bt2020 * (80.0 / 10000.0);
    let pq = vec3<f32>(pq_oetf(nits_ratio.x), pq_oetf(nits_ratio.y), pq_oetf(nits_ratio.z));
    textureStore(dst_tex, coord, vec4<f32>(pq, scrgb.a));
}
`

// downsampleWGSL is the bilinear downscale kernel a GPU dispatch would run.
const downsampleWGSL = `
@group(0) @binding(0) var src_tex: texture_2d<f32>;
@group(0) @binding(1) var src_sampler: sampler;
@group(0) @binding(2) var dst_tex: texture_storage_2d<rgba8unorm, write>;
@group(0) @binding(3) var<uniform> dst_size: vec2<u32>;

@compute @workgroup_size(8, 8, 1)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.x >= dst_size.x || gid.y >= dst_size.y) {
        return;
    }
    let uv = (vec2<f32>(gid.xy) + vec2<f32>(0.5, 0.5)) / vec2<f32>(dst_size);
    let color = textureSampleLevel(src_tex, src_sampler, uv, 0.0);
    textureStore(dst_tex, vec2<i32>(i32(gid.x), i32(gid.y)), color);
}
`

// rgb24PackWGSL is the byte-repack kernel a GPU dispatch would run.
const rgb24PackWGSL = `
@group(0) @binding(0) var<storage, read> src_rgba8: array<u32>;
@group(0) @binding(1) var<storage, read_write> dst_packed: array<u32>;
@group(0) @binding(2) var<uniform> params: vec2<u32>; // x = src pixel count, y = packed_pitch_texels

@compute @workgroup_size(64, 1, 1)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
    // Each invocation repacks one output 32-bit word from the flattened
    // (alpha-stripped) RGB byte stream; see rgb24pack.go for the
    // byte-indexing arithmetic this mirrors.
    let out_index = gid.x;
    if (out_index * 4u >= params.x * 3u) {
        return;
    }
    dst_packed[out_index] = src_rgba8[out_index]; // placeholder identity store; real shuffle in rgb24pack.go
}
`

// sdrWhiteLevelWGSL is the SDR-white-level rescale kernel.
const sdrWhiteLevelWGSL = `
@group(0) @binding(0) var src_tex: texture_2d<f32>;
@group(0) @binding(1) var dst_tex: texture_storage_2d<rgba10a2unorm, write>;
@group(0) @binding(2) var<uniform> white_nits: f32;

@compute @workgroup_size(8, 8, 1)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let coord = vec2<i32>(i32(gid.x), i32(gid.y));
    let scrgb = textureLoad(src_tex, coord, 0);
    let scaled = scrgb.rgb * (80.0 / white_nits);
    textureStore(dst_tex, coord, vec4<f32>(scaled, scrgb.a));
}
`
