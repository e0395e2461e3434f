// Package pp implements the post-process chain of spec.md §4.4: an ordered
// pipeline of GPU programs transforming a captured frame before it lands in
// shared memory (HDR->PQ conversion, arbitrary downscale, RGBA->packed-RGB24
// repack, and the SDR-white-level alternative to HDR->PQ recovered from
// original_source/). Each stage advertises its output format; the chain
// renegotiates left to right whenever the input format, size, or color
// space changes, and stages that report "bypass" are skipped for that
// input.
//
// Every stage's kernel is authored as WGSL and validated with
// naga.Parse/naga.Lower at EarlyInit time (see shaders.go), the same
// validation step the teacher's OpenGL ES and DX12 backends run before
// translating WGSL to their native shading language. This module executes
// the documented pixel algorithms directly in Go rather than dispatching
// the validated WGSL on a GPU queue: the testable properties this package
// must satisfy (spec.md §8 properties 8-9, scenarios S5-S6) require
// bit-exact, deterministic arithmetic that is most directly expressed and
// verified as ordinary Go code. A Chain still takes a hal.Device and uses
// it to create and destroy the chain's shareable output texture
// (hal.Device.CreateTexture/DestroyTexture), so the lifecycle spec.md
// §4.4's setup/init/free/finish describes is exercised against the hal
// seam; only the per-pixel Run step is CPU-side. See DESIGN.md for the
// full rationale.
package pp
