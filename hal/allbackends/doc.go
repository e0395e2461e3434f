// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package allbackends imports all HAL backend implementations.
//
// Import this package for side effects to register all available backends:
//
//	import (
//		_ "github.com/gogpu/glance/hal/allbackends"
//	)
//
// This will register:
//   - No-op backend (all platforms) - the post-process chain's device seam.
//     Every pp.Stage executes its pixel arithmetic directly in Go (see
//     pp/doc.go), so the no-op backend is what chain.Setup drives today;
//     hal.Device/hal.Registry stay in place as the extension point a real
//     GPU-dispatching backend would register into without changing pp or
//     producer call sites.
//
// After importing, use hal.GetBackend or hal.AvailableBackends to access backends.
//
// Example usage:
//
//	import (
//		_ "github.com/gogpu/glance/hal/allbackends"
//		"github.com/gogpu/glance/hal"
//		"github.com/gogpu/glance/types"
//	)
//
//	func main() {
//		backend, ok := hal.GetBackend(types.BackendEmpty)
//		if !ok {
//			return
//		}
//		instance, err := backend.CreateInstance(&hal.InstanceDescriptor{})
//		// instance.EnumerateAdapters(nil) lists the no-op adapter
//	}
package allbackends
