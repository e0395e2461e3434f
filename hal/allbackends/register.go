// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package allbackends

import (
	// No-op backend - always available, used by capture/producer tests and
	// as the post-process chain's device seam until a real GPU dispatch
	// path is wired (every Stage currently executes its arithmetic in Go;
	// see DESIGN.md).
	_ "github.com/gogpu/glance/hal/noop"
)
