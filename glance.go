// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package glance is the root facade tying the shared-memory transport
// (package smt), the frame buffer (package fb), the capture-backend
// interface (package capture), the post-process chain (package pp), and the
// producer orchestrator (package producer) together, in the place of the
// teacher's root wgpu package. Embedders that only need one side of the
// transport can still import the subpackages directly; this package exists
// for the common case of wiring a whole producer or a whole same-process
// viewer in one call.
package glance

import (
	"log/slog"

	"github.com/gogpu/glance/internal/logging"
	"github.com/gogpu/glance/producer"
)

// Config configures a Producer. See producer.Config for field documentation.
type Config = producer.Config

// Producer is the producer orchestrator: spec.md §4.5's state machine,
// capture loop, and cursor pipeline.
type Producer = producer.Producer

// State is one node of the Producer's state machine.
type State = producer.State

// HostSignals reports host-OS-level state for the frame descriptor's
// BLOCK_SCREENSAVER/REQUEST_ACTIVATION flags.
type HostSignals = producer.HostSignals

// NewProducer validates cfg and constructs a Producer, creating the
// underlying shared-memory host and its two well-known queues (Q_FRAME,
// Q_POINTER). Call Run to drive the state machine.
func NewProducer(cfg Config) (*Producer, error) {
	return producer.New(cfg)
}

// SetLogger configures the *slog.Logger shared by smt, capture, pp and
// producer. Package hal keeps a separate logger, set with hal.SetLogger.
// By default the module produces
// no log output; pass nil to restore the silent default.
func SetLogger(l *slog.Logger) {
	logging.SetLogger(l)
}
