// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package glance

import (
	"fmt"

	"github.com/gogpu/glance/smt"
	"github.com/gogpu/glance/wire"
)

// cursorHeaderSize is the fixed encoded length of a wire.CursorDescriptor;
// any bytes beyond it in a pointer-queue message are shape pixel data.
var cursorHeaderSize = len(wire.CursorDescriptor{}.Encode())

// Viewer is the out-of-scope-per-spec.md-§1 "consumer" side of the
// transport, provided here for a same-process loopback (an in-process test
// harness, or a viewer that maps the same shm.Region) — spec.md §4.1's
// client_init/client_session_init/client_subscribe/client_process/
// client_message_done/client_unsubscribe, wrapped with wire decoding so
// callers work with FrameUpdate/CursorUpdate rather than raw bytes.
type Viewer struct {
	client *smt.Client
}

// NewViewer registers a new subscriber identity against host.
func NewViewer(host *smt.Host) (*Viewer, error) {
	c, err := smt.ClientInit(host)
	if err != nil {
		return nil, fmt.Errorf("glance: NewViewer: %w", err)
	}
	return &Viewer{client: c}, nil
}

// SessionInit returns the producer's session user-data and session id, per
// client_session_init. Callers should compare the returned session id
// against the last one observed to detect a producer reinit (spec.md §8
// property 7).
func (v *Viewer) SessionInit() (sessionUserData []byte, sessionID uint64) {
	return v.client.SessionInit()
}

// SubscribeFrames follows the frame queue.
func (v *Viewer) SubscribeFrames() error { return v.client.Subscribe(smt.QFrame) }

// SubscribePointer follows the pointer queue.
func (v *Viewer) SubscribePointer() error { return v.client.Subscribe(smt.QPointer) }

// UnsubscribeFrames stops following the frame queue.
func (v *Viewer) UnsubscribeFrames() error { return v.client.Unsubscribe(smt.QFrame) }

// UnsubscribePointer stops following the pointer queue.
func (v *Viewer) UnsubscribePointer() error { return v.client.Unsubscribe(smt.QPointer) }

// AdvanceFramesToLast skips to the newest posted frame, discarding any
// stale frames in between (client_advance_to_last).
func (v *Viewer) AdvanceFramesToLast() error { return v.client.AdvanceToLast(smt.QFrame) }

// FrameUpdate is one delivered frame-queue message, decoded.
type FrameUpdate struct {
	wire.FrameDescriptor
	raw smt.Message
}

// NextFrame returns the oldest not-yet-consumed frame, if any
// (client_process against Q_FRAME). Call AckFrame once the descriptor (and
// any pixels it references) has been consumed.
func (v *Viewer) NextFrame() (FrameUpdate, bool, error) {
	msg, ok, err := v.client.Process(smt.QFrame)
	if err != nil || !ok {
		return FrameUpdate{}, ok, err
	}
	desc, err := wire.DecodeFrameDescriptor(v.client.ReadMessage(msg))
	if err != nil {
		return FrameUpdate{}, false, fmt.Errorf("glance: decode frame descriptor: %w", err)
	}
	return FrameUpdate{FrameDescriptor: desc, raw: msg}, true, nil
}

// AckFrame acknowledges a FrameUpdate previously returned by NextFrame
// (client_message_done), letting the producer reclaim its slot once every
// subscribed viewer has done the same.
func (v *Viewer) AckFrame(u FrameUpdate) error {
	return v.client.MessageDone(smt.QFrame, u.raw)
}

// CursorUpdate is one delivered pointer-queue message, decoded. ShapeData
// is non-empty only when Flags.Has(wire.CursorFlagShape).
type CursorUpdate struct {
	wire.CursorDescriptor
	ShapeData []byte
	raw       smt.Message
}

// NextCursor returns the oldest not-yet-consumed pointer update, if any
// (client_process against Q_POINTER).
func (v *Viewer) NextCursor() (CursorUpdate, bool, error) {
	msg, ok, err := v.client.Process(smt.QPointer)
	if err != nil || !ok {
		return CursorUpdate{}, ok, err
	}
	data := v.client.ReadMessage(msg)
	if len(data) < cursorHeaderSize {
		return CursorUpdate{}, false, fmt.Errorf("glance: cursor message too short: %d bytes", len(data))
	}
	desc, err := wire.DecodeCursorDescriptor(data[:cursorHeaderSize])
	if err != nil {
		return CursorUpdate{}, false, fmt.Errorf("glance: decode cursor descriptor: %w", err)
	}
	return CursorUpdate{CursorDescriptor: desc, ShapeData: data[cursorHeaderSize:], raw: msg}, true, nil
}

// AckCursor acknowledges a CursorUpdate previously returned by NextCursor.
func (v *Viewer) AckCursor(u CursorUpdate) error {
	return v.client.MessageDone(smt.QPointer, u.raw)
}

// SetCursorPosition sends a SET_CURSOR_POS command over the reverse
// channel (spec.md §6), drained by the producer's transport-maintenance
// tick.
func (v *Viewer) SetCursorPosition(x, y int32) {
	v.client.PostCommand(smt.Command{
		Kind:    smt.CommandSetCursorPos,
		Payload: wire.SetCursorPos{X: x, Y: y}.Encode(),
	})
}

// Close unregisters this viewer's subscriber identity from every queue it
// was following (client_unsubscribe for both queues, implicitly).
func (v *Viewer) Close() error { return v.client.Close() }
