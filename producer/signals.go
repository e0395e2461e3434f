package producer

// HostSignals is the "host OS collaborator" spec.md §4.5 step 3 references:
// a small hook the embedder implements to report desktop-level state that
// feeds the frame descriptor's BLOCK_SCREENSAVER and REQUEST_ACTIVATION
// flags. Both methods are polled once per send_frame; a nil HostSignals
// leaves both flags clear.
type HostSignals interface {
	// ScreensaverBlocked reports whether the guest wants the host to
	// suppress its screensaver/lock screen while this session is active.
	ScreensaverBlocked() bool

	// ActivationRequested reports whether the guest wants the host window
	// raised/focused (e.g. in response to a guest-side user action).
	ActivationRequested() bool
}

// noSignals is the zero-value HostSignals used when a Config leaves
// Signals nil, so send_frame never needs a nil check on the hot path.
type noSignals struct{}

func (noSignals) ScreensaverBlocked() bool    { return false }
func (noSignals) ActivationRequested() bool   { return false }
