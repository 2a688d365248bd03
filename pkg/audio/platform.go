// Package audio defines the interfaces for microphone capture platforms.
//
// The two primary abstractions are:
//
//   - [Platform] — requests capture permission and opens an [InputStream].
//   - [InputStream] — an active microphone stream delivering [types.AudioFrame]
//     values until closed.
//
// Implementations of these interfaces are provided by platform-specific
// adapter packages (CoreAudio, ALSA, a test mock, …). The interfaces are
// intentionally narrow to keep the capture state machine decoupled from
// device details.
//
// This package lives under pkg/ because external code (third-party platform
// adapters) is expected to implement [Platform] and [InputStream].
package audio

import (
	"context"
	"errors"

	"github.com/cinevoxhq/cinevox/pkg/types"
)

// ErrPermissionDenied is returned by [Platform.RequestPermission] when the
// user or operating system refuses microphone or speech-recognition access.
var ErrPermissionDenied = errors.New("audio: capture permission denied")

// StreamConfig describes the audio format requested from the input device.
type StreamConfig struct {
	// SampleRate is the requested sample rate in Hz (e.g., 16000).
	SampleRate int

	// Channels is the requested channel count. 1 = mono.
	Channels int
}

// InputStream represents an open microphone stream.
//
// Implementations must be safe for concurrent use. The Frames channel is
// closed by the implementation when the stream ends or [InputStream.Close]
// is called.
type InputStream interface {
	// Frames returns a read-only channel delivering captured audio frames in
	// arrival order. Receivers must drain promptly — the platform's capture
	// callback only enqueues frames and must never block on downstream work.
	Frames() <-chan types.AudioFrame

	// Close stops capture, releases the device, and closes the Frames channel.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// Platform is the entry point for a microphone capture provider.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// RequestPermission asks the OS for microphone and speech-recognition
	// access. It returns nil when both are granted, [ErrPermissionDenied]
	// when either is refused, and any other error for platform failures.
	// Calling it when permission is already granted is a cheap no-op.
	RequestPermission(ctx context.Context) error

	// OpenInput starts a capture stream with the requested format. The
	// supplied ctx governs the lifetime of the open attempt only; once
	// opened, the stream remains live until [InputStream.Close] is called.
	OpenInput(ctx context.Context, cfg StreamConfig) (InputStream, error)
}
