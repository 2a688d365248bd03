// Package types defines the shared types used across all Cinevox packages.
//
// These types form the lingua franca between the audio platform, the STT and
// LLM providers, and the utterance pipeline. They are intentionally minimal —
// each package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports.
package types

import (
	"strings"
	"time"
)

// AudioFrame represents a single frame of audio data flowing through the
// capture pipeline. Frames are the atomic unit of audio transport — captured
// from the input device and forwarded to the active STT session.
type AudioFrame struct {
	// PCM audio data. Sample rate and channel count are determined by the capture config.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT-optimised mono input).
	SampleRate int

	// Channels: 1 for mono (STT input), 2 for stereo device capture.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the provider
	// does not report confidence.
	Confidence float64

	// Words contains per-word detail when available. May be nil for providers
	// that don't support word-level output.
	Words []WordDetail

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Utterance is one finalized user voice input. It is the source of truth for
// all downstream parsing: never mutated, only re-derived.
type Utterance struct {
	// Text is the finalized transcript text.
	Text string

	// ReceivedAt is when the final transcript arrived.
	ReceivedAt time.Time
}

// NewUtterance creates an Utterance with trimmed text and the current time.
func NewUtterance(text string) Utterance {
	return Utterance{
		Text:       strings.TrimSpace(text),
		ReceivedAt: time.Now().UTC(),
	}
}

// IsEmpty reports whether the utterance carries no usable text.
func (u Utterance) IsEmpty() bool {
	return u.Text == ""
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}
