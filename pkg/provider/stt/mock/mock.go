// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig. Use Session to feed controlled Transcript values and inspect
// which audio chunks were delivered.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartStream(ctx, cfg)
//	sess.EmitFinal(types.Transcript{Text: "find dune", IsFinal: true})
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/cinevoxhq/cinevox/pkg/provider/stt"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by StartStream. If nil,
	// StartStream returns a fresh default Session.
	Session stt.SessionHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// StartStream records the call and returns Session, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Calls returns a snapshot of recorded StartStream calls. Thread-safe.
func (p *Provider) Calls() []StartStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StartStreamCall, len(p.StartStreamCalls))
	copy(out, p.StartStreamCalls)
	return out
}

// Session is a mock implementation of stt.SessionHandle. Transcripts are
// injected by the test via EmitPartial and EmitFinal.
type Session struct {
	mu     sync.Mutex
	chunks [][]byte

	partials chan types.Transcript
	finals   chan types.Transcript

	once   sync.Once
	closed chan struct{}

	// SendAudioErr, if non-nil, is returned by SendAudio.
	SendAudioErr error
}

// Ensure Session implements stt.SessionHandle at compile time.
var _ stt.SessionHandle = (*Session)(nil)

// NewSession creates a Session with buffered transcript channels.
func NewSession() *Session {
	return &Session{
		partials: make(chan types.Transcript, 16),
		finals:   make(chan types.Transcript, 16),
		closed:   make(chan struct{}),
	}
}

// SendAudio records a copy of the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	select {
	case <-s.closed:
		return errors.New("mock: session is closed")
	default:
	}
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.mu.Lock()
	s.chunks = append(s.chunks, cp)
	s.mu.Unlock()
	return nil
}

// Partials implements stt.SessionHandle.
func (s *Session) Partials() <-chan types.Transcript { return s.partials }

// Finals implements stt.SessionHandle.
func (s *Session) Finals() <-chan types.Transcript { return s.finals }

// Close closes the transcript channels. Safe to call multiple times.
func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.closed)
		close(s.partials)
		close(s.finals)
	})
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// EmitPartial delivers a partial transcript to the session consumer.
// Returns false if the session is closed.
func (s *Session) EmitPartial(t types.Transcript) bool {
	select {
	case <-s.closed:
		return false
	case s.partials <- t:
		return true
	}
}

// EmitFinal delivers a final transcript to the session consumer.
// Returns false if the session is closed.
func (s *Session) EmitFinal(t types.Transcript) bool {
	select {
	case <-s.closed:
		return false
	case s.finals <- t:
		return true
	}
}

// AudioChunks returns copies of all chunks delivered via SendAudio.
func (s *Session) AudioChunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.chunks))
	copy(out, s.chunks)
	return out
}
