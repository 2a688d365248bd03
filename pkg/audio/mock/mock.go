// Package mock provides test doubles for the audio package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/cinevoxhq/cinevox/pkg/audio"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

// Platform is a mock audio.Platform for tests.
// Configure the error fields before use; the zero value grants permission
// and opens streams successfully.
type Platform struct {
	// PermissionErr is returned by RequestPermission when non-nil.
	PermissionErr error

	// OpenErr is returned by OpenInput when non-nil.
	OpenErr error

	mu          sync.Mutex
	permissions int
	streams     []*InputStream
}

// RequestPermission implements audio.Platform.
func (p *Platform) RequestPermission(_ context.Context) error {
	p.mu.Lock()
	p.permissions++
	p.mu.Unlock()
	return p.PermissionErr
}

// OpenInput implements audio.Platform.
func (p *Platform) OpenInput(_ context.Context, _ audio.StreamConfig) (audio.InputStream, error) {
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	s := NewInputStream()
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()
	return s, nil
}

// PermissionRequests returns how many times RequestPermission was called.
func (p *Platform) PermissionRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permissions
}

// Streams returns all streams opened so far.
func (p *Platform) Streams() []*InputStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*InputStream, len(p.streams))
	copy(out, p.streams)
	return out
}

// InputStream is a mock audio.InputStream whose frames are pushed by the test.
type InputStream struct {
	frames chan types.AudioFrame
	once   sync.Once
	closed chan struct{}
}

// NewInputStream creates a mock stream with a buffered frame channel.
func NewInputStream() *InputStream {
	return &InputStream{
		frames: make(chan types.AudioFrame, 64),
		closed: make(chan struct{}),
	}
}

// Push delivers a frame to the stream's consumer. Returns false if the
// stream has been closed.
func (s *InputStream) Push(frame types.AudioFrame) bool {
	select {
	case <-s.closed:
		return false
	case s.frames <- frame:
		return true
	}
}

// Frames implements audio.InputStream.
func (s *InputStream) Frames() <-chan types.AudioFrame { return s.frames }

// Close implements audio.InputStream.
func (s *InputStream) Close() error {
	s.once.Do(func() {
		close(s.closed)
		close(s.frames)
	})
	return nil
}

// Closed reports whether Close has been called.
func (s *InputStream) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
