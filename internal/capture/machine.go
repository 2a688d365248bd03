// Package capture implements the speech capture state machine: permission
// request, streaming audio input, and speech-to-text session management for
// one voice search interaction.
//
// The machine owns a single session at a time. Engine callbacks are
// consumed serially by one event loop per session, so the transition from
// Listening to Processing is a single well-defined consumption point rather
// than a callback race. Each session has a generation number; events from a
// superseded generation are discarded.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cinevoxhq/cinevox/internal/observe"
	"github.com/cinevoxhq/cinevox/pkg/audio"
	"github.com/cinevoxhq/cinevox/pkg/provider/stt"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

// State is the capture session state.
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateListening            State = "listening"
	StateProcessing           State = "processing"
	StateError                State = "error"
)

// EngineFailure is a genuine recognition-engine or audio failure. It is
// terminal for the session. Cancellation artifacts caused by the stop call
// itself are swallowed and never surface as EngineFailure.
type EngineFailure struct {
	Err error
}

func (e *EngineFailure) Error() string {
	return fmt.Sprintf("capture: engine failure: %v", e.Err)
}

func (e *EngineFailure) Unwrap() error { return e.Err }

const defaultFinalWait = 500 * time.Millisecond

// Machine is the speech capture state machine. All exported methods are safe
// for concurrent use; the state has exactly one writer (the machine itself).
type Machine struct {
	platform audio.Platform
	sttp     stt.Provider
	audioCfg audio.StreamConfig
	sttCfg   stt.StreamConfig
	logger   *slog.Logger
	metrics  *observe.Metrics

	// finalWait bounds how long Stop waits for a final transcript after
	// flushing audio.
	finalWait time.Duration

	partials chan types.Transcript

	mu        sync.Mutex
	state     State
	lastErr   error
	gen       uint64
	input     audio.InputStream
	session   stt.SessionHandle
	startedAt time.Time

	// finalText accumulates final transcript segments for the current
	// generation. finalCh is closed when the first final arrives.
	finalText []string
	finalCh   chan struct{}
}

// Option is a functional option for Machine.
type Option func(*Machine)

// WithFinalWait overrides how long Stop waits for a final transcript.
func WithFinalWait(d time.Duration) Option {
	return func(m *Machine) {
		m.finalWait = d
	}
}

// WithLogger sets the machine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithMetrics enables the active-session gauge and capture duration
// histogram.
func WithMetrics(mt *observe.Metrics) Option {
	return func(m *Machine) {
		m.metrics = mt
	}
}

// NewMachine creates a Machine in the Idle state.
func NewMachine(platform audio.Platform, provider stt.Provider, audioCfg audio.StreamConfig, sttCfg stt.StreamConfig, opts ...Option) *Machine {
	m := &Machine{
		platform:  platform,
		sttp:      provider,
		audioCfg:  audioCfg,
		sttCfg:    sttCfg,
		logger:    slog.Default(),
		finalWait: defaultFinalWait,
		partials:  make(chan types.Transcript, 16),
	}
	for _, o := range opts {
		o(m)
	}
	m.state = StateIdle
	return m
}

// State returns the current session state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the failure that moved the machine into the Error state, or
// nil.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Partials is the stream of incremental transcript updates. Updates may be
// superseded by later updates; only the final transcript returned by Stop is
// authoritative for routing. Slow consumers lose old partials rather than
// stalling the engine.
func (m *Machine) Partials() <-chan types.Transcript {
	return m.partials
}

// Start begins a capture session: it requests microphone and speech
// permission, opens the audio input and starts the recognition stream.
//
// Calling Start while already Listening is a no-op. A refused permission
// fails with audio.ErrPermissionDenied in the error chain and moves the
// machine to Error.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateListening:
		m.mu.Unlock()
		return nil
	case StateRequestingPermission, StateProcessing:
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("capture: cannot start while %s", state)
	case StateError:
		err := m.lastErr
		m.mu.Unlock()
		return fmt.Errorf("capture: session is terminated: %w", err)
	}
	m.gen++
	gen := m.gen
	m.state = StateRequestingPermission
	m.finalText = nil
	m.finalCh = make(chan struct{})
	m.mu.Unlock()

	if err := m.platform.RequestPermission(ctx); err != nil {
		wrapped := fmt.Errorf("capture: request permission: %w", err)
		m.fail(gen, wrapped)
		return wrapped
	}

	input, err := m.platform.OpenInput(ctx, m.audioCfg)
	if err != nil {
		wrapped := fmt.Errorf("capture: open audio input: %w", err)
		m.fail(gen, wrapped)
		return wrapped
	}

	session, err := m.sttp.StartStream(ctx, m.sttCfg)
	if err != nil {
		input.Close()
		wrapped := fmt.Errorf("capture: start recognition stream: %w", err)
		m.fail(gen, wrapped)
		return wrapped
	}

	m.mu.Lock()
	if m.gen != gen || m.state != StateRequestingPermission {
		// Stopped while the permission prompt was up.
		m.mu.Unlock()
		input.Close()
		session.Close()
		return nil
	}
	m.state = StateListening
	m.input = input
	m.session = session
	m.startedAt = time.Now()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveCaptures.Add(ctx, 1)
	}

	go m.forwardAudio(gen, input, session)
	go m.consumeEvents(gen, session)
	return nil
}

// Stop ends the session: it flushes buffered audio, waits briefly for a
// final transcript, then returns to Idle.
//
// Stop is safe to call multiple times and from any state; redundant calls
// return (nil, nil). A final transcript that arrived before the stop call is
// never dropped. The returned utterance is nil when the session produced no
// final transcript.
func (m *Machine) Stop(ctx context.Context) (*types.Utterance, error) {
	m.mu.Lock()
	if m.state != StateListening && m.state != StateRequestingPermission {
		m.mu.Unlock()
		return nil, nil
	}
	wasListening := m.state == StateListening
	startedAt := m.startedAt
	m.state = StateProcessing
	gen := m.gen
	input := m.input
	session := m.session
	finalCh := m.finalCh
	m.input = nil
	m.session = nil
	m.mu.Unlock()

	// Closing the input flushes the remaining frames into the engine.
	if input != nil {
		input.Close()
	}

	if session != nil {
		select {
		case <-finalCh:
		case <-time.After(m.finalWait):
		case <-ctx.Done():
		}
		session.Close()
	}

	m.mu.Lock()
	var final *types.Utterance
	if m.gen == gen && len(m.finalText) > 0 {
		u := types.NewUtterance(strings.Join(m.finalText, " "))
		final = &u
	}
	m.finalText = nil
	// Invalidate any event that is still in flight for this session.
	m.gen++
	m.state = StateIdle
	m.mu.Unlock()

	if wasListening && m.metrics != nil {
		m.metrics.ActiveCaptures.Add(ctx, -1)
		m.metrics.CaptureDuration.Record(ctx, time.Since(startedAt).Seconds())
	}

	return final, nil
}

// forwardAudio copies frames from the input device to the recognition
// stream. The audio path does nothing but append buffered samples.
func (m *Machine) forwardAudio(gen uint64, input audio.InputStream, session stt.SessionHandle) {
	for frame := range input.Frames() {
		if err := session.SendAudio(frame.Data); err != nil {
			m.fail(gen, &EngineFailure{Err: fmt.Errorf("send audio: %w", err)})
			return
		}
	}
}

// consumeEvents is the single serial consumer of the session's transcript
// channels for one generation.
func (m *Machine) consumeEvents(gen uint64, session stt.SessionHandle) {
	partials := session.Partials()
	finals := session.Finals()

	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			m.emitPartial(gen, t)
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			m.storeFinal(gen, t)
		}
	}

	// Both channels closed. During or after a stop this is the expected
	// shutdown; while Listening it is a genuine engine failure.
	m.fail(gen, &EngineFailure{Err: errors.New("recognition stream ended unexpectedly")})
}

// emitPartial forwards a partial transcript unless its session is stale.
func (m *Machine) emitPartial(gen uint64, t types.Transcript) {
	m.mu.Lock()
	stale := m.gen != gen
	m.mu.Unlock()
	if stale {
		return
	}
	select {
	case m.partials <- t:
	default:
		// Drop for slow consumers; partials are superseded anyway.
	}
}

// storeFinal records a final transcript segment unless its session is stale.
func (m *Machine) storeFinal(gen uint64, t types.Transcript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	if strings.TrimSpace(t.Text) == "" {
		return
	}
	m.finalText = append(m.finalText, strings.TrimSpace(t.Text))
	select {
	case <-m.finalCh:
	default:
		close(m.finalCh)
	}
}

// fail moves the machine to Error unless the failing session is stale or a
// stop is already in progress, in which case the error is a cancellation
// artifact and is swallowed.
func (m *Machine) fail(gen uint64, err error) {
	m.mu.Lock()
	if m.gen != gen || (m.state != StateListening && m.state != StateRequestingPermission) {
		m.mu.Unlock()
		m.logger.Debug("discarding stale capture error", "error", err)
		return
	}
	wasListening := m.state == StateListening
	input := m.input
	session := m.session
	m.input = nil
	m.session = nil
	m.state = StateError
	m.lastErr = err
	m.gen++
	m.mu.Unlock()

	if input != nil {
		input.Close()
	}
	if session != nil {
		session.Close()
	}
	if wasListening && m.metrics != nil {
		m.metrics.ActiveCaptures.Add(context.Background(), -1)
	}
	m.logger.Error("capture session failed", "error", err)
}
