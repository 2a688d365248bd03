package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cinevoxhq/cinevox/pkg/audio"
	audiomock "github.com/cinevoxhq/cinevox/pkg/audio/mock"
	"github.com/cinevoxhq/cinevox/pkg/provider/stt"
	sttmock "github.com/cinevoxhq/cinevox/pkg/provider/stt/mock"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

func newTestMachine(t *testing.T) (*Machine, *audiomock.Platform, *sttmock.Session) {
	t.Helper()
	platform := &audiomock.Platform{}
	session := sttmock.NewSession()
	provider := &sttmock.Provider{Session: session}
	m := NewMachine(platform, provider,
		audio.StreamConfig{SampleRate: 16000, Channels: 1},
		stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en"},
		WithFinalWait(time.Second),
	)
	return m, platform, session
}

func TestMachine_StartToListening(t *testing.T) {
	t.Parallel()

	m, platform, _ := newTestMachine(t)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := m.State(); got != StateListening {
		t.Errorf("State = %q, want %q", got, StateListening)
	}
	if n := platform.PermissionRequests(); n != 1 {
		t.Errorf("permission requested %d times, want 1", n)
	}
}

func TestMachine_StartIdempotentWhileListening(t *testing.T) {
	t.Parallel()

	m, platform, _ := newTestMachine(t)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Errorf("second Start while listening: %v, want nil", err)
	}
	if n := platform.PermissionRequests(); n != 1 {
		t.Errorf("permission requested %d times, want 1", n)
	}
}

func TestMachine_PermissionDenied(t *testing.T) {
	t.Parallel()

	m, platform, _ := newTestMachine(t)
	platform.PermissionErr = audio.ErrPermissionDenied

	err := m.Start(context.Background())
	if !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("Start err = %v, want ErrPermissionDenied in chain", err)
	}
	if got := m.State(); got != StateError {
		t.Errorf("State = %q, want %q", got, StateError)
	}
	if m.Err() == nil {
		t.Error("Err() = nil, want the permission failure")
	}
}

func TestMachine_PartialsForwarded(t *testing.T) {
	t.Parallel()

	m, _, session := newTestMachine(t)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	session.EmitPartial(types.Transcript{Text: "find du"})
	session.EmitPartial(types.Transcript{Text: "find dune"})

	for _, want := range []string{"find du", "find dune"} {
		select {
		case got := <-m.Partials():
			if got.Text != want {
				t.Errorf("partial = %q, want %q", got.Text, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("partial %q never arrived", want)
		}
	}
}

func TestMachine_StopReturnsFinal(t *testing.T) {
	t.Parallel()

	m, _, session := newTestMachine(t)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	session.EmitFinal(types.Transcript{Text: "add dune to my watchlist", IsFinal: true})

	u, err := m.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if u == nil || u.Text != "add dune to my watchlist" {
		t.Fatalf("final = %+v, want the emitted transcript", u)
	}
	if got := m.State(); got != StateIdle {
		t.Errorf("State = %q, want %q", got, StateIdle)
	}
}

func TestMachine_StopWaitsBrieflyForFinal(t *testing.T) {
	t.Parallel()

	m, _, session := newTestMachine(t)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		session.EmitFinal(types.Transcript{Text: "the substance", IsFinal: true})
	}()

	u, err := m.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if u == nil || u.Text != "the substance" {
		t.Fatalf("final = %+v, want transcript arriving during processing", u)
	}
}

func TestMachine_StopWithoutFinal(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestMachine(t)
	m.finalWait = 50 * time.Millisecond

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	u, err := m.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if u != nil {
		t.Errorf("final = %+v, want nil", u)
	}
	if got := m.State(); got != StateIdle {
		t.Errorf("State = %q, want %q", got, StateIdle)
	}
}

func TestMachine_StopSafeToRepeat(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestMachine(t)
	m.finalWait = 50 * time.Millisecond

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	u, err := m.Stop(context.Background())
	if err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if u != nil {
		t.Errorf("second Stop returned %+v, want nil", u)
	}

	// Stop with no session at all is also a no-op.
	fresh := NewMachine(&audiomock.Platform{}, &sttmock.Provider{}, audio.StreamConfig{}, stt.StreamConfig{})
	if _, err := fresh.Stop(context.Background()); err != nil {
		t.Errorf("Stop on idle machine: %v", err)
	}
}

func TestMachine_EngineDeathWhileListeningIsError(t *testing.T) {
	t.Parallel()

	m, _, session := newTestMachine(t)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Engine dies out from under the machine.
	session.Close()

	deadline := time.Now().Add(2 * time.Second)
	for m.State() != StateError {
		if time.Now().After(deadline) {
			t.Fatalf("State = %q, want %q", m.State(), StateError)
		}
		time.Sleep(5 * time.Millisecond)
	}

	var engErr *EngineFailure
	if !errors.As(m.Err(), &engErr) {
		t.Errorf("Err() = %v, want EngineFailure", m.Err())
	}
}

func TestMachine_ShutdownAfterStopIsNotAnError(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestMachine(t)
	m.finalWait = 50 * time.Millisecond

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// The engine's shutdown races the stop; give the event loop time to
	// observe the closed channels.
	time.Sleep(100 * time.Millisecond)
	if got := m.State(); got != StateIdle {
		t.Errorf("State = %q, want %q (cancellation artifact swallowed)", got, StateIdle)
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v, want nil", m.Err())
	}
}

func TestMachine_StaleSessionEventsDiscarded(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestMachine(t)
	m.finalWait = 50 * time.Millisecond

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Events carrying a superseded generation are stray late callbacks from
	// a previous session. They must never be stored or forwarded.
	staleGen := uint64(0)
	m.storeFinal(staleGen, types.Transcript{Text: "stale", IsFinal: true})
	m.emitPartial(staleGen, types.Transcript{Text: "stale partial"})

	select {
	case got := <-m.Partials():
		t.Errorf("stale partial %q was forwarded", got.Text)
	default:
	}

	u, err := m.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if u != nil {
		t.Errorf("final = %+v, want nil (stale final discarded)", u)
	}
}

func TestMachine_AudioForwardedToEngine(t *testing.T) {
	t.Parallel()

	platform := &audiomock.Platform{}
	session := sttmock.NewSession()
	provider := &sttmock.Provider{Session: session}
	m := NewMachine(platform, provider, audio.StreamConfig{SampleRate: 16000}, stt.StreamConfig{}, WithFinalWait(50*time.Millisecond))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	streams := platform.Streams()
	if len(streams) != 1 {
		t.Fatalf("opened %d input streams, want 1", len(streams))
	}
	streams[0].Push(types.AudioFrame{Data: []byte{1, 2, 3}})

	deadline := time.Now().Add(2 * time.Second)
	for len(session.AudioChunks()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("audio never reached the engine")
		}
		time.Sleep(5 * time.Millisecond)
	}
	chunks := session.AudioChunks()
	if string(chunks[0]) != string([]byte{1, 2, 3}) {
		t.Errorf("chunk = %v", chunks[0])
	}
}
