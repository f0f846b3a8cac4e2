package track

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/timeutil"
	"github.com/kinetic-data/motion.report/internal/video"
)

// collectObserver records every message it receives.
type collectObserver struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *collectObserver) Send(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collectObserver) messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func newTestSession(t *testing.T, maxFrames uint64, obs Observer, mode Mode, blockSize int) *Session {
	t.Helper()
	landmarks := []string{"nose", "left_wrist"}
	src := video.NewSyntheticSource(maxFrames)
	sess, err := NewSession(SessionConfig{
		Source:    src,
		Tracker:   NewTracker(pose.NewSyntheticBackend(landmarks), landmarks, nil),
		Observer:  obs,
		Mode:      mode,
		FPS:       200, // keep the loop interval short for tests
		BlockSize: blockSize,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func TestSessionRunToCompletion(t *testing.T) {
	t.Parallel()

	obs := &collectObserver{}
	sess := newTestSession(t, 30, obs, ModePerFrame, 0)

	if err := sess.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := sess.State(); got != StateStopped {
		t.Errorf("state after Run = %v, want stopped", got)
	}

	stats := sess.Stats()
	if stats.FramesRead != 30 {
		t.Errorf("frames read = %d, want 30", stats.FramesRead)
	}
	if stats.Rows > 30 {
		t.Errorf("rows = %d, want at most frames read", stats.Rows)
	}
	if stats.Backend != "Synthetic" {
		t.Errorf("backend = %q, want Synthetic", stats.Backend)
	}

	// Latest-wins: every frame is either processed or dropped.
	if stats.Rows == 0 && stats.FrameDrops == 0 {
		t.Error("no rows and no drops after 30 published frames")
	}

	snap := sess.Tracker().Snapshot()
	for i := 1; i < snap.Len(); i++ {
		if snap.Rows[i].Timestamp < snap.Rows[i-1].Timestamp {
			t.Fatalf("timestamps not nondecreasing at row %d", i)
		}
	}

	// Forwarded row messages carry the landmark selection and only
	// rows observed before the loop ended.
	msgs := obs.messages()
	if len(msgs) > stats.Rows {
		t.Errorf("observer got %d messages, more than %d accumulated rows", len(msgs), stats.Rows)
	}
	for _, m := range msgs {
		if m.Kind != KindRow || m.Row == nil {
			t.Fatalf("per-frame mode sent non-row message %+v", m)
		}
		if m.SessionID != sess.ID() {
			t.Errorf("message session id = %q, want %q", m.SessionID, sess.ID())
		}
		if len(m.Landmarks) != 2 {
			t.Errorf("message landmarks = %v, want 2 names", m.Landmarks)
		}
	}
}

func TestSessionPerBlock(t *testing.T) {
	t.Parallel()

	obs := &collectObserver{}
	sess := newTestSession(t, 80, obs, ModePerBlock, 5)

	if err := sess.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs := obs.messages()
	if len(msgs) == 0 {
		t.Skip("worker produced no complete block during the run")
	}
	for _, m := range msgs {
		if m.Kind != KindBlock || m.Block == nil {
			t.Fatalf("per-block mode sent non-block message %+v", m)
		}
		if m.Block.Movement < 0 {
			t.Errorf("block movement = %v, want >= 0", m.Block.Movement)
		}
		if m.Block.End < m.Block.Start {
			t.Errorf("block bounds inverted: start %v end %v", m.Block.Start, m.Block.End)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("run while running", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, 0, nil, ModeDisplayOnly, 0) // unbounded

		done := make(chan error, 1)
		go func() { done <- sess.Run(context.Background()) }()

		deadline := time.Now().Add(2 * time.Second)
		for sess.State() != StateRunning {
			if time.Now().After(deadline) {
				t.Fatal("session never reached running state")
			}
			time.Sleep(time.Millisecond)
		}

		if err := sess.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
		}

		sess.Stop()
		if err := <-done; err != nil {
			t.Errorf("Run after Stop returned %v, want nil", err)
		}
		if got := sess.State(); got != StateStopped {
			t.Errorf("state after Stop = %v, want stopped", got)
		}

		// Stop is idempotent; Run after Stop is terminal.
		sess.Stop()
		if err := sess.Run(context.Background()); !errors.Is(err, ErrStopped) {
			t.Errorf("Run on stopped session = %v, want ErrStopped", err)
		}
	})

	t.Run("stop before run", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, 10, nil, ModeDisplayOnly, 0)
		sess.Stop()
		if err := sess.Run(context.Background()); !errors.Is(err, ErrStopped) {
			t.Errorf("Run after early Stop = %v, want ErrStopped", err)
		}
	})

	t.Run("context cancellation stops the loop", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, 0, nil, ModeDisplayOnly, 0)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- sess.Run(ctx) }()
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run after cancel returned %v, want nil", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Run did not return after context cancellation")
		}
	})
}

func TestSessionSetWindow(t *testing.T) {
	t.Parallel()

	t.Run("bounds playback", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, 300, nil, ModeDisplayOnly, 0)
		if err := sess.SetWindow(1, 2); err != nil {
			t.Fatalf("SetWindow: %v", err)
		}
		if err := sess.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		stats := sess.Stats()
		if stats.FramesRead == 0 || stats.FramesRead >= 300 {
			t.Errorf("frames read with 1s window = %d, want a bounded subset", stats.FramesRead)
		}
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		t.Parallel()
		sess := newTestSession(t, 10, nil, ModeDisplayOnly, 0)
		if err := sess.SetWindow(5, 2); err == nil {
			t.Error("SetWindow accepted end <= start")
		}
	})

	t.Run("rejects non-file source", func(t *testing.T) {
		t.Parallel()
		landmarks := []string{"nose"}
		sess, err := NewSession(SessionConfig{
			Source:  &cameraStub{},
			Tracker: NewTracker(pose.NewSyntheticBackend(landmarks), landmarks, nil),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := sess.SetWindow(0, 5); err == nil {
			t.Error("SetWindow accepted a live camera source")
		}
	})
}

func TestNewSessionValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewSession(SessionConfig{}); err == nil {
		t.Error("NewSession accepted a config without a source")
	}
	if _, err := NewSession(SessionConfig{Source: &cameraStub{}}); err == nil {
		t.Error("NewSession accepted a config without a tracker")
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]Mode{
		"":             ModePerFrame,
		"per-frame":    ModePerFrame,
		"per-block":    ModePerBlock,
		"display-only": ModeDisplayOnly,
	} {
		got, err := ParseMode(input)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = (%v, %v), want (%v, nil)", input, got, err, want)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("ParseMode accepted an unknown mode")
	}
}

// cameraStub is a minimal non-file source for lifecycle tests.
type cameraStub struct {
	mu     sync.Mutex
	seq    uint64
	closed bool
}

func (c *cameraStub) Read() (*video.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, video.ErrSourceClosed
	}
	c.seq++
	return &video.Frame{Seq: c.seq, Timestamp: time.Now()}, nil
}

func (c *cameraStub) FPS() float64              { return 30 }
func (c *cameraStub) PositionSec() float64      { return 0 }
func (c *cameraStub) SeekSec(sec float64) error { return errors.New("seek on live source") }
func (c *cameraStub) IsFile() bool              { return false }

func (c *cameraStub) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
