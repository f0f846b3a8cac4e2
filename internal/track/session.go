package track

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinetic-data/motion.report/internal/timeutil"
	"github.com/kinetic-data/motion.report/internal/video"
)

// Sentinel state errors for the session lifecycle.
var (
	ErrAlreadyRunning = errors.New("session is already running")
	ErrStopped        = errors.New("session has been stopped")
)

// Mode selects what the capture loop forwards to the observer.
type Mode int

const (
	// ModePerFrame forwards every newly appended row as its own
	// message.
	ModePerFrame Mode = iota
	// ModePerBlock accumulates rows into fixed-size non-overlapping
	// blocks and forwards one aggregated movement result per block.
	ModePerBlock
	// ModeDisplayOnly produces no observer traffic.
	ModeDisplayOnly
)

// ParseMode maps a mode name from flags or config to its Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "per-frame":
		return ModePerFrame, nil
	case "per-block":
		return ModePerBlock, nil
	case "display-only":
		return ModeDisplayOnly, nil
	default:
		return 0, fmt.Errorf("unknown output mode %q", s)
	}
}

// State is the session lifecycle: Idle until Run, Running for the
// duration of the capture loop, Stopped terminally afterwards.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// workerJoinWarnAfter is how long Stop waits on the worker before
// logging that the join is stuck. The join itself is unbounded: a hung
// backend call hangs Stop. Known limitation.
const workerJoinWarnAfter = 5 * time.Second

// SessionConfig assembles a capture session. Source and Tracker are
// required; everything else has a usable default.
type SessionConfig struct {
	Source   video.Source
	Tracker  *Tracker
	Observer Observer
	Mode     Mode

	// FPS overrides the source's nominal rate when > 0.
	FPS float64

	// BlockSize is the per-block frame count; 0 defaults to
	// round(fps).
	BlockSize int

	// Distance reduces a block to its movement value in per-block
	// mode. Defaults to unfiltered Euclidean distance.
	Distance DistanceFunc

	// Preview opens the debug display window.
	Preview bool

	Clock timeutil.Clock
}

// Session is the capture loop: it owns the video source and preview,
// paces reads to the frame interval, hands the newest frame to the
// background worker through the exchange, and streams rows or block
// results to the observer. One worker goroutine runs per session.
type Session struct {
	cfg      SessionConfig
	id       string
	clock    timeutil.Clock
	exchange *Exchange

	mu         sync.Mutex
	state      State
	startSec   float64
	endSec     float64
	windowSet  bool
	framesRead uint64
	stopCh     chan struct{}
	workerDone chan struct{}
	runDone    chan struct{}
}

// NewSession validates the configuration and returns an Idle session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("session requires a video source")
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("session requires a tracker")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Distance == nil {
		cfg.Distance = EuclideanDistance(EuclideanOptions{})
	}
	return &Session{
		cfg:        cfg,
		id:         uuid.New().String(),
		clock:      cfg.Clock,
		exchange:   NewExchange(),
		stopCh:     make(chan struct{}),
		workerDone: make(chan struct{}),
		runDone:    make(chan struct{}),
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Tracker returns the session's frame tracker.
func (s *Session) Tracker() *Tracker { return s.cfg.Tracker }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetWindow bounds playback to [startSec, endSec] before Run. Valid
// only for file sources and only while Idle; an inverted window is
// rejected with a warning and ignored.
func (s *Session) SetWindow(startSec, endSec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("time window must be set before the session starts")
	}
	if !s.cfg.Source.IsFile() {
		Opsf("time window ignored: source is not a file")
		return fmt.Errorf("time window is only valid for file sources")
	}
	if endSec <= startSec {
		Opsf("time window ignored: end (%.2fs) must be greater than start (%.2fs)", endSec, startSec)
		return fmt.Errorf("window end must be greater than start")
	}
	s.startSec = startSec
	s.endSec = endSec
	s.windowSet = true
	return nil
}

// Run transitions Idle to Running, starts the worker goroutine and
// blocks in the capture loop until end-of-stream, the end-time bound,
// context cancellation, a preview interrupt, or Stop. Loop exit runs
// the Stop cleanup; Run then returns nil for a normal termination. A
// second Run returns ErrAlreadyRunning; Run after Stopped returns
// ErrStopped.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.mu.Unlock()
		return ErrAlreadyRunning
	case StateStopped:
		s.mu.Unlock()
		return ErrStopped
	}
	s.state = StateRunning
	windowSet, startSec, endSec := s.windowSet, s.startSec, s.endSec
	s.mu.Unlock()

	if windowSet {
		if err := s.cfg.Source.SeekSec(startSec); err != nil {
			Opsf("failed to seek to window start %.2fs: %v", startSec, err)
		}
	}

	fps := s.cfg.FPS
	if fps <= 0 {
		fps = s.cfg.Source.FPS()
	}
	if fps <= 0 {
		fps = 30
	}
	interval := time.Duration(float64(time.Second) / fps)

	blockSize := s.cfg.BlockSize
	if blockSize <= 0 {
		blockSize = int(math.Round(fps))
	}

	var preview *video.Preview
	if s.cfg.Preview {
		preview = video.NewPreview("Pose Tracking")
	}

	Opsf("session %s running: fps=%.1f interval=%v mode=%d", s.id, fps, interval, s.cfg.Mode)
	go s.runWorker(ctx)

	var (
		lastIndex int
		blockBuf  []Row
	)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-s.stopCh:
			break loop
		default:
		}

		iterStart := s.clock.Now()

		frame, err := s.cfg.Source.Read()
		if err != nil {
			// End-of-stream and read failure are both normal
			// termination.
			if !errors.Is(err, video.ErrSourceClosed) {
				Diagf("session %s: source read ended: %v", s.id, err)
			}
			break loop
		}
		s.mu.Lock()
		s.framesRead++
		s.mu.Unlock()

		if windowSet && s.cfg.Source.PositionSec() > endSec {
			frame.Close()
			Diagf("session %s: reached end-time bound %.2fs", s.id, endSec)
			break loop
		}

		// Best-available display frame: the latest processed frame,
		// falling back to the raw frame before the first detection.
		display := s.exchange.LatestClone()
		if display == nil {
			display = frame.Clone()
		}
		s.exchange.Publish(frame)
		preview.Show(display)
		display.Close()

		switch s.cfg.Mode {
		case ModePerFrame:
			var rows []Row
			rows, lastIndex = s.cfg.Tracker.NewRowsSince(lastIndex)
			s.sendRows(rows)
		case ModePerBlock:
			var rows []Row
			rows, lastIndex = s.cfg.Tracker.NewRowsSince(lastIndex)
			blockBuf = append(blockBuf, rows...)
			for len(blockBuf) >= blockSize {
				s.sendBlock(blockBuf[:blockSize])
				blockBuf = blockBuf[blockSize:]
			}
		}

		if remaining := interval - s.clock.Since(iterStart); remaining > 0 {
			s.clock.Sleep(remaining)
		}

		if preview.Interrupted() {
			Opsf("session %s: interrupted from preview window", s.id)
			break loop
		}
	}

	s.shutdown(preview)
	return nil
}

// sendRows forwards freshly appended rows to the observer, one message
// each.
func (s *Session) sendRows(rows []Row) {
	if s.cfg.Observer == nil {
		return
	}
	for i := range rows {
		row := rows[i]
		s.cfg.Observer.Send(Message{
			Kind:      KindRow,
			SessionID: s.id,
			Landmarks: s.cfg.Tracker.Landmarks(),
			Row:       &row,
		})
	}
}

// sendBlock reduces one full block to its movement value and forwards
// the result bounded by the block's first and last timestamps.
func (s *Session) sendBlock(rows []Row) {
	if s.cfg.Observer == nil || len(rows) == 0 {
		return
	}
	block := Series{Landmarks: s.cfg.Tracker.Landmarks(), Rows: rows}
	s.cfg.Observer.Send(Message{
		Kind:      KindBlock,
		SessionID: s.id,
		Block: &Block{
			Movement: s.cfg.Distance(block),
			Start:    rows[0].Timestamp,
			End:      rows[len(rows)-1].Timestamp,
		},
	})
}

// runWorker is the background worker: it consumes the newest pending
// frame from the exchange, runs the tracker on it, and publishes the
// annotated result as the latest processed frame. It exits when the
// exchange closes. A backend error skips the frame and keeps the
// session alive.
func (s *Session) runWorker(ctx context.Context) {
	defer close(s.workerDone)
	for {
		frame, ok := s.exchange.Take()
		if !ok {
			return
		}
		if err := s.cfg.Tracker.ProcessFrame(ctx, frame); err != nil {
			Diagf("session %s: %v", s.id, err)
		}
		s.exchange.SetLatest(frame)
	}
}

// shutdown signals the worker, joins it, and releases the source and
// preview. Runs exactly once, on loop exit.
func (s *Session) shutdown(preview *video.Preview) {
	s.exchange.Close()

	select {
	case <-s.workerDone:
	case <-time.After(workerJoinWarnAfter):
		Opsf("session %s: still waiting for worker to finish (backend call may be hung)", s.id)
		<-s.workerDone
	}

	if err := s.cfg.Source.Close(); err != nil {
		Diagf("session %s: source close: %v", s.id, err)
	}
	if err := preview.Close(); err != nil {
		Diagf("session %s: preview close: %v", s.id, err)
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	close(s.runDone)
	Opsf("session %s stopped: frames=%d drops=%d rows=%d",
		s.id, s.framesReadLocked(), s.exchange.Drops(), s.cfg.Tracker.RowCount())
}

func (s *Session) framesReadLocked() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesRead
}

// Stop requests the capture loop to exit and waits for the full
// shutdown (worker joined, source and preview released). Stopping an
// already-stopped or never-started session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		// Never ran: nothing to join, just close the lifecycle.
		s.state = StateStopped
		s.mu.Unlock()
		return
	}
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.mu.Unlock()

	<-s.runDone
}

// SessionStats is a point-in-time view of the session for the status
// API.
type SessionStats struct {
	ID            string  `json:"id"`
	State         string  `json:"state"`
	Backend       string  `json:"backend"`
	FramesRead    uint64  `json:"frames_read"`
	FrameDrops    uint64  `json:"frame_drops"`
	Rows          int     `json:"rows"`
	LastTimestamp float64 `json:"last_timestamp"`
}

// Stats returns current session counters.
func (s *Session) Stats() SessionStats {
	snap := s.cfg.Tracker.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{
		ID:            s.id,
		State:         s.state.String(),
		Backend:       s.cfg.Tracker.Backend().Name(),
		FramesRead:    s.framesRead,
		FrameDrops:    s.exchange.Drops(),
		Rows:          snap.Len(),
		LastTimestamp: snap.Last(),
	}
}

// StatsSummary logs the full aggregate breakdown for a movement total
// in one shot.
func (s *Session) StatsSummary(total float64) {
	snap := s.cfg.Tracker.Snapshot()
	n := snap.NumLandmarks()
	Opsf("raw amount of movement: %.4f", total)
	Opsf("movement per second: %.4f", MovementPerSecond(snap, total))
	Opsf("movement per frame: %.4f", MovementPerFrame(snap, total))
	Opsf("movement per landmark: %.4f", MovementPerLandmark(total, n))
	Opsf("normalized movement index: %.4f", NormalizedMovementIndex(snap, total, n))
}
