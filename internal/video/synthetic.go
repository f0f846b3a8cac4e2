package video

import (
	"image"
	"image/color"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kinetic-data/motion.report/internal/timeutil"
)

// SyntheticSource generates frames without a camera or file: a dot
// orbiting the frame centre, enough for the preview and for the
// synthetic pose backend to "detect". Used by dev mode and tests.
type SyntheticSource struct {
	mu     sync.Mutex
	seq    uint64
	closed bool

	// Width and Height set the frame size; MaxFrames bounds the stream
	// (0 = unbounded). FrameRate is what FPS reports.
	Width     int
	Height    int
	MaxFrames uint64
	FrameRate float64

	clock timeutil.Clock
}

// NewSyntheticSource creates a bounded synthetic source. maxFrames = 0
// produces an endless stream.
func NewSyntheticSource(maxFrames uint64) *SyntheticSource {
	return &SyntheticSource{
		Width:     640,
		Height:    480,
		MaxFrames: maxFrames,
		FrameRate: defaultFPS,
		clock:     timeutil.RealClock{},
	}
}

// SetClock replaces the timestamp clock. Tests use a MockClock.
func (s *SyntheticSource) SetClock(c timeutil.Clock) { s.clock = c }

// Read produces the next generated frame, or ErrSourceClosed once
// MaxFrames frames have been produced.
func (s *SyntheticSource) Read() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}
	if s.MaxFrames > 0 && s.seq >= s.MaxFrames {
		return nil, ErrSourceClosed
	}
	s.seq++

	mat := gocv.NewMatWithSize(s.Height, s.Width, gocv.MatTypeCV8UC3)
	phase := float64(s.seq) / 30.0
	cx := s.Width/2 + int(float64(s.Width)/4*math.Cos(phase))
	cy := s.Height/2 + int(float64(s.Height)/4*math.Sin(phase))
	gocv.Circle(&mat, image.Pt(cx, cy), 12, color.RGBA{R: 255, G: 255, B: 255, A: 0}, -1)

	return &Frame{
		Seq:       s.seq,
		Timestamp: s.clock.Now(),
		Mat:       mat,
	}, nil
}

// FPS returns the configured synthetic frame rate.
func (s *SyntheticSource) FPS() float64 { return s.FrameRate }

// PositionSec derives a playback position from the frame counter.
func (s *SyntheticSource) PositionSec() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FrameRate <= 0 {
		return 0
	}
	return float64(s.seq) / s.FrameRate
}

// SeekSec repositions the frame counter.
func (s *SyntheticSource) SeekSec(sec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sec < 0 {
		sec = 0
	}
	s.seq = uint64(sec * s.FrameRate)
	return nil
}

// IsFile reports true: the synthetic source is bounded and seekable
// like a file, which lets dev mode exercise the time-window path.
func (s *SyntheticSource) IsFile() bool { return true }

// FramesRead returns how many frames have been produced.
func (s *SyntheticSource) FramesRead() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close ends the stream.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
