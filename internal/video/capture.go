package video

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// CaptureSource reads frames from a camera or a video file through
// OpenCV. It is not safe for concurrent Reads; the capture loop is the
// only reader.
type CaptureSource struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	buf    gocv.Mat
	seq    uint64
	fps    float64
	isFile bool
	spec   string
	closed bool
}

// Open opens a video source from a spec string: an integer is a camera
// index, anything else is a file path.
func Open(spec string) (*CaptureSource, error) {
	if spec == "" {
		return nil, fmt.Errorf("empty video source spec")
	}

	var (
		cap    *gocv.VideoCapture
		err    error
		isFile bool
	)
	if idx, convErr := strconv.Atoi(spec); convErr == nil {
		cap, err = gocv.OpenVideoCapture(idx)
	} else {
		cap, err = gocv.OpenVideoCapture(spec)
		isFile = true
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open video source %q: %w", spec, err)
	}

	s := &CaptureSource{
		cap:    cap,
		buf:    gocv.NewMat(),
		isFile: isFile,
		spec:   spec,
	}
	s.fps = s.probeFPS()
	return s, nil
}

// probeFPS reads the declared frame rate from the container metadata.
// Cameras rarely report a usable value, so camera sources always use
// the default.
func (s *CaptureSource) probeFPS() float64 {
	if !s.isFile {
		return defaultFPS
	}
	fps := s.cap.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		return defaultFPS
	}
	return fps
}

// Read grabs the next frame. The returned frame's Mat is a fresh copy,
// owned by the caller.
func (s *CaptureSource) Read() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}
	if ok := s.cap.Read(&s.buf); !ok || s.buf.Empty() {
		return nil, ErrSourceClosed
	}
	s.seq++
	return &Frame{
		Seq:       s.seq,
		Timestamp: time.Now(),
		Mat:       s.buf.Clone(),
	}, nil
}

// FPS returns the probed frame rate.
func (s *CaptureSource) FPS() float64 { return s.fps }

// PositionSec reports the playback position from the container, in
// seconds. Camera sources report 0.
func (s *CaptureSource) PositionSec() float64 {
	if !s.isFile {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return s.cap.Get(gocv.VideoCapturePosMsec) / 1000.0
}

// SeekSec moves the file position to sec seconds from the start.
func (s *CaptureSource) SeekSec(sec float64) error {
	if !s.isFile {
		return fmt.Errorf("seek is only supported for file sources")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSourceClosed
	}
	s.cap.Set(gocv.VideoCapturePosMsec, sec*1000.0)
	return nil
}

// IsFile reports whether the source is backed by a file.
func (s *CaptureSource) IsFile() bool { return s.isFile }

// Close releases the capture device and the read buffer.
func (s *CaptureSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.buf.Close()
	return s.cap.Close()
}
