// Package video provides the capture-side abstraction over video
// sources: a camera index or a file path behind one Source interface,
// plus a synthetic source for dev mode and tests.
package video

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrSourceClosed is returned by Read when the source has reached
// end-of-stream or has been closed. Callers treat it as normal
// termination, not a failure.
var ErrSourceClosed = errors.New("video source closed")

// Frame is one captured image. The Mat is owned by the receiver of the
// Frame; callers hand ownership over when publishing and must Clone
// before retaining a copy.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Mat       gocv.Mat
}

// Clone returns a deep copy of the frame with its own Mat.
func (f *Frame) Clone() *Frame {
	out := &Frame{Seq: f.Seq, Timestamp: f.Timestamp}
	if f.Mat.Ptr() != nil {
		out.Mat = f.Mat.Clone()
	}
	return out
}

// Close releases the underlying Mat. Safe to call on an already-closed
// frame.
func (f *Frame) Close() {
	if f.Mat.Ptr() != nil {
		f.Mat.Close()
	}
}

// Source is a stream of frames from a camera, a file, or a generator.
type Source interface {
	// Read returns the next frame, or ErrSourceClosed at end-of-stream.
	// The returned frame is owned by the caller.
	Read() (*Frame, error)

	// FPS reports the source's nominal frame rate. Camera sources
	// default to 30; file sources read the container metadata, falling
	// back to 30 when it is unavailable or zero.
	FPS() float64

	// PositionSec reports the current playback position in seconds.
	// Always 0 for camera sources.
	PositionSec() float64

	// SeekSec moves the playback position. Only file sources support
	// seeking.
	SeekSec(sec float64) error

	// IsFile reports whether the source is a file (seekable, bounded).
	IsFile() bool

	// Close releases the source. Subsequent Reads return
	// ErrSourceClosed.
	Close() error
}

// defaultFPS is assumed whenever a source cannot report its own rate.
const defaultFPS = 30
