package pose

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/kinetic-data/motion.report/internal/video"
)

// SyntheticBackend produces deterministic landmarks without a model:
// each landmark oscillates on a small circle whose phase is derived
// from the frame sequence number and the landmark's index. Frames with
// a sequence number divisible by DropEvery report no detection, which
// exercises the skipped-frame path.
type SyntheticBackend struct {
	landmarks []string
	calls     atomic.Uint64

	// DropEvery makes every Nth frame a non-detection (0 disables).
	DropEvery uint64
}

// NewSyntheticBackend creates a synthetic backend over the given
// landmark selection.
func NewSyntheticBackend(landmarks []string) *SyntheticBackend {
	return &SyntheticBackend{landmarks: landmarks}
}

// Infer generates the deterministic landmark set for the frame and
// draws the overlay.
func (b *SyntheticBackend) Infer(_ context.Context, f *video.Frame) (*Detection, error) {
	b.calls.Add(1)
	if b.DropEvery > 0 && f.Seq%b.DropEvery == 0 {
		return nil, nil
	}

	phase := float64(f.Seq) / 30.0
	det := &Detection{Points: make(map[string]Point, len(b.landmarks))}
	for i, name := range b.landmarks {
		offset := float64(i) / float64(len(b.landmarks))
		det.Points[name] = Point{
			X:          0.5 + 0.1*math.Cos(phase+offset*2*math.Pi),
			Y:          0.5 + 0.1*math.Sin(phase+offset*2*math.Pi),
			Z:          0.05 * math.Sin(phase),
			Visibility: 1.0,
		}
	}
	drawOverlay(f, det)
	return det, nil
}

// Name identifies the backend in logs and export filenames.
func (b *SyntheticBackend) Name() string { return "Synthetic" }

// Calls reports how many frames have been inferred.
func (b *SyntheticBackend) Calls() uint64 { return b.calls.Load() }

// Close is a no-op.
func (b *SyntheticBackend) Close() error { return nil }
