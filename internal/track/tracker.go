package track

import (
	"context"
	"fmt"
	"sync"

	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/timeutil"
	"github.com/kinetic-data/motion.report/internal/video"
)

// Tracker owns the pose backend, the landmark selection, and the
// append-only time series. ProcessFrame is called only by the session's
// background worker; snapshots are safe from any goroutine.
type Tracker struct {
	backend   pose.Backend
	landmarks []string
	clock     timeutil.Clock

	mu     sync.Mutex
	series Series
}

// NewTracker creates a tracker over the backend and landmark
// selection. A nil clock uses the real clock.
func NewTracker(backend pose.Backend, landmarks []string, clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{
		backend:   backend,
		landmarks: landmarks,
		clock:     clock,
		series:    NewSeries(landmarks),
	}
}

// Backend returns the tracker's pose backend.
func (t *Tracker) Backend() pose.Backend { return t.backend }

// Landmarks returns the selected landmark names in column order.
func (t *Tracker) Landmarks() []string { return t.landmarks }

// ProcessFrame runs pose estimation on the frame, annotating it in
// place. A detection appends one row stamped with the processing
// wall-clock time; a frame with no detectable pose appends nothing and
// is not an error. Backend errors are returned for the caller to log;
// the series is untouched.
func (t *Tracker) ProcessFrame(ctx context.Context, f *video.Frame) error {
	det, err := t.backend.Infer(ctx, f)
	if err != nil {
		return fmt.Errorf("pose inference failed: %w", err)
	}
	if det == nil {
		Tracef("frame %d: no pose detected, skipped", f.Seq)
		return nil
	}

	row := Row{
		Timestamp: float64(t.clock.Now().UnixNano()) / 1e9,
		Points:    make([]pose.Point, len(t.landmarks)),
	}
	for i, name := range t.landmarks {
		row.Points[i] = det.Point(name)
	}

	t.mu.Lock()
	t.series.Rows = append(t.series.Rows, row)
	n := len(t.series.Rows)
	t.mu.Unlock()

	Tracef("frame %d: appended row %d at %.3f", f.Seq, n, row.Timestamp)
	return nil
}

// Snapshot returns a deep copy of the accumulated series. Later
// appends never mutate a returned snapshot.
func (t *Tracker) Snapshot() Series {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.series.Snapshot()
}

// RowCount returns the number of accumulated rows.
func (t *Tracker) RowCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.series.Rows)
}

// NewRowsSince returns a copy of the rows appended after index from,
// plus the new high-water mark. The capture loop uses it to forward
// only unseen rows to the observer.
func (t *Tracker) NewRowsSince(from int) ([]Row, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.series.Rows)
	if from >= n {
		return nil, n
	}
	if from < 0 {
		from = 0
	}
	out := make([]Row, n-from)
	for i, r := range t.series.Rows[from:] {
		out[i] = r.clone()
	}
	return out, n
}
