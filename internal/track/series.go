// Package track is the orchestration core: the frame tracker that
// accumulates per-frame landmark rows, the two-slot frame exchange
// between the capture loop and its background worker, the session
// state machine, and the pure aggregation functions over the
// accumulated time series.
package track

import "github.com/kinetic-data/motion.report/internal/pose"

// Row is one processed frame: a timestamp in float seconds since the
// Unix epoch, stamped by the worker at processing time, plus one point
// per selected landmark in the series' landmark order.
type Row struct {
	Timestamp float64
	Points    []pose.Point
}

// clone returns a deep copy of the row.
func (r Row) clone() Row {
	points := make([]pose.Point, len(r.Points))
	copy(points, r.Points)
	return Row{Timestamp: r.Timestamp, Points: points}
}

// Series is an ordered, append-only sequence of rows over a fixed
// landmark selection. The column set never changes once the series is
// created; row order is capture order. A Series value returned by
// Snapshot or FilterInterval is an isolated copy: later appends to the
// live series never mutate it.
type Series struct {
	Landmarks []string
	Rows      []Row
}

// NewSeries creates an empty series over the landmark selection.
func NewSeries(landmarks []string) Series {
	names := make([]string, len(landmarks))
	copy(names, landmarks)
	return Series{Landmarks: names}
}

// Len returns the number of rows.
func (s Series) Len() int { return len(s.Rows) }

// NumLandmarks returns the landmark count (columns per row).
func (s Series) NumLandmarks() int { return len(s.Landmarks) }

// First returns the first timestamp, or 0 for an empty series.
func (s Series) First() float64 {
	if len(s.Rows) == 0 {
		return 0
	}
	return s.Rows[0].Timestamp
}

// Last returns the last timestamp, or 0 for an empty series.
func (s Series) Last() float64 {
	if len(s.Rows) == 0 {
		return 0
	}
	return s.Rows[len(s.Rows)-1].Timestamp
}

// Duration returns Last - First in seconds.
func (s Series) Duration() float64 { return s.Last() - s.First() }

// Snapshot returns a deep copy of the series.
func (s Series) Snapshot() Series {
	out := NewSeries(s.Landmarks)
	out.Rows = make([]Row, len(s.Rows))
	for i, r := range s.Rows {
		out.Rows[i] = r.clone()
	}
	return out
}

// Slice returns a deep copy of rows [from, to).
func (s Series) Slice(from, to int) Series {
	if from < 0 {
		from = 0
	}
	if to > len(s.Rows) {
		to = len(s.Rows)
	}
	out := NewSeries(s.Landmarks)
	if from >= to {
		return out
	}
	out.Rows = make([]Row, to-from)
	for i, r := range s.Rows[from:to] {
		out.Rows[i] = r.clone()
	}
	return out
}

// FilterInterval returns the rows whose timestamp falls in
// [first+startSec, first+endSec], inclusive both ends. startSec >
// endSec yields an empty series. The result is a copy.
func (s Series) FilterInterval(startSec, endSec float64) Series {
	out := NewSeries(s.Landmarks)
	if len(s.Rows) == 0 || startSec > endSec {
		return out
	}
	t0 := s.First()
	lo, hi := t0+startSec, t0+endSec
	for _, r := range s.Rows {
		if r.Timestamp >= lo && r.Timestamp <= hi {
			out.Rows = append(out.Rows, r.clone())
		}
	}
	return out
}
