package track

import (
	"testing"

	"github.com/kinetic-data/motion.report/internal/pose"
)

// rowAt builds a row with every landmark at the same point.
func rowAt(ts float64, numLandmarks int, x, y float64) Row {
	points := make([]pose.Point, numLandmarks)
	for i := range points {
		points[i] = pose.Point{X: x, Y: y, Visibility: 1}
	}
	return Row{Timestamp: ts, Points: points}
}

func testSeries(timestamps []float64) Series {
	s := NewSeries([]string{"nose", "left_wrist"})
	for i, ts := range timestamps {
		s.Rows = append(s.Rows, rowAt(ts, 2, float64(i), 0))
	}
	return s
}

func TestSeriesBounds(t *testing.T) {
	t.Parallel()

	empty := NewSeries([]string{"nose"})
	if empty.First() != 0 || empty.Last() != 0 || empty.Duration() != 0 {
		t.Errorf("empty series bounds = (%v, %v, %v), want zeros",
			empty.First(), empty.Last(), empty.Duration())
	}

	s := testSeries([]float64{10.5, 11.0, 12.5})
	if got := s.First(); got != 10.5 {
		t.Errorf("First() = %v, want 10.5", got)
	}
	if got := s.Last(); got != 12.5 {
		t.Errorf("Last() = %v, want 12.5", got)
	}
	if got := s.Duration(); got != 2.0 {
		t.Errorf("Duration() = %v, want 2.0", got)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()

	s := testSeries([]float64{1, 2})
	snap := s.Snapshot()

	s.Rows = append(s.Rows, rowAt(3, 2, 9, 9))
	s.Rows[0].Points[0].X = 99

	if snap.Len() != 2 {
		t.Fatalf("snapshot grew with live series: len = %d", snap.Len())
	}
	if snap.Rows[0].Points[0].X == 99 {
		t.Error("snapshot row mutated through live series")
	}
}

func TestFilterInterval(t *testing.T) {
	t.Parallel()

	// First timestamp 100; offsets are relative to it.
	s := testSeries([]float64{100, 101, 102, 103, 104})

	t.Run("whole range", func(t *testing.T) {
		t.Parallel()
		got := s.FilterInterval(0, 4)
		if got.Len() != 5 {
			t.Errorf("whole-range filter kept %d rows, want 5", got.Len())
		}
	})

	t.Run("inclusive bounds", func(t *testing.T) {
		t.Parallel()
		got := s.FilterInterval(1, 3)
		if got.Len() != 3 {
			t.Fatalf("filter [1,3] kept %d rows, want 3", got.Len())
		}
		if got.First() != 101 || got.Last() != 103 {
			t.Errorf("filter [1,3] bounds = (%v, %v), want (101, 103)",
				got.First(), got.Last())
		}
	})

	t.Run("empty when no rows match", func(t *testing.T) {
		t.Parallel()
		if got := s.FilterInterval(10, 20); got.Len() != 0 {
			t.Errorf("out-of-range filter kept %d rows, want 0", got.Len())
		}
	})

	t.Run("inverted interval is empty", func(t *testing.T) {
		t.Parallel()
		if got := s.FilterInterval(3, 1); got.Len() != 0 {
			t.Errorf("inverted filter kept %d rows, want 0", got.Len())
		}
	})

	t.Run("result is a copy", func(t *testing.T) {
		t.Parallel()
		got := s.FilterInterval(0, 4)
		got.Rows[0].Points[0].X = 42
		if s.Rows[0].Points[0].X == 42 {
			t.Error("filter result shares row storage with source")
		}
	})
}

func TestSlice(t *testing.T) {
	t.Parallel()

	s := testSeries([]float64{1, 2, 3, 4})
	if got := s.Slice(1, 3); got.Len() != 2 || got.First() != 2 {
		t.Errorf("Slice(1,3) = %d rows first %v, want 2 rows first 2", got.Len(), got.First())
	}
	if got := s.Slice(-5, 100); got.Len() != 4 {
		t.Errorf("clamped slice = %d rows, want 4", got.Len())
	}
	if got := s.Slice(3, 1); got.Len() != 0 {
		t.Errorf("inverted slice = %d rows, want 0", got.Len())
	}
}
