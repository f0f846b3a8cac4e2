package track

import (
	"context"
	"testing"
	"time"

	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/timeutil"
)

func TestTrackerAppendsRows(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	backend := pose.NewSyntheticBackend([]string{"nose", "left_wrist"})
	tracker := NewTracker(backend, []string{"nose", "left_wrist"}, clock)

	const n = 20
	for seq := uint64(1); seq <= n; seq++ {
		if err := tracker.ProcessFrame(context.Background(), newTestFrame(seq)); err != nil {
			t.Fatalf("ProcessFrame(%d): %v", seq, err)
		}
		clock.Advance(33 * time.Millisecond)
	}

	snap := tracker.Snapshot()
	if snap.Len() != n {
		t.Fatalf("row count = %d, want %d", snap.Len(), n)
	}

	for i := 1; i < snap.Len(); i++ {
		if snap.Rows[i].Timestamp < snap.Rows[i-1].Timestamp {
			t.Fatalf("timestamps not nondecreasing at row %d: %v < %v",
				i, snap.Rows[i].Timestamp, snap.Rows[i-1].Timestamp)
		}
	}

	for i, row := range snap.Rows {
		if len(row.Points) != 2 {
			t.Fatalf("row %d has %d points, want 2", i, len(row.Points))
		}
	}
}

// TestTrackerSkipsNonDetections checks that frames with no detectable
// pose append nothing: rows accumulated never exceed frames processed
// and skipped frames are not errors.
func TestTrackerSkipsNonDetections(t *testing.T) {
	t.Parallel()

	backend := pose.NewSyntheticBackend([]string{"nose"})
	backend.DropEvery = 3
	tracker := NewTracker(backend, []string{"nose"}, timeutil.NewMockClock(time.Unix(0, 0)))

	const n = 12
	for seq := uint64(1); seq <= n; seq++ {
		if err := tracker.ProcessFrame(context.Background(), newTestFrame(seq)); err != nil {
			t.Fatalf("ProcessFrame(%d): %v", seq, err)
		}
	}

	// Seqs 3, 6, 9, 12 are dropped.
	if got := tracker.RowCount(); got != n-4 {
		t.Errorf("row count = %d, want %d", got, n-4)
	}
	if got := backend.Calls(); got != n {
		t.Errorf("backend calls = %d, want %d", got, n)
	}
}

func TestTrackerNewRowsSince(t *testing.T) {
	t.Parallel()

	backend := pose.NewSyntheticBackend([]string{"nose"})
	tracker := NewTracker(backend, []string{"nose"}, timeutil.NewMockClock(time.Unix(0, 0)))

	rows, mark := tracker.NewRowsSince(0)
	if len(rows) != 0 || mark != 0 {
		t.Fatalf("NewRowsSince on empty tracker = (%d rows, mark %d), want (0, 0)", len(rows), mark)
	}

	for seq := uint64(1); seq <= 5; seq++ {
		if err := tracker.ProcessFrame(context.Background(), newTestFrame(seq)); err != nil {
			t.Fatal(err)
		}
	}

	rows, mark = tracker.NewRowsSince(0)
	if len(rows) != 5 || mark != 5 {
		t.Fatalf("NewRowsSince(0) = (%d rows, mark %d), want (5, 5)", len(rows), mark)
	}

	rows, mark = tracker.NewRowsSince(mark)
	if len(rows) != 0 || mark != 5 {
		t.Fatalf("NewRowsSince at high-water mark = (%d rows, mark %d), want (0, 5)", len(rows), mark)
	}

	if err := tracker.ProcessFrame(context.Background(), newTestFrame(6)); err != nil {
		t.Fatal(err)
	}
	rows, mark = tracker.NewRowsSince(mark)
	if len(rows) != 1 || mark != 6 {
		t.Fatalf("NewRowsSince after one append = (%d rows, mark %d), want (1, 6)", len(rows), mark)
	}
}
