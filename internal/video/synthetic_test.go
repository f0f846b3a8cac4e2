package video

import (
	"errors"
	"testing"
	"time"

	"github.com/kinetic-data/motion.report/internal/timeutil"
)

func TestSyntheticSourceBounded(t *testing.T) {
	t.Parallel()

	src := NewSyntheticSource(3)
	src.SetClock(timeutil.NewMockClock(time.Unix(1700000000, 0)))

	for i := 1; i <= 3; i++ {
		f, err := src.Read()
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if f.Seq != uint64(i) {
			t.Errorf("frame seq = %d, want %d", f.Seq, i)
		}
		if f.Mat.Empty() {
			t.Errorf("frame %d has an empty Mat", i)
		}
		f.Close()
	}

	if _, err := src.Read(); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("Read past MaxFrames = %v, want ErrSourceClosed", err)
	}
	if got := src.FramesRead(); got != 3 {
		t.Errorf("FramesRead = %d, want 3", got)
	}
}

func TestSyntheticSourceClose(t *testing.T) {
	t.Parallel()

	src := NewSyntheticSource(0)
	f, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := src.Read(); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("Read after Close = %v, want ErrSourceClosed", err)
	}
}

func TestSyntheticSourceSeek(t *testing.T) {
	t.Parallel()

	src := NewSyntheticSource(0)
	if !src.IsFile() {
		t.Fatal("synthetic source must report file semantics")
	}

	if err := src.SeekSec(2); err != nil {
		t.Fatalf("SeekSec: %v", err)
	}
	if got := src.PositionSec(); got != 2 {
		t.Errorf("PositionSec after seek = %v, want 2", got)
	}

	f, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if f.Seq != uint64(2*src.FrameRate)+1 {
		t.Errorf("seq after 2s seek = %d, want %d", f.Seq, uint64(2*src.FrameRate)+1)
	}

	if err := src.SeekSec(-5); err != nil {
		t.Fatalf("SeekSec(-5): %v", err)
	}
	if got := src.PositionSec(); got < 0 {
		t.Errorf("PositionSec after negative seek = %v, want clamped to 0", got)
	}
}

func TestFrameClone(t *testing.T) {
	t.Parallel()

	src := NewSyntheticSource(1)
	f, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	c := f.Clone()
	defer c.Close()
	if c.Seq != f.Seq || c.Timestamp != f.Timestamp {
		t.Errorf("clone metadata = (%d, %v), want (%d, %v)", c.Seq, c.Timestamp, f.Seq, f.Timestamp)
	}
	if c.Mat.Ptr() == f.Mat.Ptr() {
		t.Error("clone shares Mat storage with the original")
	}

	// Cloning and closing a frame with no Mat must not panic.
	bare := &Frame{Seq: 9}
	bc := bare.Clone()
	bc.Close()
	bare.Close()
}
