package main

import (
	"bytes"
	"testing"

	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/track"
)

func TestGenerate(t *testing.T) {
	names, err := pose.LandmarkSet("trunk")
	if err != nil {
		t.Fatal(err)
	}

	s, err := generate(names, 10, 0, 30, 100)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if s.Len() != 10 {
		t.Fatalf("got %d rows, want 10", s.Len())
	}
	if s.NumLandmarks() != len(names) {
		t.Errorf("got %d landmarks, want %d", s.NumLandmarks(), len(names))
	}
	if s.First() != 100 {
		t.Errorf("first timestamp = %v, want 100", s.First())
	}
	// Frame interval at 30fps.
	if got := s.Rows[1].Timestamp - s.Rows[0].Timestamp; got < 0.033 || got > 0.034 {
		t.Errorf("row spacing = %v, want ~1/30s", got)
	}

	// Deterministic: a second run produces the identical series.
	again, err := generate(names, 10, 0, 30, 100)
	if err != nil {
		t.Fatal(err)
	}
	if again.Rows[5].Points[0] != s.Rows[5].Points[0] {
		t.Error("generation is not deterministic")
	}
}

func TestGenerateDropEvery(t *testing.T) {
	names, _ := pose.LandmarkSet("trunk")
	s, err := generate(names, 12, 3, 30, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Frames 3, 6, 9, 12 are dropped.
	if s.Len() != 8 {
		t.Errorf("got %d rows, want 8 with every third frame dropped", s.Len())
	}
}

func TestGenerateRejectsBadFPS(t *testing.T) {
	names, _ := pose.LandmarkSet("trunk")
	if _, err := generate(names, 10, 0, 0, 0); err == nil {
		t.Error("expected error for zero fps")
	}
}

func TestGeneratedCSVRoundTrips(t *testing.T) {
	names, _ := pose.LandmarkSet("trunk")
	s, err := generate(names, 5, 0, 30, 0)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := track.WriteCSV(&buf, s); err != nil {
		t.Fatal(err)
	}
	back, err := track.ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if back.Len() != s.Len() || back.NumLandmarks() != s.NumLandmarks() {
		t.Errorf("round trip = %d rows x %d landmarks", back.Len(), back.NumLandmarks())
	}
}
