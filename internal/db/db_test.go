package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/track"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(id string) SessionRecord {
	return SessionRecord{
		ID:        id,
		Backend:   "Synthetic",
		Source:    "0",
		Mode:      "per-frame",
		Landmarks: []string{"nose", "left_wrist"},
		StartedAt: 1700000000,
	}
}

func TestMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if dirty {
		t.Error("fresh database reports dirty migration state")
	}
	if version == 0 {
		t.Error("migrations did not apply on open")
	}

	// MigrateUp is idempotent.
	if err := db.MigrateUp(); err != nil {
		t.Errorf("second MigrateUp: %v", err)
	}
}

func TestSessionLifecycleRoundTrip(t *testing.T) {
	db := newTestDB(t)

	rec := testRecord("sess-1")
	if err := db.RecordSession(rec); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	got, err := db.Session("sess-1")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got.Backend != "Synthetic" || got.Mode != "per-frame" {
		t.Errorf("stored session = %+v", got)
	}
	if got.EndedAt != nil {
		t.Error("running session has an end time")
	}
	if len(got.Landmarks) != 2 || got.Landmarks[0] != "nose" {
		t.Errorf("stored landmarks = %v", got.Landmarks)
	}

	if err := db.FinishSession("sess-1", 1700000060, 1800, 12, 1750, 42.5); err != nil {
		t.Fatalf("FinishSession: %v", err)
	}
	got, err = db.Session("sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.EndedAt == nil || *got.EndedAt != 1700000060 {
		t.Errorf("ended_at = %v, want 1700000060", got.EndedAt)
	}
	if got.FramesRead != 1800 || got.FrameDrops != 12 || got.RowCount != 1750 {
		t.Errorf("final counters = %+v", got)
	}
	if got.TotalMovement != 42.5 {
		t.Errorf("total movement = %v, want 42.5", got.TotalMovement)
	}

	if _, err := db.Session("missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Session on missing id = %v, want sql.ErrNoRows", err)
	}
}

func TestSessionsNewestFirst(t *testing.T) {
	db := newTestDB(t)

	older := testRecord("older")
	older.StartedAt = 1000
	newer := testRecord("newer")
	newer.StartedAt = 2000
	for _, rec := range []SessionRecord{older, newer} {
		if err := db.RecordSession(rec); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := db.Sessions()
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != "newer" || sessions[1].ID != "older" {
		t.Errorf("session order = %s, %s; want newer, older", sessions[0].ID, sessions[1].ID)
	}
}

func TestRowsAndSeries(t *testing.T) {
	db := newTestDB(t)
	if err := db.RecordSession(testRecord("sess-1")); err != nil {
		t.Fatal(err)
	}

	rows := []track.Row{
		{Timestamp: 10.0, Points: []pose.Point{{X: 0.1, Y: 0.2, Visibility: 1}, {X: 0.3, Y: 0.4, Visibility: 1}}},
		{Timestamp: 10.1, Points: []pose.Point{{X: 0.15, Y: 0.2, Visibility: 1}, {X: 0.3, Y: 0.45, Visibility: 1}}},
	}
	if err := db.InsertRows("sess-1", rows); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if err := db.InsertRow("sess-1", track.Row{
		Timestamp: 10.2,
		Points:    []pose.Point{{X: 0.2}, {X: 0.4}},
	}); err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	s, err := db.SessionSeries("sess-1")
	if err != nil {
		t.Fatalf("SessionSeries: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("series has %d rows, want 3", s.Len())
	}
	if s.NumLandmarks() != 2 {
		t.Errorf("series has %d landmarks, want 2", s.NumLandmarks())
	}
	if s.First() != 10.0 || s.Last() != 10.2 {
		t.Errorf("series bounds = (%v, %v), want (10.0, 10.2)", s.First(), s.Last())
	}
	if got := s.Rows[0].Points[1].Y; got != 0.4 {
		t.Errorf("round-tripped point = %v, want 0.4", got)
	}

	// Empty batches are a no-op.
	if err := db.InsertRows("sess-1", nil); err != nil {
		t.Errorf("InsertRows(nil): %v", err)
	}
}

func TestBlocks(t *testing.T) {
	db := newTestDB(t)
	if err := db.RecordSession(testRecord("sess-1")); err != nil {
		t.Fatal(err)
	}

	for _, b := range []track.Block{
		{Movement: 2.5, Start: 20, End: 21},
		{Movement: 1.0, Start: 21, End: 22},
	} {
		if err := db.InsertBlock("sess-1", b); err != nil {
			t.Fatalf("InsertBlock: %v", err)
		}
	}

	blocks, err := db.SessionBlocks("sess-1")
	if err != nil {
		t.Fatalf("SessionBlocks: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Movement != 2.5 || blocks[1].Start != 21 {
		t.Errorf("blocks = %+v", blocks)
	}

	if blocks, err := db.SessionBlocks("missing"); err != nil || len(blocks) != 0 {
		t.Errorf("SessionBlocks on missing session = (%v, %v), want empty", blocks, err)
	}
}
