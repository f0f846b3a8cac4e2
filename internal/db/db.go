// Package db is the session store: SQLite via modernc.org/sqlite, one
// row per tracking session plus the landmark rows and movement blocks
// streamed out of the capture loop.
package db

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/kinetic-data/motion.report/internal/track"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if necessary) the SQLite database at path and
// applies any pending migrations.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// SessionRecord is one tracking session's stored metadata and final
// counters.
type SessionRecord struct {
	ID            string   `json:"id"`
	Backend       string   `json:"backend"`
	Source        string   `json:"source"`
	Mode          string   `json:"mode"`
	Landmarks     []string `json:"landmarks"`
	StartedAt     float64  `json:"started_at"`
	EndedAt       *float64 `json:"ended_at,omitempty"`
	FramesRead    int64    `json:"frames_read"`
	FrameDrops    int64    `json:"frame_drops"`
	RowCount      int64    `json:"row_count"`
	TotalMovement float64  `json:"total_movement"`
}

// RecordSession inserts the session row at session start.
func (db *DB) RecordSession(rec SessionRecord) error {
	landmarks, err := json.Marshal(rec.Landmarks)
	if err != nil {
		return fmt.Errorf("failed to encode landmarks: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO sessions (id, backend, source, mode, landmarks, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Backend, rec.Source, rec.Mode, string(landmarks), rec.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// FinishSession stamps the session's end time and final counters.
func (db *DB) FinishSession(id string, endedAt float64, framesRead, frameDrops, rowCount uint64, totalMovement float64) error {
	_, err := db.Exec(
		`UPDATE sessions
		 SET ended_at = ?, frames_read = ?, frame_drops = ?, row_count = ?, total_movement = ?
		 WHERE id = ?`,
		endedAt, int64(framesRead), int64(frameDrops), int64(rowCount), totalMovement, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return nil
}

// InsertRow appends one landmark row for a session. Points are stored
// as a JSON array in series column order.
func (db *DB) InsertRow(sessionID string, row track.Row) error {
	points, err := json.Marshal(row.Points)
	if err != nil {
		return fmt.Errorf("failed to encode points: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO landmark_rows (session_id, ts, points) VALUES (?, ?, ?)`,
		sessionID, row.Timestamp, string(points),
	)
	if err != nil {
		return fmt.Errorf("failed to insert landmark row: %w", err)
	}
	return nil
}

// InsertRows appends a batch of landmark rows in one transaction.
func (db *DB) InsertRows(sessionID string, rows []track.Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO landmark_rows (session_id, ts, points) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		points, err := json.Marshal(row.Points)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode points: %w", err)
		}
		if _, err := stmt.Exec(sessionID, row.Timestamp, string(points)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert landmark row: %w", err)
		}
	}
	return tx.Commit()
}

// InsertBlock appends one movement block for a session.
func (db *DB) InsertBlock(sessionID string, block track.Block) error {
	_, err := db.Exec(
		`INSERT INTO movement_blocks (session_id, start_ts, end_ts, movement) VALUES (?, ?, ?, ?)`,
		sessionID, block.Start, block.End, block.Movement,
	)
	if err != nil {
		return fmt.Errorf("failed to insert movement block: %w", err)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions() ([]SessionRecord, error) {
	rows, err := db.Query(
		`SELECT id, backend, source, mode, landmarks, started_at, ended_at,
		        frames_read, frame_drops, row_count, total_movement
		 FROM sessions ORDER BY started_at DESC LIMIT 100`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Session returns one session by ID, or sql.ErrNoRows.
func (db *DB) Session(id string) (SessionRecord, error) {
	row := db.QueryRow(
		`SELECT id, backend, source, mode, landmarks, started_at, ended_at,
		        frames_read, frame_drops, row_count, total_movement
		 FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (SessionRecord, error) {
	var (
		rec       SessionRecord
		landmarks string
		endedAt   sql.NullFloat64
	)
	if err := r.Scan(
		&rec.ID, &rec.Backend, &rec.Source, &rec.Mode, &landmarks,
		&rec.StartedAt, &endedAt,
		&rec.FramesRead, &rec.FrameDrops, &rec.RowCount, &rec.TotalMovement,
	); err != nil {
		return SessionRecord{}, err
	}
	if err := json.Unmarshal([]byte(landmarks), &rec.Landmarks); err != nil {
		return SessionRecord{}, fmt.Errorf("failed to decode landmarks: %w", err)
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Float64
	}
	return rec, nil
}

// SessionSeries reconstructs a session's landmark time series from the
// store, in timestamp order.
func (db *DB) SessionSeries(id string) (track.Series, error) {
	rec, err := db.Session(id)
	if err != nil {
		return track.Series{}, err
	}

	rows, err := db.Query(
		`SELECT ts, points FROM landmark_rows WHERE session_id = ? ORDER BY ts`, id)
	if err != nil {
		return track.Series{}, err
	}
	defer rows.Close()

	s := track.NewSeries(rec.Landmarks)
	for rows.Next() {
		var (
			ts     float64
			points string
		)
		if err := rows.Scan(&ts, &points); err != nil {
			return track.Series{}, err
		}
		row := track.Row{Timestamp: ts}
		if err := json.Unmarshal([]byte(points), &row.Points); err != nil {
			return track.Series{}, fmt.Errorf("failed to decode points: %w", err)
		}
		if len(row.Points) != len(rec.Landmarks) {
			return track.Series{}, fmt.Errorf("row has %d points, session has %d landmarks",
				len(row.Points), len(rec.Landmarks))
		}
		s.Rows = append(s.Rows, row)
	}
	return s, rows.Err()
}

// SessionBlocks returns a session's movement blocks in time order.
func (db *DB) SessionBlocks(id string) ([]track.Block, error) {
	rows, err := db.Query(
		`SELECT start_ts, end_ts, movement FROM movement_blocks
		 WHERE session_id = ? ORDER BY start_ts`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []track.Block
	for rows.Next() {
		var b track.Block
		if err := rows.Scan(&b.Start, &b.End, &b.Movement); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://motion.db", db.DB, &tailsql.DBOptions{
		Label: "Motion DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
