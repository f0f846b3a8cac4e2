// Package api serves the daemon's HTTP surface: session status and
// history, stored series and aggregate statistics, CSV export, charts,
// and a live SSE event stream.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/kinetic-data/motion.report/internal/db"
	"github.com/kinetic-data/motion.report/internal/eventmux"
	"github.com/kinetic-data/motion.report/internal/fsutil"
	"github.com/kinetic-data/motion.report/internal/report"
	"github.com/kinetic-data/motion.report/internal/track"
	"github.com/kinetic-data/motion.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db      *db.DB
	session *track.Session // nil when no live session
	events  *eventmux.Mux[track.Message]
	fs      fsutil.FileSystem
}

// NewServer builds the API server. session and events may be nil for
// replay-only deployments serving stored data.
func NewServer(database *db.DB, session *track.Session, events *eventmux.Mux[track.Message]) *Server {
	return &Server{
		db:      database,
		session: session,
		events:  events,
		fs:      fsutil.OSFileSystem{},
	}
}

// SetFileSystem replaces the export filesystem. Tests use a
// MemoryFileSystem.
func (s *Server) SetFileSystem(fs fsutil.FileSystem) { s.fs = fs }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.showStatus)
	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}/series", s.showSeries)
	mux.HandleFunc("GET /api/sessions/{id}/stats", s.showStats)
	mux.HandleFunc("POST /api/export/csv", s.exportCSV)
	mux.HandleFunc("GET /api/charts/movement", s.movementChart)
	mux.HandleFunc("GET /api/charts/landmarks", s.landmarkChart)
	mux.HandleFunc("GET /api/charts/timeline.png", s.timelinePNG)
	if s.events != nil {
		mux.HandleFunc("GET /api/events", s.events.ServeTail)
	}
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type statusResponse struct {
	Version string              `json:"version"`
	GitSHA  string              `json:"git_sha"`
	Live    bool                `json:"live"`
	Session *track.SessionStats `json:"session,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{
		Version: version.Version,
		GitSHA:  version.GitSHA,
	}
	if s.session != nil {
		stats := s.session.Stats()
		resp.Live = true
		resp.Session = &stats
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	sessions, err := s.db.Sessions()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.SessionRecord{}
	}
	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write sessions")
	}
}

// loadSeries fetches a stored session's series, preferring the live
// tracker when the requested ID is the active session.
func (s *Server) loadSeries(id string) (track.Series, error) {
	if s.session != nil && s.session.ID() == id {
		return s.session.Tracker().Snapshot(), nil
	}
	return s.db.SessionSeries(id)
}

type seriesResponse struct {
	SessionID string      `json:"session_id"`
	Landmarks []string    `json:"landmarks"`
	Rows      []seriesRow `json:"rows"`
}

type seriesRow struct {
	Timestamp float64     `json:"timestamp"`
	Points    []pointJSON `json:"points"`
}

type pointJSON struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

func (s *Server) showSeries(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := r.PathValue("id")
	series, err := s.loadSeries(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeJSONError(w, http.StatusNotFound, "Unknown session")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load series: %v", err))
		return
	}

	resp := seriesResponse{
		SessionID: id,
		Landmarks: series.Landmarks,
		Rows:      make([]seriesRow, series.Len()),
	}
	for i, row := range series.Rows {
		points := make([]pointJSON, len(row.Points))
		for j, p := range row.Points {
			points[j] = pointJSON{X: p.X, Y: p.Y, Z: p.Z, Visibility: p.Visibility}
		}
		resp.Rows[i] = seriesRow{Timestamp: row.Timestamp, Points: points}
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write series")
	}
}

type statsResponse struct {
	SessionID               string              `json:"session_id"`
	Rows                    int                 `json:"rows"`
	Landmarks               int                 `json:"landmarks"`
	DurationSec             float64             `json:"duration_sec"`
	TotalMovement           float64             `json:"total_movement"`
	MovementPerSecond       float64             `json:"movement_per_second"`
	MovementPerFrame        float64             `json:"movement_per_frame"`
	MovementPerLandmark     float64             `json:"movement_per_landmark"`
	NormalizedMovementIndex float64             `json:"normalized_movement_index"`
	PerFrame                track.MovementStats `json:"per_frame"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := r.PathValue("id")
	series, err := s.loadSeries(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeJSONError(w, http.StatusNotFound, "Unknown session")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load series: %v", err))
		return
	}

	// Optional sub-interval relative to the first timestamp.
	if from := r.URL.Query().Get("from"); from != "" {
		to := r.URL.Query().Get("to")
		fromSec, err1 := strconv.ParseFloat(from, 64)
		toSec, err2 := strconv.ParseFloat(to, 64)
		if err1 != nil || err2 != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'from'/'to' parameters")
			return
		}
		series = series.FilterInterval(fromSec, toSec)
	}

	total := track.EuclideanDistance(track.EuclideanOptions{})(series)
	n := series.NumLandmarks()
	resp := statsResponse{
		SessionID:               id,
		Rows:                    series.Len(),
		Landmarks:               n,
		DurationSec:             series.Duration(),
		TotalMovement:           total,
		MovementPerSecond:       track.MovementPerSecond(series, total),
		MovementPerFrame:        track.MovementPerFrame(series, total),
		MovementPerLandmark:     track.MovementPerLandmark(total, n),
		NormalizedMovementIndex: track.NormalizedMovementIndex(series, total, n),
		PerFrame:                track.MovementStatistics(track.FrameMovements(series)),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write stats")
	}
}

type exportRequest struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path,omitempty"`
}

type exportResponse struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid export request body")
		return
	}
	if req.SessionID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing session_id")
		return
	}

	series, err := s.loadSeries(req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeJSONError(w, http.StatusNotFound, "Unknown session")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load series: %v", err))
		return
	}

	path := req.Path
	if path == "" {
		backend := "unknown"
		if rec, err := s.db.Session(req.SessionID); err == nil {
			backend = rec.Backend
		} else if s.session != nil && s.session.ID() == req.SessionID {
			backend = s.session.Tracker().Backend().Name()
		}
		path = track.DefaultCSVFilename(backend, time.Now())
	}

	if err := track.SaveCSV(s.fs, path, series); err != nil {
		s.writeJSONError(w, http.StatusBadRequest,
			fmt.Sprintf("Export failed: %v", err))
		return
	}

	json.NewEncoder(w).Encode(exportResponse{Path: path, Rows: series.Len()})
}

func (s *Server) movementChart(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session' parameter")
		return
	}

	blocks, err := s.db.SessionBlocks(id)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load blocks: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderMovementChart(w, blocks, id); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to render chart: %v", err))
	}
}

func (s *Server) landmarkChart(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session' parameter")
		return
	}

	series, err := s.loadSeries(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeJSONError(w, http.StatusNotFound, "Unknown session")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load series: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderLandmarkChart(w, series, id); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to render chart: %v", err))
	}
}

func (s *Server) timelinePNG(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Missing 'session' parameter")
		return
	}

	series, err := s.loadSeries(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.writeJSONError(w, http.StatusNotFound, "Unknown session")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to load series: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := report.TimelinePNG(w, series); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to render timeline: %v", err))
	}
}
