// Command analyze computes movement statistics over a recorded landmark
// series, read from an exported CSV file or fetched live from a running
// daemon. It can also render the chart pages to files for offline
// reports.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/kinetic-data/motion.report/internal/httputil"
	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/report"
	"github.com/kinetic-data/motion.report/internal/track"
)

var (
	csvPath   = flag.String("csv", "", "Path to an exported landmark CSV")
	baseURL   = flag.String("url", "", "Base URL of a running daemon, e.g. http://localhost:8080")
	sessionID = flag.String("session", "", "Session ID to fetch when -url is set")

	fromSec   = flag.Float64("from", 0, "Interval start in seconds relative to the first row")
	toSec     = flag.Float64("to", 0, "Interval end in seconds relative to the first row (0 = whole series)")
	filter    = flag.Bool("filter", false, "Drop per-landmark displacements below the threshold")
	threshold = flag.Float64("threshold", 0.01, "Noise threshold for -filter")

	htmlOut  = flag.String("html", "", "Write the per-landmark movement chart to this HTML file")
	pngOut   = flag.String("png", "", "Write the movement timeline to this PNG file")
	jsonMode = flag.Bool("json", false, "Print the summary as JSON instead of text")
)

// seriesPayload mirrors the daemon's series endpoint response.
type seriesPayload struct {
	SessionID string   `json:"session_id"`
	Landmarks []string `json:"landmarks"`
	Rows      []struct {
		Timestamp float64      `json:"timestamp"`
		Points    []pose.Point `json:"points"`
	} `json:"rows"`
}

// fetchSeries pulls a stored session's series from a running daemon.
func fetchSeries(client httputil.HTTPClient, base, id string) (track.Series, error) {
	resp, err := client.Get(fmt.Sprintf("%s/api/sessions/%s/series", base, id))
	if err != nil {
		return track.Series{}, fmt.Errorf("failed to fetch series: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return track.Series{}, fmt.Errorf("daemon returned status %d for session %q", resp.StatusCode, id)
	}

	var payload seriesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return track.Series{}, fmt.Errorf("failed to decode series response: %w", err)
	}

	s := track.NewSeries(payload.Landmarks)
	for _, r := range payload.Rows {
		points := make([]pose.Point, len(r.Points))
		copy(points, r.Points)
		s.Rows = append(s.Rows, track.Row{Timestamp: r.Timestamp, Points: points})
	}
	return s, nil
}

// loadCSV reads an exported landmark CSV from disk.
func loadCSV(path string) (track.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return track.Series{}, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()
	return track.ReadCSV(f)
}

// summary is the full aggregate breakdown for one series.
type summary struct {
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

// summarize reduces a series to its aggregate breakdown using the given
// distance metric.
func summarize(s track.Series, distance track.DistanceFunc) summary {
	total := distance(s)
	n := s.NumLandmarks()
	return summary{
		Rows:                    s.Len(),
		Landmarks:               n,
		DurationSec:             s.Duration(),
		TotalMovement:           total,
		MovementPerSecond:       track.MovementPerSecond(s, total),
		MovementPerFrame:        track.MovementPerFrame(s, total),
		MovementPerLandmark:     track.MovementPerLandmark(total, n),
		NormalizedMovementIndex: track.NormalizedMovementIndex(s, total, n),
		PerFrame:                track.MovementStatistics(track.FrameMovements(s)),
	}
}

func printText(sum summary) {
	fmt.Printf("rows:                %d\n", sum.Rows)
	fmt.Printf("landmarks:           %d\n", sum.Landmarks)
	fmt.Printf("duration:            %.3fs\n", sum.DurationSec)
	fmt.Printf("total movement:      %.4f\n", sum.TotalMovement)
	fmt.Printf("per second:          %.4f\n", sum.MovementPerSecond)
	fmt.Printf("per frame:           %.4f\n", sum.MovementPerFrame)
	fmt.Printf("per landmark:        %.4f\n", sum.MovementPerLandmark)
	fmt.Printf("normalized index:    %.4f\n", sum.NormalizedMovementIndex)
	fmt.Printf("frame avg / median:  %.4f / %.4f\n", sum.PerFrame.Average, sum.PerFrame.Median)
	fmt.Printf("frame stddev / p95:  %.4f / %.4f\n", sum.PerFrame.StdDev, sum.PerFrame.P95)
}

func main() {
	flag.Parse()

	var (
		s   track.Series
		err error
	)
	switch {
	case *csvPath != "":
		s, err = loadCSV(*csvPath)
	case *baseURL != "" && *sessionID != "":
		s, err = fetchSeries(httputil.NewStandardClient(nil), *baseURL, *sessionID)
	default:
		log.Fatal("either -csv or both -url and -session are required")
	}
	if err != nil {
		log.Fatalf("failed to load series: %v", err)
	}

	if *toSec > 0 {
		s = s.FilterInterval(*fromSec, *toSec)
	}
	if s.Len() == 0 {
		log.Fatal("series is empty after loading and filtering")
	}

	distance := track.EuclideanDistance(track.EuclideanOptions{
		Filter:    *filter,
		Threshold: *threshold,
	})
	sum := summarize(s, distance)

	if *jsonMode {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			log.Fatalf("failed to encode summary: %v", err)
		}
	} else {
		printText(sum)
	}

	if *htmlOut != "" {
		f, err := os.Create(*htmlOut)
		if err != nil {
			log.Fatalf("failed to create HTML output: %v", err)
		}
		if err := report.RenderLandmarkChart(f, s, *sessionID); err != nil {
			f.Close()
			log.Fatalf("failed to render landmark chart: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("failed to close HTML output: %v", err)
		}
		log.Printf("wrote landmark chart to %s", *htmlOut)
	}
	if *pngOut != "" {
		if err := report.SaveTimelinePNG(*pngOut, s); err != nil {
			log.Fatalf("failed to render timeline: %v", err)
		}
		log.Printf("wrote movement timeline to %s", *pngOut)
	}
}
