package track

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kinetic-data/motion.report/internal/fsutil"
	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/security"
)

// CSVHeader returns the flat-table column names: timestamp followed by
// four columns per landmark.
func CSVHeader(landmarks []string) []string {
	header := make([]string, 0, 1+4*len(landmarks))
	header = append(header, "timestamp")
	for _, name := range landmarks {
		header = append(header,
			name+"_x", name+"_y", name+"_z", name+"_visibility")
	}
	return header
}

// WriteCSV serialises the series as a flat table: one header row, one
// row per processed frame.
func WriteCSV(w io.Writer, s Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader(s.Landmarks)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	record := make([]string, 1+4*len(s.Landmarks))
	for _, row := range s.Rows {
		record[0] = strconv.FormatFloat(row.Timestamp, 'f', -1, 64)
		for i, p := range row.Points {
			record[1+4*i] = strconv.FormatFloat(p.X, 'f', -1, 64)
			record[2+4*i] = strconv.FormatFloat(p.Y, 'f', -1, 64)
			record[3+4*i] = strconv.FormatFloat(p.Z, 'f', -1, 64)
			record[4+4*i] = strconv.FormatFloat(p.Visibility, 'f', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV validates the target path and writes the series to it. The
// path must resolve inside the allowed export directories.
func SaveCSV(fs fsutil.FileSystem, path string, s Series) error {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if err := security.ValidateExportPath(path); err != nil {
		return fmt.Errorf("invalid export path: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := WriteCSV(f, s); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}
	Diagf("exported %d rows to %s", s.Len(), path)
	return nil
}

// DefaultCSVFilename builds the default export filename, embedding the
// sanitised backend name and an export timestamp:
// pose_data<Backend>_<unix>.csv.
func DefaultCSVFilename(backendName string, now time.Time) string {
	return fmt.Sprintf("pose_data%s_%d.csv",
		security.SanitizeFilename(backendName), now.Unix())
}

// ReadCSV parses a flat table written by WriteCSV back into a Series.
// The analyze tool uses it for offline statistics.
func ReadCSV(r io.Reader) (Series, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return Series{}, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) < 1 || header[0] != "timestamp" || (len(header)-1)%4 != 0 {
		return Series{}, fmt.Errorf("unexpected CSV header layout (%d columns)", len(header))
	}

	numLandmarks := (len(header) - 1) / 4
	landmarks := make([]string, numLandmarks)
	for i := 0; i < numLandmarks; i++ {
		col := header[1+4*i]
		if len(col) < 2 || col[len(col)-2:] != "_x" {
			return Series{}, fmt.Errorf("unexpected landmark column %q", col)
		}
		landmarks[i] = col[:len(col)-2]
	}

	s := NewSeries(landmarks)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Series{}, fmt.Errorf("failed to read CSV row: %w", err)
		}
		row := Row{Points: make([]pose.Point, numLandmarks)}
		if row.Timestamp, err = strconv.ParseFloat(record[0], 64); err != nil {
			return Series{}, fmt.Errorf("bad timestamp %q: %w", record[0], err)
		}
		for i := 0; i < numLandmarks; i++ {
			p := &row.Points[i]
			for j, dst := range []*float64{&p.X, &p.Y, &p.Z, &p.Visibility} {
				if *dst, err = strconv.ParseFloat(record[1+4*i+j], 64); err != nil {
					return Series{}, fmt.Errorf("bad value %q in row %d: %w", record[1+4*i+j], s.Len()+1, err)
				}
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}
