// Command gen-synthetic writes a deterministic synthetic landmark CSV,
// useful for exercising the analyze tool and the chart endpoints
// without a camera or model.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/track"
	"github.com/kinetic-data/motion.report/internal/video"
)

var (
	outPath   = flag.String("out", "pose_dataSynthetic.csv", "Output CSV path")
	frames    = flag.Uint64("frames", 300, "Number of frames to generate")
	fps       = flag.Float64("fps", 30, "Frame rate used for row timestamps")
	landmarks = flag.String("landmarks", "standard", "Landmark selection: standard | coco | trunk | upper_body | lower_body")
	dropEvery = flag.Uint64("drop-every", 0, "Drop every Nth frame as a non-detection (0 disables)")
	startSec  = flag.Float64("start", 0, "Epoch seconds of the first row (0 = relative timestamps)")
)

// generate produces the synthetic series: one row per detected frame,
// timestamps spaced at the frame interval.
func generate(names []string, n, dropEvery uint64, fps, startSec float64) (track.Series, error) {
	if fps <= 0 {
		return track.Series{}, fmt.Errorf("fps must be positive, got %f", fps)
	}
	backend := pose.NewSyntheticBackend(names)
	backend.DropEvery = dropEvery

	s := track.NewSeries(names)
	for seq := uint64(1); seq <= n; seq++ {
		det, err := backend.Infer(context.Background(), &video.Frame{Seq: seq})
		if err != nil {
			return track.Series{}, fmt.Errorf("synthetic inference failed at frame %d: %w", seq, err)
		}
		if det == nil {
			continue
		}
		row := track.Row{
			Timestamp: startSec + float64(seq-1)/fps,
			Points:    make([]pose.Point, len(names)),
		}
		for i, name := range names {
			row.Points[i] = det.Point(name)
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

func main() {
	flag.Parse()

	names, err := pose.LandmarkSet(*landmarks)
	if err != nil {
		log.Fatalf("failed to resolve landmark selection: %v", err)
	}

	s, err := generate(names, *frames, *dropEvery, *fps, *startSec)
	if err != nil {
		log.Fatalf("failed to generate series: %v", err)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	if err := track.WriteCSV(f, s); err != nil {
		f.Close()
		log.Fatalf("failed to write CSV: %v", err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("failed to close output file: %v", err)
	}

	log.Printf("wrote %d rows x %d landmarks to %s", s.Len(), s.NumLandmarks(), *outPath)
}
