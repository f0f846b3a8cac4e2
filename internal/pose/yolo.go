package pose

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kinetic-data/motion.report/internal/video"
)

// yoloBackend runs an object-detection style pose model (YOLOv8-pose
// ONNX, 17 COCO keypoints) locally through the OpenCV DNN module. The
// model file is configurable; the network is loaded once at
// construction.
type yoloBackend struct {
	mu        sync.Mutex
	net       gocv.Net
	modelPath string
	closed    bool
}

const (
	yoloInputSize = 640
	// yoloConfThreshold filters detections on box confidence.
	yoloConfThreshold = 0.5
	// yoloValues is the per-anchor column layout: cx, cy, w, h,
	// confidence, then 17 keypoints of (x, y, visibility).
	yoloValues  = 4 + 1 + 17*3
	yoloAnchors = 8400
)

func newYOLOBackend(modelPath string) (*yoloBackend, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load pose model from %q", modelPath)
	}
	return &yoloBackend{net: net, modelPath: modelPath}, nil
}

// Infer runs the model on the frame and maps the best-confidence
// detection's keypoints onto the COCO landmark names. Below-threshold
// frames report no detection.
func (b *yoloBackend) Infer(_ context.Context, f *video.Frame) (*Detection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("pose model %q is closed", b.modelPath)
	}

	blob := gocv.BlobFromImage(f.Mat, 1.0/255.0,
		image.Pt(yoloInputSize, yoloInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	b.net.SetInput(blob, "")
	output := b.net.Forward("")
	defer output.Close()

	// Output layout is [1, 56, 8400]: one column per anchor.
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("unexpected model output: %w", err)
	}
	if len(data) < yoloValues*yoloAnchors {
		return nil, fmt.Errorf("model output too small: %d values", len(data))
	}

	best := -1
	bestConf := float32(yoloConfThreshold)
	for a := 0; a < yoloAnchors; a++ {
		if conf := data[4*yoloAnchors+a]; conf > bestConf {
			bestConf = conf
			best = a
		}
	}
	if best < 0 {
		return nil, nil
	}

	det := &Detection{Points: make(map[string]Point, len(COCOLandmarks))}
	for k, name := range COCOLandmarks {
		base := (5 + k*3) * yoloAnchors
		det.Points[name] = Point{
			X:          float64(data[base+best]) / yoloInputSize,
			Y:          float64(data[base+yoloAnchors+best]) / yoloInputSize,
			Visibility: float64(data[base+2*yoloAnchors+best]),
		}
	}
	drawOverlay(f, det)
	return det, nil
}

// Name identifies the backend in logs and export filenames.
func (b *yoloBackend) Name() string { return "YOLO" }

// Close releases the network.
func (b *yoloBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.net.Close()
}
