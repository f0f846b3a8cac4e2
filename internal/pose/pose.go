// Package pose defines the pose-estimation backend capability: given a
// frame, return named landmark coordinates and annotate the frame with
// a visual overlay. Backends form a closed set chosen once at
// construction; the tracker treats them interchangeably.
package pose

import (
	"context"
	"errors"
	"fmt"

	"github.com/kinetic-data/motion.report/internal/video"
)

// ErrUnknownBackend is returned by New for a Kind outside the closed
// set.
var ErrUnknownBackend = errors.New("unknown pose backend")

// Point is one landmark coordinate. X and Y are in normalised image
// coordinates [0,1]; Z is the backend's depth estimate where available,
// 0 otherwise. Visibility is the backend's confidence in [0,1].
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Detection is the result of inference on one frame: landmark name to
// coordinate. A nil *Detection means no pose was found in the frame.
type Detection struct {
	Points map[string]Point
}

// Point returns the coordinate for a landmark name, or a zero Point if
// the backend did not report it.
func (d *Detection) Point(name string) Point {
	if d == nil {
		return Point{}
	}
	return d.Points[name]
}

// Backend is the pose-estimation capability. Infer returns nil, nil
// when the frame contains no detectable pose; it annotates the frame's
// Mat in place as a side effect.
type Backend interface {
	// Infer runs pose estimation on the frame.
	Infer(ctx context.Context, f *video.Frame) (*Detection, error)

	// Name identifies the backend for logs and export filenames.
	Name() string

	// Close releases backend resources (model memory, connections).
	Close() error
}

// Kind selects a backend implementation.
type Kind int

const (
	// BackendRemote talks to a landmark-model service over a websocket.
	BackendRemote Kind = iota
	// BackendYOLO runs a local ONNX pose model through the OpenCV DNN
	// module.
	BackendYOLO
	// BackendSynthetic generates deterministic landmarks for dev mode
	// and tests.
	BackendSynthetic
)

// ParseKind maps a backend name from flags or config to its Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "remote", "mediapipe":
		return BackendRemote, nil
	case "yolo":
		return BackendYOLO, nil
	case "synthetic":
		return BackendSynthetic, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Config carries backend construction parameters. Only the fields the
// selected Kind needs are consulted.
type Config struct {
	Kind      Kind
	ModelPath string // BackendYOLO: path to the ONNX model file
	RemoteURL string // BackendRemote: websocket URL of the landmark service
	Landmarks []string
}

// New constructs the selected backend. An unknown Kind or missing
// required parameter is a construction error; the daemon treats it as
// fatal.
func New(cfg Config) (Backend, error) {
	if len(cfg.Landmarks) == 0 {
		cfg.Landmarks = StandardLandmarks
	}
	switch cfg.Kind {
	case BackendRemote:
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("remote backend requires a service URL")
		}
		return newRemoteBackend(cfg.RemoteURL), nil
	case BackendYOLO:
		if cfg.ModelPath == "" {
			return nil, fmt.Errorf("yolo backend requires a model file")
		}
		return newYOLOBackend(cfg.ModelPath)
	case BackendSynthetic:
		return NewSyntheticBackend(cfg.Landmarks), nil
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownBackend, cfg.Kind)
	}
}
