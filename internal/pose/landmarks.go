package pose

import "fmt"

// StandardLandmarks is the full 33-point landmark-model set, in column
// order. The column set of a session's time series is fixed to the
// selected subset of these names.
var StandardLandmarks = []string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// COCOLandmarks is the 17-keypoint set produced by object-detection
// style pose models. It is a strict subset of StandardLandmarks, so
// YOLO sessions can share the same column naming.
var COCOLandmarks = []string{
	"nose",
	"left_eye", "right_eye",
	"left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
}

// TrunkLandmarks covers the torso.
var TrunkLandmarks = []string{
	"left_shoulder", "right_shoulder",
	"left_hip", "right_hip",
}

// UpperBodyLandmarks covers head, arms and torso.
var UpperBodyLandmarks = []string{
	"nose",
	"left_eye", "right_eye",
	"left_ear", "right_ear",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_hip", "right_hip",
}

// LowerBodyLandmarks covers hips and legs.
var LowerBodyLandmarks = []string{
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// LandmarkSet resolves a named landmark subset. The names match the
// -landmarks flag and config values.
func LandmarkSet(name string) ([]string, error) {
	switch name {
	case "", "standard":
		return StandardLandmarks, nil
	case "coco":
		return COCOLandmarks, nil
	case "trunk":
		return TrunkLandmarks, nil
	case "upper_body":
		return UpperBodyLandmarks, nil
	case "lower_body":
		return LowerBodyLandmarks, nil
	default:
		return nil, fmt.Errorf("unknown landmark set %q", name)
	}
}
