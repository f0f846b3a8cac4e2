package pose

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/kinetic-data/motion.report/internal/video"
)

// cocoSkeleton pairs COCO keypoint indices to draw limb lines between.
// Indices are 1-based into COCOLandmarks, paired: (17,15) draws right
// ankle to right knee.
var cocoSkeleton = [38]int{
	17, 15, 15, 13, 16, 14, 14, 12, 12, 13, 6, 12, 7, 13, 6, 7, 6, 8,
	7, 9, 8, 10, 9, 11, 2, 3, 1, 2, 1, 3, 2, 4, 3, 5, 4, 6, 5, 7,
}

var (
	limbColor  = color.RGBA{R: 0, G: 200, B: 255, A: 0}
	jointColor = color.RGBA{R: 0, G: 255, B: 80, A: 0}
)

// drawOverlay renders joints and, where the detection covers the full
// COCO set, skeleton limbs onto the frame. Coordinates are normalised;
// the overlay scales them to the frame size.
func drawOverlay(f *video.Frame, det *Detection) {
	if det == nil || f == nil || f.Mat.Ptr() == nil || f.Mat.Empty() {
		return
	}
	w := f.Mat.Cols()
	h := f.Mat.Rows()

	px := func(p Point) image.Point {
		return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
	}

	full := true
	for _, name := range COCOLandmarks {
		if _, ok := det.Points[name]; !ok {
			full = false
			break
		}
	}
	if full {
		for j := 0; j < len(cocoSkeleton)/2; j++ {
			a := det.Points[COCOLandmarks[cocoSkeleton[2*j]-1]]
			b := det.Points[COCOLandmarks[cocoSkeleton[2*j+1]-1]]
			if a.Visibility < 0.2 || b.Visibility < 0.2 {
				continue
			}
			gocv.Line(&f.Mat, px(a), px(b), limbColor, 2)
		}
	}

	for _, p := range det.Points {
		if p.Visibility < 0.2 {
			continue
		}
		gocv.Circle(&f.Mat, px(p), 3, jointColor, -1)
	}
}
