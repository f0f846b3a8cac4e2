package track

import "math"

// DistanceFunc reduces a series to one total-movement number. The
// aggregate functions and the per-block mode consume its result; the
// choice of metric is up to the caller.
type DistanceFunc func(Series) float64

// EuclideanOptions tunes EuclideanDistance. When Filter is set,
// per-landmark displacements below Threshold are treated as sensor
// noise and dropped from the sum.
type EuclideanOptions struct {
	Filter    bool
	Threshold float64
}

// EuclideanDistance returns a DistanceFunc summing, over consecutive
// row pairs and over landmarks, the 3D Euclidean displacement.
func EuclideanDistance(opts EuclideanOptions) DistanceFunc {
	return func(s Series) float64 {
		if s.Len() < 2 {
			return 0
		}
		var total float64
		for i := 1; i < s.Len(); i++ {
			prev, cur := s.Rows[i-1], s.Rows[i]
			for lm := range s.Landmarks {
				dx := cur.Points[lm].X - prev.Points[lm].X
				dy := cur.Points[lm].Y - prev.Points[lm].Y
				dz := cur.Points[lm].Z - prev.Points[lm].Z
				d := math.Sqrt(dx*dx + dy*dy + dz*dz)
				if opts.Filter && d < opts.Threshold {
					continue
				}
				total += d
			}
		}
		return total
	}
}
