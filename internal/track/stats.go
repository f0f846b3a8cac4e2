package track

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// The aggregate movement functions are total: degenerate inputs (short
// series, non-positive duration, zero landmarks) return 0 rather than
// failing. total is the raw movement sum produced by a DistanceFunc.

// MovementPerSecond divides total movement by the series duration in
// seconds.
func MovementPerSecond(s Series, total float64) float64 {
	duration := s.Duration()
	if duration <= 0 {
		return 0
	}
	return total / duration
}

// MovementPerFrame divides total movement by the number of frame
// transitions (rows - 1).
func MovementPerFrame(s Series, total float64) float64 {
	n := s.Len()
	if n <= 1 {
		return 0
	}
	return total / float64(n-1)
}

// MovementPerLandmark divides total movement by the landmark count.
func MovementPerLandmark(total float64, numLandmarks int) float64 {
	if numLandmarks <= 0 {
		return 0
	}
	return total / float64(numLandmarks)
}

// NormalizedMovementIndex divides total movement by duration and
// landmark count, yielding a dimensionless index comparable across
// sessions of different lengths and landmark selections.
func NormalizedMovementIndex(s Series, total float64, numLandmarks int) float64 {
	duration := s.Duration()
	if duration <= 0 || numLandmarks <= 0 {
		return 0
	}
	return total / (duration * float64(numLandmarks))
}

// FrameMovements returns, for each consecutive row pair, the sum over
// landmarks of 3D Euclidean displacement. A series with fewer than two
// rows yields an empty slice.
func FrameMovements(s Series) []float64 {
	if s.Len() < 2 {
		return nil
	}
	out := make([]float64, 0, s.Len()-1)
	for i := 1; i < s.Len(); i++ {
		prev, cur := s.Rows[i-1], s.Rows[i]
		var frameDist float64
		for lm := range s.Landmarks {
			dx := cur.Points[lm].X - prev.Points[lm].X
			dy := cur.Points[lm].Y - prev.Points[lm].Y
			dz := cur.Points[lm].Z - prev.Points[lm].Z
			frameDist += math.Sqrt(dx*dx + dy*dy + dz*dz)
		}
		out = append(out, frameDist)
	}
	return out
}

// MovementStats summarises per-frame movement values.
type MovementStats struct {
	Average float64 `json:"average"`
	StdDev  float64 `json:"std_dev"`
	Median  float64 `json:"median"`
	P95     float64 `json:"p95"`
}

// MovementStatistics computes mean, standard deviation, median and
// 95th percentile over per-frame movement values. An empty input
// returns the zero value.
func MovementStatistics(values []float64) MovementStats {
	if len(values) == 0 {
		return MovementStats{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sd float64
	if len(sorted) > 1 {
		sd = stat.StdDev(sorted, nil)
	}
	return MovementStats{
		Average: stat.Mean(sorted, nil),
		StdDev:  sd,
		Median:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:     stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}
