package models

// Stats is the aggregate summary of a record's data points.
// MaxIndex and MinIndex index into the point slice the stats were computed
// from; both are -1 when there were no points.
type Stats struct {
	MaxIndex int
	MinIndex int
	Avg      float64
}

// ComputeStats finds the maximum and minimum points and the time-weighted
// average bpm in a single pass over points, which must be sorted by timestamp.
//
// Each point is weighted by the gap to the next point's timestamp; the last
// point is weighted by duration minus its own timestamp. Negative weights are
// clamped to zero. Ties for max and min go to the first point seen. When the
// total weight is zero the average falls back to the arithmetic mean.
func ComputeStats(points []DataPoint, duration int64) Stats {
	stats := Stats{MaxIndex: -1, MinIndex: -1}
	if len(points) == 0 {
		return stats
	}

	var weighted, totalWeight, sum float64
	for i, p := range points {
		if stats.MaxIndex < 0 || p.BPM > points[stats.MaxIndex].BPM {
			stats.MaxIndex = i
		}
		if stats.MinIndex < 0 || p.BPM < points[stats.MinIndex].BPM {
			stats.MinIndex = i
		}

		var dt int64
		if i+1 < len(points) {
			dt = points[i+1].Timestamp - p.Timestamp
		} else {
			dt = duration - p.Timestamp
		}
		if dt < 0 {
			dt = 0
		}

		weighted += p.BPM * float64(dt)
		totalWeight += float64(dt)
		sum += p.BPM
	}

	if totalWeight > 0 {
		stats.Avg = weighted / totalWeight
	} else {
		stats.Avg = sum / float64(len(points))
	}
	return stats
}
