package pointcloud

import (
	"fmt"
	"io"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// DepthStats summarizes the metric depth of the valid points of a cloud.
type DepthStats struct {
	Valid      int
	Total      int
	ValidRatio float64
	Min        float64
	Max        float64
	Mean       float64
	Median     float64
	StdDev     float64
}

// ComputeDepthStats summarizes the z values of the valid points. A cloud without valid points
// returns the counts only.
func ComputeDepthStats(cloud *Organized) (DepthStats, error) {
	depths := make(stats.Float64Data, 0, cloud.Size())
	for _, p := range cloud.Points {
		if p.Valid {
			depths = append(depths, p.Position.Z)
		}
	}
	out := DepthStats{Valid: len(depths), Total: cloud.Size()}
	if out.Total > 0 {
		out.ValidRatio = float64(out.Valid) / float64(out.Total)
	}
	if len(depths) == 0 {
		return out, nil
	}

	var err error
	if out.Min, err = depths.Min(); err != nil {
		return out, errors.Wrap(err, "min depth")
	}
	if out.Max, err = depths.Max(); err != nil {
		return out, errors.Wrap(err, "max depth")
	}
	if out.Mean, err = depths.Mean(); err != nil {
		return out, errors.Wrap(err, "mean depth")
	}
	if out.Median, err = depths.Median(); err != nil {
		return out, errors.Wrap(err, "median depth")
	}
	if out.StdDev, err = depths.StandardDeviation(); err != nil {
		return out, errors.Wrap(err, "depth deviation")
	}
	return out, nil
}

// DepthHistogram buckets the z values of the valid points into bins equal width buckets.
func DepthHistogram(cloud *Organized, bins int) histogram.Histogram {
	depths := make([]float64, 0, cloud.Size())
	for _, p := range cloud.Points {
		if p.Valid {
			depths = append(depths, p.Position.Z)
		}
	}
	return histogram.Hist(bins, depths)
}

// WriteDepthHistogram prints the depth histogram of the cloud as text bars at most width wide.
func WriteDepthHistogram(w io.Writer, cloud *Organized, bins, width int) error {
	hist := DepthHistogram(cloud, bins)
	if hist.Count == 0 {
		_, err := fmt.Fprintln(w, "no valid points")
		return err
	}
	return histogram.Fprintf(w, hist, histogram.Linear(width), func(v float64) string {
		return fmt.Sprintf("%.3fm", v)
	})
}
