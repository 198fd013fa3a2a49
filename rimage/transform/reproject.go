package transform

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/k2g/pointcloud"
	"go.viam.com/k2g/rimage"
	"go.viam.com/k2g/utils"
)

// MinValidDepth is the smallest metric depth, in meters, considered a measurement.
const MinValidDepth = 0.0001

// DepthReprojector turns undistorted depth frames of one sensor into organized point clouds.
// It is safe for concurrent use.
type DepthReprojector struct {
	rays   *RayTable
	mirror bool
}

// NewDepthReprojector builds the ray table of the sensor once. When mirror is set every frame is
// flipped horizontally before it is reprojected.
func NewDepthReprojector(intrinsics *PinholeCameraIntrinsics, mirror bool) (*DepthReprojector, error) {
	rays, err := NewRayTable(intrinsics)
	if err != nil {
		return nil, err
	}
	return &DepthReprojector{rays: rays, mirror: mirror}, nil
}

// Rays returns the ray table used by the reprojector.
func (dr *DepthReprojector) Rays() *RayTable {
	return dr.rays
}

// Mirror reports whether frames are flipped before reprojection.
func (dr *DepthReprojector) Mirror() bool {
	return dr.mirror
}

// IsValidDepth reports whether a metric depth is a measurement.
func IsValidDepth(depth float64) bool {
	return !math.IsNaN(depth) && !math.IsInf(depth, 0) && math.Abs(depth) >= MinValidDepth
}

// DepthToCloud reprojects depth, in millimeters, into out. color is optional and must be
// registered to the depth grid. out is reused when non-nil. Neither input frame is modified.
func (dr *DepthReprojector) DepthToCloud(
	depth *rimage.DepthFrame,
	color *rimage.ColorFrame,
	out *pointcloud.Organized,
) (*pointcloud.Organized, error) {
	if depth == nil {
		return nil, errors.New("no depth frame. Cannot project to Pointcloud")
	}
	width, height := dr.rays.Width(), dr.rays.Height()
	if depth.Width() != width || depth.Height() != height {
		return nil, errors.Errorf("depth frame and intrinsics don't match Depth(%d,%d) != Intrinsics(%d,%d)",
			depth.Width(), depth.Height(), width, height)
	}
	if color != nil && (color.Width() != width || color.Height() != height) {
		return nil, errors.Errorf("depth frame and color dimensions don't match Depth(%d,%d) != Color(%d,%d)",
			depth.Width(), depth.Height(), color.Width(), color.Height())
	}

	if dr.mirror {
		depth = depth.MirrorHorizontally()
		if color != nil {
			color = color.MirrorHorizontally()
		}
	}

	if out == nil {
		out = pointcloud.NewOrganized(width, height)
	} else {
		out.Resize(width, height)
	}

	dense := atomic.NewBool(true)
	if err := utils.GroupWorkParallel(
		context.Background(),
		height,
		nil,
		func(_, _, _, _ int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			groupDense := true
			return func(_, y int) {
					if !dr.reprojectRow(depth, color, out, y) {
						groupDense = false
					}
				}, func() {
					if !groupDense {
						dense.Store(false)
					}
				}
		},
	); err != nil {
		return nil, err
	}
	out.IsDense = dense.Load()
	return out, nil
}

// reprojectRow fills row y of out and reports whether every pixel of the row was valid.
func (dr *DepthReprojector) reprojectRow(
	depth *rimage.DepthFrame,
	color *rimage.ColorFrame,
	out *pointcloud.Organized,
	y int,
) bool {
	rowDense := true
	rowRay := dr.rays.Row(y)
	raw := depth.Row(y)
	points := out.Points[y*out.Width : (y+1)*out.Width]
	for x, v := range raw {
		d := float64(v) / rimage.MillimetersPerMeter
		if !IsValidDepth(d) {
			points[x] = pointcloud.InvalidPoint()
			rowDense = false
			continue
		}
		p := pointcloud.Point{
			Position: pointcloud.NewVector(dr.rays.Col(x)*d, rowRay*d, d),
			Valid:    true,
		}
		if color != nil {
			p.Color = color.At(x, y)
			p.Color.A = 255
			p.HasColor = true
		}
		points[x] = p
	}
	return rowDense
}
