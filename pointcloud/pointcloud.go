// Package pointcloud defines the organized point cloud produced by depth reprojection and the
// file formats it can be written to.
//
// An organized cloud keeps one point per depth pixel in row-major order, so the point for pixel
// (x, y) lives at index y*Width+x. Pixels without a usable depth return are kept as invalid
// points whose coordinates are all NaN.
package pointcloud

import (
	"image/color"
	"math"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
)

// Point is a single reprojected depth pixel in meters.
type Point struct {
	Position r3.Vector
	Color    color.NRGBA
	HasColor bool
	Valid    bool
}

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// InvalidPoint returns the marker stored for pixels without a depth return.
func InvalidPoint() Point {
	nan := math.NaN()
	return Point{Position: r3.Vector{X: nan, Y: nan, Z: nan}}
}

// Organized is a point cloud laid out on the depth image grid.
type Organized struct {
	Width  int
	Height int
	Points []Point
	// IsDense is true iff every point is valid.
	IsDense bool
}

// NewOrganized returns a cloud of width*height invalid points.
func NewOrganized(width, height int) *Organized {
	cloud := &Organized{}
	cloud.Resize(width, height)
	return cloud
}

// Resize reshapes the cloud, reusing the point storage when it is large enough. When the pixel
// count changes every point is reset to invalid. An empty cloud is dense.
func (cloud *Organized) Resize(width, height int) {
	n := width * height
	cloud.Width = width
	cloud.Height = height
	if n == 0 {
		// no points, so none is invalid
		cloud.Points = cloud.Points[:0]
		cloud.IsDense = true
		return
	}
	if len(cloud.Points) == n {
		return
	}
	if cap(cloud.Points) >= n {
		cloud.Points = cloud.Points[:n]
	} else {
		cloud.Points = make([]Point, n)
	}
	invalid := InvalidPoint()
	for i := range cloud.Points {
		cloud.Points[i] = invalid
	}
	cloud.IsDense = false
}

// Size returns the number of points, valid or not.
func (cloud *Organized) Size() int {
	return len(cloud.Points)
}

// Index returns the position of pixel (x, y) in Points.
func (cloud *Organized) Index(x, y int) int {
	return y*cloud.Width + x
}

// At returns the point for pixel (x, y).
func (cloud *Organized) At(x, y int) Point {
	return cloud.Points[cloud.Index(x, y)]
}

// ValidCount returns the number of points carrying a measurement.
func (cloud *Organized) ValidCount() int {
	return lo.CountBy(cloud.Points, func(p Point) bool { return p.Valid })
}

// HasColor reports whether any valid point carries a color.
func (cloud *Organized) HasColor() bool {
	return lo.ContainsBy(cloud.Points, func(p Point) bool { return p.Valid && p.HasColor })
}

// Iterate calls fn for every point in row-major order until fn returns false.
func (cloud *Organized) Iterate(fn func(x, y int, p Point) bool) {
	for i, p := range cloud.Points {
		if !fn(i%cloud.Width, i/cloud.Width, p) {
			return
		}
	}
}

// RowReversed returns a copy of the cloud where every row is reversed in place, i.e. the cloud of
// the horizontally mirrored grid.
func (cloud *Organized) RowReversed() *Organized {
	out := &Organized{Width: cloud.Width, Height: cloud.Height, IsDense: cloud.IsDense}
	out.Points = make([]Point, len(cloud.Points))
	for y := 0; y < cloud.Height; y++ {
		for x := 0; x < cloud.Width; x++ {
			out.Points[cloud.Index(cloud.Width-1-x, y)] = cloud.Points[cloud.Index(x, y)]
		}
	}
	return out
}
