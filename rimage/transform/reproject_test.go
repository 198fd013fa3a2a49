package transform

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"

	"go.viam.com/k2g/pointcloud"
	"go.viam.com/k2g/rimage"
)

// rampDepth returns a frame with a depth gradient and a few holes.
func rampDepth(width, height int) *rimage.DepthFrame {
	df := rimage.NewEmptyDepthFrame(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			df.Set(x, y, float32(500+x+3*y))
		}
	}
	df.Set(3, 2, 0)
	df.Set(width-1, height-1, float32(math.NaN()))
	return df
}

func rampColor(width, height int) *rimage.ColorFrame {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), uint8(x + y), 17})
		}
	}
	return rimage.NewColorFrame(img)
}

func smallIntrinsics(width, height int) *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{Width: width, Height: height, Fx: 50, Fy: 52, Ppx: float64(width) / 2, Ppy: float64(height) / 2}
}

func checkPointsPartition(t *testing.T, cloud *pointcloud.Organized) {
	t.Helper()
	anyInvalid := false
	for _, p := range cloud.Points {
		if p.Valid {
			test.That(t, math.IsNaN(p.Position.X) || math.IsInf(p.Position.X, 0), test.ShouldBeFalse)
			test.That(t, math.IsNaN(p.Position.Y) || math.IsInf(p.Position.Y, 0), test.ShouldBeFalse)
			test.That(t, math.IsNaN(p.Position.Z) || math.IsInf(p.Position.Z, 0), test.ShouldBeFalse)
		} else {
			anyInvalid = true
			test.That(t, math.IsNaN(p.Position.X), test.ShouldBeTrue)
			test.That(t, math.IsNaN(p.Position.Y), test.ShouldBeTrue)
			test.That(t, math.IsNaN(p.Position.Z), test.ShouldBeTrue)
			test.That(t, p.HasColor, test.ShouldBeFalse)
		}
	}
	test.That(t, cloud.IsDense, test.ShouldEqual, !anyInvalid)
}

func TestDepthToCloudExample(t *testing.T) {
	dr, err := NewDepthReprojector(kinectIntrinsics(), false)
	test.That(t, err, test.ShouldBeNil)

	depth := rimage.NewEmptyDepthFrame(DepthWidth, DepthHeight)
	depth.Set(256, 212, 1000)
	cloud, err := dr.DepthToCloud(depth, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Width, test.ShouldEqual, DepthWidth)
	test.That(t, cloud.Height, test.ShouldEqual, DepthHeight)
	test.That(t, cloud.ValidCount(), test.ShouldEqual, 1)
	test.That(t, cloud.IsDense, test.ShouldBeFalse)

	p := cloud.At(256, 212)
	test.That(t, p.Valid, test.ShouldBeTrue)
	test.That(t, p.HasColor, test.ShouldBeFalse)
	test.That(t, p.Position.X, test.ShouldAlmostEqual, 0.00137, 1e-5)
	test.That(t, p.Position.Y, test.ShouldAlmostEqual, 0.00137, 1e-5)
	test.That(t, p.Position.Z, test.ShouldEqual, 1.0)
	test.That(t, p.Position.X, test.ShouldEqual, 0.5/365.0)

	// zero depth is no return
	test.That(t, cloud.At(0, 0).Valid, test.ShouldBeFalse)
	checkPointsPartition(t, cloud)
}

func TestDepthToCloudValidity(t *testing.T) {
	dr, err := NewDepthReprojector(smallIntrinsics(4, 1), false)
	test.That(t, err, test.ShouldBeNil)

	for _, tc := range []struct {
		raw   float32
		valid bool
	}{
		{0, false},
		{float32(math.NaN()), false},
		{float32(math.Inf(1)), false},
		{float32(math.Inf(-1)), false},
		{0.05, false},
		{-0.05, false},
		{0.2, true},
		{-250, true},
		{4500, true},
	} {
		depth, err := rimage.NewDepthFrame(4, 1, []float32{1000, 1000, 1000, tc.raw})
		test.That(t, err, test.ShouldBeNil)
		cloud, err := dr.DepthToCloud(depth, nil, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cloud.At(3, 0).Valid, test.ShouldEqual, tc.valid)
		test.That(t, cloud.IsDense, test.ShouldEqual, tc.valid)
		wantValid := 3
		if tc.valid {
			wantValid = 4
		}
		test.That(t, cloud.ValidCount(), test.ShouldEqual, wantValid)
		checkPointsPartition(t, cloud)
	}
}

func TestDepthToCloudDense(t *testing.T) {
	width, height := 32, 24
	dr, err := NewDepthReprojector(smallIntrinsics(width, height), false)
	test.That(t, err, test.ShouldBeNil)

	depth := rampDepth(width, height)
	depth.Set(3, 2, 800)
	depth.Set(width-1, height-1, 800)
	cloud, err := dr.DepthToCloud(depth, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.IsDense, test.ShouldBeTrue)
	test.That(t, cloud.ValidCount(), test.ShouldEqual, width*height)

	rays := dr.Rays()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			d := float64(depth.At(x, y)) / 1000
			p := cloud.At(x, y)
			test.That(t, p.Position.X, test.ShouldEqual, rays.Col(x)*d)
			test.That(t, p.Position.Y, test.ShouldEqual, rays.Row(y)*d)
			test.That(t, p.Position.Z, test.ShouldEqual, d)
		}
	}
}

func TestDepthToCloudColor(t *testing.T) {
	width, height := 16, 8
	dr, err := NewDepthReprojector(smallIntrinsics(width, height), false)
	test.That(t, err, test.ShouldBeNil)

	cloud, err := dr.DepthToCloud(rampDepth(width, height), rampColor(width, height), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.HasColor(), test.ShouldBeTrue)
	p := cloud.At(5, 6)
	test.That(t, p.HasColor, test.ShouldBeTrue)
	test.That(t, p.Color, test.ShouldResemble, color.NRGBA{5, 6, 11, 255})
	test.That(t, cloud.At(3, 2).HasColor, test.ShouldBeFalse)
	checkPointsPartition(t, cloud)
}

func TestDepthToCloudIdempotent(t *testing.T) {
	width, height := 40, 30
	for _, mirror := range []bool{false, true} {
		dr, err := NewDepthReprojector(smallIntrinsics(width, height), mirror)
		test.That(t, err, test.ShouldBeNil)
		depth := rampDepth(width, height)
		first, err := dr.DepthToCloud(depth, nil, nil)
		test.That(t, err, test.ShouldBeNil)
		second, err := dr.DepthToCloud(depth, nil, nil)
		test.That(t, err, test.ShouldBeNil)

		test.That(t, second.IsDense, test.ShouldEqual, first.IsDense)
		for i := range first.Points {
			a, b := first.Points[i].Position, second.Points[i].Position
			test.That(t, math.Float64bits(b.X), test.ShouldEqual, math.Float64bits(a.X))
			test.That(t, math.Float64bits(b.Y), test.ShouldEqual, math.Float64bits(a.Y))
			test.That(t, math.Float64bits(b.Z), test.ShouldEqual, math.Float64bits(a.Z))
		}
	}
}

func TestDepthToCloudMirror(t *testing.T) {
	width, height := 24, 10
	params := smallIntrinsics(width, height)
	plain, err := NewDepthReprojector(params, false)
	test.That(t, err, test.ShouldBeNil)
	mirrored, err := NewDepthReprojector(params, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mirrored.Mirror(), test.ShouldBeTrue)

	depth := rampDepth(width, height)
	colorFrame := rampColor(width, height)
	before := depth.Clone()

	unmirroredCloud, err := plain.DepthToCloud(depth, colorFrame, nil)
	test.That(t, err, test.ShouldBeNil)
	mirroredCloud, err := mirrored.DepthToCloud(depth, colorFrame, nil)
	test.That(t, err, test.ShouldBeNil)

	// inputs are untouched; the ramp holds a NaN hole, so compare with NaN equality
	test.That(t, cmp.Diff(before.Data(), depth.Data(), cmpopts.EquateNaNs()), test.ShouldBeEmpty)
	test.That(t, math.IsNaN(float64(depth.At(width-1, height-1))), test.ShouldBeTrue)
	test.That(t, colorFrame.At(0, 0), test.ShouldResemble, color.NRGBA{0, 0, 0, 17})

	reversed := unmirroredCloud.RowReversed()
	test.That(t, mirroredCloud.IsDense, test.ShouldEqual, reversed.IsDense)
	rays := mirrored.Rays()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m, r := mirroredCloud.At(x, y), reversed.At(x, y)
			test.That(t, m.Valid, test.ShouldEqual, r.Valid)
			if !m.Valid {
				continue
			}
			test.That(t, m.Position.Z, test.ShouldEqual, r.Position.Z)
			test.That(t, m.Position.Y, test.ShouldEqual, r.Position.Y)
			test.That(t, m.Color, test.ShouldResemble, r.Color)
			// rays are indexed by the flipped column
			test.That(t, m.Position.X, test.ShouldEqual, rays.Col(x)*m.Position.Z)
		}
	}
}

func TestDepthToCloudReusesOutput(t *testing.T) {
	width, height := 8, 6
	dr, err := NewDepthReprojector(smallIntrinsics(width, height), false)
	test.That(t, err, test.ShouldBeNil)

	out := pointcloud.NewOrganized(3, 3)
	out.Points = make([]pointcloud.Point, 9, width*height)
	cloud, err := dr.DepthToCloud(rampDepth(width, height), nil, out)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud, test.ShouldEqual, out)
	test.That(t, cloud.Size(), test.ShouldEqual, width*height)
	test.That(t, cloud.Width, test.ShouldEqual, width)
	test.That(t, cloud.ValidCount(), test.ShouldEqual, width*height-2)
	checkPointsPartition(t, cloud)
}

func TestDepthToCloudMismatch(t *testing.T) {
	dr, err := NewDepthReprojector(smallIntrinsics(8, 6), false)
	test.That(t, err, test.ShouldBeNil)

	_, err = dr.DepthToCloud(nil, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = dr.DepthToCloud(rampDepth(6, 8), nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "don't match")

	out := pointcloud.NewOrganized(2, 2)
	_, err = dr.DepthToCloud(rampDepth(8, 6), rampColor(8, 5), out)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 4)

	_, err = NewDepthReprojector(&PinholeCameraIntrinsics{Width: 8, Height: 6}, false)
	test.That(t, err, test.ShouldWrap, ErrNoIntrinsics)
}
