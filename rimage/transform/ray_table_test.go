package transform

import (
	"testing"

	"go.viam.com/test"
)

func kinectIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  DepthWidth,
		Height: DepthHeight,
		Fx:     365.0,
		Fy:     365.0,
		Ppx:    256.0,
		Ppy:    212.0,
	}
}

func TestRayTable(t *testing.T) {
	params := kinectIntrinsics()
	rays, err := NewRayTable(params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rays.Width(), test.ShouldEqual, DepthWidth)
	test.That(t, rays.Height(), test.ShouldEqual, DepthHeight)

	for x := 0; x < rays.Width(); x++ {
		test.That(t, rays.Col(x), test.ShouldEqual, (float64(x)-params.Ppx+0.5)/params.Fx)
	}
	for y := 0; y < rays.Height(); y++ {
		test.That(t, rays.Row(y), test.ShouldEqual, (float64(y)-params.Ppy+0.5)/params.Fy)
	}
	test.That(t, rays.Col(256), test.ShouldAlmostEqual, 0.00137, 1e-5)
	test.That(t, rays.Col(0), test.ShouldBeLessThan, 0)
	test.That(t, rays.Row(DepthHeight-1), test.ShouldBeGreaterThan, 0)

	again, err := NewRayTable(params)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldResemble, rays)
}

func TestRayTableSinglePrecision(t *testing.T) {
	params := kinectIntrinsics()
	rays, err := NewRayTable(params)
	test.That(t, err, test.ShouldBeNil)

	fx, ppx := float32(params.Fx), float32(params.Ppx)
	for x := 0; x < rays.Width(); x++ {
		single := (float32(x) - ppx + 0.5) / fx
		test.That(t, rays.Col(x), test.ShouldAlmostEqual, float64(single), 1e-6)
	}
	fy, ppy := float32(params.Fy), float32(params.Ppy)
	for y := 0; y < rays.Height(); y++ {
		single := (float32(y) - ppy + 0.5) / fy
		test.That(t, rays.Row(y), test.ShouldAlmostEqual, float64(single), 1e-6)
	}
}

func TestRayTableInvalidIntrinsics(t *testing.T) {
	_, err := NewRayTable(nil)
	test.That(t, err, test.ShouldWrap, ErrNoIntrinsics)

	for _, mutate := range []func(p *PinholeCameraIntrinsics){
		func(p *PinholeCameraIntrinsics) { p.Fx = 0 },
		func(p *PinholeCameraIntrinsics) { p.Fy = -1 },
		func(p *PinholeCameraIntrinsics) { p.Width = 0 },
		func(p *PinholeCameraIntrinsics) { p.Ppy = -3 },
	} {
		params := kinectIntrinsics()
		mutate(params)
		_, err := NewRayTable(params)
		test.That(t, err, test.ShouldWrap, ErrNoIntrinsics)
	}
}
