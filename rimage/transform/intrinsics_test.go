package transform

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestPixelToPoint(t *testing.T) {
	params := kinectIntrinsics()
	rays, err := NewRayTable(params)
	test.That(t, err, test.ShouldBeNil)

	p := params.PixelToPoint(100, 50, 2.0)
	test.That(t, p.X, test.ShouldAlmostEqual, rays.Col(100)*2.0)
	test.That(t, p.Y, test.ShouldAlmostEqual, rays.Row(50)*2.0)
	test.That(t, p.Z, test.ShouldEqual, 2.0)

	var nilParams *PinholeCameraIntrinsics
	test.That(t, nilParams.PixelToPoint(1, 2, 3).Norm(), test.ShouldEqual, 0)
}

func TestCameraMatrix(t *testing.T) {
	params := kinectIntrinsics()
	m := params.GetCameraMatrix()
	test.That(t, m.At(0, 0), test.ShouldEqual, 365.0)
	test.That(t, m.At(1, 1), test.ShouldEqual, 365.0)
	test.That(t, m.At(0, 2), test.ShouldEqual, 256.0)
	test.That(t, m.At(1, 2), test.ShouldEqual, 212.0)
	test.That(t, m.At(2, 2), test.ShouldEqual, 1.0)
	test.That(t, m.At(1, 0), test.ShouldEqual, 0.0)

	back, err := IntrinsicsFromCameraMatrix(m, DepthWidth, DepthHeight)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, params)

	var nilParams *PinholeCameraIntrinsics
	test.That(t, nilParams.GetCameraMatrix(), test.ShouldBeNil)
}

func TestIntrinsicsFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intrinsics.json")
	test.That(t, os.WriteFile(path,
		[]byte(`{"width_px": 512, "height_px": 424, "fx": 365.1, "fy": 365.2, "ppx": 255.5, "ppy": 211.5}`), 0o600),
		test.ShouldBeNil)
	params, err := NewPinholeCameraIntrinsicsFromJSONFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.CheckValid(), test.ShouldBeNil)
	test.That(t, params.Fy, test.ShouldEqual, 365.2)
	test.That(t, params.Ppx, test.ShouldEqual, 255.5)

	_, err = NewPinholeCameraIntrinsicsFromJSONFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBrownConrady(t *testing.T) {
	bc, err := NewBrownConrady([]float64{0.1, 0.2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, bc.Parameters(), test.ShouldResemble, []float64{0.1, 0.2, 0, 0, 0})

	_, err = NewBrownConrady(make([]float64, 6))
	test.That(t, err, test.ShouldNotBeNil)

	bc = &BrownConrady{RadialK1: 0.1, RadialK2: 0.2, RadialK3: 0.3, TangentialP1: 0.4, TangentialP2: 0.5}
	test.That(t, bc.OpenCVCoefficients(), test.ShouldResemble, []float64{0.1, 0.2, 0.4, 0.5, 0.3})
	back, err := BrownConradyFromOpenCV(bc.OpenCVCoefficients())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, bc)

	x, y := (&BrownConrady{}).Transform(0.3, -0.2)
	test.That(t, x, test.ShouldEqual, 0.3)
	test.That(t, y, test.ShouldEqual, -0.2)
	x, _ = (&BrownConrady{RadialK1: 1}).Transform(0.5, 0)
	test.That(t, x, test.ShouldAlmostEqual, 0.5*1.25)
}

func TestCalibrationFile(t *testing.T) {
	depth := kinectIntrinsics()
	color := &PinholeCameraIntrinsics{Width: ColorWidth, Height: ColorHeight, Fx: 1081.37, Fy: 1081.37, Ppx: 959.5, Ppy: 539.5}
	dist := &BrownConrady{RadialK1: 0.09, RadialK2: -0.27, RadialK3: 0.09}
	calib, err := NewCalibration("012345", color, depth, dist)
	test.That(t, err, test.ShouldBeNil)

	path := filepath.Join(t.TempDir(), CalibrationFileName("012345"))
	test.That(t, filepath.Base(path), test.ShouldEqual, "calib_012345.yml")
	test.That(t, WriteCalibrationFile(path, calib), test.ShouldBeNil)

	raw, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(raw), test.ShouldContainSubstring, "CcameraMatrix:")
	test.That(t, string(raw), test.ShouldContainSubstring, "DcameraMatrix:")
	test.That(t, string(raw), test.ShouldContainSubstring, "distCoeffs:")

	read, err := ReadCalibrationFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Serial, test.ShouldEqual, "012345")
	gotDepth, err := read.DepthIntrinsics()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotDepth, test.ShouldResemble, depth)
	gotColor, err := read.ColorIntrinsics()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotColor, test.ShouldResemble, color)
	gotDist, err := read.Distortion()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotDist, test.ShouldResemble, dist)

	_, err = NewCalibration("x", nil, depth, dist)
	test.That(t, err, test.ShouldWrap, ErrNoIntrinsics)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	test.That(t, os.WriteFile(bad, []byte("DcameraMatrix: {rows: 3, cols: 3, data: [1, 2]}\n"), 0o600), test.ShouldBeNil)
	_, err = ReadCalibrationFile(bad)
	test.That(t, err, test.ShouldNotBeNil)
}
