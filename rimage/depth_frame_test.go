package rimage

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func newTestDepthFrame(t *testing.T) *DepthFrame {
	t.Helper()
	df, err := NewDepthFrame(3, 2, []float32{
		1, 2, 3,
		4, float32(math.NaN()), 0,
	})
	test.That(t, err, test.ShouldBeNil)
	return df
}

func TestNewDepthFrameValidatesSize(t *testing.T) {
	_, err := NewDepthFrame(3, 2, make([]float32, 5))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 6")

	_, err = NewDepthFrame(0, 2, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewDepthFrameFromBytes(2, 2, make([]byte, 15))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthFrameAccessors(t *testing.T) {
	df := newTestDepthFrame(t)
	test.That(t, df.Width(), test.ShouldEqual, 3)
	test.That(t, df.Height(), test.ShouldEqual, 2)
	test.That(t, df.At(2, 0), test.ShouldEqual, float32(3))
	test.That(t, df.Row(1)[0], test.ShouldEqual, float32(4))

	df.Set(1, 0, 7)
	test.That(t, df.Data()[1], test.ShouldEqual, float32(7))

	minDepth, maxDepth, ok := df.ValidRange()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, minDepth, test.ShouldEqual, float32(1))
	test.That(t, maxDepth, test.ShouldEqual, float32(7))

	_, _, ok = NewEmptyDepthFrame(2, 2).ValidRange()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestDepthFrameMirror(t *testing.T) {
	df := newTestDepthFrame(t)
	mirrored := df.MirrorHorizontally()

	test.That(t, mirrored.Row(0), test.ShouldResemble, []float32{3, 2, 1})
	test.That(t, mirrored.At(0, 1), test.ShouldEqual, float32(0))
	test.That(t, math.IsNaN(float64(mirrored.At(1, 1))), test.ShouldBeTrue)
	test.That(t, mirrored.At(2, 1), test.ShouldEqual, float32(4))
	// source untouched
	test.That(t, df.Row(0), test.ShouldResemble, []float32{1, 2, 3})

	twice := mirrored.MirrorHorizontally()
	test.That(t, twice.Row(0), test.ShouldResemble, df.Row(0))
}

func TestDepthFrameBytesRoundTrip(t *testing.T) {
	df := newTestDepthFrame(t)
	back, err := NewDepthFrameFromBytes(3, 2, df.Bytes())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Row(0), test.ShouldResemble, df.Row(0))
	test.That(t, math.IsNaN(float64(back.At(1, 1))), test.ShouldBeTrue)
}

func TestDepthFrameFiles(t *testing.T) {
	df := newTestDepthFrame(t)

	var buf bytes.Buffer
	_, err := df.WriteTo(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, buf.Len(), test.ShouldEqual, 16+6*4)
	back, err := ReadDepthFrame(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Width(), test.ShouldEqual, 3)
	test.That(t, back.Row(0), test.ShouldResemble, df.Row(0))

	dir := t.TempDir()
	for _, name := range []string{"frame.dat", "frame.dat.gz"} {
		fn := filepath.Join(dir, name)
		test.That(t, WriteDepthFrameFile(df, fn), test.ShouldBeNil)
		read, err := ParseDepthFrameFile(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.Row(0), test.ShouldResemble, df.Row(0))
		test.That(t, read.At(0, 1), test.ShouldEqual, float32(4))
	}

	_, err = ReadDepthFrame(bytes.NewReader([]byte{1, 2, 3}))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestToPrettyPicture(t *testing.T) {
	df := newTestDepthFrame(t)
	img := df.ToPrettyPicture(0, 10000)
	test.That(t, img.Bounds(), test.ShouldResemble, df.Bounds())

	_, _, _, a := img.At(1, 1).RGBA()
	test.That(t, a, test.ShouldEqual, uint32(0))
	_, _, _, a = img.At(0, 0).RGBA()
	test.That(t, a, test.ShouldEqual, uint32(0xffff))
	test.That(t, img.At(0, 0), test.ShouldNotResemble, img.At(0, 1))
}
