package pointcloud

import (
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestLASRoundTrip(t *testing.T) {
	for _, withColor := range []bool{false, true} {
		cloud := makeTestCloud(withColor)
		fn := filepath.Join(t.TempDir(), "cloud.las")
		test.That(t, WriteToLASFile(cloud, fn), test.ShouldBeNil)

		got, err := ReadLASFile(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Width, test.ShouldEqual, cloud.ValidCount())
		test.That(t, got.Height, test.ShouldEqual, 1)
		test.That(t, got.IsDense, test.ShouldBeTrue)
		test.That(t, got.HasColor(), test.ShouldEqual, withColor)

		i := 0
		cloud.Iterate(func(x, y int, want Point) bool {
			if !want.Valid {
				return true
			}
			p := got.Points[i]
			i++
			test.That(t, p.Position.X, test.ShouldAlmostEqual, want.Position.X, 0.01)
			test.That(t, p.Position.Y, test.ShouldAlmostEqual, want.Position.Y, 0.01)
			test.That(t, p.Position.Z, test.ShouldAlmostEqual, want.Position.Z, 0.01)
			if withColor {
				test.That(t, p.Color, test.ShouldResemble, want.Color)
			}
			return true
		})
		test.That(t, i, test.ShouldEqual, got.Size())
	}
}

func TestReadLASFileMissing(t *testing.T) {
	_, err := ReadLASFile(filepath.Join(t.TempDir(), "missing.las"))
	test.That(t, err, test.ShouldNotBeNil)
}
