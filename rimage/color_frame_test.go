package rimage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/lmittmann/ppm"
	"go.viam.com/test"
)

func TestColorFrameFromBGRX(t *testing.T) {
	buf := []byte{
		1, 2, 3, 0, 4, 5, 6, 0,
		7, 8, 9, 0, 10, 11, 12, 0,
	}
	cf, err := NewColorFrameFromBGRX(2, 2, buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cf.Width(), test.ShouldEqual, 2)
	test.That(t, cf.Height(), test.ShouldEqual, 2)
	test.That(t, cf.At(0, 0), test.ShouldResemble, color.NRGBA{3, 2, 1, 255})
	test.That(t, cf.At(1, 1), test.ShouldResemble, color.NRGBA{12, 11, 10, 255})

	back := cf.BGRX()
	test.That(t, back[0:3], test.ShouldResemble, []byte{1, 2, 3})
	test.That(t, back[3], test.ShouldEqual, byte(255))

	_, err = NewColorFrameFromBGRX(2, 2, buf[:12])
	test.That(t, err, test.ShouldNotBeNil)
}

func TestColorFrameMirror(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(2, 0, color.NRGBA{0, 0, 255, 255})
	cf := NewColorFrame(img)

	mirrored := cf.MirrorHorizontally()
	test.That(t, mirrored.At(0, 0), test.ShouldResemble, color.NRGBA{0, 0, 255, 255})
	test.That(t, mirrored.At(2, 0), test.ShouldResemble, color.NRGBA{255, 0, 0, 255})
	test.That(t, cf.At(0, 0), test.ShouldResemble, color.NRGBA{255, 0, 0, 255})
}

func TestColorFrameResizeAndClone(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
		if i%4 == 3 {
			img.Pix[i] = 255
		}
	}
	cf := NewColorFrameFromImage(img)
	small := cf.Resize(2, 2)
	test.That(t, small.Bounds(), test.ShouldResemble, image.Rect(0, 0, 2, 2))
	test.That(t, small.At(1, 1), test.ShouldResemble, color.NRGBA{200, 200, 200, 255})

	clone := cf.Clone()
	clone.Image().Pix[0] = 1
	test.That(t, cf.Image().Pix[0], test.ShouldEqual, uint8(200))
}

func TestWriteImageToFile(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(1, 0, color.NRGBA{10, 20, 30, 255})
	ppmPath := filepath.Join(dir, "c.ppm")
	test.That(t, WriteImageToFile(ppmPath, img), test.ShouldBeNil)
	test.That(t, WriteImageToFile(filepath.Join(dir, "c.png"), img), test.ShouldBeNil)

	//nolint:gosec
	f, err := os.Open(ppmPath)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	decoded, err := ppm.Decode(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Bounds(), test.ShouldResemble, img.Bounds())
	test.That(t, color.RGBAModel.Convert(decoded.At(1, 0)), test.ShouldResemble, color.RGBA{10, 20, 30, 255})

	// already RGBA images are written as they are
	test.That(t, WriteImageToFile(ppmPath, image.NewRGBA(image.Rect(0, 0, 3, 1))), test.ShouldBeNil)
	err = WriteImageToFile(filepath.Join(dir, "c.bmp"), img)
	test.That(t, err, test.ShouldNotBeNil)
}
