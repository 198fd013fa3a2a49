package rimage

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/ppm"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ToPrettyPicture renders the depth frame as a false color image. Samples are clamped to
// [hardMin, hardMax] millimeters and mapped onto a hue ramp; pixels without a return stay black.
func (df *DepthFrame) ToPrettyPicture(hardMin, hardMax float32) image.Image {
	minDepth, maxDepth, ok := df.ValidRange()
	img := image.NewNRGBA(df.Bounds())
	if !ok {
		return img
	}
	if minDepth < hardMin {
		minDepth = hardMin
	}
	if maxDepth > hardMax {
		maxDepth = hardMax
	}
	span := float64(maxDepth) - float64(minDepth)

	for y := 0; y < df.height; y++ {
		for x := 0; x < df.width; x++ {
			z := df.At(x, y)
			if !HasReturn(z) {
				continue
			}
			if z < minDepth {
				z = minDepth
			}
			if z > maxDepth {
				z = maxDepth
			}
			ratio := 0.0
			if span > 0 {
				ratio = (float64(z) - float64(minDepth)) / span
			}
			hue := 30 + (200.0 * ratio)
			r, g, b := colorful.Hsv(hue, 1.0, 1.0).Clamped().RGB255()
			img.SetNRGBA(x, y, color.NRGBA{r, g, b, 255})
		}
	}
	return img
}

// toRGBA returns img as an *image.RGBA, the only layout the ppm encoder accepts.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}

// WriteImageToFile writes an image to disk, choosing the encoding from the extension.
// ".ppm" and ".png" are supported.
func WriteImageToFile(path string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ppm":
		return ppm.Encode(f, toRGBA(img))
	case ".png":
		return png.Encode(f, img)
	default:
		return errors.Errorf("do not know how to write %q", path)
	}
}
