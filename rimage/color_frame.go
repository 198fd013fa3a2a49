package rimage

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ColorBytesPerPixel is the stride of the sensor's color buffers (B, G, R, unused).
const ColorBytesPerPixel = 4

// ColorFrame is a color image either at full sensor resolution or registered onto the depth grid.
// Pixels are stored as opaque NRGBA.
type ColorFrame struct {
	img *image.NRGBA
}

// NewColorFrame wraps an NRGBA image. The image is not copied.
func NewColorFrame(img *image.NRGBA) *ColorFrame {
	return &ColorFrame{img: img}
}

// NewColorFrameFromImage converts any image into a color frame.
func NewColorFrameFromImage(img image.Image) *ColorFrame {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return NewColorFrame(nrgba)
	}
	return NewColorFrame(imaging.Clone(img))
}

// NewColorFrameFromBGRX decodes a row-major buffer with 4 bytes per pixel in B, G, R, X order.
// The fourth byte is ignored and every pixel is fully opaque.
func NewColorFrameFromBGRX(width, height int, buf []byte) (*ColorFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid color frame size (%d, %d)", width, height)
	}
	if len(buf) != width*height*ColorBytesPerPixel {
		return nil, errors.Errorf("color buffer has %d bytes, expected %d for %dx%d",
			len(buf), width*height*ColorBytesPerPixel, width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		src := buf[i*ColorBytesPerPixel:]
		dst := img.Pix[i*4:]
		dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], 255
	}
	return NewColorFrame(img), nil
}

// Width returns the horizontal size of the frame.
func (cf *ColorFrame) Width() int {
	return cf.img.Rect.Dx()
}

// Height returns the vertical size of the frame.
func (cf *ColorFrame) Height() int {
	return cf.img.Rect.Dy()
}

// Bounds returns the rectangle covering the frame.
func (cf *ColorFrame) Bounds() image.Rectangle {
	return cf.img.Rect
}

// At returns the color at (x, y).
func (cf *ColorFrame) At(x, y int) color.NRGBA {
	return cf.img.NRGBAAt(x, y)
}

// Image exposes the frame as an image.
func (cf *ColorFrame) Image() *image.NRGBA {
	return cf.img
}

// Clone returns a deep copy.
func (cf *ColorFrame) Clone() *ColorFrame {
	return NewColorFrame(imaging.Clone(cf.img))
}

// MirrorHorizontally returns a new frame flipped around the vertical axis.
func (cf *ColorFrame) MirrorHorizontally() *ColorFrame {
	return NewColorFrame(imaging.FlipH(cf.img))
}

// Resize resamples the frame with nearest neighbor sampling.
func (cf *ColorFrame) Resize(width, height int) *ColorFrame {
	return NewColorFrame(imaging.Resize(cf.img, width, height, imaging.NearestNeighbor))
}

// BGRX encodes the frame back into the sensor's byte order.
func (cf *ColorFrame) BGRX() []byte {
	w, h := cf.Width(), cf.Height()
	buf := make([]byte, w*h*ColorBytesPerPixel)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := cf.img.NRGBAAt(x+cf.img.Rect.Min.X, y+cf.img.Rect.Min.Y)
			dst := buf[(y*w+x)*ColorBytesPerPixel:]
			dst[0], dst[1], dst[2], dst[3] = c.B, c.G, c.R, c.A
		}
	}
	return buf
}
