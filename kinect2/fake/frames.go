package fake

import (
	"image"
	"math"
	"time"

	"go.viam.com/k2g/kinect2"
	"go.viam.com/k2g/rimage"
	"go.viam.com/k2g/rimage/transform"
)

const (
	// BackgroundDepth is the depth, in millimeters, of the wall at the top of the frame.
	BackgroundDepth = 1500
	// BlindColumns are the left columns without depth return, like the real sensor border.
	BlindColumns = 4
	bumpRadius   = 80
)

// DepthAt is the synthetic depth sample of pixel (x, y) in frame seq. Zero means no return.
func DepthAt(x, y int, seq uint64) float32 {
	if x < BlindColumns {
		return 0
	}
	if (uint64(x*7+y*13)+seq)%101 == 0 {
		return 0
	}
	z := float64(BackgroundDepth + 2*y)
	cx := transform.DepthWidth/2 + int(seq%16)*2
	cy := transform.DepthHeight / 2
	dx, dy := float64(x-cx), float64(y-cy)
	if d2 := dx*dx + dy*dy; d2 < bumpRadius*bumpRadius {
		z -= 3 * math.Sqrt(bumpRadius*bumpRadius-d2)
	}
	return float32(z)
}

// Synthesize builds frame set seq.
func Synthesize(seq uint64, now time.Time) *kinect2.Frames {
	depth := rimage.NewEmptyDepthFrame(transform.DepthWidth, transform.DepthHeight)
	ir := rimage.NewEmptyDepthFrame(transform.DepthWidth, transform.DepthHeight)
	for y := 0; y < transform.DepthHeight; y++ {
		for x := 0; x < transform.DepthWidth; x++ {
			d := DepthAt(x, y, seq)
			depth.Set(x, y, d)
			if d > 0 {
				ir.Set(x, y, float32(65535*BackgroundDepth)/d/2)
			}
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, transform.ColorWidth, transform.ColorHeight))
	red := uint8(seq * 8)
	for y := 0; y < transform.ColorHeight; y++ {
		row := img.Pix[y*img.Stride:]
		green := uint8(y * 255 / (transform.ColorHeight - 1))
		for x := 0; x < transform.ColorWidth; x++ {
			px := row[x*4:]
			px[0], px[1], px[2], px[3] = red, green, uint8(x*255/(transform.ColorWidth-1)), 255
		}
	}

	return &kinect2.Frames{
		Sequence:  seq,
		Timestamp: now,
		Color:     rimage.NewColorFrame(img),
		Ir:        ir,
		Depth:     depth,
	}
}
