package fake

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/k2g/kinect2"
	"go.viam.com/k2g/rimage"
	"go.viam.com/k2g/rimage/transform"
)

// Registration aligns the synthetic frames. The fake cameras share an optical center and have no
// lens distortion, so undistortion is a copy and registration a resample.
type Registration struct {
	ir    kinect2.IrCameraParams
	color kinect2.ColorCameraParams
}

// Apply implements kinect2.Registration.
func (r *Registration) Apply(color *rimage.ColorFrame, depth *rimage.DepthFrame, removePoints bool) (*kinect2.Registered, error) {
	if depth.Width() != transform.DepthWidth || depth.Height() != transform.DepthHeight {
		return nil, errors.Errorf("depth frame must be %dx%d, got %dx%d",
			transform.DepthWidth, transform.DepthHeight, depth.Width(), depth.Height())
	}
	if color.Width() != transform.ColorWidth || color.Height() != transform.ColorHeight {
		return nil, errors.Errorf("color frame must be %dx%d, got %dx%d",
			transform.ColorWidth, transform.ColorHeight, color.Width(), color.Height())
	}

	undistorted := depth.Clone()
	registered := color.Resize(transform.DepthWidth, transform.DepthHeight)
	if removePoints {
		pix := registered.Image().Pix
		for i, d := range undistorted.Data() {
			if !rimage.HasReturn(d) {
				clear(pix[i*4 : i*4+4])
			}
		}
	}
	return &kinect2.Registered{
		Undistorted: undistorted,
		Registered:  registered,
		BigDepth:    bigDepth(undistorted),
	}, nil
}

// bigDepth maps depth onto the color grid with nearest sampling. The first and last rows have no
// data and hold +Inf.
func bigDepth(depth *rimage.DepthFrame) *rimage.DepthFrame {
	out := rimage.NewEmptyDepthFrame(transform.BigDepthWidth, transform.BigDepthHeight)
	inf := float32(math.Inf(1))
	for x := 0; x < transform.BigDepthWidth; x++ {
		out.Set(x, 0, inf)
		out.Set(x, transform.BigDepthHeight-1, inf)
	}
	for y := 1; y < transform.BigDepthHeight-1; y++ {
		src := depth.Row((y - 1) * depth.Height() / (transform.BigDepthHeight - 2))
		dst := out.Row(y)
		for x := range dst {
			dst[x] = src[x*depth.Width()/transform.BigDepthWidth]
		}
	}
	return out
}
