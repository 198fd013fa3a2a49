package kinect2

import (
	"context"
	"time"

	"go.viam.com/k2g/rimage"
	"go.viam.com/k2g/rimage/transform"
)

// IrCameraParams are the factory parameters of the depth (IR) camera.
type IrCameraParams struct {
	Fx float64 `json:"fx"`
	Fy float64 `json:"fy"`
	Cx float64 `json:"cx"`
	Cy float64 `json:"cy"`
	K1 float64 `json:"k1"`
	K2 float64 `json:"k2"`
	K3 float64 `json:"k3"`
	P1 float64 `json:"p1"`
	P2 float64 `json:"p2"`
}

// Intrinsics returns the pinhole model of the undistorted depth frame.
func (p IrCameraParams) Intrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  transform.DepthWidth,
		Height: transform.DepthHeight,
		Fx:     p.Fx,
		Fy:     p.Fy,
		Ppx:    p.Cx,
		Ppy:    p.Cy,
	}
}

// Distortion returns the lens distortion of the depth camera.
func (p IrCameraParams) Distortion() *transform.BrownConrady {
	return &transform.BrownConrady{
		RadialK1:     p.K1,
		RadialK2:     p.K2,
		RadialK3:     p.K3,
		TangentialP1: p.P1,
		TangentialP2: p.P2,
	}
}

// ColorCameraParams are the factory parameters of the color camera. ShiftD and ShiftM describe
// the depth to color disparity used by registration.
type ColorCameraParams struct {
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Cx     float64 `json:"cx"`
	Cy     float64 `json:"cy"`
	ShiftD float64 `json:"shift_d"`
	ShiftM float64 `json:"shift_m"`
}

// Intrinsics returns the pinhole model of the full resolution color frame.
func (p ColorCameraParams) Intrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  transform.ColorWidth,
		Height: transform.ColorHeight,
		Fx:     p.Fx,
		Fy:     p.Fy,
		Ppx:    p.Cx,
		Ppy:    p.Cy,
	}
}

// Frames is one synchronized set of frames delivered by a device. Color is full resolution
// (1920x1080), Ir and Depth are at depth resolution (512x424). The set belongs to the device
// until it is released.
type Frames struct {
	Sequence  uint64
	Timestamp time.Time
	Color     *rimage.ColorFrame
	Ir        *rimage.DepthFrame
	Depth     *rimage.DepthFrame
}

// Registered is the output of a registration pass.
type Registered struct {
	// Undistorted is the depth frame with lens distortion removed.
	Undistorted *rimage.DepthFrame
	// Registered is the color frame sampled on the depth grid.
	Registered *rimage.ColorFrame
	// BigDepth is the depth frame mapped onto the color grid, with one blank row above and below.
	BigDepth *rimage.DepthFrame
}

// Registration maps color onto the depth grid of one device.
type Registration interface {
	// Apply undistorts depth and registers color on it. When removePoints is set, color pixels
	// occluded from the depth camera are cleared.
	Apply(color *rimage.ColorFrame, depth *rimage.DepthFrame, removePoints bool) (*Registered, error)
}

// Device is an opened sensor.
type Device interface {
	Serial() string
	Pipeline() Pipeline
	IrCameraParams() IrCameraParams
	ColorCameraParams() ColorCameraParams
	Start(ctx context.Context) error
	// WaitForNewFrame blocks until a new frame set arrives. It returns ErrFrameTimeout when none
	// arrived within timeout, and the context error when ctx is done first.
	WaitForNewFrame(ctx context.Context, timeout time.Duration) (*Frames, error)
	// Release hands a frame set back to the device.
	Release(frames *Frames)
	Stop(ctx context.Context) error
	Close(ctx context.Context) error
}

// Driver discovers and opens devices.
type Driver interface {
	// EnumerateDevices returns the serials of every connected device.
	EnumerateDevices(ctx context.Context) ([]string, error)
	// DefaultSerial returns the serial of the device opened when no serial is requested.
	DefaultSerial(ctx context.Context) (string, error)
	// SupportedPipelines lists the pipelines the driver was built with.
	SupportedPipelines() []Pipeline
	// OpenDevice opens the device with the given serial, or the default one when serial is empty.
	OpenDevice(ctx context.Context, serial string, pipeline Pipeline) (Device, error)
	// NewRegistration builds the registration of a device from its camera parameters.
	NewRegistration(ir IrCameraParams, color ColorCameraParams) (Registration, error)
}
