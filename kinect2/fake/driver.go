// Package fake implements a kinect2 driver producing deterministic synthetic frames. It is used
// by tests and by the CLI when no hardware driver is available.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/k2g/kinect2"
	"go.viam.com/k2g/logging"
)

// DriverName is the name the fake driver is registered under.
const DriverName = "fake"

// DefaultSerial is the serial of the only device of a default fake driver.
const DefaultSerial = "fake-000000000001"

// DefaultFrameInterval is the frame period of the sensor, 30 frames per second.
const DefaultFrameInterval = time.Second / 30

func init() {
	kinect2.RegisterDriver(DriverName, func(logger logging.Logger) (kinect2.Driver, error) {
		return NewDriver(Options{}, logger), nil
	})
}

// Options configure a fake driver.
type Options struct {
	// Serials of the connected devices. Nil means one device with DefaultSerial; an empty slice
	// means no device is connected.
	Serials []string
	// Pipelines the driver supports. Defaults to cpu and opengl.
	Pipelines []kinect2.Pipeline
	// Clock paces the frames. Defaults to the wall clock.
	Clock clock.Clock
	// FrameInterval is the time between two frame sets. Zero uses DefaultFrameInterval; a
	// negative interval disables the producer and frames are only delivered by Device.Emit.
	FrameInterval time.Duration
	// Ir and Color override the factory parameters.
	Ir    *kinect2.IrCameraParams
	Color *kinect2.ColorCameraParams
}

// DefaultIrParams are typical factory parameters of a Kinect v2 depth camera.
var DefaultIrParams = kinect2.IrCameraParams{
	Fx: 365.456,
	Fy: 365.456,
	Cx: 254.878,
	Cy: 205.395,
	K1: 0.0905474,
	K2: -0.26819,
	K3: 0.0950862,
}

// DefaultColorParams are typical factory parameters of a Kinect v2 color camera.
var DefaultColorParams = kinect2.ColorCameraParams{
	Fx:     1081.37,
	Fy:     1081.37,
	Cx:     959.5,
	Cy:     539.5,
	ShiftD: 863,
	ShiftM: 52,
}

// Driver is a fake kinect2 driver.
type Driver struct {
	opts   Options
	logger logging.Logger

	mu     sync.Mutex
	opened map[string]*Device
}

// NewDriver returns a fake driver.
func NewDriver(opts Options, logger logging.Logger) *Driver {
	if opts.Serials == nil {
		opts.Serials = []string{DefaultSerial}
	}
	if len(opts.Pipelines) == 0 {
		opts.Pipelines = []kinect2.Pipeline{kinect2.PipelineCPU, kinect2.PipelineOpenGL}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.FrameInterval == 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	if opts.Ir == nil {
		ir := DefaultIrParams
		opts.Ir = &ir
	}
	if opts.Color == nil {
		color := DefaultColorParams
		opts.Color = &color
	}
	return &Driver{opts: opts, logger: logger, opened: map[string]*Device{}}
}

// EnumerateDevices returns the configured serials.
func (d *Driver) EnumerateDevices(ctx context.Context) ([]string, error) {
	return append([]string(nil), d.opts.Serials...), nil
}

// DefaultSerial returns the first serial.
func (d *Driver) DefaultSerial(ctx context.Context) (string, error) {
	if len(d.opts.Serials) == 0 {
		return "", kinect2.ErrNoDevice
	}
	return d.opts.Serials[0], nil
}

// SupportedPipelines returns the configured pipelines.
func (d *Driver) SupportedPipelines() []kinect2.Pipeline {
	return d.opts.Pipelines
}

// OpenDevice opens a device. A device can only be open once at a time.
func (d *Driver) OpenDevice(ctx context.Context, serial string, pipeline kinect2.Pipeline) (kinect2.Device, error) {
	if serial == "" {
		var err error
		if serial, err = d.DefaultSerial(ctx); err != nil {
			return nil, err
		}
	}
	if !lo.Contains(d.opts.Serials, serial) {
		return nil, errors.Wrapf(kinect2.ErrNoDevice, "no device with serial %q", serial)
	}
	if !lo.Contains(d.opts.Pipelines, pipeline) {
		return nil, errors.Wrapf(kinect2.ErrUnsupportedPipeline, "%s", pipeline)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.opened[serial]; ok {
		return nil, errors.Errorf("device %q is already open", serial)
	}
	dev := newDevice(d, serial, pipeline)
	d.opened[serial] = dev
	d.logger.Debugw("opened fake device", "serial", serial, "pipeline", pipeline)
	return dev, nil
}

// Device returns the open device with the given serial, if any.
func (d *Driver) Device(serial string) (*Device, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.opened[serial]
	return dev, ok
}

func (d *Driver) forget(serial string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.opened, serial)
}

// NewRegistration returns a registration that resamples color onto the depth grid.
func (d *Driver) NewRegistration(ir kinect2.IrCameraParams, color kinect2.ColorCameraParams) (kinect2.Registration, error) {
	if err := ir.Intrinsics().CheckValid(); err != nil {
		return nil, errors.Wrap(err, "ir parameters")
	}
	if err := color.Intrinsics().CheckValid(); err != nil {
		return nil, errors.Wrap(err, "color parameters")
	}
	return &Registration{ir: ir, color: color}, nil
}
