package fake

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/k2g/kinect2"
	"go.viam.com/k2g/utils"
)

// Device is an open fake sensor. Frame sets are produced on a ticker of the driver clock, or on
// demand with Emit. Like the hardware listener it keeps only the newest undelivered set.
type Device struct {
	driver   *Driver
	serial   string
	pipeline kinect2.Pipeline

	frames chan *kinect2.Frames

	mu      sync.Mutex
	workers utils.StoppableWorkers
	started bool
	closed  bool

	sequence atomic.Uint64
	acquired atomic.Int64
	released atomic.Int64
}

func newDevice(driver *Driver, serial string, pipeline kinect2.Pipeline) *Device {
	return &Device{
		driver:   driver,
		serial:   serial,
		pipeline: pipeline,
		frames:   make(chan *kinect2.Frames, 1),
	}
}

// Serial returns the serial of the device.
func (d *Device) Serial() string {
	return d.serial
}

// Pipeline returns the pipeline the device was opened with.
func (d *Device) Pipeline() kinect2.Pipeline {
	return d.pipeline
}

// IrCameraParams returns the depth camera parameters.
func (d *Device) IrCameraParams() kinect2.IrCameraParams {
	return *d.driver.opts.Ir
}

// ColorCameraParams returns the color camera parameters.
func (d *Device) ColorCameraParams() kinect2.ColorCameraParams {
	return *d.driver.opts.Color
}

// Start starts producing frames.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("device is closed")
	}
	if d.started {
		return errors.New("device is already started")
	}
	d.started = true
	if d.driver.opts.FrameInterval > 0 {
		d.workers = utils.NewStoppableWorkers(d.produce)
	}
	return nil
}

func (d *Device) produce(ctx context.Context) {
	ticker := d.driver.opts.Clock.Ticker(d.driver.opts.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Emit()
		}
	}
}

// Emit synthesizes the next frame set and delivers it, replacing an undelivered one.
func (d *Device) Emit() {
	seq := d.sequence.Inc() - 1
	frames := Synthesize(seq, d.driver.opts.Clock.Now())
	for {
		select {
		case d.frames <- frames:
			return
		default:
		}
		select {
		case <-d.frames:
			d.driver.logger.Debugw("dropping undelivered frame set", "serial", d.serial)
		default:
		}
	}
}

// WaitForNewFrame blocks until the next frame set, the timeout on the driver clock, or ctx.
func (d *Device) WaitForNewFrame(ctx context.Context, timeout time.Duration) (*kinect2.Frames, error) {
	timer := d.driver.opts.Clock.Timer(timeout)
	defer timer.Stop()
	select {
	case frames := <-d.frames:
		d.acquired.Inc()
		return frames, nil
	case <-timer.C:
		return nil, kinect2.ErrFrameTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a frame set to the device.
func (d *Device) Release(frames *kinect2.Frames) {
	if frames == nil {
		return
	}
	if d.released.Inc() > d.acquired.Load() {
		d.driver.logger.Warnw("released more frame sets than acquired", "serial", d.serial, "sequence", frames.Sequence)
	}
}

// Outstanding returns the number of acquired frame sets not released yet.
func (d *Device) Outstanding() int64 {
	return d.acquired.Load() - d.released.Load()
}

// Produced returns the number of frame sets synthesized so far.
func (d *Device) Produced() uint64 {
	return d.sequence.Load()
}

// Stop stops producing frames.
func (d *Device) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return errors.New("device is not started")
	}
	d.stopLocked()
	return nil
}

func (d *Device) stopLocked() {
	if d.workers != nil {
		d.workers.Stop()
		d.workers = nil
	}
	d.started = false
}

// Close stops the device and makes its serial available again.
func (d *Device) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.stopLocked()
	d.closed = true
	d.driver.forget(d.serial)
	return nil
}
