// Package kinect2 manages the lifecycle of a Kinect v2 style depth sensor and turns its frames
// into images and organized point clouds.
package kinect2

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/k2g/logging"
	"go.viam.com/k2g/rimage/transform"
	"go.viam.com/k2g/serialize"
)

// State is the lifecycle state of a session.
type State int32

// Session states. A session moves Closed -> Opened -> Streaming -> Closed.
const (
	StateClosed State = iota
	StateOpened
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// SessionStats counts the frame sets a session went through.
type SessionStats struct {
	Acquired uint64
	Released uint64
	Timeouts uint64
	Clouds   uint64
}

// Session owns one device. Frame operations are serialized: the device delivers one frame set
// at a time and every set is released before the next is requested.
type Session struct {
	id     uuid.UUID
	conf   Config
	driver Driver
	logger logging.Logger

	state atomic.Int32

	mu           sync.Mutex
	device       Device
	registration Registration
	reprojector  *transform.DepthReprojector
	serial       string
	sink         serialize.Sink

	acquired atomic.Uint64
	released atomic.Uint64
	timeouts atomic.Uint64
	clouds   atomic.Uint64
}

// NewSession returns a closed session for the devices of driver.
func NewSession(driver Driver, conf Config, logger logging.Logger) (*Session, error) {
	if driver == nil {
		return nil, errors.New("kinect2 session needs a driver")
	}
	if err := conf.Validate("kinect2"); err != nil {
		return nil, err
	}
	id := uuid.New()
	return &Session{
		id:     id,
		conf:   conf,
		driver: driver,
		logger: logger.Sublogger("session"),
	}, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id.String()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Config returns the validated config of the session.
func (s *Session) Config() Config {
	return s.conf
}

// Serial returns the serial of the opened device.
func (s *Session) Serial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serial
}

// Stats returns the frame counters of the session.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Acquired: s.acquired.Load(),
		Released: s.released.Load(),
		Timeouts: s.timeouts.Load(),
		Clouds:   s.clouds.Load(),
	}
}

// Open finds and opens the configured device and prepares registration and reprojection.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state := s.State(); state != StateClosed {
		return newInvalidTransitionError("open", state)
	}

	serials, err := s.driver.EnumerateDevices(ctx)
	if err != nil {
		return errors.Wrap(err, "error enumerating devices")
	}
	if len(serials) == 0 {
		s.logger.Error("no kinect2 connected!")
		return ErrNoDevice
	}

	pipeline := s.choosePipeline()
	s.logger.Infow("creating packet pipeline", "pipeline", pipeline, "serial", s.conf.Serial)
	device, err := s.driver.OpenDevice(ctx, s.conf.Serial, pipeline)
	if err != nil {
		return errors.Wrapf(err, "error opening device %q", s.conf.Serial)
	}

	serial := s.conf.Serial
	if serial == "" {
		if serial, err = s.driver.DefaultSerial(ctx); err != nil {
			return multierr.Combine(errors.Wrap(err, "error reading default serial"), device.Close(ctx))
		}
	}

	ir, color := device.IrCameraParams(), device.ColorCameraParams()
	registration, err := s.driver.NewRegistration(ir, color)
	if err != nil {
		return multierr.Combine(errors.Wrap(err, "error creating registration"), device.Close(ctx))
	}
	reprojector, err := transform.NewDepthReprojector(ir.Intrinsics(), s.conf.Mirror)
	if err != nil {
		return multierr.Combine(errors.Wrap(err, "invalid depth camera parameters"), device.Close(ctx))
	}

	s.device = device
	s.serial = serial
	s.registration = registration
	s.reprojector = reprojector
	s.state.Store(int32(StateOpened))
	s.logger.Infow("opened device", "session", s.ID(), "serial", serial, "pipeline", device.Pipeline())
	return nil
}

// choosePipeline falls back to the CPU pipeline when the driver cannot build the configured one.
func (s *Session) choosePipeline() Pipeline {
	for _, p := range s.driver.SupportedPipelines() {
		if p == s.conf.Pipeline {
			return p
		}
	}
	s.logger.Warnw("packet pipeline not supported by driver, falling back to cpu",
		"pipeline", s.conf.Pipeline, "error", ErrUnsupportedPipeline)
	return PipelineCPU
}

// Start begins streaming frames from an opened device.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state := s.State(); state != StateOpened {
		return newInvalidTransitionError("start", state)
	}
	if err := s.device.Start(ctx); err != nil {
		return errors.Wrap(err, "error starting device")
	}
	s.state.Store(int32(StateStreaming))
	return nil
}

// Connect opens the device and starts streaming.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.Open(ctx); err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return multierr.Combine(err, s.Close(ctx))
	}
	return nil
}

// Stop stops a streaming device and closes the session.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state := s.State(); state != StateStreaming {
		return newInvalidTransitionError("stop", state)
	}
	return s.closeLocked(ctx)
}

// Close stops and closes the device, if any, and the serialization sink. It is valid in every
// state and safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(ctx)
}

// closeLocked requires s.mu to be held.
func (s *Session) closeLocked(ctx context.Context) error {
	var err error
	if s.sink != nil {
		err = s.sink.Close()
		s.sink = nil
	}
	state := s.State()
	if state == StateClosed {
		return err
	}
	if state == StateStreaming {
		err = multierr.Combine(err, s.device.Stop(ctx))
	}
	err = multierr.Combine(err, s.device.Close(ctx))
	s.device = nil
	s.registration = nil
	s.state.Store(int32(StateClosed))
	stats := s.Stats()
	s.logger.Infow("closed device", "session", s.ID(), "serial", s.serial,
		"acquired", stats.Acquired, "released", stats.Released, "timeouts", stats.Timeouts)
	return err
}

// EnableSerialization appends every cloud, and every color frame returned by Get, to sink. The
// session owns the sink from then on and closes it on Close. A nil sink disables serialization.
func (s *Session) EnableSerialization(sink serialize.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.sink != nil && s.sink != sink {
		err = s.sink.Close()
	}
	s.sink = sink
	return err
}

// IrParameters returns the depth camera parameters of the opened device.
func (s *Session) IrParameters() (IrCameraParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return IrCameraParams{}, newInvalidTransitionError("read parameters of", s.State())
	}
	return s.device.IrCameraParams(), nil
}

// ColorParameters returns the color camera parameters of the opened device.
func (s *Session) ColorParameters() (ColorCameraParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return ColorCameraParams{}, newInvalidTransitionError("read parameters of", s.State())
	}
	return s.device.ColorCameraParams(), nil
}

// DepthIntrinsics returns the pinhole model clouds are reprojected with.
func (s *Session) DepthIntrinsics() (*transform.PinholeCameraIntrinsics, error) {
	ir, err := s.IrParameters()
	if err != nil {
		return nil, err
	}
	return ir.Intrinsics(), nil
}

// LogParameters logs the camera parameters of the opened device.
func (s *Session) LogParameters() error {
	color, err := s.ColorParameters()
	if err != nil {
		return err
	}
	ir, err := s.IrParameters()
	if err != nil {
		return err
	}
	s.logger.Infow("rgb parameters", "fx", color.Fx, "fy", color.Fy, "cx", color.Cx, "cy", color.Cy)
	s.logger.Infow("ir parameters", "fx", ir.Fx, "fy", ir.Fy, "cx", ir.Cx, "cy", ir.Cy,
		"k1", ir.K1, "k2", ir.K2, "k3", ir.K3, "p1", ir.P1, "p2", ir.P2)
	return nil
}

// StoreParameters writes the calibration of the opened device to calib_<serial>.yml in dir and
// returns the path written.
func (s *Session) StoreParameters(dir string) (string, error) {
	color, err := s.ColorParameters()
	if err != nil {
		return "", err
	}
	ir, err := s.IrParameters()
	if err != nil {
		return "", err
	}
	serial := s.Serial()
	calib, err := transform.NewCalibration(serial, color.Intrinsics(), ir.Intrinsics(), ir.Distortion())
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, transform.CalibrationFileName(serial))
	s.logger.Infow("storing calibration", "serial", serial, "path", path)
	if err := transform.WriteCalibrationFile(path, calib); err != nil {
		return "", err
	}
	return path, nil
}
