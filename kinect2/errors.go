package kinect2

import "github.com/pkg/errors"

var (
	// ErrNoDevice is returned when no device is connected, or none matches the requested serial.
	ErrNoDevice = errors.New("no kinect2 connected")
	// ErrInvalidTransition is returned when a session operation is not allowed in its current state.
	ErrInvalidTransition = errors.New("invalid session state transition")
	// ErrNotStreaming is returned by frame operations on a session that is not streaming.
	ErrNotStreaming = errors.New("session is not streaming")
	// ErrFrameTimeout is returned by a device when no frame set arrived in time.
	ErrFrameTimeout = errors.New("timed out waiting for new frame")
	// ErrUnsupportedPipeline is returned when a driver cannot create the requested packet pipeline.
	ErrUnsupportedPipeline = errors.New("unsupported packet pipeline")
)

// NewUnknownDriverError is used when no driver is registered under a name.
func NewUnknownDriverError(name string) error {
	return errors.Errorf("unknown kinect2 driver %q", name)
}

// NewNotStreamingError wraps ErrNotStreaming with the state the session is in.
func NewNotStreamingError(state State) error {
	return errors.Wrapf(ErrNotStreaming, "session is %s", state)
}

func newInvalidTransitionError(op string, state State) error {
	return errors.Wrapf(ErrInvalidTransition, "cannot %s a %s session", op, state)
}
