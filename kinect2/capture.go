package kinect2

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/k2g/pointcloud"
	"go.viam.com/k2g/rimage"
)

// withFrames waits for the next frame set, hands it to fn and releases it, exactly once, when fn
// returns. Device timeouts are retried until ctx is done. s.mu must be held.
func (s *Session) withFrames(ctx context.Context, fn func(frames *Frames) error) error {
	if state := s.State(); state != StateStreaming {
		return NewNotStreamingError(state)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frames, err := s.device.WaitForNewFrame(ctx, s.conf.FrameTimeout)
		if errors.Is(err, ErrFrameTimeout) {
			s.timeouts.Inc()
			s.logger.Debugw("timed out waiting for frames, retrying", "timeout", s.conf.FrameTimeout)
			continue
		}
		if err != nil {
			return err
		}
		s.acquired.Inc()
		defer func() {
			s.device.Release(frames)
			s.released.Inc()
		}()
		return fn(frames)
	}
}

func (s *Session) depthCopy(df *rimage.DepthFrame) *rimage.DepthFrame {
	if df == nil {
		return nil
	}
	if s.conf.Mirror {
		return df.MirrorHorizontally()
	}
	return df.Clone()
}

func (s *Session) colorCopy(cf *rimage.ColorFrame) *rimage.ColorFrame {
	if cf == nil {
		return nil
	}
	if s.conf.Mirror {
		return cf.MirrorHorizontally()
	}
	return cf.Clone()
}

// GetDepth returns the next raw depth frame.
func (s *Session) GetDepth(ctx context.Context) (*rimage.DepthFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out *rimage.DepthFrame
	err := s.withFrames(ctx, func(frames *Frames) error {
		out = s.depthCopy(frames.Depth)
		return nil
	})
	return out, err
}

// GetIR returns the next infrared amplitude frame.
func (s *Session) GetIR(ctx context.Context) (*rimage.DepthFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out *rimage.DepthFrame
	err := s.withFrames(ctx, func(frames *Frames) error {
		out = s.depthCopy(frames.Ir)
		return nil
	})
	return out, err
}

// GetColor returns the next full resolution color frame, unregistered. Use Get for color
// aligned with depth.
func (s *Session) GetColor(ctx context.Context) (*rimage.ColorFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out *rimage.ColorFrame
	err := s.withFrames(ctx, func(frames *Frames) error {
		out = s.colorCopy(frames.Color)
		return nil
	})
	return out, err
}

// register runs registration over a frame set.
func (s *Session) register(frames *Frames, removePoints bool) (*Registered, error) {
	if frames.Color == nil || frames.Depth == nil {
		return nil, errors.New("frame set is missing color or depth")
	}
	reg, err := s.registration.Apply(frames.Color, frames.Depth, removePoints)
	if err != nil {
		return nil, errors.Wrap(err, "error registering frames")
	}
	return reg, nil
}

// alignedFrames returns the undistorted depth frame and a color frame, registered to depth unless
// fullHD is set.
func (s *Session) alignedFrames(frames *Frames, reg *Registered, fullHD bool) (*rimage.ColorFrame, *rimage.DepthFrame, error) {
	color := reg.Registered
	if fullHD {
		color = frames.Color
	}
	colorOut, depthOut := s.colorCopy(color), s.depthCopy(reg.Undistorted)
	if s.sink != nil {
		if err := s.sink.WriteColorFrame(colorOut); err != nil {
			return nil, nil, errors.Wrap(err, "error serializing color frame")
		}
	}
	return colorOut, depthOut, nil
}

// Get returns the next undistorted depth frame and its color frame. The color frame is registered
// to the depth grid unless fullHD is set, in which case the full resolution frame is returned.
func (s *Session) Get(ctx context.Context, fullHD, removePoints bool) (*rimage.ColorFrame, *rimage.DepthFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var color *rimage.ColorFrame
	var depth *rimage.DepthFrame
	err := s.withFrames(ctx, func(frames *Frames) error {
		reg, err := s.register(frames, removePoints)
		if err != nil {
			return err
		}
		color, depth, err = s.alignedFrames(frames, reg, fullHD)
		return err
	})
	return color, depth, err
}

// GetWithIR is Get that also returns the infrared frame of the same set.
func (s *Session) GetWithIR(
	ctx context.Context,
	fullHD, removePoints bool,
) (*rimage.ColorFrame, *rimage.DepthFrame, *rimage.DepthFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var color *rimage.ColorFrame
	var depth, ir *rimage.DepthFrame
	err := s.withFrames(ctx, func(frames *Frames) error {
		reg, err := s.register(frames, removePoints)
		if err != nil {
			return err
		}
		color, depth, err = s.alignedFrames(frames, reg, fullHD)
		ir = s.depthCopy(frames.Ir)
		return err
	})
	return color, depth, ir, err
}

// GetCloud returns the cloud of the next frame set.
func (s *Session) GetCloud(ctx context.Context) (*pointcloud.Organized, error) {
	return s.UpdateCloud(ctx, nil)
}

// UpdateCloud reprojects the next frame set into cloud, reusing its storage, and returns it. A
// nil cloud is allocated.
func (s *Session) UpdateCloud(ctx context.Context, cloud *pointcloud.Organized) (*pointcloud.Organized, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out *pointcloud.Organized
	err := s.withFrames(ctx, func(frames *Frames) error {
		reg, err := s.register(frames, s.conf.RemovePoints)
		if err != nil {
			return err
		}
		out, err = s.cloudFrom(reg, cloud)
		return err
	})
	return out, err
}

// GetWithCloud returns the color frame, depth frame and cloud of one frame set.
func (s *Session) GetWithCloud(
	ctx context.Context,
	cloud *pointcloud.Organized,
	fullHD, removePoints bool,
) (*rimage.ColorFrame, *rimage.DepthFrame, *pointcloud.Organized, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var color *rimage.ColorFrame
	var depth *rimage.DepthFrame
	var out *pointcloud.Organized
	err := s.withFrames(ctx, func(frames *Frames) error {
		reg, err := s.register(frames, removePoints)
		if err != nil {
			return err
		}
		if color, depth, err = s.alignedFrames(frames, reg, fullHD); err != nil {
			return err
		}
		out, err = s.cloudFrom(reg, cloud)
		return err
	})
	return color, depth, out, err
}

func (s *Session) cloudFrom(reg *Registered, cloud *pointcloud.Organized) (*pointcloud.Organized, error) {
	out, err := s.reprojector.DepthToCloud(reg.Undistorted, reg.Registered, cloud)
	if err != nil {
		return nil, err
	}
	s.clouds.Inc()
	if s.sink != nil {
		if err := s.sink.WriteCloud(out); err != nil {
			return nil, errors.Wrap(err, "error serializing cloud")
		}
	}
	return out, nil
}
