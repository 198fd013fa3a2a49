// Package main is the k2g command: it opens a depth sensor and writes its parameters, frames and
// point clouds to disk.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"go.viam.com/k2g/kinect2"
	// registers the fake driver.
	_ "go.viam.com/k2g/kinect2/fake"
	"go.viam.com/k2g/logging"
)

const (
	flagDriver   = "driver"
	flagSerial   = "serial"
	flagPipeline = "pipeline"
	flagMirror   = "mirror"
	flagConfig   = "config"
	flagDebug    = "debug"
	flagLogLevel = "log-level"
	flagLogFile  = "log-file"
	flagTimeout  = "frame-timeout"

	flagOut          = "out"
	flagFrames       = "frames"
	flagFormat       = "format"
	flagStream       = "stream"
	flagRawDepth     = "raw-depth"
	flagFullHD       = "full-hd"
	flagRemovePoints = "remove-points"
	flagHistogram    = "histogram"
)

func main() {
	logger := logging.NewLogger("k2g")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(logger).RunContext(ctx, os.Args); err != nil {
		logger.Error(err)
		//nolint:errcheck
		logger.Sync()
		stop()
		os.Exit(1)
	}
}

func newApp(logger logging.Logger) *cli.App {
	var fileAppender *logging.FileAppender
	return &cli.App{
		Name:  "k2g",
		Usage: "capture frames and point clouds from a kinect2 depth sensor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagDriver,
				Value: "fake",
				Usage: "device driver to use",
			},
			&cli.StringFlag{
				Name:  flagSerial,
				Usage: "serial of the device to open, the default device when empty",
			},
			&cli.StringFlag{
				Name:  flagPipeline,
				Value: "cpu",
				Usage: "packet pipeline: cpu, opengl, opencl or cuda",
			},
			&cli.BoolFlag{
				Name:  flagMirror,
				Usage: "flip every frame horizontally",
			},
			&cli.DurationFlag{
				Name:  flagTimeout,
				Usage: "how long to wait for one frame set before retrying",
			},
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load session configuration from JSON `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "minimum log level: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to a size rotated `FILE`",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := logging.LevelFromString(c.String(flagLogLevel))
			if err != nil {
				return err
			}
			if c.Bool(flagDebug) {
				level = logging.DEBUG
			}
			logger.SetLevel(level)
			if path := c.String(flagLogFile); path != "" {
				fileAppender = logging.NewFileAppender(path, 64, 3)
				logger.AddAppender(fileAppender)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if fileAppender == nil {
				return nil
			}
			return fileAppender.Close()
		},
		Commands: []*cli.Command{
			{
				Name:  "drivers",
				Usage: "list the available device drivers",
				Action: func(c *cli.Context) error {
					return listDriversAction(c, logger)
				},
			},
			{
				Name:  "params",
				Usage: "log the camera parameters and store them as calib_<serial>.yml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagOut,
						Value: ".",
						Usage: "directory to write the calibration file to",
					},
				},
				Action: func(c *cli.Context) error {
					return paramsAction(c, logger)
				},
			},
			{
				Name:  "capture",
				Usage: "capture point clouds",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagOut,
						Value: ".",
						Usage: "directory to write clouds to",
					},
					&cli.IntFlag{
						Name:  flagFrames,
						Value: 1,
						Usage: "number of clouds to capture, 0 captures until interrupted",
					},
					&cli.StringFlag{
						Name:  flagFormat,
						Value: "binary",
						Usage: "cloud file format: ascii, binary or compressed pcd, or las",
					},
					&cli.BoolFlag{
						Name:  flagStream,
						Usage: "also append every cloud to a record stream",
					},
					&cli.BoolFlag{
						Name:  flagRawDepth,
						Usage: "also write the undistorted depth frames",
					},
					&cli.BoolFlag{
						Name:  flagRemovePoints,
						Value: true,
						Usage: "clear color occluded from the depth camera",
					},
					&cli.BoolFlag{
						Name:  flagHistogram,
						Usage: "print a depth histogram of every cloud",
					},
				},
				Action: func(c *cli.Context) error {
					return captureAction(c, logger)
				},
			},
			{
				Name:  "preview",
				Usage: "write one color frame as PPM and its depth frame as a false color PNG",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagOut,
						Value: ".",
						Usage: "directory to write images to",
					},
					&cli.BoolFlag{
						Name:  flagFullHD,
						Usage: "write the full resolution color frame instead of the registered one",
					},
					&cli.BoolFlag{
						Name:  flagRemovePoints,
						Usage: "clear color occluded from the depth camera",
					},
				},
				Action: func(c *cli.Context) error {
					return previewAction(c, logger)
				},
			},
		},
	}
}

// sessionConfig merges the config file with the global flags. Flags given explicitly win.
func sessionConfig(c *cli.Context) (*kinect2.Config, error) {
	conf := &kinect2.Config{}
	if path := c.String(flagConfig); path != "" {
		var err error
		if conf, err = kinect2.ReadConfigFile(path); err != nil {
			return nil, err
		}
	}
	if c.IsSet(flagDriver) || conf.Driver == "" {
		conf.Driver = c.String(flagDriver)
	}
	if c.IsSet(flagSerial) {
		conf.Serial = c.String(flagSerial)
	}
	if c.IsSet(flagPipeline) || c.String(flagConfig) == "" {
		pipeline, err := kinect2.PipelineFromString(c.String(flagPipeline))
		if err != nil {
			return nil, err
		}
		conf.Pipeline = pipeline
	}
	if c.IsSet(flagMirror) {
		conf.Mirror = c.Bool(flagMirror)
	}
	if c.IsSet(flagTimeout) {
		conf.FrameTimeout = c.Duration(flagTimeout)
	}
	if err := conf.Validate("k2g"); err != nil {
		return nil, err
	}
	return conf, nil
}

// openSession connects to the configured device. The caller must close the session.
func openSession(c *cli.Context, logger logging.Logger) (*kinect2.Session, error) {
	conf, err := sessionConfig(c)
	if err != nil {
		return nil, err
	}
	driver, err := kinect2.NewDriver(conf.Driver, logger)
	if err != nil {
		return nil, err
	}
	session, err := kinect2.NewSession(driver, *conf, logger)
	if err != nil {
		return nil, err
	}
	if err := session.Connect(c.Context); err != nil {
		return nil, err
	}
	return session, nil
}
