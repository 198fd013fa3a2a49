package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/k2g/kinect2"
	"go.viam.com/k2g/logging"
	"go.viam.com/k2g/pointcloud"
	"go.viam.com/k2g/rimage"
	"go.viam.com/k2g/serialize"
)

func listDriversAction(c *cli.Context, logger logging.Logger) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Driver", "Default", "Devices", "Pipelines"})
	for _, name := range kinect2.RegisteredDrivers() {
		driver, err := kinect2.NewDriver(name, logger)
		if err != nil {
			return err
		}
		serials, err := driver.EnumerateDevices(c.Context)
		if err != nil {
			return err
		}
		defaultSerial, err := driver.DefaultSerial(c.Context)
		if err != nil {
			defaultSerial = ""
		}
		pipelines := lo.Map(driver.SupportedPipelines(), func(p kinect2.Pipeline, _ int) string {
			return p.String()
		})
		t.AppendRow(table.Row{name, defaultSerial, strings.Join(serials, ", "), strings.Join(pipelines, ", ")})
	}
	fmt.Fprintln(c.App.Writer, t.Render())
	return nil
}

func paramsAction(c *cli.Context, logger logging.Logger) (err error) {
	session, err := openSession(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, session.Close(context.Background()))
	}()
	if err := session.LogParameters(); err != nil {
		return err
	}
	path, err := session.StoreParameters(c.String(flagOut))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}

type capturedFrame struct {
	index int
	depth *rimage.DepthFrame
	cloud *pointcloud.Organized
}

// cloudFormat is a PCD encoding, or LAS when las is set.
type cloudFormat struct {
	las     bool
	pcdType pointcloud.PCDType
}

func cloudFormatFromString(s string) (cloudFormat, error) {
	if strings.EqualFold(s, "las") {
		return cloudFormat{las: true}, nil
	}
	pcdType, err := pointcloud.PCDTypeFromString(s)
	if err != nil {
		return cloudFormat{}, err
	}
	return cloudFormat{pcdType: pcdType}, nil
}

func captureAction(c *cli.Context, logger logging.Logger) (err error) {
	format, err := cloudFormatFromString(c.String(flagFormat))
	if err != nil {
		return err
	}
	outDir := c.String(flagOut)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return errors.Wrapf(err, "error creating %s", outDir)
	}
	numFrames := c.Int(flagFrames)
	if numFrames < 0 {
		return errors.Errorf("--%s cannot be negative", flagFrames)
	}

	session, err := openSession(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, session.Close(context.Background()))
	}()
	conf := session.Config()
	if c.Bool(flagStream) || conf.Serialize {
		dir := conf.OutputDir
		if dir == "" {
			dir = outDir
		}
		if err := session.EnableSerialization(serialize.NewFileSink(dir, nil, logger.Sublogger("stream"))); err != nil {
			return err
		}
	}
	removePoints := conf.RemovePoints
	if c.IsSet(flagRemovePoints) {
		removePoints = c.Bool(flagRemovePoints)
	}

	captured := make(chan capturedFrame, 2)
	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		defer close(captured)
		for i := 0; numFrames == 0 || i < numFrames; i++ {
			_, depth, cloud, err := session.GetWithCloud(ctx, nil, false, removePoints)
			if err != nil {
				if errors.Is(err, context.Canceled) && c.Context.Err() != nil {
					logger.Infow("capture interrupted", "frames", i)
					return nil
				}
				return err
			}
			select {
			case captured <- capturedFrame{index: i, depth: depth, cloud: cloud}:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	var histogram io.Writer
	if c.Bool(flagHistogram) {
		histogram = c.App.Writer
	}
	g.Go(func() error {
		for frame := range captured {
			if err := writeCapturedFrame(outDir, frame, format, c.Bool(flagRawDepth), histogram, logger); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

func writeCapturedFrame(
	outDir string,
	frame capturedFrame,
	format cloudFormat,
	rawDepth bool,
	histogram io.Writer,
	logger logging.Logger,
) (err error) {
	stats, err := pointcloud.ComputeDepthStats(frame.cloud)
	if err != nil {
		return err
	}
	logger.Infow("captured cloud",
		"frame", frame.index,
		"valid_ratio", stats.ValidRatio,
		"dense", frame.cloud.IsDense,
		"min_m", stats.Min,
		"max_m", stats.Max,
		"median_m", stats.Median,
		"stddev_m", stats.StdDev,
	)

	if err := writeCloudFile(outDir, frame, format); err != nil {
		return err
	}
	if histogram != nil {
		fmt.Fprintf(histogram, "cloud %d\n", frame.index)
		if err := pointcloud.WriteDepthHistogram(histogram, frame.cloud, 10, 40); err != nil {
			return err
		}
	}
	if rawDepth {
		depthPath := filepath.Join(outDir, fmt.Sprintf("depth_%04d.dat.gz", frame.index))
		if err := rimage.WriteDepthFrameFile(frame.depth, depthPath); err != nil {
			return err
		}
	}
	return nil
}

func writeCloudFile(outDir string, frame capturedFrame, format cloudFormat) (err error) {
	if format.las {
		path := filepath.Join(outDir, fmt.Sprintf("cloud_%04d.las", frame.index))
		return errors.Wrapf(pointcloud.WriteToLASFile(frame.cloud, path), "error writing %s", path)
	}
	path := filepath.Join(outDir, fmt.Sprintf("cloud_%04d.pcd", frame.index))
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "error creating pcd file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return errors.Wrapf(pointcloud.ToPCD(frame.cloud, f, format.pcdType), "error writing %s", path)
}

func previewAction(c *cli.Context, logger logging.Logger) (err error) {
	outDir := c.String(flagOut)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return errors.Wrapf(err, "error creating %s", outDir)
	}
	session, err := openSession(c, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, session.Close(context.Background()))
	}()
	conf := session.Config()
	fullHD, removePoints := conf.FullHD, conf.RemovePoints
	if c.IsSet(flagFullHD) {
		fullHD = c.Bool(flagFullHD)
	}
	if c.IsSet(flagRemovePoints) {
		removePoints = c.Bool(flagRemovePoints)
	}

	color, depth, err := session.Get(c.Context, fullHD, removePoints)
	if err != nil {
		return err
	}
	colorPath := filepath.Join(outDir, "color.ppm")
	if err := rimage.WriteImageToFile(colorPath, color.Image()); err != nil {
		return err
	}
	minDepth, maxDepth, ok := depth.ValidRange()
	if !ok {
		logger.Warn("depth frame has no valid samples")
	}
	depthPath := filepath.Join(outDir, "depth.png")
	if err := rimage.WriteImageToFile(depthPath, depth.ToPrettyPicture(minDepth, maxDepth)); err != nil {
		return err
	}
	logger.Infow("wrote preview", "color", colorPath, "depth", depthPath, "min_mm", minDepth, "max_mm", maxDepth)
	return nil
}
