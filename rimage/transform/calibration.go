package transform

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// CalibrationMatrix is a dense row-major matrix as laid out in calibration files.
type CalibrationMatrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data,flow"`
}

func newCalibrationMatrix(m mat.Matrix) CalibrationMatrix {
	r, c := m.Dims()
	out := CalibrationMatrix{Rows: r, Cols: c, Data: make([]float64, 0, r*c)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Data = append(out.Data, m.At(i, j))
		}
	}
	return out
}

// Dense returns the matrix as a gonum matrix.
func (cm CalibrationMatrix) Dense() (*mat.Dense, error) {
	if cm.Rows <= 0 || cm.Cols <= 0 || len(cm.Data) != cm.Rows*cm.Cols {
		return nil, errors.Errorf("malformed %dx%d matrix with %d values", cm.Rows, cm.Cols, len(cm.Data))
	}
	return mat.NewDense(cm.Rows, cm.Cols, cm.Data), nil
}

// Calibration is the persisted camera parameters of one device: the color and depth camera
// matrices and the depth sensor distortion in OpenCV order (k1 k2 p1 p2 k3).
type Calibration struct {
	Serial     string            `yaml:"serial"`
	ColorSize  []int             `yaml:"colorSize,flow"`
	DepthSize  []int             `yaml:"depthSize,flow"`
	Color      CalibrationMatrix `yaml:"CcameraMatrix"`
	Depth      CalibrationMatrix `yaml:"DcameraMatrix"`
	DistCoeffs CalibrationMatrix `yaml:"distCoeffs"`
}

// CalibrationFileName is the name calibration of the device with the given serial is stored under.
func CalibrationFileName(serial string) string {
	return "calib_" + serial + ".yml"
}

// NewCalibration collects the parameters of a device.
func NewCalibration(serial string, color, depth *PinholeCameraIntrinsics, distortion *BrownConrady) (*Calibration, error) {
	if err := color.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "color intrinsics")
	}
	if err := depth.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "depth intrinsics")
	}
	return &Calibration{
		Serial:     serial,
		ColorSize:  []int{color.Width, color.Height},
		DepthSize:  []int{depth.Width, depth.Height},
		Color:      newCalibrationMatrix(color.GetCameraMatrix()),
		Depth:      newCalibrationMatrix(depth.GetCameraMatrix()),
		DistCoeffs: newCalibrationMatrix(mat.NewDense(1, 5, distortion.OpenCVCoefficients())),
	}, nil
}

func intrinsicsFromCalibration(cm CalibrationMatrix, size []int) (*PinholeCameraIntrinsics, error) {
	if len(size) != 2 {
		return nil, errors.Errorf("expected a width and height, got %v", size)
	}
	m, err := cm.Dense()
	if err != nil {
		return nil, err
	}
	return IntrinsicsFromCameraMatrix(m, size[0], size[1])
}

// ColorIntrinsics returns the stored color camera model.
func (c *Calibration) ColorIntrinsics() (*PinholeCameraIntrinsics, error) {
	return intrinsicsFromCalibration(c.Color, c.ColorSize)
}

// DepthIntrinsics returns the stored depth camera model.
func (c *Calibration) DepthIntrinsics() (*PinholeCameraIntrinsics, error) {
	return intrinsicsFromCalibration(c.Depth, c.DepthSize)
}

// Distortion returns the stored depth distortion.
func (c *Calibration) Distortion() (*BrownConrady, error) {
	if c.DistCoeffs.Rows*c.DistCoeffs.Cols != 5 || len(c.DistCoeffs.Data) != 5 {
		return nil, errors.Errorf("expected 5 distortion coefficients, got %d", len(c.DistCoeffs.Data))
	}
	return BrownConradyFromOpenCV(c.DistCoeffs.Data)
}

// WriteCalibrationFile stores the calibration as YAML at path.
func WriteCalibrationFile(path string, calib *Calibration) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "error creating calibration file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(calib); err != nil {
		return errors.Wrapf(err, "error writing calibration to %s", filepath.Base(path))
	}
	return enc.Close()
}

// ReadCalibrationFile loads a calibration written by WriteCalibrationFile.
func ReadCalibrationFile(path string) (*Calibration, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading calibration file")
	}
	calib := &Calibration{}
	if err := yaml.Unmarshal(data, calib); err != nil {
		return nil, errors.Wrapf(err, "error parsing calibration file %s", filepath.Base(path))
	}
	if _, err := calib.DepthIntrinsics(); err != nil {
		return nil, errors.Wrap(err, "depth camera matrix")
	}
	return calib, nil
}
