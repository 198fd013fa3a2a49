package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/samber/lo/mutable"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// MillimetersPerMeter converts raw sensor depth to metric depth.
const MillimetersPerMeter = 1000.0

// DepthFrame is a dense, row-major buffer of float32 depth samples in millimeters as produced by
// the sensor's undistortion step. NaN and 0 mark pixels with no return. Infrared amplitude frames
// share the same layout and are carried in a DepthFrame too.
type DepthFrame struct {
	width  int
	height int
	data   []float32
}

// NewEmptyDepthFrame returns a zeroed frame of the given size.
func NewEmptyDepthFrame(width, height int) *DepthFrame {
	return &DepthFrame{width: width, height: height, data: make([]float32, width*height)}
}

// NewDepthFrame wraps an existing row-major buffer. The buffer is not copied.
func NewDepthFrame(width, height int, data []float32) (*DepthFrame, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid depth frame size (%d, %d)", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth buffer has %d samples, expected %d for %dx%d", len(data), width*height, width, height)
	}
	return &DepthFrame{width: width, height: height, data: data}, nil
}

// NewDepthFrameFromBytes decodes a little-endian float32 buffer, 4 bytes per pixel.
func NewDepthFrameFromBytes(width, height int, buf []byte) (*DepthFrame, error) {
	if len(buf) != width*height*4 {
		return nil, errors.Errorf("depth buffer has %d bytes, expected %d for %dx%d", len(buf), width*height*4, width, height)
	}
	data := make([]float32, width*height)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return NewDepthFrame(width, height, data)
}

// Width returns the horizontal size of the frame.
func (df *DepthFrame) Width() int {
	return df.width
}

// Height returns the vertical size of the frame.
func (df *DepthFrame) Height() int {
	return df.height
}

// Bounds returns the rectangle covering the frame.
func (df *DepthFrame) Bounds() image.Rectangle {
	return image.Rect(0, 0, df.width, df.height)
}

// Data returns the underlying row-major samples.
func (df *DepthFrame) Data() []float32 {
	return df.data
}

// Row returns the samples of row y.
func (df *DepthFrame) Row(y int) []float32 {
	return df.data[y*df.width : (y+1)*df.width]
}

// At returns the raw sample at (x, y).
func (df *DepthFrame) At(x, y int) float32 {
	return df.data[y*df.width+x]
}

// Set stores a raw sample at (x, y).
func (df *DepthFrame) Set(x, y int, v float32) {
	df.data[y*df.width+x] = v
}

// Clone returns a deep copy.
func (df *DepthFrame) Clone() *DepthFrame {
	data := make([]float32, len(df.data))
	copy(data, df.data)
	return &DepthFrame{width: df.width, height: df.height, data: data}
}

// MirrorHorizontally returns a new frame flipped around the vertical axis.
func (df *DepthFrame) MirrorHorizontally() *DepthFrame {
	out := df.Clone()
	for y := 0; y < out.height; y++ {
		mutable.Reverse(out.Row(y))
	}
	return out
}

// Bytes encodes the samples as little-endian float32s.
func (df *DepthFrame) Bytes() []byte {
	buf := make([]byte, len(df.data)*4)
	for i, v := range df.data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// ValidRange returns the smallest and largest samples that carry a return (finite, non zero).
// ok is false when no sample does.
func (df *DepthFrame) ValidRange() (minDepth, maxDepth float32, ok bool) {
	minDepth = float32(math.Inf(1))
	maxDepth = float32(math.Inf(-1))
	for _, v := range df.data {
		if !HasReturn(v) {
			continue
		}
		ok = true
		if v < minDepth {
			minDepth = v
		}
		if v > maxDepth {
			maxDepth = v
		}
	}
	return minDepth, maxDepth, ok
}

// HasReturn reports whether a raw sample is a measurement rather than a no-return marker.
func HasReturn(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f != 0
}

// WriteTo writes the frame as two little-endian uint64 dimensions followed by the float32 samples.
func (df *DepthFrame) WriteTo(out io.Writer) (int64, error) {
	var header [16]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(df.width))
	binary.LittleEndian.PutUint64(header[8:], uint64(df.height))
	n, err := out.Write(header[:])
	if err != nil {
		return int64(n), err
	}
	m, err := out.Write(df.Bytes())
	return int64(n + m), err
}

// ReadDepthFrame reads a frame written by WriteTo.
func ReadDepthFrame(in io.Reader) (*DepthFrame, error) {
	var header [16]byte
	if _, err := io.ReadFull(in, header[:]); err != nil {
		return nil, errors.Wrap(err, "error reading depth frame header")
	}
	width := int(binary.LittleEndian.Uint64(header[:8]))
	height := int(binary.LittleEndian.Uint64(header[8:]))
	const maxSide = 1 << 14
	if width <= 0 || height <= 0 || width > maxSide || height > maxSide {
		return nil, errors.Errorf("bad depth frame dimensions (%d, %d)", width, height)
	}
	buf := make([]byte, width*height*4)
	if _, err := io.ReadFull(in, buf); err != nil {
		return nil, errors.Wrap(err, "error reading depth frame samples")
	}
	return NewDepthFrameFromBytes(width, height, buf)
}

// ParseDepthFrameFile reads a frame from disk, transparently decompressing ".gz" files.
func ParseDepthFrameFile(fn string) (*DepthFrame, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var r io.Reader = f
	if filepath.Ext(fn) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(gz.Close)
		r = gz
	}
	return ReadDepthFrame(bufio.NewReader(r))
}

// WriteDepthFrameFile writes a frame to disk, gzip compressing it when the name ends in ".gz".
func WriteDepthFrameFile(df *DepthFrame, fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	if filepath.Ext(fn) != ".gz" {
		_, err = df.WriteTo(f)
		return err
	}
	gz := gzip.NewWriter(f)
	if _, err := df.WriteTo(gz); err != nil {
		return multierr.Combine(err, gz.Close())
	}
	return gz.Close()
}
