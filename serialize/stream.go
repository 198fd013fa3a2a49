// Package serialize defines the versioned record stream clouds and color frames are appended to.
//
// A stream starts with a header (magic "K2GS", uint16 version, uint16 flags) followed by records.
// Each record is a uint8 kind, a uint64 timestamp in unix milliseconds and a kind specific
// payload. All integers and floats are little-endian.
//
// Cloud payload: uint32 width, uint32 height, uint8 isDense, then per point float32 x, y, z and
// uint8 r, g, b, flags where bit 0 marks a valid point and bit 1 a point carrying color.
//
// Color payload: uint32 width, uint32 height, then width*height*4 bytes in B, G, R, X order.
//
// Neither side of a record may exceed the 1920x1082 bigdepth map.
package serialize

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"image/color"
	"io"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/k2g/pointcloud"
	"go.viam.com/k2g/rimage"
	"go.viam.com/k2g/rimage/transform"
)

// Magic starts every stream.
const Magic = "K2GS"

// Version is the record layout written by this package.
const Version uint16 = 1

const (
	headerSize     = 8
	pointSize      = 16
	pointFlagValid = 1
	pointFlagColor = 2
)

// Records are never larger than the biggest frame the sensor produces, the padded bigdepth map.
const (
	MaxRecordWidth  = transform.BigDepthWidth
	MaxRecordHeight = transform.BigDepthHeight
)

var (
	// ErrBadMagic is returned when a stream does not start with Magic.
	ErrBadMagic = errors.New("not a k2g record stream")
	// ErrUnsupportedVersion is returned for streams written with a newer layout.
	ErrUnsupportedVersion = errors.New("unsupported record stream version")
	// ErrRecordTooLarge is returned for clouds or frames larger than MaxRecordWidth by MaxRecordHeight.
	ErrRecordTooLarge = errors.New("record too large")
)

func checkRecordSize(width, height int) error {
	if width < 0 || height < 0 || width > MaxRecordWidth || height > MaxRecordHeight {
		return errors.Wrapf(ErrRecordTooLarge, "%dx%d", width, height)
	}
	return nil
}

// Kind identifies the payload of a record.
type Kind uint8

// Record kinds.
const (
	KindCloud Kind = 1
	KindColor Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindCloud:
		return "cloud"
	case KindColor:
		return "color"
	default:
		return "unknown"
	}
}

// Record is one decoded entry of a stream. Exactly one of Cloud and Color is set.
type Record struct {
	Kind  Kind
	Time  time.Time
	Cloud *pointcloud.Organized
	Color *rimage.ColorFrame
}

// Writer appends records to an io.Writer. The stream header is written with the first record.
// It is safe for concurrent use.
type Writer struct {
	mu            sync.Mutex
	out           io.Writer
	clock         clock.Clock
	headerWritten bool
}

// NewWriter returns a writer stamping records with clk, or the wall clock when clk is nil.
func NewWriter(out io.Writer, clk clock.Clock) *Writer {
	if clk == nil {
		clk = clock.New()
	}
	return &Writer{out: out, clock: clk}
}

func (w *Writer) writeRecord(kind Kind, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	buf.Grow(headerSize + 9 + len(payload))
	if !w.headerWritten {
		buf.WriteString(Magic)
		writeLE(&buf, Version)
		writeLE(&buf, uint16(0))
	}
	buf.WriteByte(byte(kind))
	writeLE(&buf, uint64(w.clock.Now().UnixMilli()))
	buf.Write(payload)
	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return errors.Wrapf(err, "error writing %s record", kind)
	}
	w.headerWritten = true
	return nil
}

// WriteCloud appends a cloud record.
func (w *Writer) WriteCloud(cloud *pointcloud.Organized) error {
	if cloud == nil {
		return errors.New("cannot write nil cloud")
	}
	if err := checkRecordSize(cloud.Width, cloud.Height); err != nil {
		return err
	}
	payload := make([]byte, 9+pointSize*cloud.Size())
	binary.LittleEndian.PutUint32(payload[0:], uint32(cloud.Width))
	binary.LittleEndian.PutUint32(payload[4:], uint32(cloud.Height))
	if cloud.IsDense {
		payload[8] = 1
	}
	for i, p := range cloud.Points {
		rec := payload[9+i*pointSize:]
		binary.LittleEndian.PutUint32(rec[0:], math.Float32bits(float32(p.Position.X)))
		binary.LittleEndian.PutUint32(rec[4:], math.Float32bits(float32(p.Position.Y)))
		binary.LittleEndian.PutUint32(rec[8:], math.Float32bits(float32(p.Position.Z)))
		var flags byte
		if p.Valid {
			flags |= pointFlagValid
		}
		if p.HasColor {
			flags |= pointFlagColor
			rec[12], rec[13], rec[14] = p.Color.R, p.Color.G, p.Color.B
		}
		rec[15] = flags
	}
	return w.writeRecord(KindCloud, payload)
}

// WriteColorFrame appends a color frame record.
func (w *Writer) WriteColorFrame(frame *rimage.ColorFrame) error {
	if frame == nil {
		return errors.New("cannot write nil color frame")
	}
	if err := checkRecordSize(frame.Width(), frame.Height()); err != nil {
		return err
	}
	pix := frame.BGRX()
	payload := make([]byte, 8, 8+len(pix))
	binary.LittleEndian.PutUint32(payload[0:], uint32(frame.Width()))
	binary.LittleEndian.PutUint32(payload[4:], uint32(frame.Height()))
	payload = append(payload, pix...)
	return w.writeRecord(KindColor, payload)
}

func writeLE(buf *bytes.Buffer, v interface{}) {
	// writes to a bytes.Buffer never fail
	//nolint:errcheck
	binary.Write(buf, binary.LittleEndian, v)
}

// Reader decodes a stream written by Writer.
type Reader struct {
	in         *bufio.Reader
	headerRead bool
	version    uint16
}

// NewReader wraps in.
func NewReader(in io.Reader) *Reader {
	return &Reader{in: bufio.NewReader(in)}
}

// Version returns the layout version of the stream, once the first record has been read.
func (r *Reader) Version() uint16 {
	return r.version
}

func (r *Reader) readHeader() error {
	var header [headerSize]byte
	if _, err := io.ReadFull(r.in, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrBadMagic
		}
		return err
	}
	if string(header[:4]) != Magic {
		return ErrBadMagic
	}
	r.version = binary.LittleEndian.Uint16(header[4:])
	if r.version == 0 || r.version > Version {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d", r.version)
	}
	r.headerRead = true
	return nil
}

// Next returns the next record, or io.EOF at the clean end of the stream.
func (r *Reader) Next() (*Record, error) {
	if !r.headerRead {
		if err := r.readHeader(); err != nil {
			return nil, err
		}
	}
	kind, err := r.in.ReadByte()
	if err != nil {
		return nil, err
	}
	var stamp [8]byte
	if _, err := io.ReadFull(r.in, stamp[:]); err != nil {
		return nil, truncated(err)
	}
	rec := &Record{
		Kind: Kind(kind),
		Time: time.UnixMilli(int64(binary.LittleEndian.Uint64(stamp[:]))),
	}
	width, height, err := r.readSize()
	if err != nil {
		return nil, err
	}
	switch rec.Kind {
	case KindCloud:
		rec.Cloud, err = r.readCloud(width, height)
	case KindColor:
		rec.Color, err = r.readColor(width, height)
	default:
		return nil, errors.Errorf("unknown record kind %d", kind)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return errors.Wrap(err, "truncated record")
}

func (r *Reader) readSize() (int, int, error) {
	var size [8]byte
	if _, err := io.ReadFull(r.in, size[:]); err != nil {
		return 0, 0, truncated(err)
	}
	width := int(binary.LittleEndian.Uint32(size[0:]))
	height := int(binary.LittleEndian.Uint32(size[4:]))
	if err := checkRecordSize(width, height); err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

func (r *Reader) readCloud(width, height int) (*pointcloud.Organized, error) {
	dense, err := r.in.ReadByte()
	if err != nil {
		return nil, truncated(err)
	}
	raw := make([]byte, width*height*pointSize)
	if _, err := io.ReadFull(r.in, raw); err != nil {
		return nil, truncated(err)
	}
	cloud := &pointcloud.Organized{
		Width:   width,
		Height:  height,
		Points:  make([]pointcloud.Point, width*height),
		IsDense: dense != 0,
	}
	for i := range cloud.Points {
		rec := raw[i*pointSize:]
		flags := rec[15]
		p := pointcloud.Point{
			Position: pointcloud.NewVector(
				float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[0:]))),
				float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[4:]))),
				float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[8:]))),
			),
			Valid:    flags&pointFlagValid != 0,
			HasColor: flags&pointFlagColor != 0,
		}
		if p.HasColor {
			p.Color = color.NRGBA{rec[12], rec[13], rec[14], 255}
		}
		cloud.Points[i] = p
	}
	return cloud, nil
}

func (r *Reader) readColor(width, height int) (*rimage.ColorFrame, error) {
	raw := make([]byte, width*height*rimage.ColorBytesPerPixel)
	if _, err := io.ReadFull(r.in, raw); err != nil {
		return nil, truncated(err)
	}
	return rimage.NewColorFrameFromBGRX(width, height, raw)
}
