package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	lzf "github.com/zhuyie/golzf"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed binary format for pcd.
	PCDCompressed PCDType = 2
)

// PCDTypeFromString parses "ascii", "binary" or "compressed".
func PCDTypeFromString(s string) (PCDType, error) {
	switch strings.ToLower(s) {
	case "ascii":
		return PCDAscii, nil
	case "binary":
		return PCDBinary, nil
	case "compressed", "binary_compressed":
		return PCDCompressed, nil
	default:
		return PCDAscii, errors.Errorf("unknown pcd type %q", s)
	}
}

func (t PCDType) String() string {
	switch t {
	case PCDAscii:
		return "ascii"
	case PCDBinary:
		return "binary"
	case PCDCompressed:
		return "binary_compressed"
	default:
		return fmt.Sprintf("PCDType(%d)", int(t))
	}
}

func colorToPCDInt(p Point) uint32 {
	if !p.Valid || !p.HasColor {
		return 0
	}
	return uint32(p.Color.R)<<16 | uint32(p.Color.G)<<8 | uint32(p.Color.B)
}

func pcdIntToColor(c uint32) color.NRGBA {
	r := uint8(0xFF & (c >> 16))
	g := uint8(0xFF & (c >> 8))
	b := uint8(0xFF & (c >> 0))
	return color.NRGBA{r, g, b, 255}
}

// ToPCD writes the cloud as an organized PCD v0.7 file. Invalid points are written with NaN
// coordinates, which is how PCD marks holes in organized clouds.
func ToPCD(cloud *Organized, out io.Writer, outputType PCDType) error {
	withColor := cloud.HasColor()
	var fields string
	if withColor {
		fields = "FIELDS x y z rgb\n" +
			"SIZE 4 4 4 4\n" +
			"TYPE F F F U\n" +
			"COUNT 1 1 1 1\n"
	} else {
		fields = "FIELDS x y z\n" +
			"SIZE 4 4 4\n" +
			"TYPE F F F\n" +
			"COUNT 1 1 1\n"
	}
	if _, err := fmt.Fprintf(out, "VERSION .7\n%s"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		fields, cloud.Width, cloud.Height, cloud.Size(), outputType); err != nil {
		return err
	}

	switch outputType {
	case PCDAscii:
		return writePCDAscii(cloud, out, withColor)
	case PCDBinary:
		return writePCDBinary(cloud, out, withColor)
	case PCDCompressed:
		return writePCDCompressed(cloud, out, withColor)
	default:
		return errors.Errorf("unsupported pcd type %v", outputType)
	}
}

func writePCDAscii(cloud *Organized, out io.Writer, withColor bool) error {
	w := bufio.NewWriter(out)
	for _, p := range cloud.Points {
		var err error
		pos := p.Position
		if withColor {
			_, err = fmt.Fprintf(w, "%f %f %f %d\n", pos.X, pos.Y, pos.Z, colorToPCDInt(p))
		} else {
			_, err = fmt.Fprintf(w, "%f %f %f\n", pos.X, pos.Y, pos.Z)
		}
		if err != nil {
			return err
		}
	}
	return w.Flush()
}

func numPCDFields(withColor bool) int {
	if withColor {
		return 4
	}
	return 3
}

func pointFieldBits(p Point, field int) uint32 {
	switch field {
	case 0:
		return math.Float32bits(float32(p.Position.X))
	case 1:
		return math.Float32bits(float32(p.Position.Y))
	case 2:
		return math.Float32bits(float32(p.Position.Z))
	default:
		return colorToPCDInt(p)
	}
}

func writePCDBinary(cloud *Organized, out io.Writer, withColor bool) error {
	nFields := numPCDFields(withColor)
	buf := make([]byte, 4*nFields*cloud.Size())
	for i, p := range cloud.Points {
		for f := 0; f < nFields; f++ {
			binary.LittleEndian.PutUint32(buf[(i*nFields+f)*4:], pointFieldBits(p, f))
		}
	}
	_, err := out.Write(buf)
	return err
}

// binary_compressed stores every field contiguously (all x, then all y, ...) and LZF compresses
// the result, prefixed by the compressed and uncompressed sizes.
func writePCDCompressed(cloud *Organized, out io.Writer, withColor bool) error {
	nFields := numPCDFields(withColor)
	n := cloud.Size()
	raw := make([]byte, 4*nFields*n)
	for i, p := range cloud.Points {
		for f := 0; f < nFields; f++ {
			binary.LittleEndian.PutUint32(raw[(f*n+i)*4:], pointFieldBits(p, f))
		}
	}
	compressed := make([]byte, len(raw)+len(raw)/16+64)
	size, err := lzf.Compress(raw, compressed)
	if err != nil {
		return errors.Wrap(err, "error compressing pcd data")
	}
	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[:4], uint32(size))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(len(raw)))
	if _, err := out.Write(sizes[:]); err != nil {
		return err
	}
	_, err = out.Write(compressed[:size])
	return err
}

type pcdHeader struct {
	withColor bool
	width     int
	height    int
	points    int
	data      PCDType
}

// ReadPCD reads an organized cloud written by ToPCD.
func ReadPCD(in io.Reader) (*Organized, error) {
	r := bufio.NewReader(in)
	header, err := readPCDHeader(r)
	if err != nil {
		return nil, err
	}
	cloud := &Organized{Width: header.width, Height: header.height, Points: make([]Point, header.points)}

	nFields := numPCDFields(header.withColor)
	values := make([]uint32, nFields*header.points) // point-major
	switch header.data {
	case PCDAscii:
		err = readPCDAscii(r, values, nFields)
	case PCDBinary:
		raw := make([]byte, len(values)*4)
		if _, err = io.ReadFull(r, raw); err == nil {
			for i := range values {
				values[i] = binary.LittleEndian.Uint32(raw[i*4:])
			}
		}
	case PCDCompressed:
		err = readPCDCompressed(r, values, nFields, header.points)
	}
	if err != nil {
		return nil, errors.Wrap(err, "error reading pcd data")
	}

	cloud.IsDense = true
	for i := range cloud.Points {
		v := values[i*nFields:]
		p := Point{Position: NewVector(
			float64(math.Float32frombits(v[0])),
			float64(math.Float32frombits(v[1])),
			float64(math.Float32frombits(v[2])),
		)}
		p.Valid = !math.IsNaN(p.Position.Z)
		if !p.Valid {
			p = InvalidPoint()
			cloud.IsDense = false
		} else if header.withColor {
			p.Color = pcdIntToColor(v[3])
			p.HasColor = true
		}
		cloud.Points[i] = p
	}
	return cloud, nil
}

func readPCDHeader(r *bufio.Reader) (pcdHeader, error) {
	var header pcdHeader
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return header, errors.Wrap(err, "error reading pcd header")
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		field, value, _ := strings.Cut(line, " ")
		switch field {
		case "VERSION":
			if value != ".7" && value != "0.7" {
				return header, errors.Errorf("unsupported pcd version %s", value)
			}
		case "FIELDS":
			switch value {
			case "x y z":
				header.withColor = false
			case "x y z rgb", "x y z rgba":
				header.withColor = true
			default:
				return header, errors.Errorf("unsupported pcd fields %s", value)
			}
		case "SIZE", "TYPE", "COUNT", "VIEWPOINT":
		case "WIDTH", "HEIGHT", "POINTS":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return header, errors.Errorf("invalid %s %q", field, value)
			}
			switch field {
			case "WIDTH":
				header.width = n
			case "HEIGHT":
				header.height = n
			default:
				header.points = n
			}
		case "DATA":
			t, err := PCDTypeFromString(value)
			if err != nil {
				return header, err
			}
			header.data = t
			if header.width*header.height != header.points {
				return header, errors.Errorf("pcd WIDTH*HEIGHT (%d*%d) does not match POINTS %d",
					header.width, header.height, header.points)
			}
			return header, nil
		default:
			return header, errors.Errorf("unexpected pcd header line %q", line)
		}
	}
}

func readPCDAscii(r *bufio.Reader, values []uint32, nFields int) error {
	scanner := bufio.NewScanner(r)
	i := 0
	for scanner.Scan() && i < len(values)/nFields {
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) != nFields {
			return errors.Errorf("expected %d values on line %d, got %d", nFields, i, len(tokens))
		}
		for f := 0; f < 3; f++ {
			v, err := strconv.ParseFloat(tokens[f], 32)
			if err != nil {
				return err
			}
			values[i*nFields+f] = math.Float32bits(float32(v))
		}
		if nFields == 4 {
			c, err := strconv.ParseUint(tokens[3], 10, 32)
			if err != nil {
				return err
			}
			values[i*nFields+3] = uint32(c)
		}
		i++
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if i != len(values)/nFields {
		return errors.Errorf("expected %d points, got %d", len(values)/nFields, i)
	}
	return nil
}

func readPCDCompressed(r io.Reader, values []uint32, nFields, points int) error {
	var sizes [8]byte
	if _, err := io.ReadFull(r, sizes[:]); err != nil {
		return err
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[:4])
	rawSize := binary.LittleEndian.Uint32(sizes[4:])
	if int(rawSize) != len(values)*4 {
		return errors.Errorf("compressed pcd holds %d bytes, expected %d", rawSize, len(values)*4)
	}
	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return err
	}
	if rawSize == 0 {
		return nil
	}
	raw := make([]byte, rawSize)
	n, err := lzf.Decompress(compressed, raw)
	if err != nil {
		return err
	}
	if n != len(raw) {
		return errors.Errorf("decompressed %d bytes, expected %d", n, len(raw))
	}
	for f := 0; f < nFields; f++ {
		for i := 0; i < points; i++ {
			values[i*nFields+f] = binary.LittleEndian.Uint32(raw[(f*points+i)*4:])
		}
	}
	return nil
}
