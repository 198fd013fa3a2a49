package pointcloud

import (
	"image/color"

	"github.com/edaniels/lidario"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// WriteToLASFile writes the valid points of the cloud to a LAS file. LAS has no notion of an
// organized cloud, so holes are dropped and the grid layout is lost.
func WriteToLASFile(cloud *Organized, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	withColor := cloud.HasColor()
	pointFormatID := 0
	if withColor {
		pointFormatID = 2
	}
	if err := lf.AddHeader(lidario.LasHeader{PointFormatID: byte(pointFormatID)}); err != nil {
		return err
	}

	var lastErr error
	cloud.Iterate(func(x, y int, p Point) bool {
		if !p.Valid {
			return true
		}
		var lp lidario.LasPointer
		pr0 := &lidario.PointRecord0{
			X: p.Position.X,
			Y: p.Position.Y,
			Z: p.Position.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			PointSourceID: 1,
		}
		lp = pr0
		if withColor {
			c := color.NRGBA{255, 255, 255, 255}
			if p.HasColor {
				c = p.Color
			}
			lp = &lidario.PointRecord2{
				PointRecord0: pr0,
				RGB: &lidario.RgbData{
					Red:   uint16(c.R) * 256,
					Green: uint16(c.G) * 256,
					Blue:  uint16(c.B) * 256,
				},
			}
		}
		if lerr := lf.AddLasPoint(lp); lerr != nil {
			lastErr = lerr
			return false
		}
		return true
	})
	return lastErr
}

// ReadLASFile reads a LAS file into a cloud with one row. Every point is valid.
func ReadLASFile(fn string) (*Organized, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	cloud := NewOrganized(lf.Header.NumberPoints, 1)
	cloud.IsDense = true
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()
		pt := Point{Position: NewVector(data.X, data.Y, data.Z), Valid: true}
		if lf.Header.PointFormatID == 2 && p.RgbData() != nil {
			pt.Color = color.NRGBA{
				uint8(p.RgbData().Red / 256),
				uint8(p.RgbData().Green / 256),
				uint8(p.RgbData().Blue / 256),
				255,
			}
			pt.HasColor = true
		}
		cloud.Points[i] = pt
	}
	return cloud, nil
}
