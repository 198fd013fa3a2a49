package transform

// RayTable caches, per column and per row, the scale that turns a metric depth into the x and y
// coordinate of the ray through the center of that pixel. It is immutable once built.
type RayTable struct {
	colRay []float64
	rowRay []float64
}

// NewRayTable precomputes the rays of every column and row of the sensor described by intrinsics.
// Rays are computed and stored in float64. A float32 implementation of the same formula agrees to
// within float32 rounding but not bit for bit, so clouds built from this table can differ from
// such output in the low-order bits.
func NewRayTable(intrinsics *PinholeCameraIntrinsics) (*RayTable, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	table := &RayTable{
		colRay: make([]float64, intrinsics.Width),
		rowRay: make([]float64, intrinsics.Height),
	}
	for i := range table.colRay {
		table.colRay[i] = (float64(i) - intrinsics.Ppx + 0.5) / intrinsics.Fx
	}
	for i := range table.rowRay {
		table.rowRay[i] = (float64(i) - intrinsics.Ppy + 0.5) / intrinsics.Fy
	}
	return table, nil
}

// Width is the number of columns covered by the table.
func (rt *RayTable) Width() int {
	return len(rt.colRay)
}

// Height is the number of rows covered by the table.
func (rt *RayTable) Height() int {
	return len(rt.rowRay)
}

// Col returns the ray scale of column x.
func (rt *RayTable) Col(x int) float64 {
	return rt.colRay[x]
}

// Row returns the ray scale of row y.
func (rt *RayTable) Row(y int) float64 {
	return rt.rowRay[y]
}
