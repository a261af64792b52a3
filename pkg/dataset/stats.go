package dataset

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PlaneStats summarises the intensities of one slice channel
type PlaneStats struct {
	Mean       float64
	StdDev     float64
	Min        float64
	Max        float64
	Foreground float64 // fraction of voxels greater than zero
}

// Stats computes PlaneStats for a plane
func Stats(plane mat.Matrix) PlaneStats {
	r, c := plane.Dims()
	values := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			values = append(values, plane.At(i, j))
		}
	}
	if len(values) == 0 {
		return PlaneStats{}
	}

	var fg int
	for _, v := range values {
		if v > 0 {
			fg++
		}
	}

	mean, std := stat.MeanStdDev(values, nil)
	return PlaneStats{
		Mean:       mean,
		StdDev:     std,
		Min:        floats.Min(values),
		Max:        floats.Max(values),
		Foreground: float64(fg) / float64(len(values)),
	}
}
