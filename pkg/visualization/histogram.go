package visualization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveHistogram plots the intensity distribution of a plane. The output
// format follows the file extension (png, svg, pdf...).
func SaveHistogram(plane mat.Matrix, title, filename string, bins int) error {
	r, c := plane.Dims()
	values := make(plotter.Values, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			values = append(values, plane.At(i, j))
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("empty plane")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Intensity"
	p.Y.Label.Text = "Voxels"

	h, err := plotter.NewHist(values, bins)
	if err != nil {
		return fmt.Errorf("build histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("save histogram: %w", err)
	}
	return nil
}
