// Package tensor provides a small channel-first tensor made of gonum
// matrices. Each channel is an H×W *mat.Dense plane.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a C×H×W stack of planes sharing the same dimensions
type Tensor struct {
	planes []*mat.Dense
}

// Stack builds a tensor from planes, adding a leading channel axis.
// All planes must have the same dimensions.
func Stack(planes ...*mat.Dense) (*Tensor, error) {
	if len(planes) == 0 {
		return nil, fmt.Errorf("stack: no planes")
	}
	r, c := planes[0].Dims()
	for i, p := range planes[1:] {
		pr, pc := p.Dims()
		if pr != r || pc != c {
			return nil, fmt.Errorf("stack: plane %d is %dx%d, expected %dx%d", i+1, pr, pc, r, c)
		}
	}
	out := make([]*mat.Dense, len(planes))
	copy(out, planes)
	return &Tensor{planes: out}, nil
}

// Shape returns the channel, height and width of the tensor
func (t *Tensor) Shape() (channels, height, width int) {
	if t == nil || len(t.planes) == 0 {
		return 0, 0, 0
	}
	h, w := t.planes[0].Dims()
	return len(t.planes), h, w
}

// Channel returns the plane at index c
func (t *Tensor) Channel(c int) *mat.Dense {
	return t.planes[c]
}

// At returns the value at channel c, row i, column j
func (t *Tensor) At(c, i, j int) float64 {
	return t.planes[c].At(i, j)
}

// Split separates the leading channels from the last one. The returned
// tensors share planes with t.
func (t *Tensor) Split() (head, last *Tensor, err error) {
	if len(t.planes) < 2 {
		return nil, nil, fmt.Errorf("split: need at least 2 channels, have %d", len(t.planes))
	}
	n := len(t.planes)
	return &Tensor{planes: t.planes[:n-1]}, &Tensor{planes: t.planes[n-1:]}, nil
}

// Clone returns a deep copy of t
func (t *Tensor) Clone() *Tensor {
	out := make([]*mat.Dense, len(t.planes))
	for i, p := range t.planes {
		out[i] = mat.DenseCopyOf(p)
	}
	return &Tensor{planes: out}
}

// Binarize returns a new tensor where every value greater than zero is 1
// and every other value is 0.
func (t *Tensor) Binarize() *Tensor {
	out := make([]*mat.Dense, len(t.planes))
	for i, p := range t.planes {
		var d mat.Dense
		d.Apply(func(_, _ int, v float64) float64 {
			if v > 0 {
				return 1
			}
			return 0
		}, p)
		out[i] = &d
	}
	return &Tensor{planes: out}
}

// Crop returns the h×w window whose top-left corner is (top, left)
func (t *Tensor) Crop(top, left, h, w int) (*Tensor, error) {
	_, th, tw := t.Shape()
	if h <= 0 || w <= 0 || top < 0 || left < 0 || top+h > th || left+w > tw {
		return nil, fmt.Errorf("crop %dx%d at (%d,%d) outside %dx%d", h, w, top, left, th, tw)
	}
	out := make([]*mat.Dense, len(t.planes))
	for i, p := range t.planes {
		out[i] = mat.DenseCopyOf(p.Slice(top, top+h, left, left+w))
	}
	return &Tensor{planes: out}, nil
}

// FlipHorizontal mirrors every plane along its columns
func (t *Tensor) FlipHorizontal() *Tensor {
	out := make([]*mat.Dense, len(t.planes))
	for i, p := range t.planes {
		r, c := p.Dims()
		d := mat.NewDense(r, c, nil)
		for y := 0; y < r; y++ {
			for x := 0; x < c; x++ {
				d.Set(y, c-1-x, p.At(y, x))
			}
		}
		out[i] = d
	}
	return &Tensor{planes: out}
}

// Float32s flattens the tensor in channel-major, row-major order
func (t *Tensor) Float32s() []float32 {
	c, h, w := t.Shape()
	out := make([]float32, 0, c*h*w)
	for _, p := range t.planes {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out = append(out, float32(p.At(y, x)))
			}
		}
	}
	return out
}
