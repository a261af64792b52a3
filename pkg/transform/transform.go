// Package transform defines per-sample tensor transforms.
//
// Every random decision a transform makes must be drawn from the rng passed
// to Apply. Calling Apply twice with generators seeded identically therefore
// produces the same decisions, which is how an image and its label are kept
// aligned.
package transform

import (
	"fmt"
	"math/rand"

	"tofslices/pkg/tensor"
)

// Transform maps one tensor to another of compatible shape
type Transform interface {
	Apply(t *tensor.Tensor, rng *rand.Rand) (*tensor.Tensor, error)
}

// Func adapts a function to the Transform interface
type Func func(t *tensor.Tensor, rng *rand.Rand) (*tensor.Tensor, error)

// Apply calls f
func (f Func) Apply(t *tensor.Tensor, rng *rand.Rand) (*tensor.Tensor, error) {
	return f(t, rng)
}

// Compose applies transforms in order, sharing the same rng
type Compose []Transform

// Apply runs every transform of c on t
func (c Compose) Apply(t *tensor.Tensor, rng *rand.Rand) (*tensor.Tensor, error) {
	var err error
	for i, tf := range c {
		t, err = tf.Apply(t, rng)
		if err != nil {
			return nil, fmt.Errorf("transform %d: %w", i, err)
		}
	}
	return t, nil
}

// RandomCrop cuts a Height×Width window at a random offset
type RandomCrop struct {
	Height, Width int
}

// Offset draws the top-left corner of the crop window for a tensor of size h×w
func (c RandomCrop) Offset(h, w int, rng *rand.Rand) (top, left int, err error) {
	if c.Height > h || c.Width > w {
		return 0, 0, fmt.Errorf("crop %dx%d larger than %dx%d", c.Height, c.Width, h, w)
	}
	return rng.Intn(h - c.Height + 1), rng.Intn(w - c.Width + 1), nil
}

// Apply crops t
func (c RandomCrop) Apply(t *tensor.Tensor, rng *rand.Rand) (*tensor.Tensor, error) {
	_, h, w := t.Shape()
	top, left, err := c.Offset(h, w, rng)
	if err != nil {
		return nil, err
	}
	return t.Crop(top, left, c.Height, c.Width)
}

// CenterCrop cuts a Height×Width window from the middle
type CenterCrop struct {
	Height, Width int
}

// Apply crops t; rng is unused
func (c CenterCrop) Apply(t *tensor.Tensor, _ *rand.Rand) (*tensor.Tensor, error) {
	_, h, w := t.Shape()
	return t.Crop((h-c.Height)/2, (w-c.Width)/2, c.Height, c.Width)
}

// RandomFlip mirrors the tensor horizontally with probability P
type RandomFlip struct {
	P float64
}

// Apply flips t. One value is always drawn so the rng stream position does
// not depend on the outcome.
func (f RandomFlip) Apply(t *tensor.Tensor, rng *rand.Rand) (*tensor.Tensor, error) {
	if rng.Float64() < f.P {
		return t.FlipHorizontal(), nil
	}
	return t, nil
}
