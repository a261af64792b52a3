package gomlxds

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"tofslices/internal/models"
	"tofslices/pkg/tensor"
)

// fakeSource returns 1×2×3 images filled with the index and constant labels
type fakeSource struct {
	n     int
	seeds map[int]int64
}

func (f *fakeSource) Len() int { return f.n }

func (f *fakeSource) ItemWithSeed(i int, seed int64) (models.Sample, error) {
	if f.seeds != nil {
		f.seeds[i] = seed
	}
	img := mat.NewDense(2, 3, nil)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			img.Set(r, c, float64(i))
		}
	}
	it, err := tensor.Stack(img)
	if err != nil {
		return models.Sample{}, err
	}
	lt, err := tensor.Stack(mat.NewDense(2, 3, nil))
	if err != nil {
		return models.Sample{}, err
	}
	return models.Sample{Image: it, Label: lt, ID: fmt.Sprintf("id%d", i)}, nil
}

func TestYieldEpoch(t *testing.T) {
	b, err := New(&fakeSource{n: 5}, 2)
	require.NoError(t, err)

	var sizes []int
	var ids []string
	for {
		spec, inputs, labels, err := b.Yield()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		require.Len(t, labels, 1)

		batch := spec.([]string)
		ids = append(ids, batch...)
		sizes = append(sizes, len(batch))
		require.Equal(t, []int{len(batch), 1, 2, 3}, inputs[0].Shape().Dimensions)
		require.Equal(t, []int{len(batch), 1, 2, 3}, labels[0].Shape().Dimensions)
	}
	require.Equal(t, []int{2, 2, 1}, sizes)
	require.Equal(t, []string{"id0", "id1", "id2", "id3", "id4"}, ids)

	_, _, _, err = b.Yield()
	require.Equal(t, io.EOF, err)

	b.Reset()
	spec, _, _, err := b.Yield()
	require.NoError(t, err)
	require.Equal(t, []string{"id0", "id1"}, spec)
}

func TestDropIncomplete(t *testing.T) {
	b, err := New(&fakeSource{n: 5}, 2, WithDropIncomplete())
	require.NoError(t, err)

	batches := 0
	for {
		_, _, _, err := b.Yield()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		batches++
	}
	require.Equal(t, 2, batches)
}

func TestShuffleIsSeeded(t *testing.T) {
	collect := func() []string {
		b, err := New(&fakeSource{n: 8}, 8, WithShuffle(3))
		require.NoError(t, err)
		spec, _, _, err := b.Yield()
		require.NoError(t, err)
		return spec.([]string)
	}
	first := collect()
	require.Equal(t, first, collect())
	require.ElementsMatch(t, []string{"id0", "id1", "id2", "id3", "id4", "id5", "id6", "id7"}, first)
}

func TestSeedsDifferPerExample(t *testing.T) {
	src := &fakeSource{n: 4, seeds: map[int]int64{}}
	b, err := New(src, 4)
	require.NoError(t, err)
	_, _, _, err = b.Yield()
	require.NoError(t, err)

	seen := map[int64]bool{}
	for _, s := range src.seeds {
		seen[s] = true
	}
	require.Len(t, seen, 4)
}

func TestNewRejectsBadBatchSize(t *testing.T) {
	_, err := New(&fakeSource{n: 1}, 0)
	require.Error(t, err)
}
