// Package gomlxds batches dataset samples into gomlx tensors so the slices
// can be fed to a gomlx training loop.
package gomlxds

import (
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"

	"tofslices/internal/models"
)

// Source is the part of *dataset.Dataset the batcher needs
type Source interface {
	Len() int
	ItemWithSeed(i int, seed int64) (models.Sample, error)
}

// Option configures a Batcher
type Option func(*Batcher)

// WithShuffle shuffles the example order every epoch, starting from seed
func WithShuffle(seed int64) Option {
	return func(b *Batcher) {
		b.shuffle = true
		b.rng = rand.New(rand.NewSource(seed))
	}
}

// WithDropIncomplete skips the last batch of an epoch if it is not full
func WithDropIncomplete() Option {
	return func(b *Batcher) { b.dropIncomplete = true }
}

// WithName sets the name reported by Name
func WithName(name string) Option {
	return func(b *Batcher) { b.name = name }
}

// Batcher yields batches of B×C×H×W float32 tensors. It follows the gomlx
// train.Dataset contract: Yield returns io.EOF at the end of an epoch and
// Reset starts a new one.
type Batcher struct {
	src            Source
	batchSize      int
	name           string
	shuffle        bool
	dropIncomplete bool

	mu    sync.Mutex
	rng   *rand.Rand
	order []int
	next  int
}

// New creates a Batcher over src
func New(src Source, batchSize int, opts ...Option) (*Batcher, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	b := &Batcher{
		src:       src,
		batchSize: batchSize,
		name:      "tof-slices",
		rng:       rand.New(rand.NewSource(0)),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.Reset()
	return b, nil
}

// Name implements train.Dataset
func (b *Batcher) Name() string { return b.name }

// Reset implements train.Dataset
func (b *Batcher) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.src.Len()
	b.order = make([]int, n)
	for i := range b.order {
		b.order[i] = i
	}
	if b.shuffle {
		b.rng.Shuffle(n, func(i, j int) { b.order[i], b.order[j] = b.order[j], b.order[i] })
	}
	b.next = 0
}

// claim reserves the next batch of indices with one transform seed per index.
// Returns nil at the end of the epoch.
func (b *Batcher) claim() (indices []int, seeds []int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := len(b.order) - b.next
	if remaining <= 0 || (b.dropIncomplete && remaining < b.batchSize) {
		return nil, nil
	}
	n := min(b.batchSize, remaining)
	indices = b.order[b.next : b.next+n]
	b.next += n

	seeds = make([]int64, n)
	for i := range seeds {
		seeds[i] = b.rng.Int63()
	}
	return indices, seeds
}

// Yield implements train.Dataset.
//
// spec holds the sample identifiers of the batch as []string; inputs and
// labels each hold one tensor shaped [batch, channels, height, width].
func (b *Batcher) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	indices, seeds := b.claim()
	if indices == nil {
		return nil, nil, nil, io.EOF
	}

	ids := make([]string, 0, len(indices))
	var images, masks []float32
	var imgShape, lblShape [3]int
	for k, idx := range indices {
		sample, err := b.src.ItemWithSeed(idx, seeds[k])
		if err != nil {
			return nil, nil, nil, errors.WithMessagef(err, "failed to read example #%d", idx)
		}

		c, h, w := sample.Image.Shape()
		lc, lh, lw := sample.Label.Shape()
		if k == 0 {
			imgShape = [3]int{c, h, w}
			lblShape = [3]int{lc, lh, lw}
		} else if imgShape != [3]int{c, h, w} || lblShape != [3]int{lc, lh, lw} {
			return nil, nil, nil, errors.Errorf("example #%d has shape %dx%dx%d, batch expects %v", idx, c, h, w, imgShape)
		}

		images = append(images, sample.Image.Float32s()...)
		masks = append(masks, sample.Label.Float32s()...)
		ids = append(ids, sample.ID)
	}

	n := len(indices)
	in := tensors.FromFlatDataAndDimensions(images, n, imgShape[0], imgShape[1], imgShape[2])
	lb := tensors.FromFlatDataAndDimensions(masks, n, lblShape[0], lblShape[1], lblShape[2])
	return ids, []*tensors.Tensor{in}, []*tensors.Tensor{lb}, nil
}
