// Package dataset exposes a directory of per-subject TOF angiography volumes
// as a flat sequence of 2D axial slices.
//
// The root directory is expected to contain one folder per subject:
//
//	root/{subject}/{subject}_TOF-orig.nii.gz
//	root/{subject}/{subject}_TOF-pre.nii.gz
//	root/{subject}/{subject}_aneurysms.nii.gz
//
// Each file may also be stored uncompressed with a ".nii" extension.
package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"tofslices/internal/models"
	"tofslices/pkg/nifti"
	"tofslices/pkg/tensor"
	"tofslices/pkg/transform"
)

// DefaultSlicesPerSubject is the number of axial slices assumed for every subject
const DefaultSlicesPerSubject = 140

const (
	compressedExt   = ".nii.gz"
	uncompressedExt = ".nii"
)

// ErrIndexOutOfRange is returned for flat indices outside [0, Len())
var ErrIndexOutOfRange = errors.New("index out of range")

// VolumeLoader loads a volume from disk
type VolumeLoader interface {
	Load(path string) (*nifti.Volume, error)
}

// LoaderFunc adapts a function to VolumeLoader
type LoaderFunc func(path string) (*nifti.Volume, error)

// Load calls f
func (f LoaderFunc) Load(path string) (*nifti.Volume, error) { return f(path) }

// Option configures a Dataset
type Option func(*Dataset)

// WithLoader replaces the nifti loader
func WithLoader(l VolumeLoader) Option {
	return func(d *Dataset) { d.loader = l }
}

// WithSlicesPerSubject overrides DefaultSlicesPerSubject
func WithSlicesPerSubject(n int) Option {
	return func(d *Dataset) { d.slicesPerSubject = n }
}

// WithHeaderSliceCounts reads the slice count of every subject from its
// volume headers at construction. Construction then fails on missing or
// malformed files instead of deferring the error to Item.
func WithHeaderSliceCounts() Option {
	return func(d *Dataset) { d.headerSlices = true }
}

// WithSeed seeds the source of per-access transform seeds
func WithSeed(seed int64) Option {
	return func(d *Dataset) { d.seeds = rand.New(rand.NewSource(seed)) }
}

// WithLogger sets the logger used during construction and loading
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dataset) { d.log = l }
}

// Dataset maps flat indices to (subject, slice) pairs and loads them lazily.
// Subject records never change after New returns.
//
// Item is safe for concurrent use: the shared seed source is locked, and the
// generators handed to the transform are private to one access.
type Dataset struct {
	root      string
	testMode  bool
	transform transform.Transform
	sequences []models.SequenceType
	subjects  []models.Subject

	// offsets[i] is the flat index of the first slice of subject i;
	// offsets[len(subjects)] is the dataset length
	offsets []int

	slicesPerSubject int
	headerSlices     bool
	loader           VolumeLoader
	log              logrus.FieldLogger

	mu    sync.Mutex
	seeds *rand.Rand
}

// New scans root and builds one subject record per subdirectory. No volume
// data is read unless WithHeaderSliceCounts is given. Records are created
// even when no candidate file exists; loading such a subject fails in Item.
func New(root string, tf transform.Transform, testMode bool, opts ...Option) (*Dataset, error) {
	d := &Dataset{
		root:             expandHome(root),
		testMode:         testMode,
		transform:        tf,
		slicesPerSubject: DefaultSlicesPerSubject,
		loader:           LoaderFunc(nifti.Load),
		log:              logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.seeds == nil {
		d.seeds = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if d.slicesPerSubject <= 0 && !d.headerSlices {
		return nil, fmt.Errorf("slices per subject must be positive, got %d", d.slicesPerSubject)
	}

	if testMode {
		d.sequences = models.TestSequences
	} else {
		d.sequences = models.TrainSequences
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", d.root)
	}

	for _, entry := range entries {
		if !d.isDir(entry) {
			continue
		}
		name := entry.Name()
		subj := models.Subject{
			Name:   name,
			Orig:   d.resolve(name, models.TOFOrig),
			Pre:    d.resolve(name, models.TOFPre),
			Seg:    d.resolve(name, models.Seg),
			Slices: d.slicesPerSubject,
		}
		if d.headerSlices {
			n, err := d.headerSliceCount(subj)
			if err != nil {
				return nil, err
			}
			subj.Slices = n
		}
		d.subjects = append(d.subjects, subj)
	}

	d.offsets = make([]int, len(d.subjects)+1)
	for i, s := range d.subjects {
		d.offsets[i+1] = d.offsets[i] + s.Slices
	}

	d.log.WithFields(logrus.Fields{
		"root":     d.root,
		"subjects": len(d.subjects),
		"slices":   d.Len(),
		"testMode": testMode,
	}).Info("Scanned dataset")

	return d, nil
}

func (d *Dataset) isDir(entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(d.root, entry.Name()))
	return err == nil && info.IsDir()
}

// resolve returns the compressed path if it exists, else the uncompressed one
func (d *Dataset) resolve(subject string, seq models.SequenceType) string {
	base := filepath.Join(d.root, subject, subject+"_"+seq.Suffix())
	primary := base + compressedExt
	if _, err := os.Stat(primary); err == nil {
		return primary
	}
	fallback := base + uncompressedExt
	if _, err := os.Stat(fallback); err != nil {
		d.log.WithFields(logrus.Fields{
			"subject":  subject,
			"sequence": seq,
			"path":     fallback,
		}).Debug("No volume found, keeping fallback path")
	}
	return fallback
}

// headerSliceCount returns the smallest slice-axis extent over the active sequences
func (d *Dataset) headerSliceCount(s models.Subject) (int, error) {
	n := -1
	for _, seq := range d.sequences {
		h, err := nifti.ReadHeader(s.Path(seq))
		if err != nil {
			return 0, errors.WithMessagef(err, "subject %s", s.Name)
		}
		if n < 0 || h.Slices() < n {
			n = h.Slices()
		}
	}
	return n, nil
}

// Root returns the scanned directory
func (d *Dataset) Root() string { return d.root }

// TestMode reports whether labels are omitted
func (d *Dataset) TestMode() bool { return d.testMode }

// Sequences returns the active sequence types in channel order
func (d *Dataset) Sequences() []models.SequenceType {
	return append([]models.SequenceType(nil), d.sequences...)
}

// Subjects returns a copy of the subject records
func (d *Dataset) Subjects() []models.Subject {
	return append([]models.Subject(nil), d.subjects...)
}

// Len returns the number of addressable slices
func (d *Dataset) Len() int {
	return d.offsets[len(d.offsets)-1]
}

// Locate converts a flat index to a subject index and a slice index
func (d *Dataset) Locate(i int) (subject, slice int, err error) {
	if i < 0 || i >= d.Len() {
		return 0, 0, errors.Wrapf(ErrIndexOutOfRange, "index %d, length %d", i, d.Len())
	}
	if !d.headerSlices {
		return i / d.slicesPerSubject, i % d.slicesPerSubject, nil
	}
	subject = sort.Search(len(d.subjects), func(k int) bool { return d.offsets[k+1] > i })
	return subject, i - d.offsets[subject], nil
}

// Identifier returns the sample identifier of index i without loading data
func (d *Dataset) Identifier(i int) (string, error) {
	subject, slice, err := d.Locate(i)
	if err != nil {
		return "", err
	}
	last := d.sequences[len(d.sequences)-1]
	return identifier(d.subjects[subject].Path(last), slice), nil
}

// Item loads sample i. The transform, if any, is seeded from the dataset's
// seed source.
func (d *Dataset) Item(i int) (models.Sample, error) {
	return d.ItemWithSeed(i, d.nextSeed())
}

// ItemWithSeed loads sample i and seeds the transform with seed. In training
// mode the image and the label are transformed with two generators built
// from the same seed, so random crops and flips match.
func (d *Dataset) ItemWithSeed(i int, seed int64) (models.Sample, error) {
	subject, slice, err := d.Locate(i)
	if err != nil {
		return models.Sample{}, err
	}
	subj := d.subjects[subject]

	planes := make([]*mat.Dense, 0, len(d.sequences))
	var path string
	for _, seq := range d.sequences {
		path = subj.Path(seq)
		vol, err := d.loader.Load(path)
		if err != nil {
			return models.Sample{}, errors.WithMessagef(err, "subject %s %s", subj.Name, seq)
		}
		plane, err := vol.Plane(slice)
		if err != nil {
			return models.Sample{}, errors.Wrapf(err, "subject %s %s", subj.Name, seq)
		}
		planes = append(planes, plane)
	}

	out, err := tensor.Stack(planes...)
	if err != nil {
		return models.Sample{}, errors.Wrapf(err, "subject %s", subj.Name)
	}

	sample := models.Sample{
		ID:      identifier(path, slice),
		Subject: subject,
		Slice:   slice,
	}

	if d.testMode {
		image := out
		if d.transform != nil {
			image, err = d.apply(image, seed)
			if err != nil {
				return models.Sample{}, err
			}
		}
		sample.Image = image
		sample.Label = image
		return sample, nil
	}

	image, label, err := out.Split()
	if err != nil {
		return models.Sample{}, err
	}
	label = label.Binarize()
	if d.transform != nil {
		if image, err = d.apply(image, seed); err != nil {
			return models.Sample{}, err
		}
		if label, err = d.apply(label, seed); err != nil {
			return models.Sample{}, err
		}
	}
	sample.Image = image
	sample.Label = label
	return sample, nil
}

func (d *Dataset) apply(t *tensor.Tensor, seed int64) (*tensor.Tensor, error) {
	out, err := d.transform.Apply(t, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, errors.Wrap(err, "apply transform")
	}
	return out, nil
}

func (d *Dataset) nextSeed() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seeds.Int63()
}

// identifier cuts path at its first ".nii" and appends the slice suffix
func identifier(path string, slice int) string {
	if k := strings.Index(path, uncompressedExt); k >= 0 {
		path = path[:k]
	}
	return fmt.Sprintf("%s_slice%d.nii", path, slice)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
