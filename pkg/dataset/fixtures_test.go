package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"tofslices/internal/models"
	"tofslices/pkg/nifti"
)

const (
	fixtureNx = 6
	fixtureNy = 8
)

// origValue encodes the voxel position so tests can recover where a cropped
// pixel came from.
func origValue(x, y, z int) float64 {
	return float64(10000*z + 100*x + y)
}

func segValue(x, y, _ int) float64 {
	if (x+y)%2 == 0 {
		return 3
	}
	return 0
}

// writeSubject writes the three volumes of one subject. ext maps each
// sequence to ".nii.gz" or ".nii"; sequences missing from ext are not written.
func writeSubject(t *testing.T, root, name string, depth int, ext map[models.SequenceType]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))

	for seq, e := range ext {
		data := make([]float64, fixtureNx*fixtureNy*depth)
		for z := 0; z < depth; z++ {
			for y := 0; y < fixtureNy; y++ {
				for x := 0; x < fixtureNx; x++ {
					idx := x + y*fixtureNx + z*fixtureNx*fixtureNy
					switch seq {
					case models.TOFOrig:
						data[idx] = origValue(x, y, z)
					case models.TOFPre:
						data[idx] = -origValue(x, y, z)
					case models.Seg:
						data[idx] = segValue(x, y, z)
					}
				}
			}
		}
		v, err := nifti.NewVolume(fixtureNx, fixtureNy, depth, data)
		require.NoError(t, err)
		require.NoError(t, nifti.Write(filepath.Join(dir, name+"_"+seq.Suffix()+e), v))
	}
}

func allCompressed() map[models.SequenceType]string {
	return map[models.SequenceType]string{
		models.TOFOrig: ".nii.gz",
		models.TOFPre:  ".nii.gz",
		models.Seg:     ".nii.gz",
	}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	return l
}
