package nifti

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestWriteLoadCompressed(t *testing.T) {
	nx, ny, nz := 3, 2, 4
	data := make([]float64, nx*ny*nz)
	for i := range data {
		data[i] = float64(i)
	}
	v, err := NewVolume(nx, ny, nz, data)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "vol.nii.gz")
	require.NoError(t, Write(path, v))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, nx, got.Nx)
	require.Equal(t, ny, got.Ny)
	require.Equal(t, nz, got.Nz)
	require.Equal(t, data, got.Data)

	h, err := ReadHeader(path)
	require.NoError(t, err)
	require.Equal(t, nz, h.Slices())
}

func TestPlaneOrientation(t *testing.T) {
	nx, ny, nz := 3, 2, 2
	data := make([]float64, nx*ny*nz)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				data[x+y*nx+z*nx*ny] = float64(100*z + 10*x + y)
			}
		}
	}
	v, err := NewVolume(nx, ny, nz, data)
	require.NoError(t, err)

	p, err := v.Plane(1)
	require.NoError(t, err)
	r, c := p.Dims()
	require.Equal(t, nx, r)
	require.Equal(t, ny, c)
	require.Equal(t, 121.0, p.At(2, 1))
	require.Equal(t, v.At(2, 1, 1), p.At(2, 1))

	_, err = v.Plane(nz)
	require.Error(t, err)
	_, err = v.Plane(-1)
	require.Error(t, err)
}

func TestLoadBigEndianScaledInt16(t *testing.T) {
	var h Header
	h.SizeOfHdr = headerSize
	h.Dim = [8]int16{3, 2, 2, 1, 1, 1, 1, 1}
	h.DataType = DTInt16
	h.BitPix = 16
	h.VoxOffset = minDataOffset
	h.SclSlope = 2
	h.SclInter = 1
	h.Magic = magicSingleFile

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, &h))
	buf.Write(make([]byte, minDataOffset-headerSize))
	require.NoError(t, binary.Write(&buf, binary.BigEndian, []int16{-1, 0, 1, 2}))

	path := filepath.Join(t.TempDir(), "be.nii")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	v, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, binary.BigEndian, v.Order)
	require.Equal(t, []float64{-1, 1, 3, 5}, v.Data)
	require.Equal(t, 1, v.Nz)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	v, err := NewVolume(1, 1, 1, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "bad.nii")
	require.NoError(t, Write(path, v))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(raw[344:348], []byte("ni1\x00"))
	require.NoError(t, os.WriteFile(path, raw, 0644))

	_, err = Load(path)
	require.True(t, errors.Is(err, ErrInvalidHeader), "got %v", err)
}

func TestLoadTruncatedData(t *testing.T) {
	v, err := NewVolume(4, 4, 4, nil)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "short.nii")
	require.NoError(t, Write(path, v))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw[:len(raw)-8], 0644))

	_, err = Load(path)
	require.True(t, errors.Is(err, ErrInvalidHeader), "got %v", err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.nii.gz"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestLoadRejectsOverflowingDims(t *testing.T) {
	var h Header
	h.SizeOfHdr = headerSize
	h.Dim = [8]int16{7, 32767, 32767, 32767, 32767, 32767, 32767, 32767}
	h.DataType = DTFloat64
	h.BitPix = 64
	h.VoxOffset = minDataOffset
	h.Magic = magicSingleFile

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &h))
	buf.Write(make([]byte, minDataOffset-headerSize+8))

	path := filepath.Join(t.TempDir(), "huge.nii")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	_, err := Load(path)
	require.True(t, errors.Is(err, ErrInvalidHeader), "got %v", err)
	_, err = ReadHeader(path)
	require.True(t, errors.Is(err, ErrInvalidHeader), "got %v", err)
}

// writeWithScaling writes a 2x2x1 volume and patches scl_slope and scl_inter
func writeWithScaling(t *testing.T, data []float64, slope, inter float32) string {
	t.Helper()
	v, err := NewVolume(2, 2, 1, data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "scaled.nii")
	require.NoError(t, Write(path, v))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(raw[112:116], math.Float32bits(slope))
	binary.LittleEndian.PutUint32(raw[116:120], math.Float32bits(inter))
	require.NoError(t, os.WriteFile(path, raw, 0644))
	return path
}

func TestLoadNonFiniteScaling(t *testing.T) {
	data := []float64{0, 1, 2, 3}
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	for _, tc := range []struct {
		name         string
		slope, inter float32
		want         []float64
	}{
		{"nan slope", nan, 0, data},
		{"inf slope", inf, 5, data},
		{"zero slope", 0, 5, data},
		{"nan intercept", 2, nan, []float64{0, 2, 4, 6}},
		{"inf intercept", 2, -inf, []float64{0, 2, 4, 6}},
		{"finite", 2, 1, []float64{1, 3, 5, 7}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Load(writeWithScaling(t, data, tc.slope, tc.inter))
			require.NoError(t, err)
			require.Equal(t, tc.want, v.Data)
		})
	}
}
