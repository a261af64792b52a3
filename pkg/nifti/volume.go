package nifti

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Volume is a decoded nifti1 image with voxel values as float64.
// Voxels are stored with the first axis varying fastest.
type Volume struct {
	Header Header
	Order  binary.ByteOrder

	Nx, Ny, Nz, Nt int

	// Data holds every voxel after scl_slope/scl_inter scaling
	Data []float64
}

// NewVolume creates a float32 volume of the given dimensions. data must be
// nx*ny*nz long, or nil for a zero volume.
func NewVolume(nx, ny, nz int, data []float64) (*Volume, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("invalid volume dimensions %dx%dx%d", nx, ny, nz)
	}
	if data == nil {
		data = make([]float64, nx*ny*nz)
	}
	if len(data) != nx*ny*nz {
		return nil, fmt.Errorf("volume data has %d voxels, expected %d", len(data), nx*ny*nz)
	}

	var h Header
	h.SizeOfHdr = headerSize
	h.Dim = [8]int16{3, int16(nx), int16(ny), int16(nz), 1, 1, 1, 1}
	h.DataType = DTFloat32
	h.BitPix = 32
	h.PixDim = [8]float32{1, 1, 1, 1, 1, 1, 1, 1}
	h.VoxOffset = minDataOffset
	h.SclSlope = 1
	h.Magic = magicSingleFile

	return &Volume{
		Header: h,
		Order:  binary.LittleEndian,
		Nx:     nx,
		Ny:     ny,
		Nz:     nz,
		Nt:     1,
		Data:   data,
	}, nil
}

// At returns the voxel at (x, y, z) of the first time point
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[x+y*v.Nx+z*v.Nx*v.Ny]
}

// Plane returns the axial plane at z as an Nx×Ny matrix, indexed [x][y].
// For 4D volumes the first time point is used.
func (v *Volume) Plane(z int) (*mat.Dense, error) {
	if z < 0 || z >= v.Nz {
		return nil, fmt.Errorf("slice %d out of range [0, %d)", z, v.Nz)
	}
	d := mat.NewDense(v.Nx, v.Ny, nil)
	base := z * v.Nx * v.Ny
	for y := 0; y < v.Ny; y++ {
		for x := 0; x < v.Nx; x++ {
			d.Set(x, y, v.Data[base+y*v.Nx+x])
		}
	}
	return d, nil
}

// Load reads a .nii or .nii.gz file. Compression is detected from the
// file content, not the extension.
func Load(path string) (*Volume, error) {
	raw, err := readAll(path)
	if err != nil {
		return nil, err
	}

	h, order, err := parseHeader(raw)
	if err != nil {
		return nil, errors.WithMessagef(err, "read %s", path)
	}

	n := h.voxels()
	width := bytesPerVoxel(h.DataType)
	off := h.dataOffset()
	if len(raw) < off+n*width {
		return nil, errors.Wrapf(ErrInvalidHeader, "read %s: file holds %d data bytes, header describes %d",
			path, len(raw)-off, n*width)
	}

	data := decode(raw[off:off+n*width], h.DataType, order, n)
	if slope, inter, ok := h.scaling(); ok {
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	log.WithFields(log.Fields{
		"path": path,
		"nx":   h.extent(1),
		"ny":   h.extent(2),
		"nz":   h.extent(3),
	}).Debug("Loaded nifti1 volume")

	return &Volume{
		Header: h,
		Order:  order,
		Nx:     h.extent(1),
		Ny:     h.extent(2),
		Nz:     h.extent(3),
		Nt:     h.extent(4),
		Data:   data,
	}, nil
}

// ReadHeader reads only the header of a .nii or .nii.gz file
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r, err := maybeGzip(bufio.NewReader(f))
	if err != nil {
		return Header{}, errors.Wrapf(err, "open %s", path)
	}

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, errors.Wrapf(ErrInvalidHeader, "read %s: %v", path, err)
	}

	h, _, err := parseHeader(buf)
	if err != nil {
		return Header{}, errors.WithMessagef(err, "read %s", path)
	}
	return h, nil
}

// Write stores v as a float32 nifti1 file, gzip compressed when the path
// ends in ".gz".
func Write(path string, v *Volume) error {
	if len(v.Data) != v.Nx*v.Ny*v.Nz*max(v.Nt, 1) {
		return fmt.Errorf("volume data has %d voxels, expected %d", len(v.Data), v.Nx*v.Ny*v.Nz*max(v.Nt, 1))
	}

	h := v.Header
	h.SizeOfHdr = headerSize
	h.DataType = DTFloat32
	h.BitPix = 32
	h.VoxOffset = minDataOffset
	h.SclSlope = 1
	h.SclInter = 0
	h.Magic = magicSingleFile

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return errors.Wrap(err, "encode header")
	}
	// empty extension block
	buf.Write([]byte{0, 0, 0, 0})
	for _, x := range v.Data {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(x)))
		buf.Write(b[:])
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}

	if err := writeData(f, path, buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	return nil
}

func writeData(w io.Writer, path string, b []byte) error {
	if strings.HasSuffix(path, ".gz") {
		zw := gzip.NewWriter(w)
		if _, err := zw.Write(b); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
		if err := zw.Close(); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
		return nil
	}

	if _, err := w.Write(b); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r, err := maybeGzip(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return b, nil
}

// maybeGzip wraps r in a gzip reader when the stream starts with the gzip magic
func maybeGzip(r *bufio.Reader) (io.Reader, error) {
	magic, err := r.Peek(2)
	if err != nil {
		if err == io.EOF {
			return r, nil
		}
		return nil, err
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(r)
	}
	return r, nil
}

func decode(b []byte, dt int16, order binary.ByteOrder, n int) []float64 {
	out := make([]float64, n)
	switch dt {
	case DTUint8:
		for i := range out {
			out[i] = float64(b[i])
		}
	case DTInt8:
		for i := range out {
			out[i] = float64(int8(b[i]))
		}
	case DTInt16:
		for i := range out {
			out[i] = float64(int16(order.Uint16(b[2*i:])))
		}
	case DTUint16:
		for i := range out {
			out[i] = float64(order.Uint16(b[2*i:]))
		}
	case DTInt32:
		for i := range out {
			out[i] = float64(int32(order.Uint32(b[4*i:])))
		}
	case DTUint32:
		for i := range out {
			out[i] = float64(order.Uint32(b[4*i:]))
		}
	case DTFloat32:
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(b[4*i:])))
		}
	case DTInt64:
		for i := range out {
			out[i] = float64(int64(order.Uint64(b[8*i:])))
		}
	case DTUint64:
		for i := range out {
			out[i] = float64(order.Uint64(b[8*i:]))
		}
	case DTFloat64:
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(b[8*i:]))
		}
	}
	return out
}
