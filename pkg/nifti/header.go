// Package nifti reads and writes single-file NIfTI-1 volumes.
//
// Based on the nifti1 header definition,
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nifti

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Header mirrors the 348 byte nifti1 header.
//
// C     Go
// -------------
// int   int32
// float float32
// short int16
// char  int8
type Header struct {
	SizeOfHdr          int32    // Must be 348
	UnusedDataType     [10]int8 // Unused
	UnusedDbName       [18]int8 // Unused
	UnusedExtents      int32    // Unused
	UnusedSessionError int16    // Unused
	UnusedRegular      int8     // Unused
	DimInfo            int8     // MRI slice ordering

	Dim           [8]int16   // Data array dimensions
	IntentP1      float32    // 1st intent parameter
	IntentP2      float32    // 2nd intent parameter
	IntentP3      float32    // 3rd intent parameter
	IntentCode    int16      // NIFTI_INTENT_* code
	DataType      int16      // Defines data type
	BitPix        int16      // Number bits/voxel
	SliceStart    int16      // First slice index
	PixDim        [8]float32 // Grid spacing
	VoxOffset     float32    // Offset into .nii file
	SclSlope      float32    // Data scaling: slope
	SclInter      float32    // Data scaling: offset
	SliceEnd      int16      // Last slice index
	SliceCode     int8       // Slice timing order
	XYZTUnits     int8       // Units of pixdim[1..4]
	CalMax        float32    // Max display intensity
	CalMin        float32    // Min display intensity
	SliceDuration float32    // Time for 1 slice
	TOffset       float32    // Time axis shift
	UnusedGlmax   int32      // Unused
	UnusedGlmin   int32      // Unused

	Descrip [80]int8 // Any text you like
	AuxFile [24]int8 // Auxiliary filename

	QFormCode int16 // NIFTI_XFORM_* code
	SFormCode int16 // NIFTI_XFORM_* code

	QuaternB float32 // Quaternion b params
	QuaternC float32 // Quaternion c params
	QuaternD float32 // Quaternion d params
	QOffsetX float32 // Quaternion x shift
	QOffsetY float32 // Quaternion y shift
	QOffsetZ float32 // Quaternion z shift

	SRowX [4]float32 // 1st row affine transform
	SRowY [4]float32 // 2nd row affine transform
	SRowZ [4]float32 // 3rd row affine transform

	IntentName [16]int8 // 'name' or meaning of data

	Magic [4]int8 // Must be "n+1\0"
}

const (
	headerSize    = 348
	minDataOffset = 352
)

var magicSingleFile = [4]int8{'n', '+', '1', 0}

// Data type codes from nifti1.h
const (
	DTUint8   = 2
	DTInt16   = 4
	DTInt32   = 8
	DTFloat32 = 16
	DTFloat64 = 64
	DTInt8    = 256
	DTUint16  = 512
	DTUint32  = 768
	DTInt64   = 1024
	DTUint64  = 1280
)

var (
	// ErrInvalidHeader is returned for headers that are not single-file nifti1
	ErrInvalidHeader = errors.New("invalid nifti1 header")

	// ErrUnsupportedDataType is returned for voxel types the reader cannot decode
	ErrUnsupportedDataType = errors.New("unsupported nifti1 data type")
)

// bytesPerVoxel returns the voxel width for a data type code, or 0 if unsupported
func bytesPerVoxel(dt int16) int {
	switch dt {
	case DTUint8, DTInt8:
		return 1
	case DTInt16, DTUint16:
		return 2
	case DTInt32, DTUint32, DTFloat32:
		return 4
	case DTInt64, DTUint64, DTFloat64:
		return 8
	default:
		return 0
	}
}

// parseHeader decodes a header and infers its byte order from sizeof_hdr
func parseHeader(b []byte) (Header, binary.ByteOrder, error) {
	var h Header
	if len(b) < headerSize {
		return h, nil, errors.Wrapf(ErrInvalidHeader, "short header: %d bytes", len(b))
	}

	var order binary.ByteOrder = binary.LittleEndian
	if int32(binary.LittleEndian.Uint32(b[:4])) != headerSize {
		order = binary.BigEndian
	}
	if err := binary.Read(bytes.NewReader(b[:headerSize]), order, &h); err != nil {
		return h, nil, errors.Wrap(err, "decode header")
	}

	if err := validateHeader(h); err != nil {
		return h, nil, err
	}

	log.WithFields(log.Fields{
		"byteOrder": order,
		"dim":       h.Dim,
		"dataType":  h.DataType,
	}).Debug("Parsed nifti1 header")

	return h, order, nil
}

func validateHeader(h Header) error {
	switch {
	case h.SizeOfHdr != headerSize:
		return errors.Wrapf(ErrInvalidHeader, "sizeof_hdr is %d", h.SizeOfHdr)
	case h.Magic != magicSingleFile:
		return errors.Wrap(ErrInvalidHeader, "magic is not n+1, data must be stored with the header")
	case h.Dim[0] < 1 || h.Dim[0] > 7:
		return errors.Wrapf(ErrInvalidHeader, "dim[0] is %d", h.Dim[0])
	case bytesPerVoxel(h.DataType) == 0:
		return errors.Wrapf(ErrUnsupportedDataType, "datatype %d", h.DataType)
	}
	for i := 1; i <= int(h.Dim[0]); i++ {
		if h.Dim[i] < 0 {
			return errors.Wrapf(ErrInvalidHeader, "dim[%d] is %d", i, h.Dim[i])
		}
	}
	if math.IsNaN(float64(h.VoxOffset)) || h.VoxOffset < 0 || h.VoxOffset > math.MaxInt32 {
		return errors.Wrapf(ErrInvalidHeader, "vox_offset is %v", h.VoxOffset)
	}

	// voxel count, byte count and end of data must all fit in an int
	n := 1
	for i := 1; i <= 7; i++ {
		e := h.extent(i)
		if n > math.MaxInt/e {
			return errors.Wrapf(ErrInvalidHeader, "dims %v overflow the voxel count", h.Dim)
		}
		n *= e
	}
	width := bytesPerVoxel(h.DataType)
	if n > (math.MaxInt-h.dataOffset())/width {
		return errors.Wrapf(ErrInvalidHeader, "dims %v with %d byte voxels overflow the data size", h.Dim, width)
	}
	return nil
}

// extent returns dim[i], treating missing or zero dimensions as 1
func (h Header) extent(i int) int {
	if i > int(h.Dim[0]) || h.Dim[i] < 1 {
		return 1
	}
	return int(h.Dim[i])
}

// Slices returns the extent of the third (slice) axis
func (h Header) Slices() int {
	return h.extent(3)
}

// voxels returns the total number of voxels described by the header.
// validateHeader guarantees the product fits in an int.
func (h Header) voxels() int {
	n := 1
	for i := 1; i <= 7; i++ {
		n *= h.extent(i)
	}
	return n
}

// scaling returns the scl_slope/scl_inter pair to apply to raw voxel values.
// A zero or non-finite slope means unscaled data; a non-finite intercept
// counts as 0. ok is false when scaling is the identity.
func (h Header) scaling() (slope, inter float64, ok bool) {
	slope, inter = float64(h.SclSlope), float64(h.SclInter)
	if slope == 0 || math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 1, 0, false
	}
	if math.IsNaN(inter) || math.IsInf(inter, 0) {
		inter = 0
	}
	return slope, inter, !(slope == 1 && inter == 0)
}

// dataOffset returns the byte offset of the voxel data
func (h Header) dataOffset() int {
	off := int(h.VoxOffset)
	if off < minDataOffset {
		off = minDataOffset
	}
	return off
}
