package models

import (
	"fmt"

	"tofslices/pkg/tensor"
)

// SequenceType identifies one of the per-subject volumes of the dataset
type SequenceType int

const (
	// TOFOrig is the original time-of-flight angiography volume
	TOFOrig SequenceType = iota

	// TOFPre is the preprocessed time-of-flight volume
	TOFPre

	// Seg is the aneurysm segmentation mask
	Seg
)

// Suffix returns the file name suffix used on disk for the sequence type.
// The segmentation mask is stored as "aneurysms", not "seg".
func (s SequenceType) Suffix() string {
	switch s {
	case TOFOrig:
		return "TOF-orig"
	case TOFPre:
		return "TOF-pre"
	case Seg:
		return "aneurysms"
	default:
		return ""
	}
}

// String returns the logical name of the sequence type
func (s SequenceType) String() string {
	switch s {
	case TOFOrig:
		return "TOF-orig"
	case TOFPre:
		return "TOF-pre"
	case Seg:
		return "seg"
	default:
		return fmt.Sprintf("SequenceType(%d)", int(s))
	}
}

// TestSequences are the sequence types loaded in test mode
var TestSequences = []SequenceType{TOFOrig, TOFPre}

// TrainSequences are the sequence types loaded in training mode.
// The label is always the last entry.
var TrainSequences = []SequenceType{TOFOrig, TOFPre, Seg}

// Subject holds the file paths of one subject directory
type Subject struct {
	// Name is the subject directory name, also used as the file prefix
	Name string

	// Orig is the path of the original TOF volume
	Orig string

	// Pre is the path of the preprocessed TOF volume
	Pre string

	// Seg is the path of the aneurysm segmentation volume
	Seg string

	// Slices is the number of axial slices addressable for this subject
	Slices int
}

// Path returns the file path stored for the given sequence type
func (s Subject) Path(seq SequenceType) string {
	switch seq {
	case TOFOrig:
		return s.Orig
	case TOFPre:
		return s.Pre
	case Seg:
		return s.Seg
	default:
		return ""
	}
}

// Sample is one item produced by the dataset
type Sample struct {
	// Image holds the input channels
	Image *tensor.Tensor

	// Label is the binarized segmentation channel in training mode,
	// or the same tensor as Image in test mode
	Label *tensor.Tensor

	// ID identifies the slice, e.g. ".../subj1_aneurysms_slice7.nii"
	ID string

	// Subject and Slice locate the sample in the dataset
	Subject int
	Slice   int
}
