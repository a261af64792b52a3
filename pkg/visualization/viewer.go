package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"tofslices/pkg/nifti"
)

// Viewer renders slices of a NIfTI volume as 16-bit grayscale images.
// Intensities are windowed to the volume's minimum and maximum.
type Viewer struct {
	// volumeData holds the voxels with x varying fastest
	volumeData []float64

	// dimensions of the volume
	width  int
	height int
	depth  int

	// display window
	low, high float64
}

// NewViewer creates a viewer for the first time point of vol
func NewViewer(vol *nifti.Volume) *Viewer {
	n := vol.Nx * vol.Ny * vol.Nz
	data := vol.Data[:n]
	low, high := window(data)
	return &Viewer{
		volumeData: data,
		width:      vol.Nx,
		height:     vol.Ny,
		depth:      vol.Nz,
		low:        low,
		high:       high,
	}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				idx := z*v.width*v.height + y*v.width + position
				img.SetGray16(z, y, v.gray(v.volumeData[idx]))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				idx := z*v.width*v.height + position*v.width + x
				img.SetGray16(x, z, v.gray(v.volumeData[idx]))
			}
		}

	case "z", "Z":
		// XY plane, the axial slices served by the dataset
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				idx := position*v.width*v.height + y*v.width + x
				img.SetGray16(x, y, v.gray(v.volumeData[idx]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

func (v *Viewer) gray(value float64) color.Gray16 {
	return scale(value, v.low, v.high)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
// using the given file extension (".png", ".jpg" or ".tif").
func (v *Viewer) SaveSliceSequence(axis, outputDir, ext string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d%s", strings.ToLower(axis), pos, ext))
		if err := SaveImage(img, filename, 0); err != nil {
			return err
		}
	}

	return nil
}

// PlaneImage renders a dataset plane. Rows become image rows and columns
// become image columns.
func PlaneImage(plane mat.Matrix) *image.Gray16 {
	r, c := plane.Dims()
	values := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			values = append(values, plane.At(i, j))
		}
	}
	low, high := window(values)

	img := image.NewGray16(image.Rect(0, 0, c, r))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			img.SetGray16(j, i, scale(plane.At(i, j), low, high))
		}
	}
	return img
}

// SaveImage writes img in the format given by the file extension. When size
// is positive the image is resized so its longer side is size pixels.
func SaveImage(img image.Image, filename string, size int) error {
	if size > 0 {
		img = resize(img, size)
	}

	var encode func(io.Writer, image.Image) error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		encode = png.Encode
	case ".jpg", ".jpeg":
		encode = func(w io.Writer, m image.Image) error {
			return jpeg.Encode(w, m, &jpeg.Options{Quality: 90})
		}
	case ".tif", ".tiff":
		encode = func(w io.Writer, m image.Image) error {
			return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
		}
	default:
		return fmt.Errorf("unsupported image format %q", filepath.Ext(filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func resize(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := size, size
	if b.Dx() > b.Dy() {
		h = int(math.Max(1, math.Round(float64(size)*float64(b.Dy())/float64(b.Dx()))))
	} else if b.Dy() > b.Dx() {
		w = int(math.Max(1, math.Round(float64(size)*float64(b.Dx())/float64(b.Dy()))))
	}
	dst := image.NewGray16(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// window returns the minimum and maximum of data
func window(data []float64) (low, high float64) {
	if len(data) == 0 {
		return 0, 0
	}
	return floats.Min(data), floats.Max(data)
}

func scale(value, low, high float64) color.Gray16 {
	if high <= low {
		return color.Gray16{}
	}
	n := (value - low) / (high - low)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, math.Round(n*65535))))}
}
