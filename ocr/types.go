package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Region describes a rectangular area in pixel coordinates with the origin in
// the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is a single image submitted for recognition.
type Input struct {
	// ID is echoed back in the corresponding Result.
	ID string
	// Image is the encoded image payload in the format given by Format.
	Image  []byte
	Format ImageFormat
	// Page is the 1-based PDF page the image was found on.
	Page int
	// DPI is the effective resolution of the image; zero means unknown.
	DPI int
	// Languages are trained-data hints such as "eng" or "deu".
	Languages []string
	// Region restricts recognition to part of the image. Nil means all of it.
	Region *Region
	// Metadata carries engine-specific variables.
	Metadata map[string]string
}

type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result is the recognition output for one input.
type Result struct {
	InputID   string
	Page      int
	PlainText string
	Blocks    []TextBlock
	Language  string
}

// Engine recognizes one image at a time.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine handles several images per call to amortize setup costs.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
