package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/wudi/pdfmaster/extract"
)

// InputOption mutates an OCR input generated from an extracted image.
type InputOption func(*Input)

// WithLanguages sets language hints on the OCR input.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithRegion sets the recognition region on the OCR input.
func WithRegion(region Region) InputOption {
	return func(in *Input) {
		if region.IsEmpty() {
			in.Region = nil
			return
		}
		in.Region = &region
	}
}

// WithDPI overrides the DPI value on the OCR input.
func WithDPI(dpi int) InputOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithMetadata sets engine-specific variables for the input.
func WithMetadata(metadata map[string]string) InputOption {
	return func(in *Input) {
		if len(metadata) == 0 {
			in.Metadata = nil
			return
		}
		in.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			in.Metadata[k] = v
		}
	}
}

// ImageID is the Input.ID assigned to img by InputFromImage.
func ImageID(img extract.Image) string {
	return fmt.Sprintf("page-%d-%d", img.Page, img.ObjNr)
}

// InputFromImage converts an extracted image into an OCR input. PNG and JPEG
// payloads are passed through; any other decodable format is re-encoded as
// PNG.
func InputFromImage(img extract.Image, opts ...InputOption) (Input, error) {
	in := Input{
		ID:   ImageID(img),
		Page: img.Page,
	}
	switch img.Format {
	case "png":
		in.Image, in.Format = img.Data, ImageFormatPNG
	case "jpeg", "jpg":
		in.Image, in.Format = img.Data, ImageFormatJPEG
	default:
		decoded, _, err := image.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return Input{}, fmt.Errorf("decode %s image: %w", img.Format, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, decoded); err != nil {
			return Input{}, fmt.Errorf("encode png: %w", err)
		}
		in.Image, in.Format = buf.Bytes(), ImageFormatPNG
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in, nil
}
