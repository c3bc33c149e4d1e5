package ocr

import "strconv"

// PageSegMode is a Tesseract page segmentation mode.
type PageSegMode int

const (
	PSMAuto        PageSegMode = 3
	PSMSingleBlock PageSegMode = 6
	PSMSingleLine  PageSegMode = 7
	PSMSparseText  PageSegMode = 11
)

// Valid reports whether m is a mode Tesseract accepts.
func (m PageSegMode) Valid() bool { return m >= 0 && m <= 13 }

func withVariable(key, value string) InputOption {
	return func(in *Input) {
		if in.Metadata == nil {
			in.Metadata = make(map[string]string)
		}
		in.Metadata[key] = value
	}
}

// WithPageSegMode sets Tesseract's tessedit_pageseg_mode. Invalid modes are
// ignored.
func WithPageSegMode(mode PageSegMode) InputOption {
	if !mode.Valid() {
		return func(*Input) {}
	}
	return withVariable("tessedit_pageseg_mode", strconv.Itoa(int(mode)))
}

// WithCharWhitelist restricts recognition to chars.
func WithCharWhitelist(chars string) InputOption {
	return withVariable("tessedit_char_whitelist", chars)
}
