package ocr

import "testing"

func TestEngineVariables(t *testing.T) {
	in := Input{}
	WithPageSegMode(PSMSingleBlock)(&in)
	if got := in.Metadata["tessedit_pageseg_mode"]; got != "6" {
		t.Fatalf("page segmentation mode = %q, want 6", got)
	}
	WithCharWhitelist("0123456789")(&in)
	if got := in.Metadata["tessedit_char_whitelist"]; got != "0123456789" {
		t.Fatalf("whitelist = %q", got)
	}
	WithPageSegMode(PageSegMode(42))(&in)
	if got := in.Metadata["tessedit_pageseg_mode"]; got != "6" {
		t.Fatalf("invalid mode overwrote the variable: %q", got)
	}
}
