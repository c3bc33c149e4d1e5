//go:build tesseract

package main

// Installs the gosseract engine as the OCR default. Requires libtesseract.
import _ "github.com/wudi/pdfmaster/ocr/tesseract"
