// Package ocr recognizes text in images extracted from scanned PDF pages.
//
// Engines are pluggable. The default engine recognizes nothing; importing
// the tesseract sub-package installs a Tesseract-backed engine instead.
package ocr
