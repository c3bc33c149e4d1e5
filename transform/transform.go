// Package transform implements the page-stream operations of pdfmaster over
// an in-memory page sequence: merge, split, rotate, delete and overlay.
//
// A Document here is only a plan. Pages are handles into source documents;
// the pdfio package turns a plan into an actual PDF. Every operation returns
// a new Document and leaves its inputs untouched.
package transform

import (
	"fmt"
	"strings"

	"github.com/wudi/pdfmaster/overlay"
	"github.com/wudi/pdfmaster/pagerange"
	"github.com/wudi/pdfmaster/pdferr"
)

// Page is a handle to page Number (1-based) of source document Source.
type Page struct {
	Source   int
	Number   int
	Size     overlay.Size
	Rotation int
	Overlays []overlay.Overlay
}

type Document struct {
	Name  string
	Pages []Page
}

// Len returns the number of pages.
func (d Document) Len() int { return len(d.Pages) }

func (d Document) clone() Document {
	out := Document{Name: d.Name, Pages: make([]Page, len(d.Pages))}
	for i, p := range d.Pages {
		p.Overlays = append([]overlay.Overlay(nil), p.Overlays...)
		out.Pages[i] = p
	}
	return out
}

// Merge concatenates the pages of docs in order. At least two documents are
// required.
func Merge(docs ...Document) (Document, error) {
	if len(docs) < 2 {
		return Document{}, pdferr.Validation("merge", "Need at least 2 PDFs")
	}
	out := Document{Name: "merged"}
	for _, d := range docs {
		out.Pages = append(out.Pages, d.clone().Pages...)
	}
	return out, nil
}

// Split returns one single-page document per page, named after the page's
// 1-based position in doc.
func Split(doc Document) []Document {
	base := strings.TrimSuffix(doc.Name, ".pdf")
	if base == "" {
		base = "document"
	}
	src := doc.clone()
	out := make([]Document, len(src.Pages))
	for i, p := range src.Pages {
		out[i] = Document{
			Name:  fmt.Sprintf("%s_page_%d", base, i+1),
			Pages: []Page{p},
		}
	}
	return out
}

// Rotate adds angle degrees clockwise to every selected page. Rotation is
// cumulative and kept in [0, 360).
func Rotate(doc Document, sel pagerange.Set, angle int) (Document, error) {
	switch angle {
	case 90, 180, 270:
	default:
		return Document{}, pdferr.Validation("rotate", fmt.Sprintf("angle must be 90, 180 or 270, got %d", angle))
	}
	out := doc.clone()
	for i := range out.Pages {
		if sel.Contains(i + 1) {
			out.Pages[i].Rotation = (out.Pages[i].Rotation + angle) % 360
		}
	}
	return out, nil
}

// Delete keeps the pages whose 1-based position is not in sel. Deleting
// every page yields an empty document.
func Delete(doc Document, sel pagerange.Set) Document {
	src := doc.clone()
	out := Document{Name: doc.Name}
	for i, p := range src.Pages {
		if !sel.Contains(i + 1) {
			out.Pages = append(out.Pages, p)
		}
	}
	return out
}

// Overlay merges one generated overlay onto every page, in place and in
// order. gen receives the 1-based page position and the page size.
func Overlay(doc Document, gen func(index int, size overlay.Size) (overlay.Overlay, error)) (Document, error) {
	out := doc.clone()
	for i := range out.Pages {
		o, err := gen(i+1, out.Pages[i].Size)
		if err != nil {
			return Document{}, err
		}
		out.Pages[i].Overlays = append(out.Pages[i].Overlays, o)
	}
	return out, nil
}

// Watermark stamps text diagonally on every page, sized to each page.
func Watermark(doc Document, text string, opts ...overlay.Option) (Document, error) {
	if strings.TrimSpace(text) == "" {
		return Document{}, pdferr.Validation("watermark", "Text required")
	}
	return Overlay(doc, func(_ int, size overlay.Size) (overlay.Overlay, error) {
		return overlay.Watermark(text, size, opts...)
	})
}

// NumberPages stamps "Page n" on every page.
func NumberPages(doc Document, opts ...overlay.Option) (Document, error) {
	return Overlay(doc, func(index int, size overlay.Size) (overlay.Overlay, error) {
		return overlay.PageNumber(index, size, opts...)
	})
}
