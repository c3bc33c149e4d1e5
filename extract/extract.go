// Package extract pulls plain text and embedded images out of PDF documents.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/wudi/pdfmaster/pagerange"
	"github.com/wudi/pdfmaster/pdferr"
)

// PageText is the plain text of one page.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Text returns the plain text of the selected pages of the document in r.
// An empty selection means every page.
func Text(ctx context.Context, r io.ReaderAt, size int64, sel pagerange.Set) (pages []PageText, err error) {
	const op = "extract text"
	defer func() {
		// The text layer parser panics on some malformed streams.
		if rec := recover(); rec != nil {
			pages, err = nil, pdferr.Processing(op, fmt.Errorf("%v", rec))
		}
	}()
	rd, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, pdferr.Processing(op, err)
	}
	total := rd.NumPage()
	if sel.Empty() {
		sel = pagerange.All(total)
	}
	for _, n := range sel.Pages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if n > total {
			break
		}
		p := rd.Page(n)
		if p.V.IsNull() {
			pages = append(pages, PageText{Page: n})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, pdferr.Processing(fmt.Sprintf("%s page %d", op, n), err)
		}
		pages = append(pages, PageText{Page: n, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}

// Image is an image XObject found on a page.
type Image struct {
	Page   int    `json:"page"`
	ObjNr  int    `json:"object"`
	Name   string `json:"name"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"-"`
}

// Filename returns a unique file name for the image within its document.
func (img Image) Filename() string {
	name := img.Name
	if name == "" {
		name = "img"
	}
	return fmt.Sprintf("page-%03d-%d-%s.%s", img.Page, img.ObjNr, name, img.Format)
}

// Images returns the images of the selected pages of the document in rs.
// An empty selection means every page.
func Images(ctx context.Context, rs io.ReadSeeker, sel pagerange.Set, conf *model.Configuration) ([]Image, error) {
	const op = "extract images"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pages []string
	if !sel.Empty() {
		pages = sel.Strings()
	}
	if conf == nil {
		conf = model.NewDefaultConfiguration()
	}
	perPage, err := api.ExtractImagesRaw(rs, pages, conf)
	if err != nil {
		return nil, pdferr.Processing(op, err)
	}
	var out []Image
	for _, m := range perPage {
		for _, raw := range m {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := io.ReadAll(raw)
			if err != nil {
				return nil, pdferr.IO(op, err)
			}
			img := Image{
				Page:   raw.PageNr,
				ObjNr:  raw.ObjNr,
				Name:   raw.Name,
				Format: raw.FileType,
				Width:  raw.Width,
				Height: raw.Height,
				Data:   data,
			}
			if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
				img.Format, img.Width, img.Height = format, cfg.Width, cfg.Height
			}
			if img.Format == "" {
				img.Format = "bin"
			}
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].ObjNr < out[j].ObjNr
	})
	return out, nil
}

// DetectFormat reports the codec of an encoded image, e.g. "png" or "tiff".
func DetectFormat(data []byte) (string, bool) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	return format, true
}
