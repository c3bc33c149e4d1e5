package service

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfmaster/extract"
	"github.com/wudi/pdfmaster/ocr"
	"github.com/wudi/pdfmaster/pdferr"
	"github.com/wudi/pdfmaster/pdfio"
	"github.com/wudi/pdfmaster/tempstore"
	"github.com/wudi/pdfmaster/transform"
)

// Merge concatenates the uploads in order into merged.pdf.
func (s *Service) Merge(ctx context.Context, uploads []Upload) (*Result, error) {
	if len(uploads) < 2 {
		return nil, pdferr.Validation("merge", "Need at least 2 PDFs")
	}
	return s.run(ctx, "merge", "merged.pdf", uploads, func(sources []*pdfio.Source) (transform.Document, error) {
		docs := make([]transform.Document, len(sources))
		for i, src := range sources {
			docs[i] = src.Document(i)
		}
		return transform.Merge(docs...)
	})
}

// Rotate turns the selected pages by angle degrees clockwise. pages is a
// page-range expression or "all".
func (s *Service) Rotate(ctx context.Context, up Upload, pages string, angle int) (*Result, error) {
	if angle != 90 && angle != 180 && angle != 270 {
		return nil, pdferr.Validation("rotate", "Angle must be 90, 180, or 270")
	}
	if err := checkPages(pages); err != nil {
		return nil, err
	}
	return s.run(ctx, "rotate", "rotated.pdf", []Upload{up}, func(sources []*pdfio.Source) (transform.Document, error) {
		doc := sources[0].Document(0)
		sel, err := selectPages(pages, doc.Len())
		if err != nil {
			return transform.Document{}, err
		}
		return transform.Rotate(doc, sel, angle)
	})
}

// Delete removes the selected pages.
func (s *Service) Delete(ctx context.Context, up Upload, pages string) (*Result, error) {
	if strings.TrimSpace(pages) == "" {
		return nil, pdferr.Validation("delete", "Pages required")
	}
	if err := checkPages(pages); err != nil {
		return nil, err
	}
	return s.run(ctx, "delete", "deleted.pdf", []Upload{up}, func(sources []*pdfio.Source) (transform.Document, error) {
		doc := sources[0].Document(0)
		sel, err := selectPages(pages, doc.Len())
		if err != nil {
			return transform.Document{}, err
		}
		return transform.Delete(doc, sel), nil
	})
}

// Watermark stamps text diagonally across every page. The output is named
// watermarked_<text>.pdf.
func (s *Service) Watermark(ctx context.Context, up Upload, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, pdferr.Validation("watermark", "Text required")
	}
	return s.run(ctx, "watermark", "watermarked_"+text+".pdf", []Upload{up}, func(sources []*pdfio.Source) (transform.Document, error) {
		return transform.Watermark(sources[0].Document(0), text)
	})
}

// NumberPages writes "Page N" in the bottom-right corner of every page.
func (s *Service) NumberPages(ctx context.Context, up Upload) (*Result, error) {
	return s.run(ctx, "page numbers", "numbered.pdf", []Upload{up}, func(sources []*pdfio.Source) (transform.Document, error) {
		return transform.NumberPages(sources[0].Document(0))
	})
}

// SplitPages writes one single-page PDF per input page. The caller closes
// every returned Result.
func (s *Service) SplitPages(ctx context.Context, up Upload) ([]*Result, error) {
	var out []*Result
	err := s.op(ctx, "split", func(ctx context.Context) error {
		var scope tempstore.Scope
		defer scope.Release()

		sources, err := s.load(ctx, &scope, []Upload{up})
		if err != nil {
			return err
		}
		parts := transform.Split(sources[0].Document(0))
		results := make([]*Result, 0, len(parts))
		for _, part := range parts {
			r, err := s.write(ctx, &scope, part, sources, part.Name+".pdf")
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		for _, r := range results {
			scope.Keep(r.file)
		}
		out = results
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Split is SplitPages packed into split.zip.
func (s *Service) Split(ctx context.Context, up Upload) (*Result, error) {
	parts, err := s.SplitPages(ctx, up)
	if err != nil {
		return nil, err
	}
	defer closeAll(parts)

	entries := make([]zipEntry, len(parts))
	for i, p := range parts {
		p := p
		entries[i] = zipEntry{name: p.Name, write: func(w io.Writer) error {
			_, err := p.WriteTo(w)
			return err
		}}
	}
	return s.zip("split.zip", entries)
}

// ExtractText returns the text of the selected pages in page order.
func (s *Service) ExtractText(ctx context.Context, up Upload, pages string) ([]extract.PageText, error) {
	if err := checkPages(pages); err != nil {
		return nil, err
	}
	var out []extract.PageText
	err := s.op(ctx, "extract text", func(ctx context.Context) error {
		var scope tempstore.Scope
		defer scope.Release()

		f, src, err := s.stage(ctx, &scope, up)
		if err != nil {
			return err
		}
		sel, err := selectPages(pages, src.PageCount())
		if err != nil {
			return err
		}
		if sel.Empty() {
			out = []extract.PageText{}
			return nil
		}
		info, err := f.Stat()
		if err != nil {
			return pdferr.IO("extract text", err)
		}
		out, err = extract.Text(ctx, f, info.Size(), sel)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractImages returns the images embedded in the selected pages.
func (s *Service) ExtractImages(ctx context.Context, up Upload, pages string) ([]extract.Image, error) {
	if err := checkPages(pages); err != nil {
		return nil, err
	}
	var out []extract.Image
	err := s.op(ctx, "extract images", func(ctx context.Context) error {
		var scope tempstore.Scope
		defer scope.Release()

		f, src, err := s.stage(ctx, &scope, up)
		if err != nil {
			return err
		}
		sel, err := selectPages(pages, src.PageCount())
		if err != nil {
			return err
		}
		if sel.Empty() {
			return nil
		}
		if err := f.Rewind(); err != nil {
			return err
		}
		out, err = extract.Images(ctx, f, sel, s.engine.Configuration())
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecognizeImages runs OCR over images. Images that cannot be decoded are
// skipped.
func (s *Service) RecognizeImages(ctx context.Context, images []extract.Image, opts ...ocr.InputOption) ([]ocr.Result, error) {
	engine := s.ocr
	if engine == nil {
		engine = ocr.DefaultEngine()
	}
	var out []ocr.Result
	err := s.op(ctx, "ocr", func(ctx context.Context) error {
		res, err := ocr.RecognizeImages(ctx, engine, images, opts...)
		if err != nil {
			return pdferr.Processing("ocr", err)
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ImagesArchive packs images into images.zip. When results is non-empty
// each recognized image gets a sibling .txt entry.
func (s *Service) ImagesArchive(images []extract.Image, results []ocr.Result) (*Result, error) {
	text := make(map[string]string, len(results))
	for _, r := range results {
		text[r.InputID] = r.PlainText
	}
	entries := make([]zipEntry, 0, len(images))
	for _, img := range images {
		img := img
		entries = append(entries, zipEntry{name: img.Filename(), write: func(w io.Writer) error {
			_, err := w.Write(img.Data)
			return err
		}})
		if t, ok := text[ocr.ImageID(img)]; ok {
			name := strings.TrimSuffix(img.Filename(), filepath.Ext(img.Filename())) + ".txt"
			entries = append(entries, zipEntry{name: name, write: func(w io.Writer) error {
				_, err := w.Write([]byte(t))
				return err
			}})
		}
	}
	return s.zip("images.zip", entries)
}

// TempFiles reports how many files the temp store currently holds.
func (s *Service) TempFiles() (int, error) { return s.store.Count() }

type zipEntry struct {
	name  string
	write func(w io.Writer) error
}

func (s *Service) zip(name string, entries []zipEntry) (*Result, error) {
	out, err := s.store.Create("_" + name)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Result, error) {
		out.Release()
		return nil, err
	}
	zw := zip.NewWriter(out)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return fail(pdferr.IO("zip "+name, err))
		}
		if err := e.write(w); err != nil {
			return fail(pdferr.IO(fmt.Sprintf("zip %s: %s", name, e.name), err))
		}
	}
	if err := zw.Close(); err != nil {
		return fail(pdferr.IO("zip "+name, err))
	}
	if err := out.Rewind(); err != nil {
		return fail(err)
	}
	return &Result{Name: name, ContentType: ContentTypeZip, file: out}, nil
}

func closeAll(results []*Result) {
	for _, r := range results {
		r.Close()
	}
}
