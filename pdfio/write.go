package pdfio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfmaster/observability"
	"github.com/wudi/pdfmaster/pdferr"
	"github.com/wudi/pdfmaster/transform"
)

// run is a sequence of consecutive pages of one source.
type run struct {
	source int
	pages  []int
}

func runs(doc transform.Document) []run {
	var out []run
	for _, p := range doc.Pages {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.source == p.Source && last.pages[len(last.pages)-1]+1 == p.Number {
				last.pages = append(last.pages, p.Number)
				continue
			}
		}
		out = append(out, run{source: p.Source, pages: []int{p.Number}})
	}
	return out
}

// Write materializes doc, whose pages refer to sources by index, and writes
// the resulting PDF to w. Nothing is written to w unless every step
// succeeds.
func (e *Engine) Write(ctx context.Context, doc transform.Document, sources []*Source, w io.Writer) error {
	const op = "write pdf"
	if len(doc.Pages) == 0 {
		return pdferr.Processing(op, ErrNoPages)
	}
	start := time.Now()

	data, err := e.assemble(ctx, doc, sources)
	if err != nil {
		return err
	}
	if data, err = e.rotate(ctx, doc, data); err != nil {
		return err
	}
	if data, err = e.stamp(ctx, doc, data); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return pdferr.IO(op, err)
	}
	e.logger.Debug("pdf written",
		observability.String("name", doc.Name),
		observability.Int(observability.MetricPageCount, len(doc.Pages)),
		observability.Int64("bytes", int64(len(data))),
		observability.Duration(observability.MetricWriteTime, time.Since(start)))
	return nil
}

// assemble copies the pages of doc, in order, into a new PDF.
func (e *Engine) assemble(ctx context.Context, doc transform.Document, sources []*Source) ([]byte, error) {
	const op = "assemble pages"
	var parts [][]byte
	for _, r := range runs(doc) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.source < 0 || r.source >= len(sources) || sources[r.source] == nil {
			return nil, pdferr.Processing(op, fmt.Errorf("unknown source %d", r.source))
		}
		src := sources[r.source]
		for _, n := range r.pages {
			if n < 1 || n > src.PageCount() {
				return nil, pdferr.Processing(op, fmt.Errorf("%s has no page %d", src.Name, n))
			}
		}
		part, err := pdfcpu.ExtractPages(src.ctx, r.pages, false)
		if err != nil {
			return nil, pdferr.Processing(op, err)
		}
		var buf bytes.Buffer
		if err := api.WriteContext(part, &buf); err != nil {
			return nil, pdferr.Processing(op, err)
		}
		parts = append(parts, buf.Bytes())
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	readers := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		readers[i] = bytes.NewReader(p)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, e.conf); err != nil {
		return nil, pdferr.Processing(op, err)
	}
	return out.Bytes(), nil
}

// rotate applies the rotation of every page on top of its existing /Rotate.
func (e *Engine) rotate(ctx context.Context, doc transform.Document, data []byte) ([]byte, error) {
	const op = "rotate pages"
	rotated := false
	for _, p := range doc.Pages {
		if p.Rotation%360 != 0 {
			rotated = true
			break
		}
	}
	if !rotated {
		return data, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pctx, err := e.read(data)
	if err != nil {
		return nil, pdferr.Processing(op, err)
	}
	for i, p := range doc.Pages {
		if p.Rotation%360 == 0 {
			continue
		}
		d, _, inh, err := pctx.PageDict(i+1, false)
		if err != nil {
			return nil, pdferr.Processing(op, err)
		}
		d["Rotate"] = types.Integer(normalize(inh.Rotate + p.Rotation))
	}
	var out bytes.Buffer
	if err := api.WriteContext(pctx, &out); err != nil {
		return nil, pdferr.Processing(op, err)
	}
	return out.Bytes(), nil
}

// stamp merges the overlays of every page. Overlays are applied in layers so
// that the i-th overlay of each page is merged in the i-th pass.
func (e *Engine) stamp(ctx context.Context, doc transform.Document, data []byte) ([]byte, error) {
	const op = "merge overlays"
	for layer := 0; ; layer++ {
		m := make(map[int]*model.Watermark)
		for i, p := range doc.Pages {
			if layer >= len(p.Overlays) {
				continue
			}
			wm, err := p.Overlays[layer].Watermark()
			if err != nil {
				return nil, err
			}
			m[i+1] = wm
		}
		if len(m) == 0 {
			return data, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if err := api.AddWatermarksMap(bytes.NewReader(data), &out, m, e.conf); err != nil {
			return nil, pdferr.Processing(op, err)
		}
		data = out.Bytes()
	}
}

func (e *Engine) read(data []byte) (*model.Context, error) {
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), e.conf)
	if err != nil {
		return nil, err
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	return pctx, nil
}
