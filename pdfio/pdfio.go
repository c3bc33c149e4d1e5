// Package pdfio reads PDF documents into transform plans and materializes
// plans back into PDF files using pdfcpu.
package pdfio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/wudi/pdfmaster/observability"
	"github.com/wudi/pdfmaster/overlay"
	"github.com/wudi/pdfmaster/pdferr"
	"github.com/wudi/pdfmaster/transform"
)

// ErrNoPages is returned when asked to write a document without pages.
var ErrNoPages = errors.New("document has no pages")

var disableConfigDir sync.Once

type Engine struct {
	conf   *model.Configuration
	logger observability.Logger
}

type Option func(*Engine)

func WithLogger(l observability.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithConfiguration overrides the pdfcpu configuration, e.g. to supply
// passwords for encrypted inputs.
func WithConfiguration(conf *model.Configuration) Option {
	return func(e *Engine) {
		if conf != nil {
			e.conf = conf
		}
	}
}

// New constructs an engine with pdfcpu's default configuration. pdfcpu's
// per-user configuration directory is never consulted.
func New(opts ...Option) *Engine {
	disableConfigDir.Do(api.DisableConfigDir)
	e := &Engine{
		conf:   model.NewDefaultConfiguration(),
		logger: observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configuration returns the pdfcpu configuration used by e.
func (e *Engine) Configuration() *model.Configuration { return e.conf }

// Source is a loaded input document.
type Source struct {
	Name      string
	ctx       *model.Context
	sizes     []overlay.Size
	rotations []int
}

func (s *Source) PageCount() int { return len(s.sizes) }

// Sizes returns the visible size of every page.
func (s *Source) Sizes() []overlay.Size {
	return append([]overlay.Size(nil), s.sizes...)
}

// Rotation returns the /Rotate value of page n (1-based) in the input.
func (s *Source) Rotation(n int) int {
	if n < 1 || n > len(s.rotations) {
		return 0
	}
	return s.rotations[n-1]
}

// Document returns the plan of s as input number index of an operation.
func (s *Source) Document(index int) transform.Document {
	d := transform.Document{Name: s.Name, Pages: make([]transform.Page, len(s.sizes))}
	for i, size := range s.sizes {
		d.Pages[i] = transform.Page{Source: index, Number: i + 1, Size: size}
	}
	return d
}

// Load reads and validates a document.
func (e *Engine) Load(ctx context.Context, rs io.ReadSeeker, name string) (*Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	pctx, err := api.ReadValidateAndOptimize(rs, e.conf)
	if err != nil {
		return nil, pdferr.Processing("read "+name, err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return nil, pdferr.Processing("read "+name, err)
	}
	src := &Source{Name: name, ctx: pctx}
	for n := 1; n <= pctx.PageCount; n++ {
		_, _, inh, err := pctx.PageDict(n, false)
		if err != nil {
			return nil, pdferr.Processing(fmt.Sprintf("read %s page %d", name, n), err)
		}
		src.sizes = append(src.sizes, visibleSize(inh))
		src.rotations = append(src.rotations, normalize(inh.Rotate))
	}
	e.logger.Debug("pdf loaded",
		observability.String("name", name),
		observability.Int(observability.MetricPageCount, src.PageCount()),
		observability.Duration(observability.MetricLoadTime, time.Since(start)))
	return src, nil
}

// LoadFile opens path and loads it.
func (e *Engine) LoadFile(ctx context.Context, path, name string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pdferr.IO("open "+name, err)
	}
	defer f.Close()
	return e.Load(ctx, f, name)
}

func visibleSize(inh *model.InheritedPageAttrs) overlay.Size {
	box := inh.CropBox
	if box == nil {
		box = inh.MediaBox
	}
	if box == nil {
		return overlay.Letter
	}
	size := overlay.Size{Width: box.Width(), Height: box.Height()}
	if normalize(inh.Rotate)%180 == 90 {
		size.Width, size.Height = size.Height, size.Width
	}
	return size
}

func normalize(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
