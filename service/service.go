// Package service implements the user-level PDF operations shared by the
// HTTP API and the command line.
//
// Every operation validates its arguments before touching the file system,
// stages inputs in the temp store, runs the transformation and returns a
// Result that owns the output file. All intermediate files are released on
// every exit path; the caller releases the Result after delivering it.
package service

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/wudi/pdfmaster/observability"
	"github.com/wudi/pdfmaster/ocr"
	"github.com/wudi/pdfmaster/pagerange"
	"github.com/wudi/pdfmaster/pdferr"
	"github.com/wudi/pdfmaster/pdfio"
	"github.com/wudi/pdfmaster/tempstore"
	"github.com/wudi/pdfmaster/transform"
)

const (
	ContentTypePDF = "application/pdf"
	ContentTypeZip = "application/zip"
)

// Upload is one input document.
type Upload struct {
	Name string
	Body io.Reader
}

func (u Upload) name() string {
	if u.Name == "" {
		return "document.pdf"
	}
	return u.Name
}

type Service struct {
	store  *tempstore.Store
	engine *pdfio.Engine
	ocr    ocr.Engine
	logger observability.Logger
	tracer observability.Tracer
}

type Option func(*Service)

func WithLogger(l observability.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTracer(t observability.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithOCR sets the engine used by RecognizeImages. Without it the
// engine installed in package ocr at call time is used.
func WithOCR(e ocr.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.ocr = e
		}
	}
}

func New(store *tempstore.Store, engine *pdfio.Engine, opts ...Option) *Service {
	s := &Service{
		store:  store,
		engine: engine,
		logger: observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the temp store used for staging.
func (s *Service) Store() *tempstore.Store { return s.store }

// Result is a finished output file. Close releases it.
type Result struct {
	Name        string
	ContentType string
	file        *tempstore.File
}

// Open returns the output positioned at its start. It stays valid until
// Close.
func (r *Result) Open() (io.ReadSeeker, error) {
	if err := r.file.Rewind(); err != nil {
		return nil, err
	}
	return r.file.File, nil
}

// Size returns the output size in bytes.
func (r *Result) Size() (int64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, pdferr.IO("stat result", err)
	}
	return info.Size(), nil
}

// WriteTo copies the whole output to w.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	rd, err := r.Open()
	if err != nil {
		return 0, err
	}
	return io.Copy(w, rd)
}

// SaveAs copies the output to path.
func (r *Result) SaveAs(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return pdferr.IO("save "+path, err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		os.Remove(path)
		return pdferr.IO("save "+path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return pdferr.IO("save "+path, err)
	}
	return nil
}

func (r *Result) Close() error { return r.file.Release() }

// planFunc builds the output plan from loaded sources.
type planFunc func(sources []*pdfio.Source) (transform.Document, error)

// op wraps one operation with tracing and logging.
func (s *Service) op(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.StartSpan(ctx, name)
	defer span.Finish()
	start := time.Now()
	err := fn(ctx)
	log := s.logger.With(observability.String("op", name))
	if err != nil {
		span.SetError(err)
		switch pdferr.KindOf(err) {
		case pdferr.KindValidation, pdferr.KindParse:
			log.Info("operation rejected", observability.Error("error", err))
		default:
			log.Error("operation failed", observability.Error("error", err))
		}
		return err
	}
	log.Info("operation completed", observability.Duration(observability.MetricOperationTime, time.Since(start)))
	return nil
}

// stage copies up into the store, tracked by scope, and loads it.
func (s *Service) stage(ctx context.Context, scope *tempstore.Scope, up Upload) (*tempstore.File, *pdfio.Source, error) {
	f, err := s.store.Save(up.name(), up.Body)
	if err != nil {
		return nil, nil, err
	}
	scope.Track(f)
	src, err := s.engine.Load(ctx, f, up.name())
	if err != nil {
		return nil, nil, err
	}
	return f, src, nil
}

func (s *Service) load(ctx context.Context, scope *tempstore.Scope, uploads []Upload) ([]*pdfio.Source, error) {
	sources := make([]*pdfio.Source, 0, len(uploads))
	for _, up := range uploads {
		_, src, err := s.stage(ctx, scope, up)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// write materializes doc into a new store file tracked by scope.
func (s *Service) write(ctx context.Context, scope *tempstore.Scope, doc transform.Document, sources []*pdfio.Source, name string) (*Result, error) {
	out, err := s.store.Create("_" + name)
	if err != nil {
		return nil, err
	}
	scope.Track(out)
	if err := s.engine.Write(ctx, doc, sources, out); err != nil {
		return nil, err
	}
	if err := out.Rewind(); err != nil {
		return nil, err
	}
	return &Result{Name: name, ContentType: ContentTypePDF, file: out}, nil
}

// run loads uploads, builds a plan and writes it as outName.
func (s *Service) run(ctx context.Context, name, outName string, uploads []Upload, plan planFunc) (*Result, error) {
	var res *Result
	err := s.op(ctx, name, func(ctx context.Context) error {
		var scope tempstore.Scope
		defer scope.Release()

		sources, err := s.load(ctx, &scope, uploads)
		if err != nil {
			return err
		}
		doc, err := plan(sources)
		if err != nil {
			return err
		}
		r, err := s.write(ctx, &scope, doc, sources, outName)
		if err != nil {
			return err
		}
		scope.Keep(r.file)
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// checkPages validates the syntax of a page selection before any file is
// read. Out-of-range indices are resolved later against the real document.
func checkPages(spec string) error {
	if strings.TrimSpace(spec) == "" || pagerange.IsAll(spec) {
		return nil
	}
	_, err := pagerange.Parse(spec, 0)
	return err
}

func selectPages(spec string, total int) (pagerange.Set, error) {
	if strings.TrimSpace(spec) == "" {
		spec = "all"
	}
	return pagerange.Select(spec, total)
}
