// Package httpapi exposes the PDF operations over HTTP.
package httpapi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/wudi/pdfmaster/observability"
	"github.com/wudi/pdfmaster/ocr"
	"github.com/wudi/pdfmaster/pdferr"
	"github.com/wudi/pdfmaster/service"
)

// StatusRunning is reported by the health endpoint.
const StatusRunning = "PDF Master Pro API Running"

// DefaultMaxUpload bounds a request body unless WithMaxUpload is given.
const DefaultMaxUpload = 100 << 20

// Multipart data above this size is spooled to disk while parsing.
const formMemory = 32 << 20

//go:embed docs.md
var docsMarkdown []byte

// Handler routes API requests to a service.Service.
type Handler struct {
	svc       *service.Service
	logger    observability.Logger
	maxUpload int64
	docs      []byte
	mux       *http.ServeMux
	root      http.Handler
}

type Option func(*Handler)

func WithLogger(l observability.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMaxUpload limits the request body to n bytes.
func WithMaxUpload(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// NewHandler builds the API around svc.
func NewHandler(svc *service.Service, opts ...Option) (*Handler, error) {
	h := &Handler{
		svc:       svc,
		logger:    observability.NopLogger{},
		maxUpload: DefaultMaxUpload,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	var buf bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := md.Convert(docsMarkdown, &buf); err != nil {
		return nil, err
	}
	h.docs = buf.Bytes()

	h.mux.HandleFunc("GET /{$}", h.health)
	h.mux.HandleFunc("GET /docs", h.serveDocs)
	h.mux.HandleFunc("POST /merge", h.merge)
	h.mux.HandleFunc("POST /split", h.split)
	h.mux.HandleFunc("POST /rotate", h.rotate)
	h.mux.HandleFunc("POST /delete", h.delete)
	h.mux.HandleFunc("POST /watermark", h.watermark)
	h.mux.HandleFunc("POST /page-numbers", h.pageNumbers)
	h.mux.HandleFunc("POST /extract/text", h.extractText)
	h.mux.HandleFunc("POST /extract/images", h.extractImages)
	h.root = cors(h.logRequests(h.mux))
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.bytes += int64(n)
	return n, err
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		h.logger.Info("request",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.Int("status", rec.status),
			observability.Int64("bytes", rec.bytes),
			observability.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// fail reports err. Rejected input keeps its message; anything else is
// answered with failure, the operation's generic message.
func (h *Handler) fail(w http.ResponseWriter, failure string, err error) {
	if msg, ok := pdferr.Message(err); ok {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	writeError(w, http.StatusInternalServerError, failure)
}

func (h *Handler) sendResult(w http.ResponseWriter, r *http.Request, res *service.Result) {
	defer res.Close()
	size, err := res.Size()
	if err != nil {
		h.fail(w, "Download failed", err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Name}))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := res.WriteTo(w); err != nil {
		h.logger.Warn("response aborted",
			observability.String("path", r.URL.Path),
			observability.Error("error", err))
	}
}

// parseForm reads the multipart body, honoring the upload limit. The
// returned cleanup removes spooled parts.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return func() {}, err
		}
		return func() {}, pdferr.Validation("parse form", "Invalid form data")
	}
	return func() { r.MultipartForm.RemoveAll() }, nil
}

// uploads opens every file of field. Closing the returned func closes them.
func uploads(r *http.Request, field string) ([]service.Upload, func(), error) {
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File[field]
	}
	var files []multipart.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	out := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, pdferr.IO("open upload "+fh.Filename, err)
		}
		files = append(files, f)
		out = append(out, service.Upload{Name: fh.Filename, Body: f})
	}
	return out, closeAll, nil
}

func upload(r *http.Request, field string) (service.Upload, func(), error) {
	ups, done, err := uploads(r, field)
	if err != nil {
		return service.Upload{}, done, err
	}
	if len(ups) == 0 {
		return service.Upload{}, done, pdferr.Validation("form", "File required")
	}
	return ups[0], done, nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.TempFiles()
	if err != nil {
		h.logger.Warn("count temp files", observability.Error("error", err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": StatusRunning, "files_in_temp": n})
}

func (h *Handler) serveDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>PDF Master Pro API</title></head><body>\n"))
	w.Write(h.docs)
	w.Write([]byte("</body></html>\n"))
}

// singleFile runs op on the "file" field of a multipart request and sends the
// result.
func (h *Handler) singleFile(w http.ResponseWriter, r *http.Request, failure string, op func(up service.Upload) (*service.Result, error)) {
	cleanup, err := h.parseForm(w, r)
	defer cleanup()
	if err != nil {
		h.fail(w, failure, err)
		return
	}
	up, done, err := upload(r, "file")
	defer done()
	if err != nil {
		h.fail(w, failure, err)
		return
	}
	res, err := op(up)
	if err != nil {
		h.fail(w, failure, err)
		return
	}
	h.sendResult(w, r, res)
}

func (h *Handler) merge(w http.ResponseWriter, r *http.Request) {
	const failure = "Merge failed"
	cleanup, err := h.parseForm(w, r)
	defer cleanup()
	if err != nil {
		h.fail(w, failure, err)
		return
	}
	ups, done, err := uploads(r, "files")
	defer done()
	if err != nil {
		h.fail(w, failure, err)
		return
	}
	res, err := h.svc.Merge(r.Context(), ups)
	if err != nil {
		h.fail(w, failure, err)
		return
	}
	h.sendResult(w, r, res)
}

func (h *Handler) split(w http.ResponseWriter, r *http.Request) {
	h.singleFile(w, r, "Split failed", func(up service.Upload) (*service.Result, error) {
		return h.svc.Split(r.Context(), up)
	})
}

func (h *Handler) rotate(w http.ResponseWriter, r *http.Request) {
	h.singleFile(w, r, "Rotate failed", func(up service.Upload) (*service.Result, error) {
		angle, err := strconv.Atoi(strings.TrimSpace(r.FormValue("angle")))
		if err != nil {
			return nil, pdferr.Validation("rotate", "Angle must be 90, 180, or 270")
		}
		return h.svc.Rotate(r.Context(), up, r.FormValue("pages"), angle)
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	h.singleFile(w, r, "Delete failed", func(up service.Upload) (*service.Result, error) {
		return h.svc.Delete(r.Context(), up, r.FormValue("pages"))
	})
}

func (h *Handler) watermark(w http.ResponseWriter, r *http.Request) {
	h.singleFile(w, r, "Watermark failed", func(up service.Upload) (*service.Result, error) {
		return h.svc.Watermark(r.Context(), up, r.FormValue("text"))
	})
}

func (h *Handler) pageNumbers(w http.ResponseWriter, r *http.Request) {
	h.singleFile(w, r, "Page numbering failed", func(up service.Upload) (*service.Result, error) {
		return h.svc.NumberPages(r.Context(), up)
	})
}

func (h *Handler) extractImages(w http.ResponseWriter, r *http.Request) {
	h.singleFile(w, r, "Image extraction failed", func(up service.Upload) (*service.Result, error) {
		images, err := h.svc.ExtractImages(r.Context(), up, r.FormValue("pages"))
		if err != nil {
			return nil, err
		}
		withOCR, _ := strconv.ParseBool(r.FormValue("ocr"))
		if !withOCR {
			return h.svc.ImagesArchive(images, nil)
		}
		var opts []ocr.InputOption
		if lang := strings.TrimSpace(r.FormValue("lang")); lang != "" {
			opts = append(opts, ocr.WithLanguages(strings.Split(lang, "+")...))
		}
		results, err := h.svc.RecognizeImages(r.Context(), images, opts...)
		if err != nil {
			return nil, err
		}
		return h.svc.ImagesArchive(images, results)
	})
}

func (h *Handler) extractText(w http.ResponseWriter, r *http.Request) {
	const failure = "Text extraction failed"
	cleanup, err := h.parseForm(w, r)
	defer cleanup()
	if err != nil {
		h.fail(w, failure, err)
		return
	}
	up, done, err := upload(r, "file")
	defer done()
	if err != nil {
		h.fail(w, failure, err)
		return
	}
	pages, err := h.svc.ExtractText(r.Context(), up, r.FormValue("pages"))
	if err != nil {
		h.fail(w, failure, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}
