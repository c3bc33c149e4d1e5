package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	imgpng "image/png"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfmaster/extract"
	"github.com/wudi/pdfmaster/internal/pdftest"
	"github.com/wudi/pdfmaster/ocr"
	"github.com/wudi/pdfmaster/pdferr"
	"github.com/wudi/pdfmaster/pdfio"
	"github.com/wudi/pdfmaster/tempstore"
)

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	store, err := tempstore.New(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("tempstore.New() error = %v", err)
	}
	return New(store, pdfio.New(), opts...)
}

func upload(name string, pages ...pdftest.Page) Upload {
	return Upload{Name: name, Body: bytes.NewReader(pdftest.Build(pages...))}
}

func width(w float64) pdftest.Page { return pdftest.Page{Width: w, Height: 300} }

func tempFiles(t *testing.T, s *Service) int {
	t.Helper()
	n, err := s.TempFiles()
	if err != nil {
		t.Fatalf("TempFiles() error = %v", err)
	}
	return n
}

func readResult(t *testing.T, s *Service, r *Result) *pdfio.Source {
	t.Helper()
	rd, err := r.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	src, err := s.engine.Load(context.Background(), rd, r.Name)
	if err != nil {
		t.Fatalf("Load(%s) error = %v", r.Name, err)
	}
	return src
}

func widths(src *pdfio.Source) []float64 {
	var out []float64
	for _, size := range src.Sizes() {
		out = append(out, size.Width)
	}
	return out
}

func readZip(t *testing.T, r *Result) map[string][]byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = data
	}
	return out
}

func TestMergeRequiresTwoInputs(t *testing.T) {
	s := newService(t)
	_, err := s.Merge(context.Background(), []Upload{upload("a.pdf", width(100))})
	if !errors.Is(err, pdferr.ErrValidation) {
		t.Fatalf("Merge() error = %v, want validation error", err)
	}
	if msg, _ := pdferr.Message(err); msg != "Need at least 2 PDFs" {
		t.Fatalf("message = %q", msg)
	}
	if n := tempFiles(t, s); n != 0 {
		t.Fatalf("temp files = %d, want 0", n)
	}
}

func TestMerge(t *testing.T) {
	s := newService(t)
	res, err := s.Merge(context.Background(), []Upload{
		upload("a.pdf", width(101), width(102)),
		upload("b.pdf", width(201), width(202), width(203)),
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Name != "merged.pdf" || res.ContentType != ContentTypePDF {
		t.Fatalf("result = %q %q", res.Name, res.ContentType)
	}
	if diff := cmp.Diff([]float64{101, 102, 201, 202, 203}, widths(readResult(t, s, res))); diff != "" {
		t.Fatalf("page order mismatch (-want +got):\n%s", diff)
	}
	if n := tempFiles(t, s); n != 1 {
		t.Fatalf("temp files = %d, want only the result", n)
	}
	if err := res.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := tempFiles(t, s); n != 0 {
		t.Fatalf("temp files after Close = %d, want 0", n)
	}
}

func TestMergeFailureReleasesFiles(t *testing.T) {
	s := newService(t)
	_, err := s.Merge(context.Background(), []Upload{
		upload("a.pdf", width(101)),
		{Name: "b.pdf", Body: strings.NewReader("not a pdf")},
	})
	if !errors.Is(err, pdferr.ErrProcessing) {
		t.Fatalf("Merge() error = %v, want processing error", err)
	}
	if n := tempFiles(t, s); n != 0 {
		t.Fatalf("temp files = %d, want 0", n)
	}
}

func TestRotate(t *testing.T) {
	s := newService(t)
	res, err := s.Rotate(context.Background(), upload("in.pdf", pdftest.Pages(3)...), "2", 90)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	defer res.Close()
	src := readResult(t, s, res)
	got := []int{src.Rotation(1), src.Rotation(2), src.Rotation(3)}
	if diff := cmp.Diff([]int{0, 90, 0}, got); diff != "" {
		t.Fatalf("rotations mismatch (-want +got):\n%s", diff)
	}
}

func TestRotateDefaultsToAllPages(t *testing.T) {
	s := newService(t)
	res, err := s.Rotate(context.Background(), upload("in.pdf", pdftest.Pages(2)...), "", 180)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	defer res.Close()
	src := readResult(t, s, res)
	if src.Rotation(1) != 180 || src.Rotation(2) != 180 {
		t.Fatalf("rotations = %d, %d", src.Rotation(1), src.Rotation(2))
	}
}

func TestRotateValidatesBeforeIO(t *testing.T) {
	s := newService(t)
	tests := []struct {
		name  string
		pages string
		angle int
		want  error
	}{
		{"angle", "all", 45, pdferr.ErrValidation},
		{"pages", "1,x", 90, pdferr.ErrParse},
		{"reversed", "5-2", 90, pdferr.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := &countingReader{}
			_, err := s.Rotate(context.Background(), Upload{Name: "in.pdf", Body: body}, tt.pages, tt.angle)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Rotate() error = %v, want %v", err, tt.want)
			}
			if body.reads != 0 {
				t.Fatalf("upload was read before validation")
			}
		})
	}
}

type countingReader struct{ reads int }

func (r *countingReader) Read([]byte) (int, error) {
	r.reads++
	return 0, io.EOF
}

func TestDelete(t *testing.T) {
	s := newService(t)
	res, err := s.Delete(context.Background(), upload("in.pdf", pdftest.Pages(3)...), "2")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	defer res.Close()
	if res.Name != "deleted.pdf" {
		t.Fatalf("Name = %q", res.Name)
	}
	if diff := cmp.Diff([]float64{601, 603}, widths(readResult(t, s, res))); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteEveryPage(t *testing.T) {
	s := newService(t)
	_, err := s.Delete(context.Background(), upload("in.pdf", pdftest.Pages(2)...), "all")
	if !errors.Is(err, pdfio.ErrNoPages) {
		t.Fatalf("Delete() error = %v, want ErrNoPages", err)
	}
	if n := tempFiles(t, s); n != 0 {
		t.Fatalf("temp files = %d, want 0", n)
	}
}

func TestDeleteRequiresPages(t *testing.T) {
	s := newService(t)
	_, err := s.Delete(context.Background(), upload("in.pdf", pdftest.Pages(2)...), " ")
	if !errors.Is(err, pdferr.ErrValidation) {
		t.Fatalf("Delete() error = %v, want validation error", err)
	}
}

func TestWatermark(t *testing.T) {
	s := newService(t)
	if _, err := s.Watermark(context.Background(), upload("in.pdf", pdftest.Pages(1)...), "  "); !errors.Is(err, pdferr.ErrValidation) {
		t.Fatalf("Watermark(blank) error = %v, want validation error", err)
	}
	res, err := s.Watermark(context.Background(), upload("in.pdf", pdftest.Pages(2)...), "Draft")
	if err != nil {
		t.Fatalf("Watermark() error = %v", err)
	}
	defer res.Close()
	if res.Name != "watermarked_Draft.pdf" {
		t.Fatalf("Name = %q", res.Name)
	}
	if diff := cmp.Diff([]float64{601, 602}, widths(readResult(t, s, res))); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestWatermarkLongText(t *testing.T) {
	s := newService(t)
	pages := []pdftest.Page{{Width: 612, Height: 792}, {Width: 300, Height: 200}}
	res, err := s.Watermark(context.Background(), upload("in.pdf", pages...), "confidential do not distribute")
	if err != nil {
		t.Fatalf("Watermark() error = %v", err)
	}
	defer res.Close()
	if diff := cmp.Diff([]float64{612, 300}, widths(readResult(t, s, res))); diff != "" {
		t.Fatalf("pages mismatch (-want +got):\n%s", diff)
	}
}

func TestNumberPages(t *testing.T) {
	s := newService(t)
	res, err := s.NumberPages(context.Background(), upload("in.pdf", pdftest.Pages(3)...))
	if err != nil {
		t.Fatalf("NumberPages() error = %v", err)
	}
	defer res.Close()
	if res.Name != "numbered.pdf" {
		t.Fatalf("Name = %q", res.Name)
	}
	if got := readResult(t, s, res).PageCount(); got != 3 {
		t.Fatalf("PageCount() = %d, want 3", got)
	}
}

func TestSplit(t *testing.T) {
	s := newService(t)
	res, err := s.Split(context.Background(), upload("report.pdf", pdftest.Pages(3)...))
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	defer res.Close()
	if res.Name != "split.zip" || res.ContentType != ContentTypeZip {
		t.Fatalf("result = %q %q", res.Name, res.ContentType)
	}
	entries := readZip(t, res)
	var names []string
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	if diff := cmp.Diff([]string{"report_page_1.pdf", "report_page_2.pdf", "report_page_3.pdf"}, names); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	for i, name := range names {
		src, err := s.engine.Load(context.Background(), bytes.NewReader(entries[name]), name)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", name, err)
		}
		if diff := cmp.Diff([]float64{float64(601 + i)}, widths(src)); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
	if n := tempFiles(t, s); n != 1 {
		t.Fatalf("temp files = %d, want only the archive", n)
	}
}

func TestMergeThenSplitRoundTrip(t *testing.T) {
	s := newService(t)
	merged, err := s.Merge(context.Background(), []Upload{
		upload("a.pdf", width(101), width(102)),
		upload("b.pdf", width(201)),
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	defer merged.Close()
	rd, err := merged.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	parts, err := s.SplitPages(context.Background(), Upload{Name: merged.Name, Body: rd})
	if err != nil {
		t.Fatalf("SplitPages() error = %v", err)
	}
	defer closeAll(parts)
	var got []float64
	for _, p := range parts {
		got = append(got, widths(readResult(t, s, p))...)
	}
	if diff := cmp.Diff([]float64{101, 102, 201}, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractText(t *testing.T) {
	s := newService(t)
	pages, err := s.ExtractText(context.Background(), upload("in.pdf", pdftest.Pages(3)...), "2-3")
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if len(pages) != 2 || pages[0].Page != 2 || pages[1].Page != 3 {
		t.Fatalf("pages = %+v", pages)
	}
	if !strings.Contains(pages[0].Text, "Page marker 2") {
		t.Fatalf("page 2 text = %q", pages[0].Text)
	}
	if n := tempFiles(t, s); n != 0 {
		t.Fatalf("temp files = %d, want 0", n)
	}
}

func TestExtractTextOutOfRange(t *testing.T) {
	s := newService(t)
	pages, err := s.ExtractText(context.Background(), upload("in.pdf", pdftest.Pages(2)...), "7-9")
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("pages = %+v, want none", pages)
	}
}

func TestExtractImagesWithoutImages(t *testing.T) {
	s := newService(t)
	images, err := s.ExtractImages(context.Background(), upload("in.pdf", pdftest.Pages(2)...), "all")
	if err != nil {
		t.Fatalf("ExtractImages() error = %v", err)
	}
	if len(images) != 0 {
		t.Fatalf("images = %d, want 0", len(images))
	}
}

type stubOCR struct{}

func (stubOCR) Name() string { return "stub" }

func (stubOCR) Recognize(_ context.Context, in ocr.Input) (ocr.Result, error) {
	return ocr.Result{InputID: in.ID, PlainText: "text of " + in.ID}, nil
}

func TestImagesArchiveWithOCR(t *testing.T) {
	s := newService(t, WithOCR(stubOCR{}))
	var png bytes.Buffer
	if err := imgpng.Encode(&png, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	images := []extract.Image{
		{Page: 1, ObjNr: 7, Name: "Im0", Format: "png", Width: 2, Height: 2, Data: png.Bytes()},
		{Page: 2, ObjNr: 9, Name: "Im1", Format: "bin", Data: []byte("opaque")},
	}
	results, err := s.RecognizeImages(context.Background(), images)
	if err != nil {
		t.Fatalf("RecognizeImages() error = %v", err)
	}
	if len(results) != 1 || results[0].Page != 1 {
		t.Fatalf("results = %+v, want the decodable image only", results)
	}
	res, err := s.ImagesArchive(images, results)
	if err != nil {
		t.Fatalf("ImagesArchive() error = %v", err)
	}
	defer res.Close()
	entries := readZip(t, res)
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	txt := strings.TrimSuffix(images[0].Filename(), ".png") + ".txt"
	if got := string(entries[txt]); got != "text of page-1-7" {
		t.Fatalf("%s = %q", txt, got)
	}
	if !bytes.Equal(entries[images[1].Filename()], []byte("opaque")) {
		t.Fatalf("raw image entry not preserved")
	}
}

func TestCancelledContext(t *testing.T) {
	s := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.NumberPages(ctx, upload("in.pdf", pdftest.Pages(1)...))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("NumberPages() error = %v, want context.Canceled", err)
	}
	if n := tempFiles(t, s); n != 0 {
		t.Fatalf("temp files = %d, want 0", n)
	}
}
