package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfmaster/extract"
	"github.com/wudi/pdfmaster/ocr"
	"github.com/wudi/pdfmaster/service"
)

// openInputs opens paths as uploads. The returned func closes them.
func openInputs(paths []string) ([]service.Upload, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	ups := make([]service.Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open pdf: %w", err)
		}
		files = append(files, f)
		ups = append(ups, service.Upload{Name: filepath.Base(p), Body: f})
	}
	return ups, closeAll, nil
}

// deliver writes res to out, to stdout when out is "-", or to the result's
// own name when out is empty.
func (a *app) deliver(res *service.Result, out string) error {
	defer res.Close()
	switch out {
	case "-":
		if a.isTerminal(a.stdout) {
			return usagef("refusing to write %s to a terminal; use -o", res.ContentType)
		}
		_, err := res.WriteTo(a.stdout)
		return err
	case "":
		out = safeName(res.Name)
	}
	if err := res.SaveAs(out); err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, out)
	return nil
}

// singleInput parses fs and runs op on its one positional argument.
func (a *app) singleInput(args []string, name string, bind func(fs *flag.FlagSet), op func(svc *service.Service, up service.Upload) (*service.Result, error)) error {
	fs := a.flagSet(name)
	out := fs.String("o", "", "Output file (\"-\" for stdout)")
	if bind != nil {
		bind(fs)
	}
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected one input pdf, got %d", fs.NArg())
	}
	svc, err := a.service()
	if err != nil {
		return err
	}
	ups, done, err := openInputs(fs.Args())
	if err != nil {
		return err
	}
	defer done()
	res, err := op(svc, ups[0])
	if err != nil {
		return err
	}
	return a.deliver(res, *out)
}

func runMerge(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("merge")
	out := fs.String("o", "", "Output file (\"-\" for stdout)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usagef("need at least 2 PDFs")
	}
	svc, err := a.service()
	if err != nil {
		return err
	}
	ups, done, err := openInputs(fs.Args())
	if err != nil {
		return err
	}
	defer done()
	res, err := svc.Merge(ctx, ups)
	if err != nil {
		return err
	}
	return a.deliver(res, *out)
}

func runRotate(ctx context.Context, a *app, args []string) error {
	var pages string
	var angle int
	return a.singleInput(args, "rotate", func(fs *flag.FlagSet) {
		fs.StringVar(&pages, "pages", "all", "Pages to rotate")
		fs.IntVar(&angle, "angle", 0, "Clockwise angle: 90, 180 or 270")
	}, func(svc *service.Service, up service.Upload) (*service.Result, error) {
		return svc.Rotate(ctx, up, pages, angle)
	})
}

func runDelete(ctx context.Context, a *app, args []string) error {
	var pages string
	return a.singleInput(args, "delete", func(fs *flag.FlagSet) {
		fs.StringVar(&pages, "pages", "", "Pages to remove")
	}, func(svc *service.Service, up service.Upload) (*service.Result, error) {
		return svc.Delete(ctx, up, pages)
	})
}

func runWatermark(ctx context.Context, a *app, args []string) error {
	var text string
	return a.singleInput(args, "watermark", func(fs *flag.FlagSet) {
		fs.StringVar(&text, "text", "", "Watermark text")
	}, func(svc *service.Service, up service.Upload) (*service.Result, error) {
		return svc.Watermark(ctx, up, text)
	})
}

func runNumber(ctx context.Context, a *app, args []string) error {
	return a.singleInput(args, "number", nil, func(svc *service.Service, up service.Upload) (*service.Result, error) {
		return svc.NumberPages(ctx, up)
	})
}

func runSplit(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("split")
	dir := fs.String("o", ".", "Output directory")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected one input pdf, got %d", fs.NArg())
	}
	svc, err := a.service()
	if err != nil {
		return err
	}
	ups, done, err := openInputs(fs.Args())
	if err != nil {
		return err
	}
	defer done()
	parts, err := svc.SplitPages(ctx, ups[0])
	if err != nil {
		return err
	}
	defer func() {
		for _, p := range parts {
			p.Close()
		}
	}()
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, p := range parts {
		path := filepath.Join(*dir, safeName(p.Name))
		if err := p.SaveAs(path); err != nil {
			return err
		}
		fmt.Fprintln(a.stderr, path)
	}
	return nil
}

func runText(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("text")
	pages := fs.String("pages", "all", "Pages to read")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected one input pdf, got %d", fs.NArg())
	}
	svc, err := a.service()
	if err != nil {
		return err
	}
	ups, done, err := openInputs(fs.Args())
	if err != nil {
		return err
	}
	defer done()
	text, err := svc.ExtractText(ctx, ups[0], *pages)
	if err != nil {
		return err
	}
	return a.emitSection("text", text)
}

type imageSummary struct {
	Page   int    `json:"page"`
	Name   string `json:"resource"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Path   string `json:"path"`
	Text   string `json:"text,omitempty"`
}

func runImages(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("images")
	pages := fs.String("pages", "all", "Pages to read")
	withOCR := fs.Bool("ocr", false, "Recognize text in every image")
	lang := fs.String("lang", "", "OCR languages, e.g. eng+deu")
	psm := fs.Int("psm", int(ocr.PSMAuto), "OCR page segmentation mode (0-13)")
	dir := fs.String("o", "extract_output", "Output directory")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected one input pdf, got %d", fs.NArg())
	}
	if !ocr.PageSegMode(*psm).Valid() {
		return usagef("invalid -psm %d", *psm)
	}
	if *withOCR && !ocr.Available() {
		return errors.New("OCR is not available in this build; rebuild with -tags tesseract")
	}
	svc, err := a.service()
	if err != nil {
		return err
	}
	ups, done, err := openInputs(fs.Args())
	if err != nil {
		return err
	}
	defer done()
	images, err := svc.ExtractImages(ctx, ups[0], *pages)
	if err != nil {
		return err
	}
	var results []ocr.Result
	if *withOCR {
		opts := []ocr.InputOption{ocr.WithPageSegMode(ocr.PageSegMode(*psm))}
		if *lang != "" {
			opts = append(opts, ocr.WithLanguages(strings.Split(*lang, "+")...))
		}
		if results, err = svc.RecognizeImages(ctx, images, opts...); err != nil {
			return err
		}
	}
	summaries, err := writeImages(*dir, images, results)
	if err != nil {
		return err
	}
	return a.emitSection("images", summaries)
}

func writeImages(dir string, images []extract.Image, results []ocr.Result) ([]imageSummary, error) {
	if len(images) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	text := make(map[string]string, len(results))
	for _, r := range results {
		text[r.InputID] = r.PlainText
	}
	summaries := make([]imageSummary, 0, len(images))
	for _, img := range images {
		path := filepath.Join(dir, safeName(img.Filename()))
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write image %q: %w", path, err)
		}
		summaries = append(summaries, imageSummary{
			Page:   img.Page,
			Name:   img.Name,
			Format: img.Format,
			Width:  img.Width,
			Height: img.Height,
			Path:   path,
			Text:   strings.TrimSpace(text[ocr.ImageID(img)]),
		})
	}
	return summaries, nil
}

func (a *app) emitSection(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	fmt.Fprintf(a.stdout, "%s\n", data)
	return nil
}

func safeName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
