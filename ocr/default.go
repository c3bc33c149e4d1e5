package ocr

import (
	"context"
	"fmt"
	"sync"

	"github.com/wudi/pdfmaster/extract"
)

var (
	defaultMu     sync.RWMutex
	defaultEngine Engine = noopEngine{}
)

// DefaultEngine returns the engine installed with SetDefaultEngine, or an
// engine that recognizes nothing.
func DefaultEngine() Engine {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultEngine
}

// SetDefaultEngine installs engine as the default.
func SetDefaultEngine(engine Engine) {
	defaultMu.Lock()
	defaultEngine = engine
	defaultMu.Unlock()
}

// Available reports whether a real engine has been installed.
func Available() bool {
	_, noop := DefaultEngine().(noopEngine)
	return !noop
}

// RecognizeImages converts images to OCR inputs and invokes engine. Batch
// engines receive all inputs at once; otherwise images are processed
// sequentially. Images that cannot be decoded are skipped.
func RecognizeImages(ctx context.Context, engine Engine, images []extract.Image, opts ...InputOption) ([]Result, error) {
	inputs := make([]Input, 0, len(images))
	for _, img := range images {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		in, err := InputFromImage(img, opts...)
		if err != nil {
			continue
		}
		inputs = append(inputs, in)
	}
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		if res.Page == 0 {
			res.Page = in.Page
		}
		results = append(results, res)
	}
	return results, nil
}

type noopEngine struct{}

func (noopEngine) Name() string { return "noop" }

func (noopEngine) Recognize(_ context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID, Page: input.Page}, nil
}
