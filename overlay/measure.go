package overlay

import (
	"bytes"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/math/fixed"
)

// The stamp is drawn with Helvetica-Bold, which is not embeddable here; Go
// Bold has close enough advance widths for fitting.
var (
	faceOnce sync.Once
	face     *font.Face
	faceErr  error

	shapeMu sync.Mutex
	shaper  shaping.HarfbuzzShaper
)

func boldFace() (*font.Face, error) {
	faceOnce.Do(func() {
		face, faceErr = font.ParseTTF(bytes.NewReader(gobold.TTF))
	})
	return face, faceErr
}

// measure returns the advance width of text at the given size in points.
func measure(text string, points float64) (float64, error) {
	f, err := boldFace()
	if err != nil {
		return 0, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return 0, nil
	}
	// Shape at 64pt for precision and scale linearly.
	const ref = 64
	shapeMu.Lock()
	out := shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      f,
		Size:      fixed.I(ref),
		Script:    language.Latin,
		Language:  language.DefaultLanguage(),
	})
	shapeMu.Unlock()
	adv := float64(out.Advance) / 64
	if adv < 0 {
		adv = -adv
	}
	return adv * points / ref, nil
}
