// Package overlay generates the single-page stamps that are merged onto
// target pages: diagonal watermarks and page-number labels.
//
// An Overlay describes text drawn at a position, rotation and opacity for
// one page of a known size. Watermark fits its font size to that size so the
// stamp never runs off non-standard pages.
package overlay

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"

	"github.com/wudi/pdfmaster/pdferr"
)

type Kind int

const (
	KindWatermark Kind = iota
	KindPageNumber
)

func (k Kind) String() string {
	switch k {
	case KindWatermark:
		return "watermark"
	case KindPageNumber:
		return "page-number"
	default:
		return "unknown"
	}
}

// Size is a page size in PDF points.
type Size struct {
	Width, Height float64
}

// Letter is the US Letter page size.
var Letter = Size{Width: 612, Height: 792}

func (s Size) valid() bool { return s.Width > 0 && s.Height > 0 }

// Color is an RGB color with components in [0, 1].
type Color struct {
	R, G, B float64
}

func (c Color) hex() string {
	ch := func(v float64) int { return int(math.Round(math.Max(0, math.Min(1, v)) * 255)) }
	return fmt.Sprintf("#%02X%02X%02X", ch(c.R), ch(c.G), ch(c.B))
}

// Anchors understood by the stamp renderer.
const (
	AnchorCenter      = "c"
	AnchorBottomRight = "br"
)

// Overlay is one rendered stamp for one target page.
type Overlay struct {
	Kind     Kind
	Text     string
	Font     string
	Points   int
	Rotation float64
	Opacity  float64
	Color    Color
	Anchor   string
	OffsetX  float64
	OffsetY  float64
	Page     Size
}

// Option adjusts the appearance of a generated overlay.
type Option func(*Overlay)

func WithFont(name string) Option { return func(o *Overlay) { o.Font = name } }

// WithPoints fixes the font size in whole points. The stamp renderer does not
// accept fractional sizes.
func WithPoints(pt int) Option { return func(o *Overlay) { o.Points = pt } }

func WithOpacity(op float64) Option { return func(o *Overlay) { o.Opacity = op } }

func WithColor(c Color) Option { return func(o *Overlay) { o.Color = c } }

func WithRotation(deg float64) Option { return func(o *Overlay) { o.Rotation = deg } }

// WithMargin sets the distance of a corner-anchored stamp from the page edges.
func WithMargin(m float64) Option {
	return func(o *Overlay) { o.OffsetX, o.OffsetY = -m, m }
}

// Watermark defaults.
const (
	WatermarkFont     = "Helvetica-Bold"
	WatermarkMaxPts   = 80
	WatermarkMinPts   = 8
	WatermarkOpacity  = 0.25
	WatermarkRotation = 45
	watermarkFill     = 0.8
)

var WatermarkColor = Color{R: 0.9, G: 0.1, B: 0.1}

// Page-number defaults.
const (
	PageNumberFont   = "Helvetica"
	PageNumberPoints = 10
	PageNumberMargin = 24
)

var upper = cases.Upper(xlanguage.Und)

// Watermark draws text upper-cased, centered and rotated 45 degrees on a page
// of the given size. Unless WithPoints is given, the font size is the largest
// size up to WatermarkMaxPts at which the rotated text spans no more than 80%
// of the page along its diagonal. WithPoints(WatermarkMaxPts) keeps the fixed
// 80pt size regardless of the page.
func Watermark(text string, page Size, opts ...Option) (Overlay, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Overlay{}, pdferr.Validation("watermark", "Text required")
	}
	if !page.valid() {
		return Overlay{}, pdferr.Validation("watermark", "invalid page size")
	}
	o := Overlay{
		Kind:     KindWatermark,
		Text:     upper.String(text),
		Font:     WatermarkFont,
		Rotation: WatermarkRotation,
		Opacity:  WatermarkOpacity,
		Color:    WatermarkColor,
		Anchor:   AnchorCenter,
		Page:     page,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Points <= 0 {
		pts, err := fitPoints(o.Text, page, o.Rotation)
		if err != nil {
			return Overlay{}, pdferr.Processing("watermark", err)
		}
		o.Points = pts
	}
	return o, nil
}

// PageNumber draws "Page {index}" near the bottom-right corner of a page of
// the given size.
func PageNumber(index int, page Size, opts ...Option) (Overlay, error) {
	if index < 1 {
		return Overlay{}, pdferr.Validation("page number", "page index must be positive")
	}
	if !page.valid() {
		return Overlay{}, pdferr.Validation("page number", "invalid page size")
	}
	o := Overlay{
		Kind:    KindPageNumber,
		Text:    "Page " + strconv.Itoa(index),
		Font:    PageNumberFont,
		Points:  PageNumberPoints,
		Opacity: 1,
		Anchor:  AnchorBottomRight,
		OffsetX: -PageNumberMargin,
		OffsetY: PageNumberMargin,
		Page:    page,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o, nil
}

// fitPoints returns the watermark font size for text on page. A line through
// the page center at angle deg stays inside the page for
// min(w/|cos|, h/|sin|).
func fitPoints(text string, page Size, deg float64) (int, error) {
	unit, err := measure(text, 1)
	if err != nil {
		return 0, err
	}
	if unit <= 0 {
		return WatermarkMaxPts, nil
	}
	rad := deg * math.Pi / 180
	span := math.Inf(1)
	if c := math.Abs(math.Cos(rad)); c > 1e-9 {
		span = page.Width / c
	}
	if s := math.Abs(math.Sin(rad)); s > 1e-9 {
		span = math.Min(span, page.Height/s)
	}
	pts := watermarkFill * span / unit
	pts = math.Min(pts, WatermarkMaxPts)
	pts = math.Max(pts, WatermarkMinPts)
	return int(math.Floor(pts)), nil
}

// Description renders the stamp description understood by pdfcpu.
func (o Overlay) Description() string {
	parts := []string{
		"fontname:" + o.Font,
		"points:" + strconv.Itoa(o.Points),
		"scalefactor:1 abs",
		"rotation:" + num(o.Rotation),
		"opacity:" + num(o.Opacity),
		"fillcolor:" + o.Color.hex(),
		"position:" + o.Anchor,
	}
	if o.OffsetX != 0 || o.OffsetY != 0 {
		parts = append(parts, "offset:"+num(o.OffsetX)+" "+num(o.OffsetY))
	}
	return strings.Join(parts, ", ")
}

// Watermark renders o as a stamp ready to be merged on top of one page.
func (o Overlay) Watermark() (*model.Watermark, error) {
	wm, err := api.TextWatermark(o.Text, o.Description(), true, false, types.POINTS)
	if err != nil {
		return nil, pdferr.Processing("render "+o.Kind.String(), err)
	}
	return wm, nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
