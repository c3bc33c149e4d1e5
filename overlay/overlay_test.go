package overlay

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/wudi/pdfmaster/pdferr"
)

func TestWatermarkDefaults(t *testing.T) {
	o, err := Watermark("  confidential ", Letter)
	if err != nil {
		t.Fatalf("Watermark() error = %v", err)
	}
	if o.Text != "CONFIDENTIAL" {
		t.Fatalf("unexpected text: %q", o.Text)
	}
	if o.Kind != KindWatermark || o.Anchor != AnchorCenter || o.Rotation != 45 {
		t.Fatalf("unexpected placement: %+v", o)
	}
	if o.Points != WatermarkMaxPts {
		t.Fatalf("short text on letter should use the maximum size, got %v", o.Points)
	}
	if o.Page != Letter {
		t.Fatalf("unexpected page size: %+v", o.Page)
	}
}

func TestWatermarkFitsSmallPages(t *testing.T) {
	small := Size{Width: 200, Height: 120}
	o, err := Watermark("internal use only", small)
	if err != nil {
		t.Fatalf("Watermark() error = %v", err)
	}
	if o.Points >= WatermarkMaxPts || o.Points < WatermarkMinPts {
		t.Fatalf("points not fitted: %v", o.Points)
	}
	width, err := measure(o.Text, float64(o.Points))
	if err != nil {
		t.Fatalf("measure() error = %v", err)
	}
	// 45 degrees through the center of 200x120 spans 120*sqrt(2).
	if limit := 0.8 * 120 * 1.4143; width > limit {
		t.Fatalf("text width %.1f exceeds %.1f", width, limit)
	}

	large, err := Watermark("internal use only", Size{Width: 2000, Height: 1200})
	if err != nil {
		t.Fatalf("Watermark() error = %v", err)
	}
	if large.Points <= o.Points {
		t.Fatalf("larger page should not get a smaller font: %v <= %v", large.Points, o.Points)
	}
}

func TestWatermarkOptions(t *testing.T) {
	o, err := Watermark("draft", Letter, WithPoints(30), WithOpacity(0.5), WithColor(Color{B: 1}), WithRotation(30))
	if err != nil {
		t.Fatalf("Watermark() error = %v", err)
	}
	if o.Points != 30 || o.Opacity != 0.5 || o.Rotation != 30 || o.Color != (Color{B: 1}) {
		t.Fatalf("options not applied: %+v", o)
	}
}

func TestWatermarkValidation(t *testing.T) {
	if _, err := Watermark("   ", Letter); !errors.Is(err, pdferr.ErrValidation) {
		t.Fatalf("blank text error = %v, want validation", err)
	}
	if _, err := Watermark("x", Size{}); !errors.Is(err, pdferr.ErrValidation) {
		t.Fatalf("zero size error = %v, want validation", err)
	}
}

func TestPageNumber(t *testing.T) {
	a4 := Size{Width: 595, Height: 842}
	o, err := PageNumber(3, a4)
	if err != nil {
		t.Fatalf("PageNumber() error = %v", err)
	}
	if o.Text != "Page 3" || o.Anchor != AnchorBottomRight || o.Points != PageNumberPoints {
		t.Fatalf("unexpected overlay: %+v", o)
	}
	if o.OffsetX != -PageNumberMargin || o.OffsetY != PageNumberMargin {
		t.Fatalf("unexpected offset: %v %v", o.OffsetX, o.OffsetY)
	}
	if o.Page != a4 {
		t.Fatalf("page number must use the actual page size, got %+v", o.Page)
	}
	if _, err := PageNumber(0, a4); !errors.Is(err, pdferr.ErrValidation) {
		t.Fatalf("index 0 error = %v, want validation", err)
	}
	m, err := PageNumber(1, a4, WithMargin(10))
	if err != nil || m.OffsetX != -10 || m.OffsetY != 10 {
		t.Fatalf("WithMargin not applied: %+v, %v", m, err)
	}
}

func TestDescription(t *testing.T) {
	o, err := PageNumber(7, Letter)
	if err != nil {
		t.Fatalf("PageNumber() error = %v", err)
	}
	want := "fontname:Helvetica, points:10, scalefactor:1 abs, rotation:0, opacity:1, fillcolor:#000000, position:br, offset:-24 24"
	if got := o.Description(); got != want {
		t.Fatalf("Description() = %q, want %q", got, want)
	}

	w, err := Watermark("x", Letter, WithPoints(80))
	if err != nil {
		t.Fatalf("Watermark() error = %v", err)
	}
	if got := w.Description(); !strings.Contains(got, "fillcolor:#E61A1A") || strings.Contains(got, "offset") {
		t.Fatalf("unexpected watermark description %q", got)
	}
}

func TestRenderWatermark(t *testing.T) {
	o, err := Watermark("secret", Letter)
	if err != nil {
		t.Fatalf("Watermark() error = %v", err)
	}
	wm, err := o.Watermark()
	if err != nil {
		t.Fatalf("render error = %v", err)
	}
	if wm == nil || wm.TextString != "SECRET" {
		t.Fatalf("unexpected rendered watermark: %+v", wm)
	}
}

func TestRenderFittedWatermark(t *testing.T) {
	tests := []struct {
		name string
		text string
		page Size
	}{
		{"long text on letter", "confidential do not distribute", Letter},
		{"short text on small page", "draft", Size{Width: 150, Height: 90}},
		{"landscape", "internal use only until further notice", Size{Width: 842, Height: 595}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := Watermark(tt.text, tt.page)
			if err != nil {
				t.Fatalf("Watermark() error = %v", err)
			}
			if o.Points >= WatermarkMaxPts || o.Points < WatermarkMinPts {
				t.Fatalf("points not fitted: %d", o.Points)
			}
			if !strings.Contains(o.Description(), "points:"+strconv.Itoa(o.Points)+",") {
				t.Fatalf("Description() = %q, want whole points", o.Description())
			}
			wm, err := o.Watermark()
			if err != nil {
				t.Fatalf("render error = %v", err)
			}
			if wm == nil || wm.TextString != o.Text {
				t.Fatalf("unexpected rendered watermark: %+v", wm)
			}
		})
	}
}

func TestFixedWatermarkSize(t *testing.T) {
	o, err := Watermark("internal use only", Size{Width: 200, Height: 120}, WithPoints(WatermarkMaxPts))
	if err != nil {
		t.Fatalf("Watermark() error = %v", err)
	}
	if o.Points != WatermarkMaxPts {
		t.Fatalf("points = %d, want %d", o.Points, WatermarkMaxPts)
	}
	if _, err := o.Watermark(); err != nil {
		t.Fatalf("render error = %v", err)
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{KindWatermark: "watermark", KindPageNumber: "page-number", Kind(9): "unknown"} {
		if got := k.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
