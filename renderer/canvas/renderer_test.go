package canvasrenderer

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ByLCY/classnotes/fonts"
	"github.com/ByLCY/classnotes/layout"
)

func bodyFont() layout.FontSpec {
	return layout.FontSpec{Name: "Body", Src: "embed:" + fonts.SansRegular, Size: 12}
}

func TestLayoutLinesGreedyWrapsText(t *testing.T) {
	r := NewRenderer(".")

	// 宽度/字号/行高均为 pt
	lines, err := r.LayoutLines("hello world again", 30, bodyFont())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected wrapping into multiple lines, got %d", len(lines))
	}
	for _, l := range lines {
		if strings.HasSuffix(l.Content, " ") {
			t.Fatalf("line should not keep trailing space: %q", l.Content)
		}
	}
}

func TestGreedyWrapHonorsNewlines(t *testing.T) {
	r := NewRenderer(".")
	lines, err := r.LayoutLines("foo\n\nbar", 300, bodyFont())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines including blank, got %d", len(lines))
	}
	if lines[1].Content != "" {
		t.Fatalf("expected middle line to be blank, got %q", lines[1].Content)
	}
}

// 当第一行宽度与容器宽度恰好相等且后面紧跟一个显式换行时，不应产生额外的空行。
func TestNoBlankLineWhenEqualWidthThenNewline(t *testing.T) {
	r := NewRenderer(".")
	first := "SAMPLE-A"
	measured, err := r.LayoutLines(first, 1e6, bodyFont())
	if err != nil {
		t.Fatalf("measure error: %v", err)
	}
	if len(measured) != 1 {
		t.Fatalf("unexpected measured lines: %d", len(measured))
	}
	limit := measured[0].Width
	if limit <= 0 {
		t.Fatalf("invalid measured width: %g", limit)
	}

	lines, err := r.LayoutLines(first+"\n"+"SAMPLE-B", limit, bodyFont())
	if err != nil {
		t.Fatalf("LayoutLines error: %v", err)
	}
	if got := len(lines); got != 2 {
		t.Fatalf("expected 2 lines without blank, got %d", got)
	}
	if lines[0].Content != first || lines[1].Content != "SAMPLE-B" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestLongWordIsSplitByWidth(t *testing.T) {
	r := NewRenderer(".")
	lines, err := r.LayoutLines(strings.Repeat("W", 40), 60, bodyFont())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected long word to be split, got %d lines", len(lines))
	}
	var joined strings.Builder
	for _, l := range lines {
		if l.Width > 60+1e-6 {
			t.Fatalf("line wider than limit: %g", l.Width)
		}
		joined.WriteString(l.Content)
	}
	if joined.String() != strings.Repeat("W", 40) {
		t.Fatalf("split should keep every rune, got %q", joined.String())
	}
}

// TestLineHeightsInvariant 验证：
// 1) 首行 GapBefore == 0；
// 2) 其余行 GapBefore ≈ max(lineHeight - textHeight, 0)；
// 3) 各行的 Height 与 textHeight 一致。
func TestLineHeightsInvariant(t *testing.T) {
	r := NewRenderer(".")
	font := bodyFont()
	font.LineHeight = 30

	lines, err := r.LayoutLines("a\nb\nc", 300, font)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0].GapBefore != 0 {
		t.Fatalf("first line gap should be 0, got %g", lines[0].GapBefore)
	}
	textHeight := lines[0].Height
	if textHeight <= 0 {
		t.Fatalf("line height should come from font metrics, got %g", textHeight)
	}
	want := math.Max(font.LineHeight-textHeight, 0)
	for i := 1; i < len(lines); i++ {
		if math.Abs(lines[i].GapBefore-want) > 1e-6 {
			t.Fatalf("line %d gap=%g want=%g", i, lines[i].GapBefore, want)
		}
		if math.Abs(lines[i].Height-textHeight) > 1e-6 {
			t.Fatalf("line %d height=%g want=%g", i, lines[i].Height, textHeight)
		}
	}
}

func TestBoldFontIsWiderThanRegular(t *testing.T) {
	r := NewRenderer(".")
	regular := layout.FontSpec{Size: 14}
	bold := layout.FontSpec{Size: 14, Bold: true}
	a, err := r.LayoutLines("Lecture notes", 1e6, regular)
	if err != nil {
		t.Fatalf("regular: %v", err)
	}
	b, err := r.LayoutLines("Lecture notes", 1e6, bold)
	if err != nil {
		t.Fatalf("bold: %v", err)
	}
	if b[0].Width <= a[0].Width {
		t.Fatalf("bold width %g should exceed regular %g", b[0].Width, a[0].Width)
	}
}

func TestFontSourceErrors(t *testing.T) {
	r := NewRenderer("")
	if _, err := r.LayoutLines("x", 100, layout.FontSpec{Src: "fonts/missing.ttf", Size: 12}); err == nil {
		t.Fatalf("relative font path without base dir should fail")
	}
	if _, err := r.LayoutLines("x", 100, layout.FontSpec{Src: "builtin:nope", Size: 12}); err == nil {
		t.Fatalf("unknown builtin font should fail")
	}
	if _, err := r.LayoutLines("x", 100, layout.FontSpec{Src: "embed:nope", Size: 12}); err == nil {
		t.Fatalf("unknown embedded font should fail")
	}
}

func TestBuiltinFontInjection(t *testing.T) {
	data, err := fonts.Load(fonts.SerifRegular)
	if err != nil {
		t.Fatalf("load serif: %v", err)
	}
	r := NewRendererWithOptions(Options{Fonts: map[string]Resource{"serif": {Bytes: data}}})
	lines, err := r.LayoutLines("serif text", 300, layout.FontSpec{Name: "Serif", Src: "builtin:serif", Size: 12})
	if err != nil {
		t.Fatalf("builtin font should load: %v", err)
	}
	if len(lines) != 1 || lines[0].Width <= 0 {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestRenderProducesValidPDF(t *testing.T) {
	r := NewRenderer(".")
	opts := layout.DefaultOptions()
	opts.Typesetter = r
	opts.Meta.Title = "Lecture"

	body := strings.Repeat("The lecturer derives the wave equation from first principles. ", 40)
	entries := make([]layout.Entry, 0, 4)
	for i := 0; i < 4; i++ {
		entries = append(entries, layout.Entry{Index: i, Title: "Image " + string(rune('1'+i)), Body: body})
	}
	doc, err := layout.LayoutDocument(entries, opts)
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	data, err := r.Render(doc)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("page count failed: %v", err)
	}
	if n != len(doc.Pages) {
		t.Fatalf("pdf has %d pages, layout has %d", n, len(doc.Pages))
	}
}

func TestRenderEmptyDocumentYieldsOnePage(t *testing.T) {
	r := NewRenderer(".")
	opts := layout.DefaultOptions()
	opts.Typesetter = r
	doc, err := layout.LayoutDocument(nil, opts)
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	data, err := r.Render(doc)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("page count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("empty document should render 1 page, got %d", n)
	}
}

func TestRenderRejectsNil(t *testing.T) {
	if _, err := NewRenderer(".").Render(nil); err == nil {
		t.Fatalf("nil document should fail")
	}
	if _, err := NewRenderer(".").Render(&layout.Document{}); err == nil {
		t.Fatalf("document without pages should fail")
	}
}
