package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/classnotes/fonts"
	"github.com/ByLCY/classnotes/layout"
	"github.com/ByLCY/classnotes/renderer"
)

// Renderer measures and draws layout results via github.com/tdewolff/canvas.
//
// Layout works in points while canvas works in millimeters; conversion happens
// at the boundary of every exported method.
type Renderer struct {
	baseDir string

	// injected resources
	fontBlobs map[string][]byte // by unique name

	fontMu       sync.Mutex
	fontFamilies map[string]*fontFamilyEntry
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Typesetter = (*Renderer)(nil)
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // fonts accessible via builtin:<name>
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving font paths.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		baseDir:      opts.BaseDir,
		fontBlobs:    map[string][]byte{},
		fontFamilies: map[string]*fontFamilyEntry{},
	}
	for name, res := range opts.Fonts {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			r.fontBlobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			data, _ := os.ReadFile(res.Path) // ignore error here; will be caught when actually used
			if len(data) > 0 {
				r.fontBlobs[name] = data
			}
		}
	}
	return r
}

// Render renders the document into a PDF byte slice.
func (r *Renderer) Render(doc *layout.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	return renderer.Encode(doc, r.NewSink(doc.Meta))
}

// NewSink returns a PDF page sink that draws with this renderer's fonts.
func (r *Renderer) NewSink(meta layout.DocumentMeta) *Sink {
	return &Sink{r: r, meta: meta}
}

// Sink writes pages into a single PDF stream.
type Sink struct {
	r      *Renderer
	meta   layout.DocumentMeta
	buf    bytes.Buffer
	writer *pdf.PDF
}

var _ renderer.PageSink = (*Sink)(nil)

// EmitPage draws one page. The PDF writer is opened lazily with the first page's size.
func (s *Sink) EmitPage(page layout.Page) error {
	w, h := toMm(page.Width), toMm(page.Height)
	if s.writer == nil {
		s.writer = pdf.New(&s.buf, w, h, nil)
		applyMeta(s.writer, s.meta)
	} else {
		s.writer.NewPage(w, h)
	}
	c := canvas.New(w, h)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	for _, b := range page.Blocks {
		if err := s.r.drawBlock(ctx, b); err != nil {
			return err
		}
	}
	c.RenderTo(s.writer)
	return nil
}

// Finalize closes the PDF and returns its bytes.
func (s *Sink) Finalize() ([]byte, error) {
	if s.writer == nil {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	if err := s.writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return s.buf.Bytes(), nil
}

func applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：width、字号与返回的行宽/行高均为 pt。
func (r *Renderer) LayoutLines(content string, width float64, font layout.FontSpec) ([]layout.TextLine, error) {
	face, err := r.fontFace(font, layout.Color{})
	if err != nil {
		return nil, err
	}

	lines := greedyWrapTokens(content, width, face)
	textHeight := toPt(face.Metrics().LineHeight)
	if textHeight <= 0 {
		textHeight = font.Size
	}
	leading := 0.0
	if font.LineHeight > 0 {
		leading = math.Max(font.LineHeight-textHeight, 0)
	}
	if len(lines) == 0 {
		lines = []layout.TextLine{{Content: "", Width: 0, Height: textHeight}}
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = textHeight
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else {
			lines[i].GapBefore = leading
		}
	}
	return lines, nil
}

func (r *Renderer) drawBlock(ctx *canvas.Context, b layout.Block) error {
	face, err := r.fontFace(b.Font, b.Color)
	if err != nil {
		return err
	}
	lines := b.Lines
	if len(lines) == 0 && b.Content != "" {
		lines = []layout.TextLine{{Content: b.Content, Width: b.Width, Height: b.Height}}
	}

	x := toMm(b.X)
	cursorY := toMm(b.Y)
	ascent := face.Metrics().Ascent
	for _, line := range lines {
		cursorY += toMm(line.GapBefore)
		if line.Content != "" {
			// 基线位置：行顶部加上字体上升部
			ctx.DrawText(x, cursorY+ascent, canvas.NewTextLine(face, line.Content, canvas.Left))
		}
		cursorY += toMm(line.Height)
	}
	return nil
}

func (r *Renderer) fontFace(font layout.FontSpec, col layout.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	size := font.Size
	if size <= 0 {
		size = layout.DefaultFontSizeBody
	}
	return family.Face(size, colorFromLayout(col), style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font layout.FontSpec) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := canvas.FontRegular
	if font.Bold {
		style = canvas.FontBold
	}
	familyName := font.Name
	if familyName == "" {
		familyName = "Body"
	}
	family := canvas.NewFontFamily(familyName)
	data, err := r.loadFontBytes(font)
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	if err := family.LoadFont(data, 0, style); err != nil {
		return nil, canvas.FontRegular, fmt.Errorf("加载字体 %s 失败: %w", familyName, err)
	}

	r.fontFamilies[key] = &fontFamilyEntry{family: family, style: style}
	return family, style, nil
}

func (r *Renderer) loadFontBytes(font layout.FontSpec) ([]byte, error) {
	src := font.Src
	if src == "" {
		return fonts.Load(fonts.Default(font.Bold))
	}
	if strings.HasPrefix(src, "built-in:") || strings.HasPrefix(src, "builtin:") {
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return nil, fmt.Errorf("找不到内置字体资源 builtin:%s", name)
	}
	if strings.HasPrefix(src, "embed:") {
		return fonts.Load(src)
	}
	path := src
	if r.baseDir == "" && !filepath.IsAbs(path) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 builtin: 或 embed:）", src)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", src, err)
	}
	return data, nil
}

func fontCacheKey(font layout.FontSpec) string {
	return fmt.Sprintf("%s|%s|%t", font.Name, font.Src, font.Bold)
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }

// toMm 将点(pt)转换为毫米(mm)。
func toMm(pt float64) float64 { return pt * layout.PtToMm }

// textWidth 返回以 pt 计的文本宽度。
func textWidth(face *canvas.FontFace, s string) float64 { return toPt(face.TextWidth(s)) }

// greedyWrapTokens 优先在空白处分割，单个词超过限制时在词内拆分；显式换行总是生效。
func greedyWrapTokens(content string, width float64, face *canvas.FontFace) []layout.TextLine {
	limit := width
	if limit <= 0 {
		limit = math.MaxFloat64
	}

	tokens := tokenizeContent(content)
	var lines []layout.TextLine
	var builder strings.Builder
	currentWidth := 0.0

	emit := func(force bool) {
		if builder.Len() == 0 {
			if force {
				lines = append(lines, layout.TextLine{Content: "", Width: 0})
			}
			return
		}
		lineStr := strings.TrimRightFunc(builder.String(), unicode.IsSpace)
		lines = append(lines, layout.TextLine{
			Content: lineStr,
			Width:   textWidth(face, lineStr),
		})
		builder.Reset()
		currentWidth = 0
	}

	appendToken := func(token string) {
		builder.WriteString(token)
		currentWidth += textWidth(face, token)
	}

	for _, token := range tokens {
		if token == "\n" {
			emit(true)
			continue
		}
		isSpace := strings.TrimSpace(token) == ""
		if isSpace && builder.Len() == 0 {
			// 行首空白不占宽度
			continue
		}

		tokenWidth := textWidth(face, token)
		if currentWidth > 0 && currentWidth+tokenWidth > limit {
			if isSpace {
				// 行尾空白直接吞掉，下一词换行
				emit(false)
				continue
			}
			emit(false)
		}
		if tokenWidth <= limit {
			appendToken(token)
			continue
		}

		for _, chunk := range splitTokenByWidth(token, limit, face) {
			chunkWidth := textWidth(face, chunk)
			if currentWidth > 0 && currentWidth+chunkWidth > limit {
				emit(false)
			}
			appendToken(chunk)
		}
	}

	if builder.Len() > 0 {
		emit(false)
	}
	return lines
}

func tokenizeContent(s string) []string {
	var tokens []string
	var builder strings.Builder
	lastWasSpace := false
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		tokens = append(tokens, builder.String())
		builder.Reset()
	}

	for _, r := range s {
		if r == '\r' {
			continue
		}
		if r == '\n' {
			flush()
			tokens = append(tokens, "\n")
			lastWasSpace = false
			continue
		}
		isSpace := unicode.IsSpace(r)
		if builder.Len() == 0 {
			lastWasSpace = isSpace
		} else if lastWasSpace != isSpace {
			flush()
			lastWasSpace = isSpace
		}
		builder.WriteRune(r)
	}
	flush()
	return tokens
}

func splitTokenByWidth(token string, limit float64, face *canvas.FontFace) []string {
	if limit <= 0 || limit == math.MaxFloat64 {
		return []string{token}
	}
	var parts []string
	var builder strings.Builder
	for _, r := range token {
		builder.WriteRune(r)
		if textWidth(face, builder.String()) > limit && builder.Len() > 1 {
			runes := []rune(builder.String())
			parts = append(parts, string(runes[:len(runes)-1]))
			builder.Reset()
			builder.WriteRune(r)
		}
	}
	if builder.Len() > 0 {
		parts = append(parts, builder.String())
	}
	return parts
}
