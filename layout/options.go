package layout

import "fmt"

// 默认版式与原始笔记导出一致：US Letter 纸张，四边 20pt。
const (
	DefaultPageWidth     = 612.0
	DefaultPageHeight    = 792.0
	DefaultMargin        = 20.0
	DefaultFontSizeTitle = 18.0
	DefaultFontSizeBody  = 14.0
	DefaultTitleSpacing  = 10.0
	DefaultLineSpacing   = 6.0
)

// Options 配置一次排版所需的页面几何、字体与排版后端。
type Options struct {
	PageWidth     float64
	PageHeight    float64
	Margin        float64 // 四边统一边距
	FontSizeTitle float64
	FontSizeBody  float64
	TitleSpacing  float64 // 标题与正文之间的间距
	LineSpacing   float64 // 正文之后、下一条之前的间距

	// TitleFont/BodyFont 只需给出 Name/Src/LineHeight，字号与粗细由上面的字段决定。
	TitleFont FontSpec
	BodyFont  FontSpec
	TextColor Color

	Meta       DocumentMeta
	Typesetter Typesetter
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
type Typesetter interface {
	LayoutLines(content string, width float64, font FontSpec) ([]TextLine, error)
}

// DefaultOptions 返回默认版式，Typesetter 需由调用方注入。
func DefaultOptions() Options {
	return Options{
		PageWidth:     DefaultPageWidth,
		PageHeight:    DefaultPageHeight,
		Margin:        DefaultMargin,
		FontSizeTitle: DefaultFontSizeTitle,
		FontSizeBody:  DefaultFontSizeBody,
		TitleSpacing:  DefaultTitleSpacing,
		LineSpacing:   DefaultLineSpacing,
		TitleFont:     FontSpec{Name: "Title"},
		BodyFont:      FontSpec{Name: "Body"},
		Meta:          DocumentMeta{Creator: "classnotes"},
	}
}

// Validate 检查几何参数。边距过大（>= 页高一半）不算错误，只会导致内容溢出。
func (o Options) Validate() error {
	if o.Typesetter == nil {
		return fmt.Errorf("layout: 缺少排版后端 Typesetter")
	}
	if o.PageWidth <= 0 || o.PageHeight <= 0 {
		return fmt.Errorf("layout: 页面尺寸必须为正数，实际 %gx%g", o.PageWidth, o.PageHeight)
	}
	if o.Margin < 0 {
		return fmt.Errorf("layout: 边距不能为负数：%g", o.Margin)
	}
	if o.FontSizeTitle <= 0 || o.FontSizeBody <= 0 {
		return fmt.Errorf("layout: 字号必须为正数（title=%g body=%g）", o.FontSizeTitle, o.FontSizeBody)
	}
	if o.TitleSpacing < 0 || o.LineSpacing < 0 {
		return fmt.Errorf("layout: 间距不能为负数（titleSpacing=%g lineSpacing=%g）", o.TitleSpacing, o.LineSpacing)
	}
	return nil
}

// ContentWidth 返回可用的文本宽度。
func (o Options) ContentWidth() float64 { return o.PageWidth - 2*o.Margin }

func (o Options) titleFont() FontSpec {
	f := o.TitleFont
	if f.Name == "" {
		f.Name = "Title"
	}
	f.Bold = true
	f.Size = o.FontSizeTitle
	return f
}

func (o Options) bodyFont() FontSpec {
	f := o.BodyFont
	if f.Name == "" {
		f.Name = "Body"
	}
	f.Bold = false
	f.Size = o.FontSizeBody
	return f
}
