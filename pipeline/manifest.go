package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ByLCY/classnotes/describe"
	"github.com/ByLCY/classnotes/dsl"
	"github.com/ByLCY/classnotes/layout"
)

// Manifest 是从 .notes 文件解析出的生成任务。
type Manifest struct {
	Name    string
	BaseDir string // 图片与字体相对路径的根目录
	Job     Job
}

// LoadManifest 解析 path 并读取其中列出的图片。
func LoadManifest(path string) (*Manifest, error) {
	doc, err := dsl.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("解析清单失败: %w", err)
	}
	return BuildManifest(doc, filepath.Dir(path))
}

// BuildManifest 把语法树转换为 Job；图片从 baseDir 读取。
func BuildManifest(doc *dsl.Document, baseDir string) (*Manifest, error) {
	if doc == nil {
		return nil, fmt.Errorf("清单为空")
	}
	opts := layout.DefaultOptions()
	opts.Meta = collectMeta(doc)
	if opts.Meta.Title == "" {
		opts.Meta.Title = doc.Name
	}

	m := &Manifest{Name: doc.Name, BaseDir: baseDir}
	acq := AcquireOptions{TitleTemplate: DefaultTitleTemplate, Titles: map[int]string{}}
	seenImages := false

	for _, section := range doc.Sections {
		if err := checkSection(section); err != nil {
			return nil, err
		}
		switch {
		case section.Instruction != nil:
			acq.Instruction = string(section.Instruction.Text)
		case section.Fonts != nil:
			applyFonts(&opts, section.Fonts.Block)
		case section.Page != nil:
			if err := applyPage(&opts, &acq, section.Page); err != nil {
				return nil, err
			}
		case section.Images != nil:
			seenImages = true
			for _, cmd := range section.Images.Block.Commands("image") {
				img, title, err := loadImage(cmd, baseDir)
				if err != nil {
					return nil, err
				}
				if title != "" {
					acq.Titles[len(m.Job.Images)] = title
				}
				m.Job.Images = append(m.Job.Images, img)
			}
		}
	}
	if !seenImages {
		return nil, fmt.Errorf("清单 %s 缺少 images 段", doc.Name)
	}
	if err := CheckTitleTemplate(acq.TitleTemplate); err != nil {
		return nil, err
	}
	for _, t := range acq.Titles {
		if err := CheckTitleTemplate(t); err != nil {
			return nil, err
		}
	}
	m.Job.Acquire = acq
	m.Job.Layout = opts
	return m, nil
}

// 各段允许的赋值键；images 段只接受 image 命令。
var sectionKeys = map[string]map[string]bool{
	"meta":  {"title": true, "author": true, "subject": true, "creator": true, "keywords": true},
	"fonts": {"title": true, "body": true},
	"page": {
		"margin": true, "title-size": true, "body-size": true, "title-spacing": true,
		"line-spacing": true, "line-height": true, "title-line-height": true, "color": true, "title": true,
	},
}

// checkSection 拒绝会被静默忽略的语句，错误带源码位置。
func checkSection(section *dsl.Section) error {
	var block *dsl.Block
	switch {
	case section.Meta != nil:
		block = section.Meta.Block
	case section.Fonts != nil:
		block = section.Fonts.Block
	case section.Page != nil:
		block = section.Page.Block
	case section.Images != nil:
		block = section.Images.Block
	}
	if block == nil {
		return nil
	}
	kind := section.Kind()
	for _, stmt := range block.Statements {
		if kind == "images" {
			if stmt.Command == nil || stmt.Command.Name != "image" {
				return stmt.Errorf("images 段只能包含 image 命令")
			}
			continue
		}
		if stmt.Assignment == nil {
			return stmt.Errorf("%s 段只能包含 key: value 赋值，不支持命令 %s", kind, stmt.Command.Name)
		}
		if key := strings.ToLower(stmt.Assignment.Key); !sectionKeys[kind][key] {
			return stmt.Errorf("%s 段不支持 %s", kind, stmt.Assignment.Key)
		}
	}
	return nil
}

func collectMeta(doc *dsl.Document) layout.DocumentMeta {
	meta := layout.DocumentMeta{
		Creator: "classnotes",
	}
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for key, val := range section.Meta.Block.Assignments() {
			switch key {
			case "title":
				meta.Title = val.Text()
			case "author":
				meta.Author = val.Text()
			case "subject":
				meta.Subject = val.Text()
			case "creator":
				meta.Creator = val.Text()
			case "keywords":
				meta.Keywords = val.Strings()
			}
		}
	}
	return meta
}

func applyFonts(opts *layout.Options, block *dsl.Block) {
	for key, val := range block.Assignments() {
		src := val.Text()
		switch key {
		case "title":
			opts.TitleFont.Src = src
			opts.TitleFont.Name = fontName(src)
		case "body":
			opts.BodyFont.Src = src
			opts.BodyFont.Name = fontName(src)
		}
	}
}

func fontName(src string) string {
	base := filepath.Base(src)
	if i := strings.LastIndexByte(base, ':'); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func applyPage(opts *layout.Options, acq *AcquireOptions, page *dsl.PageSection) error {
	w, h, err := resolvePageSize(page.Spec)
	if err != nil {
		return err
	}
	opts.PageWidth, opts.PageHeight = w, h
	if margin, ok := resolveMargin(page.Spec.Params); ok {
		opts.Margin = margin
	}
	if page.Block == nil {
		return nil
	}

	lengths := map[string]*float64{
		"margin":        &opts.Margin,
		"title-size":    &opts.FontSizeTitle,
		"body-size":     &opts.FontSizeBody,
		"title-spacing": &opts.TitleSpacing,
		"line-spacing":  &opts.LineSpacing,
	}
	props := page.Block.Assignments()
	for key, val := range props {
		if dst, ok := lengths[key]; ok {
			l, ok := layout.ParseLength(val.Text())
			if !ok {
				return fmt.Errorf("page %s 的取值无效: %q", key, val.Text())
			}
			*dst = l.ToPT()
		}
	}
	// 行高依赖字号，放在字号之后解析
	for key, dst := range map[string]*layout.FontSpec{"line-height": &opts.BodyFont, "title-line-height": &opts.TitleFont} {
		val, ok := props[key]
		if !ok {
			continue
		}
		spec, ok := layout.ParseLineHeight(val.Text())
		if !ok {
			return fmt.Errorf("page %s 的取值无效: %q", key, val.Text())
		}
		size := opts.FontSizeBody
		if dst == &opts.TitleFont {
			size = opts.FontSizeTitle
		}
		dst.LineHeight = spec.Resolve(size)
	}
	if val, ok := props["color"]; ok {
		c, err := parseColor(val.Text())
		if err != nil {
			return err
		}
		opts.TextColor = c
	}
	if val, ok := props["title"]; ok {
		acq.TitleTemplate = val.Text()
	}
	return nil
}

// 纸张尺寸，单位 pt。letter 与原应用默认一致。
var pagePresets = map[string][2]float64{
	"LETTER": {612, 792},
	"LEGAL":  {612, 1008},
	"A4":     {595.28, 841.89},
	"A5":     {419.53, 595.28},
}

func resolvePageSize(spec dsl.PageSpec) (float64, float64, error) {
	var width, height float64
	params := spec.Params
	if strings.EqualFold(spec.Size, "custom") {
		if len(params) < 2 {
			return 0, 0, fmt.Errorf("custom 纸张需要宽和高，例如 page custom 210mm 297mm")
		}
		wl, okW := layout.ParseLength(params[0].Value)
		hl, okH := layout.ParseLength(params[1].Value)
		if !okW || !okH {
			return 0, 0, fmt.Errorf("custom 纸张尺寸无效：%s %s", params[0].Value, params[1].Value)
		}
		width, height = wl.ToPT(), hl.ToPT()
		params = params[2:]
	} else {
		base, ok := pagePresets[strings.ToUpper(spec.Size)]
		if !ok {
			return 0, 0, fmt.Errorf("暂不支持的纸张尺寸：%s", spec.Size)
		}
		width, height = base[0], base[1]
	}
	for _, token := range params {
		if token.Value == "landscape" {
			width, height = height, width
		}
	}
	return width, height, nil
}

func resolveMargin(params []*dsl.Lexeme) (float64, bool) {
	for i := 0; i+1 < len(params); i++ {
		if params[i].Value != "margin" {
			continue
		}
		if l, ok := layout.ParseLength(params[i+1].Value); ok {
			return l.ToPT(), true
		}
	}
	return 0, false
}

func parseColor(v string) (layout.Color, error) {
	hex := strings.TrimPrefix(v, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return layout.Color{}, fmt.Errorf("颜色格式无效：%s", v)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return layout.Color{}, fmt.Errorf("颜色格式无效：%s", v)
	}
	return layout.Color{R: int(n >> 16 & 0xff), G: int(n >> 8 & 0xff), B: int(n & 0xff)}, nil
}

func loadImage(cmd *dsl.Command, baseDir string) (describe.Image, string, error) {
	if len(cmd.Args) == 0 || cmd.Args[0].Type != "String" {
		return describe.Image{}, "", cmd.Errorf("image 需要一个带引号的路径")
	}
	rel := cmd.Args[0].Value
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return describe.Image{}, "", cmd.Errorf("读取图片 %s 失败: %v", rel, err)
	}
	return describe.Image{
		Name: filepath.Base(rel),
		Data: data,
		MIME: describe.DetectMIME(data),
	}, cmd.Options(1)["title"], nil
}
