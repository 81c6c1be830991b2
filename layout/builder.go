package layout

import "fmt"

// LayoutDocument 将有序的（标题, 正文）列表排成多页文档。
//
// 每条描述先放标题再放正文；放置前若剩余空间不足以容纳整条描述，就整体移到新页。
// 即使输入为空，也会返回只含一页空白页的文档。
func LayoutDocument(entries []Entry, opts Options) (*Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	collector := newPageCollector(opts.PageWidth, opts.PageHeight, opts.Margin)
	state := NewState(opts)
	width := opts.ContentWidth()
	titleFont := opts.titleFont()
	bodyFont := opts.bodyFont()

	for _, entry := range entries {
		title, err := composeBlock(BlockTitle, entry, entry.Title, width, titleFont, opts)
		if err != nil {
			return nil, fmt.Errorf("第 %d 条标题排版失败: %w", entry.Index+1, err)
		}
		body, err := composeBlock(BlockBody, entry, entry.Body, width, bodyFont, opts)
		if err != nil {
			return nil, fmt.Errorf("第 %d 条正文排版失败: %w", entry.Index+1, err)
		}

		newPage, next := state.Decide(title.Height, opts.TitleSpacing, body.Height, opts.LineSpacing)
		if newPage {
			collector.newPage()
		}
		state = next

		title.Y = state.CursorY
		collector.curr().appendBlock(title)
		state.CursorY += title.Height + opts.TitleSpacing

		body.Y = state.CursorY
		collector.curr().appendBlock(body)
		state.CursorY += body.Height + opts.LineSpacing
	}

	return &Document{
		Pages: collector.pages(),
		Meta:  opts.Meta,
	}, nil
}

func composeBlock(kind BlockKind, entry Entry, content string, width float64, font FontSpec, opts Options) (Block, error) {
	height, lines, err := measure(opts.Typesetter, content, width, font)
	if err != nil {
		return Block{}, err
	}
	return Block{
		Kind:    kind,
		Entry:   entry.Index,
		Content: content,
		X:       opts.Margin,
		Width:   width,
		Height:  height,
		Font:    font,
		Color:   opts.TextColor,
		Lines:   lines,
	}, nil
}

type pageAccumulator struct {
	blocks []Block
}

func (p *pageAccumulator) appendBlock(b Block) {
	p.blocks = append(p.blocks, b)
}

type pageCollector struct {
	width   float64
	height  float64
	margin  float64
	accs    []*pageAccumulator
	current int
}

// newPageCollector 无条件打开第一页。
func newPageCollector(width, height, margin float64) *pageCollector {
	pc := &pageCollector{
		width:  width,
		height: height,
		margin: margin,
	}
	pc.newPage()
	return pc
}

func (pc *pageCollector) newPage() *pageAccumulator {
	acc := &pageAccumulator{}
	pc.accs = append(pc.accs, acc)
	pc.current = len(pc.accs) - 1
	return acc
}

func (pc *pageCollector) curr() *pageAccumulator {
	if len(pc.accs) == 0 {
		return pc.newPage()
	}
	return pc.accs[pc.current]
}

func (pc *pageCollector) pages() []Page {
	out := make([]Page, len(pc.accs))
	for i, acc := range pc.accs {
		out[i] = Page{
			Index:  i,
			Width:  pc.width,
			Height: pc.height,
			Margin: pc.margin,
			Blocks: acc.blocks,
		}
	}
	return out
}
