package layout

// 该文件定义排版输入、排版结果与字体描述，供排版计算、渲染与调试 JSON 共用。
// 所有长度单位均为 pt（1/72 英寸）。

// Entry 是一条待排版的描述：标题 + 正文。Index 对应输入图片的顺序，也就是页面顺序。
type Entry struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Document 保存排版后的页面与元信息，返回后不再修改。
type Document struct {
	Pages []Page       `json:"pages"`
	Meta  DocumentMeta `json:"meta"`
}

// Page 记录页面尺寸、边距以及按绝对坐标放置好的块。
type Page struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Margin float64 `json:"margin"`
	Blocks []Block `json:"blocks"`
}

// BlockKind 区分标题块与正文块。
type BlockKind string

const (
	BlockTitle BlockKind = "title"
	BlockBody  BlockKind = "body"
)

// Block 表示一个已经排好坐标的文本块。
type Block struct {
	Kind    BlockKind  `json:"kind"`
	Entry   int        `json:"entry"`
	Content string     `json:"content"`
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Width   float64    `json:"width"`
	Height  float64    `json:"height"`
	Font    FontSpec   `json:"font"`
	Color   Color      `json:"color"`
	Lines   []TextLine `json:"lines"`
}

// Bottom 返回块底边的纵坐标。
func (b Block) Bottom() float64 { return b.Y + b.Height }

// TextLine 表示排版后的一行文本内容及其宽高。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// FontSpec 描述一次文本测量/绘制所需的字体。
// Src 可以是文件路径、embed:<name>（内置字体）或 builtin:<name>（渲染器注入的字体）；
// 为空时由渲染器按 Bold 选择内置字体。LineHeight 为 0 表示使用字体自身的行高。
type FontSpec struct {
	Name       string  `json:"name"`
	Src        string  `json:"src,omitempty"`
	Bold       bool    `json:"bold"`
	Size       float64 `json:"size"`
	LineHeight float64 `json:"lineHeight,omitempty"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}

// BlockCount 返回文档中全部块的数量。
func (d *Document) BlockCount() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, p := range d.Pages {
		n += len(p.Blocks)
	}
	return n
}

// Overflows 返回越过页面下边距的块。
// 单条正文高于整页时不会被拆分，只能溢出，调用方可以据此给出提示。
func (d *Document) Overflows() []Block {
	if d == nil {
		return nil
	}
	var out []Block
	for _, p := range d.Pages {
		limit := p.Height - p.Margin
		for _, b := range p.Blocks {
			if b.Bottom() > limit {
				out = append(out, b)
			}
		}
	}
	return out
}
