package layout

// State 是单次排版过程中的游标状态，只在 LayoutDocument 内部使用，结束后丢弃。
type State struct {
	CurrentPage int     `json:"currentPage"`
	CursorY     float64 `json:"cursorY"`
	PageHeight  float64 `json:"pageHeight"`
	PageWidth   float64 `json:"pageWidth"`
	Margin      float64 `json:"margin"`
}

// NewState 返回位于第一页顶部边距处的初始状态。
func NewState(opts Options) State {
	return State{
		CurrentPage: 0,
		CursorY:     opts.Margin,
		PageHeight:  opts.PageHeight,
		PageWidth:   opts.PageWidth,
		Margin:      opts.Margin,
	}
}

// Bottom 返回可用区域的下边界。
func (s State) Bottom() float64 { return s.PageHeight - s.Margin }

// Required 计算在当前游标处放下整条描述后到达的纵坐标。
func (s State) Required(titleHeight, titleSpacing, bodyHeight, lineSpacing float64) float64 {
	return s.CursorY + titleHeight + titleSpacing + bodyHeight + lineSpacing
}

// Decide 判断是否需要在放置标题之前换页，并返回更新后的状态。
// 只有严格大于可用下边界才换页；恰好相等时仍留在当前页。
// 换页对空白页同样生效，整条描述作为整体移动，不拆分正文。
func (s State) Decide(titleHeight, titleSpacing, bodyHeight, lineSpacing float64) (bool, State) {
	if s.Required(titleHeight, titleSpacing, bodyHeight, lineSpacing) > s.Bottom() {
		next := s
		next.CurrentPage++
		next.CursorY = s.Margin
		return true, next
	}
	return false, s
}
