package layout

import "math"

// MeasureHeight 计算 text 按 maxWidth 贪心折行后占用的高度（pt）。空字符串高度为 0。
func MeasureHeight(ts Typesetter, text string, maxWidth float64, font FontSpec) (float64, error) {
	h, _, err := measure(ts, text, maxWidth, font)
	return h, err
}

// measure 返回高度以及折好的行，行高之和满足 Height == Σ(GapBefore + Height)。
func measure(ts Typesetter, text string, maxWidth float64, font FontSpec) (float64, []TextLine, error) {
	if text == "" {
		return 0, nil, nil
	}
	lines, err := ts.LayoutLines(text, maxWidth, font)
	if err != nil {
		return 0, nil, err
	}
	total := 0.0
	leading := 0.0
	if font.LineHeight > 0 {
		leading = math.Max(font.LineHeight-font.Size, 0)
	}
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = font.Size
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else if lines[i].GapBefore <= 0 {
			lines[i].GapBefore = leading
		}
		total += lines[i].GapBefore + lines[i].Height
	}
	return total, lines, nil
}
