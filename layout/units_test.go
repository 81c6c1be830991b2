package layout

import (
	"math"
	"testing"
)

// TestPtMmRoundTrip 验证 pt↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPtMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 72, 96, 144, 1000}
	for _, pt := range samples {
		mm := pt * PtToMm
		back := mm * MmToPt
		if diff := math.Abs(back - pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt mm=%g back=%g diff=%g", pt, mm, back, diff)
		}
	}
}

// TestParseLength 覆盖常见单位到 pt 的转换。
func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"20pt", 20},
		{"20", 20},
		{"1in", 72},
		{"2.54cm", 72},
		{"25.4mm", 72},
	}
	for _, c := range cases {
		l, ok := ParseLength(c.in)
		if !ok {
			t.Fatalf("%q 应能解析", c.in)
		}
		if got := l.ToPT(); math.Abs(got-c.want) > 1e-3 {
			t.Fatalf("%q 转 pt 期望 %g，实际 %g", c.in, c.want, got)
		}
	}
	if _, ok := ParseLength("portrait"); ok {
		t.Fatalf("非数字不应解析为长度")
	}
	if got := (Length{Value: 1, Unit: UnitIN}).ToMM(); math.Abs(got-25.4) > 1e-9 {
		t.Fatalf("1in 转 mm 期望 25.4，实际 %g", got)
	}
}

// TestLineHeightResolve 验证行高解析：倍数与绝对值两种语义。
func TestLineHeightResolve(t *testing.T) {
	spec, ok := ParseLineHeight("1.2x")
	if !ok || spec.Kind != LineHeightFactor {
		t.Fatalf("1.2x 应解析为倍数: %+v", spec)
	}
	if got := spec.Resolve(14); math.Abs(got-16.8) > 1e-9 {
		t.Fatalf("1.2x 解析错误: got=%g", got)
	}
	spec, ok = ParseLineHeight("6mm")
	if !ok || spec.Kind != LineHeightAbsolute {
		t.Fatalf("6mm 应解析为绝对值: %+v", spec)
	}
	if got := spec.Resolve(14); math.Abs(got-6*MmToPt) > 1e-9 {
		t.Fatalf("6mm 行高解析错误: got=%g", got)
	}
	if _, ok := ParseLineHeight("0x"); ok {
		t.Fatalf("0x 不是合法行高")
	}
}
