package fonts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/go-fonts/latin-modern/lmsans10bold"
	"github.com/go-fonts/latin-modern/lmsans10regular"
)

// 内置字体名称。默认正文/标题使用无衬线体。
const (
	SansRegular  = "sans-regular"
	SansBold     = "sans-bold"
	SerifRegular = "serif-regular"
	SerifBold    = "serif-bold"
)

var builtin = map[string][]byte{
	SansRegular:  lmsans10regular.TTF,
	SansBold:     lmsans10bold.TTF,
	SerifRegular: lmroman10regular.TTF,
	SerifBold:    lmroman10bold.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:sans-bold" 或直接 "sans-bold"。
func Load(name string) ([]byte, error) {
	key := strings.ToLower(strings.TrimPrefix(name, "embed:"))
	data, ok := builtin[key]
	if !ok || len(data) == 0 {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 可选 %s", key, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Default 返回粗体或常规的默认字体名。
func Default(bold bool) string {
	if bold {
		return SansBold
	}
	return SansRegular
}

// Names 返回全部内置字体名称。
func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
