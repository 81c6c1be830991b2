package binding

import (
	"fmt"
	"regexp"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Vars 是标题模板可用的变量表，例如 {"n": 1, "index": 0, "name": "1.jpg"}。
type Vars map[string]any

// Interpolate 将文本中的 ${name} 替换为 vars 中的值；未知变量保留原占位符。
func Interpolate(text string, vars Vars) string {
	if len(vars) == 0 {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		if val, ok := vars[placeholderName(match)]; ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

// Placeholders 返回模板中出现的变量名，按出现顺序去重。
func Placeholders(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, match := range exprPattern.FindAllString(text, -1) {
		name := placeholderName(match)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Check 确认模板只引用 vars 中存在的变量。
func Check(text string, vars Vars) error {
	var missing []string
	for _, name := range Placeholders(text) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, "${"+name+"}")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("模板 %q 含有未知变量: %s", text, strings.Join(missing, ", "))
	}
	return nil
}

func placeholderName(match string) string {
	groups := exprPattern.FindStringSubmatch(match)
	if len(groups) < 2 {
		return ""
	}
	return strings.TrimSpace(groups[1])
}
