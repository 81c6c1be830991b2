package describe

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/text/unicode/norm"
)

var mdParser = goldmark.New().Parser()

// PlainText 把模型返回的 Markdown 摊平成纯文本段落：去掉强调/标题记号，
// 列表项保留项目符号，段落之间空一行。结果统一为 NFC，组合字符按单个字形测量。
func PlainText(md string) string {
	src := []byte(md)
	doc := mdParser.Parse(text.NewReader(src))

	var out, para strings.Builder
	curItem, prevItem := false, false
	flush := func() {
		s := strings.TrimRight(strings.Trim(para.String(), "\n"), " \t")
		para.Reset()
		if strings.TrimSpace(s) == "" {
			return
		}
		if out.Len() > 0 {
			if curItem && prevItem {
				out.WriteString("\n")
			} else {
				out.WriteString("\n\n")
			}
		}
		out.WriteString(s)
		prevItem, curItem = curItem, false
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock, *ast.ThematicBreak:
			if !entering {
				flush()
			}
		case *ast.List:
			if !entering {
				flush()
				prevItem = false
			}
		case *ast.ListItem:
			if entering {
				flush()
				para.WriteString(strings.Repeat("  ", listDepth(node)))
				para.WriteString(bullet(node))
				curItem = true
			}
		case *ast.Text:
			if entering {
				para.Write(textValue(node, src))
				switch {
				case node.HardLineBreak():
					para.WriteByte('\n')
				case node.SoftLineBreak():
					para.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				para.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				para.Write(node.Label(src))
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				flush()
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					para.Write(seg.Value(src))
				}
				flush()
				return ast.WalkSkipChildren, nil
			}
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	flush()
	return norm.NFC.String(out.String())
}

// textValue 去掉反斜杠转义并解析实体引用；代码片段里的原样保留。
func textValue(node *ast.Text, src []byte) []byte {
	v := node.Segment.Value(src)
	if node.IsRaw() {
		return v
	}
	v = util.UnescapePunctuations(v)
	v = util.ResolveNumericReferences(v)
	return util.ResolveEntityNames(v)
}

func bullet(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "• "
	}
	n := list.Start
	for c := list.FirstChild(); c != nil && c != ast.Node(item); c = c.NextSibling() {
		n++
	}
	return strconv.Itoa(n) + ". "
}

func listDepth(item *ast.ListItem) int {
	depth := 0
	for p := item.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.ListItem); ok {
			depth++
		}
	}
	return depth
}
