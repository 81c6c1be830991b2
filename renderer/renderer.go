package renderer

import (
	"fmt"

	"github.com/ByLCY/classnotes/layout"
)

// Renderer 将排版结果输出为最终文件，例如 PDF。
// Render 返回生成的二进制数据（例如 PDF 字节切片）以及可能的错误。
type Renderer interface {
	Render(doc *layout.Document) ([]byte, error)
}

// PageSink 是逐页编码的输出端：每页调用一次 EmitPage，最后调用一次 Finalize。
type PageSink interface {
	EmitPage(page layout.Page) error
	Finalize() ([]byte, error)
}

// Encode 按页顺序把文档写入 sink 并取回最终字节。
func Encode(doc *layout.Document, sink PageSink) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	for i, page := range doc.Pages {
		if err := sink.EmitPage(page); err != nil {
			return nil, fmt.Errorf("输出第 %d 页失败: %w", i+1, err)
		}
	}
	return sink.Finalize()
}
