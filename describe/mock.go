package describe

import (
	"context"
	"fmt"
	"strings"
)

// Mock 一个简单的占位实现，便于本地调试，不调用外部模型。
type Mock struct {
	// Fail 非空时，名称匹配的图片返回该错误。
	Fail map[string]error
}

func (m Mock) Name() string { return "mock" }

func (m Mock) Describe(ctx context.Context, img Image, instruction string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(img.Data) == 0 {
		return "", ErrEmptyImage
	}
	if err, ok := m.Fail[img.Name]; ok {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", img.Name)
	fmt.Fprintf(&sb, "The image is %d bytes of %s.\n\n", len(img.Data), mimeOrUnknown(img.MIME))
	sb.WriteString("Request: ")
	sb.WriteString(Instruction(instruction))
	sb.WriteString("\n")
	return sb.String(), nil
}

func mimeOrUnknown(m string) string {
	if m == "" {
		return "unknown type"
	}
	return m
}
