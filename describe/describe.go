// Package describe 把一张图片交给视觉语言模型，换回一段文字描述。
package describe

import (
	"context"
	"errors"
	"strings"
)

// DefaultInstruction 是用户没有填写自定义要求时发送给模型的提示词。
const DefaultInstruction = "Analyze this image and write a detailed description of what is in it. " +
	"Don't miss any details, I will use your description to create a detailed lecture notes PDF."

// NoDescription 在模型没有返回任何候选时作为描述正文。
const NoDescription = "No description available"

var (
	ErrRateLimited = errors.New("describe: rate limited")
	ErrEmptyImage  = errors.New("describe: empty image")
)

// Image 是一张待描述的图片。Name 仅用于日志与标题模板。
type Image struct {
	Name string
	Data []byte
	MIME string
}

// Describer 抽象图片描述服务，便于替换/Mock。
type Describer interface {
	Name() string
	Describe(ctx context.Context, img Image, instruction string) (string, error)
}

// Instruction 返回实际发送的提示词：自定义要求非空时整体替换默认提示词。
func Instruction(custom string) string {
	if s := strings.TrimSpace(custom); s != "" {
		return s
	}
	return DefaultInstruction
}

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
