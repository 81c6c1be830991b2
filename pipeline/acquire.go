// Package pipeline 串联描述获取、排版与渲染：先按顺序拿到全部描述，
// 再把结果作为值交给排版，两段之间不共享可变状态。
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ByLCY/classnotes/binding"
	"github.com/ByLCY/classnotes/describe"
	"github.com/ByLCY/classnotes/layout"
	"github.com/ByLCY/classnotes/metrics"
)

// DefaultTitleTemplate 生成 "Image 1"、"Image 2"……
const DefaultTitleTemplate = "Image ${n}"

// AcquireOptions 控制标题与正文的生成方式。
type AcquireOptions struct {
	Instruction   string
	TitleTemplate string         // 可用变量：${n}（从 1 开始）、${index}（从 0 开始）、${name}
	Titles        map[int]string // 按下标覆盖模板
	KeepMarkdown  bool           // 为 true 时不摊平模型返回的 Markdown
}

// Acquire 严格按输入顺序逐张调用 d，返回与图片一一对应的条目。
// 任何一张失败都会中止整批，不返回部分结果。
func Acquire(ctx context.Context, images []describe.Image, d describe.Describer, opts AcquireOptions) ([]layout.Entry, error) {
	if d == nil {
		return nil, fmt.Errorf("describer 不能为空")
	}
	tmpl := opts.TitleTemplate
	if tmpl == "" {
		tmpl = DefaultTitleTemplate
	}

	start := time.Now()
	entries := make([]layout.Entry, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			metrics.IncBatch("failed")
			return nil, err
		}
		text, err := d.Describe(ctx, img, opts.Instruction)
		if err != nil {
			metrics.IncBatch("failed")
			log.Error().Err(err).Int("index", i).Str("image", img.Name).Str("describer", d.Name()).Msg("describe failed, batch aborted")
			return nil, fmt.Errorf("第 %d 张图片 %s 描述失败: %w", i+1, img.Name, err)
		}
		if !opts.KeepMarkdown {
			text = describe.PlainText(text)
		}
		entries = append(entries, layout.Entry{
			Index: i,
			Title: title(tmpl, opts.Titles, i, img.Name),
			Body:  text,
		})
		log.Info().Int("index", i).Str("image", img.Name).Int("chars", len(text)).Msg("image described")
	}
	metrics.IncBatch("ok")
	log.Info().Int("images", len(images)).Dur("elapsed", time.Since(start)).Msg("acquisition finished")
	return entries, nil
}

func title(tmpl string, overrides map[int]string, i int, name string) string {
	if t, ok := overrides[i]; ok && t != "" {
		tmpl = t
	}
	return binding.Interpolate(tmpl, titleVars(i, name))
}

func titleVars(i int, name string) binding.Vars {
	return binding.Vars{"n": i + 1, "index": i, "name": name}
}

// CheckTitleTemplate 确认模板只引用可用变量。
func CheckTitleTemplate(tmpl string) error {
	return binding.Check(tmpl, titleVars(0, ""))
}
