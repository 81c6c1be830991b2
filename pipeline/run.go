package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ByLCY/classnotes/describe"
	"github.com/ByLCY/classnotes/layout"
	"github.com/ByLCY/classnotes/metrics"
	"github.com/ByLCY/classnotes/renderer"
)

// Job 是一次完整生成所需的输入。
type Job struct {
	Images  []describe.Image
	Acquire AcquireOptions
	Layout  layout.Options
}

// Result 保存生成产物。
type Result struct {
	PDF       []byte
	Document  *layout.Document
	Entries   []layout.Entry
	Overflows []layout.Block
}

// Run 依次执行描述获取、排版与渲染。
func Run(ctx context.Context, job Job, d describe.Describer, r renderer.Renderer) (*Result, error) {
	entries, err := Acquire(ctx, job.Images, d, job.Acquire)
	if err != nil {
		return nil, err
	}
	return Generate(entries, job.Layout, r)
}

// Generate 对已获取的条目排版并渲染。Typesetter 未设置时要求 r 同时实现 layout.Typesetter。
func Generate(entries []layout.Entry, opts layout.Options, r renderer.Renderer) (*Result, error) {
	if r == nil {
		return nil, fmt.Errorf("renderer 不能为空")
	}
	if opts.Typesetter == nil {
		ts, ok := r.(layout.Typesetter)
		if !ok {
			return nil, fmt.Errorf("renderer 未实现排版接口")
		}
		opts.Typesetter = ts
	}

	doc, err := layout.LayoutDocument(entries, opts)
	if err != nil {
		return nil, fmt.Errorf("布局计算失败: %w", err)
	}
	overflows := doc.Overflows()
	for _, b := range overflows {
		log.Warn().Int("entry", b.Entry).Str("kind", string(b.Kind)).Float64("bottom", b.Bottom()).
			Msg("block extends past the bottom margin")
	}

	pdf, err := r.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	metrics.ObserveDocument(len(doc.Pages), len(overflows))
	log.Info().Int("entries", len(entries)).Int("pages", len(doc.Pages)).Int("bytes", len(pdf)).Msg("document rendered")
	return &Result{PDF: pdf, Document: doc, Entries: entries, Overflows: overflows}, nil
}
