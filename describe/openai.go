package describe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/ByLCY/classnotes/metrics"
)

const (
	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 1200
)

// OpenAISettings 提供给 OpenAI 实现的基础配置。
type OpenAISettings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64 // nil 时取 DefaultTemperature，可以显式设为 0
	MaxTokens   int64
	Timeout     time.Duration
}

// OpenAI implements Describer using the official openai-go SDK (chat completions with an image part).
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
}

func NewOpenAI(cfg OpenAISettings) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; set OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	// 失败即中止整批，不重试
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

// Model 返回请求使用的模型名。
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Describe(ctx context.Context, img Image, instruction string) (string, error) {
	prepared, err := Prepare(img)
	if err != nil {
		return "", err
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(Instruction(instruction)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: DataURL(prepared),
				}),
			}),
		},
		Temperature: openai.Float(o.temperature),
		MaxTokens:   openai.Int(o.maxTokens),
	})
	elapsed := time.Since(start)
	if err != nil {
		err = classifyError(err)
		metrics.ObserveDescribe(o.Name(), o.model, resultLabel(err), elapsed)
		return "", err
	}
	metrics.ObserveDescribe(o.Name(), o.model, "ok", elapsed)

	if len(resp.Choices) == 0 {
		log.Warn().Str("image", img.Name).Msg("openai returned no choices")
		return NoDescription, nil
	}
	log.Debug().
		Str("image", img.Name).
		Int64("tokens_in", resp.Usage.PromptTokens).
		Int64("tokens_out", resp.Usage.CompletionTokens).
		Dur("elapsed", elapsed).
		Msg("image described")
	return resp.Choices[0].Message.Content, nil
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "error"
	}
}
