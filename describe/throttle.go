package describe

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle 用令牌桶限制对下游模型的调用频率，超出时阻塞等待而不是报错。
type Throttle struct {
	next    Describer
	limiter *rate.Limiter
}

// NewThrottle 以每分钟 perMinute 次包装 d；perMinute <= 0 时不限速，直接返回 d。
func NewThrottle(d Describer, perMinute int) Describer {
	if perMinute <= 0 {
		return d
	}
	every := time.Minute / time.Duration(perMinute)
	return &Throttle{next: d, limiter: rate.NewLimiter(rate.Every(every), 1)}
}

func (t *Throttle) Name() string { return t.next.Name() }

func (t *Throttle) Describe(ctx context.Context, img Image, instruction string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.next.Describe(ctx, img, instruction)
}
