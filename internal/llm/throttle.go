// In file: internal/llm/throttle.go
package llm

import (
	"context"
	"io"

	"golang.org/x/time/rate"

	"github.com/dileep-u-k/llm-agent/internal/errorsx"
	"github.com/dileep-u-k/llm-agent/internal/tools"
)

// Throttle keeps a client under a requests-per-minute budget using a token
// bucket. It is safe to share between concurrent runs.
type Throttle struct {
	next    ModelClient
	limiter *rate.Limiter
}

var (
	_ ModelClient = (*Throttle)(nil)
	_ io.Closer   = (*Throttle)(nil)
)

// NewThrottle wraps next. rpm <= 0 returns next unchanged.
func NewThrottle(next ModelClient, rpm, burst int) ModelClient {
	if rpm <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
	}
}

// Complete waits for a request slot, then delegates.
func (t *Throttle) Complete(ctx context.Context, messages []Message, config *ModelConfig, availableTools []tools.Tool) (*Completion, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, &errorsx.Error{Kind: errorsx.KindCanceled, Err: ctx.Err()}
		}
		// The wait would outlast the context deadline.
		return nil, errorsx.RateLimited(0, err)
	}
	return t.next.Complete(ctx, messages, config, availableTools)
}

// Close releases the wrapped client when it holds resources.
func (t *Throttle) Close() error {
	if closer, ok := t.next.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
