package llm

import (
	"context"
	"log"
	"time"
)

// Middleware decorates a Client with a cross-cutting concern.
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Retry with exponential backoff --------

// Retry retries Generate up to maxAttempts with exponential backoff starting
// at baseDelay. Permanent errors are escalated immediately; a canceled
// context stops the loop.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string                { return r.next.Name() }
func (r *retrying) Close() error                { return r.next.Close() }
func (r *retrying) CountTokens(text string) int { return r.next.CountTokens(text) }

func (r *retrying) Generate(ctx context.Context, req Request) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := r.next.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if IsPermanent(err) {
			return "", err
		}
		last = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.base * time.Duration(1<<i)):
		}
	}
	return "", last
}

// -------- Rate limiting --------

// RateLimit throttles Generate to at most rps requests per second with the
// given burst. rps <= 0 disables the limiter.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next Client
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string                { return c.next.Name() }
func (c *rateLimited) Close() error                { return c.next.Close() }
func (c *rateLimited) CountTokens(text string) int { return c.next.CountTokens(text) }

func (c *rateLimited) Generate(ctx context.Context, req Request) (string, error) {
	if c.rl != nil {
		if err := c.rl.Acquire(ctx); err != nil {
			return "", err
		}
	}
	return c.next.Generate(ctx, req)
}

// rpsLimiter is a lightweight token-bucket limiter.
type rpsLimiter struct {
	tokens chan struct{}
}

func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	l := &rpsLimiter{tokens: make(chan struct{}, burst)}
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}
	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for range ticker.C {
			select {
			case l.tokens <- struct{}{}:
			default:
			}
		}
	}()
	return l
}

func (l *rpsLimiter) Acquire(ctx context.Context) error {
	select {
	case <-l.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// -------- Logging --------

// WithLogging logs request size and errors per stage. Pass nil to use
// log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next Client) Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Client
	log  *log.Logger
}

func (l *logging) Name() string                { return l.next.Name() }
func (l *logging) Close() error                { return l.next.Close() }
func (l *logging) CountTokens(text string) int { return l.next.CountTokens(text) }

func (l *logging) Generate(ctx context.Context, req Request) (string, error) {
	l.log.Printf("llm request (%s): ~%d prompt tokens", StageFrom(ctx), l.next.CountTokens(req.Prompt))
	out, err := l.next.Generate(ctx, req)
	if err != nil {
		l.log.Printf("llm error (%s): %v", StageFrom(ctx), err)
	}
	return out, err
}
