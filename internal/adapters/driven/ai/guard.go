package ai

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/httpx"
	"github.com/custodia-labs/protosmith/internal/logger"
)

// Ensure the guarded wrappers implement the service ports.
var (
	_ driven.LLMService       = (*guardedLLM)(nil)
	_ driven.EmbeddingService = (*guardedEmbedding)(nil)
)

var tracer = otel.Tracer("github.com/custodia-labs/protosmith/internal/adapters/driven/ai")

// GuardConfig bounds every outbound AI call.
type GuardConfig struct {
	// Concurrency caps in-flight calls across all wrapped services.
	Concurrency int

	// CallTimeout bounds a single attempt.
	CallTimeout time.Duration

	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BackoffBase is the delay before the second attempt; it doubles after that.
	BackoffBase time.Duration

	// MaxRetryAfter caps a server-requested Retry-After delay.
	MaxRetryAfter time.Duration

	// RequestsPerSecond enables a token bucket when positive.
	RequestsPerSecond float64
}

// GuardConfigFrom derives a GuardConfig from pipeline settings.
func GuardConfigFrom(p domain.PipelineSettings) GuardConfig {
	p = p.WithDefaults()
	return GuardConfig{
		Concurrency:       p.OutboundConcurrency,
		CallTimeout:       p.CallTimeout,
		MaxAttempts:       p.MaxAttempts,
		BackoffBase:       p.BackoffBase,
		MaxRetryAfter:     10 * time.Second,
		RequestsPerSecond: p.RequestsPerSecond,
	}
}

// Guard applies the shared outbound policy: a concurrency cap, a per-call
// timeout, retries on transient failures with exponential backoff, and an
// optional rate limit. One Guard is shared by every service in a process.
type Guard struct {
	cfg     GuardConfig
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	// sleep waits between attempts and jitter spreads the backoff.
	// Both are replaced in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

// NewGuard creates a Guard. Zero fields fall back to the pipeline defaults.
func NewGuard(cfg GuardConfig) *Guard {
	d := GuardConfigFrom(domain.DefaultPipelineSettings())
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = d.Concurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = d.CallTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = d.BackoffBase
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = d.MaxRetryAfter
	}

	g := &Guard{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
		sleep:  sleepContext,
		jitter: httpx.Jitter,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// Do runs fn under the outbound policy. Each attempt gets its own timeout
// and its own semaphore slot; the slot is released before any backoff.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := g.delay(attempt-1, lastErr)
			logger.With("op", op, "attempt", attempt+1).Debug("retrying in %s: %v", delay, lastErr)
			if err := g.sleep(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = g.attempt(ctx, op, attempt, fn)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !httpx.IsTransient(lastErr) {
			return lastErr
		}
	}

	if httpx.IsRateLimited(lastErr) {
		return fmt.Errorf("%s: %w after %d attempts: %w", op, domain.ErrRateLimited, g.cfg.MaxAttempts, lastErr)
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, g.cfg.MaxAttempts, lastErr)
}

func (g *Guard) attempt(ctx context.Context, op string, attempt int, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "ai."+op, trace.WithAttributes(
		attribute.Int("attempt", attempt+1),
	))
	defer span.End()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// delay is the wait before retry n (zero-based): BackoffBase * 2^n with
// jitter, raised to the server's Retry-After (capped) when that is longer.
func (g *Guard) delay(n int, err error) time.Duration {
	d := g.jitter(httpx.Backoff(g.cfg.BackoffBase, n))
	ra := httpx.RetryAfter(err)
	if ra > g.cfg.MaxRetryAfter {
		ra = g.cfg.MaxRetryAfter
	}
	if ra > d {
		d = ra
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LLM wraps svc so every Complete call goes through the guard.
func (g *Guard) LLM(svc driven.LLMService) driven.LLMService {
	if svc == nil {
		return nil
	}
	return &guardedLLM{inner: svc, guard: g}
}

// Embedding wraps svc so every Embed and EmbedBatch call goes through the guard.
func (g *Guard) Embedding(svc driven.EmbeddingService) driven.EmbeddingService {
	if svc == nil {
		return nil
	}
	return &guardedEmbedding{inner: svc, guard: g}
}

type guardedLLM struct {
	inner driven.LLMService
	guard *Guard
}

func (l *guardedLLM) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	var out string
	err := l.guard.Do(ctx, "llm.complete", func(ctx context.Context) error {
		var err error
		out, err = l.inner.Complete(ctx, req)
		return err
	})
	return out, err
}

func (l *guardedLLM) ModelName() string { return l.inner.ModelName() }
func (l *guardedLLM) Ping(ctx context.Context) error { return l.inner.Ping(ctx) }
func (l *guardedLLM) Close() error { return l.inner.Close() }

type guardedEmbedding struct {
	inner driven.EmbeddingService
	guard *Guard
}

func (e *guardedEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.guard.Do(ctx, "embedding.embed", func(ctx context.Context) error {
		var err error
		out, err = e.inner.Embed(ctx, text)
		return err
	})
	return out, err
}

func (e *guardedEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.guard.Do(ctx, "embedding.batch", func(ctx context.Context) error {
		var err error
		out, err = e.inner.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

func (e *guardedEmbedding) Dimensions() int { return e.inner.Dimensions() }
func (e *guardedEmbedding) ModelName() string { return e.inner.ModelName() }
func (e *guardedEmbedding) Ping(ctx context.Context) error { return e.inner.Ping(ctx) }
func (e *guardedEmbedding) Close() error { return e.inner.Close() }
