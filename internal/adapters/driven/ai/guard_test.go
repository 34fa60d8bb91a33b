package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/custodia-labs/protosmith/internal/core/domain"
	"github.com/custodia-labs/protosmith/internal/core/ports/driven"
	"github.com/custodia-labs/protosmith/internal/httpx"
)

// recordingSleep captures backoff delays without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestGuard(cfg GuardConfig) (*Guard, *recordingSleep) {
	g := NewGuard(cfg)
	rec := &recordingSleep{}
	g.sleep = rec.sleep
	g.jitter = func(d time.Duration) time.Duration { return d }
	return g, rec
}

func TestGuard_RetriesTransientWithExponentialBackoff(t *testing.T) {
	defer goleak.VerifyNone(t)
	g, rec := newTestGuard(GuardConfig{MaxAttempts: 4})

	var calls int
	err := g.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return &httpx.StatusError{StatusCode: 503}
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
	assert.Contains(t, err.Error(), "failed after 4 attempts")
}

func TestGuard_BackoffIsJittered(t *testing.T) {
	g := NewGuard(GuardConfig{MaxAttempts: 3})
	rec := &recordingSleep{}
	g.sleep = rec.sleep

	err := g.Do(context.Background(), "test", func(ctx context.Context) error {
		return &httpx.StatusError{StatusCode: 503}
	})

	require.Error(t, err)
	require.Len(t, rec.delays, 2)
	assert.InDelta(t, float64(time.Second), float64(rec.delays[0]), float64(200*time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64(rec.delays[1]), float64(400*time.Millisecond))
}

func TestGuard_DefaultThreeAttempts(t *testing.T) {
	g, rec := newTestGuard(GuardConfig{})

	var calls int
	err := g.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return context.DeadlineExceeded
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestGuard_DoesNotRetryNonTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bad request", &httpx.StatusError{StatusCode: 400}},
		{"unauthorised", &httpx.StatusError{StatusCode: 401}},
		{"malformed", errors.New("malformed request")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, rec := newTestGuard(GuardConfig{})
			var calls int
			err := g.Do(context.Background(), "test", func(ctx context.Context) error {
				calls++
				return tt.err
			})
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, rec.delays)
		})
	}
}

func TestGuard_HonoursRetryAfter(t *testing.T) {
	g, rec := newTestGuard(GuardConfig{MaxAttempts: 3})

	var calls int
	err := g.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &httpx.StatusError{StatusCode: 429, RetryAfter: 5 * time.Second}
		}
		if calls == 2 {
			return &httpx.StatusError{StatusCode: 429, RetryAfter: time.Minute}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, rec.delays)
}

func TestGuard_RateLimitExhaustionWrapsSentinel(t *testing.T) {
	g, _ := newTestGuard(GuardConfig{})

	err := g.Do(context.Background(), "test", func(ctx context.Context) error {
		return &httpx.StatusError{StatusCode: 429}
	})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	var se *httpx.StatusError
	assert.ErrorAs(t, err, &se)
}

func TestGuard_StopsOnCallerCancel(t *testing.T) {
	g, _ := newTestGuard(GuardConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	err := g.Do(ctx, "test", func(ctx context.Context) error {
		calls++
		cancel()
		return &httpx.StatusError{StatusCode: 500}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestGuard_AppliesCallTimeout(t *testing.T) {
	g, _ := newTestGuard(GuardConfig{CallTimeout: 20 * time.Millisecond, MaxAttempts: 1})

	err := g.Do(context.Background(), "test", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuard_CapsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)
	g, _ := newTestGuard(GuardConfig{Concurrency: 2})

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(context.Background(), "test", func(ctx context.Context) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

type flakyLLM struct {
	failures int
	calls    int
}

func (f *flakyLLM) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", &httpx.StatusError{StatusCode: 502}
	}
	return "ok:" + req.User, nil
}
func (f *flakyLLM) ModelName() string { return "flaky" }
func (f *flakyLLM) Ping(context.Context) error { return nil }
func (f *flakyLLM) Close() error { return nil }

func TestGuard_LLMWrapper(t *testing.T) {
	g, _ := newTestGuard(GuardConfig{})
	inner := &flakyLLM{failures: 1}

	svc := g.LLM(inner)
	out, err := svc.Complete(context.Background(), driven.CompletionRequest{User: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "ok:hi", out)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "flaky", svc.ModelName())
	assert.Nil(t, g.LLM(nil))
}

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{float32(len(text))}, nil
}
func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := c.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}
func (c *countingEmbedder) Dimensions() int { return 1 }
func (c *countingEmbedder) ModelName() string { return "counting" }
func (c *countingEmbedder) Ping(context.Context) error { return nil }
func (c *countingEmbedder) Close() error { return nil }

func TestGuard_EmbeddingWrapper(t *testing.T) {
	g, _ := newTestGuard(GuardConfig{})
	svc := g.Embedding(&countingEmbedder{})

	v, err := svc.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, v)

	batch, err := svc.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, batch)
	assert.Equal(t, 1, svc.Dimensions())
}

func TestGuardConfigFrom(t *testing.T) {
	p := domain.DefaultPipelineSettings()
	p.RequestsPerSecond = 2

	cfg := GuardConfigFrom(p)

	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BackoffBase)
	assert.Equal(t, 10*time.Second, cfg.MaxRetryAfter)

	g := NewGuard(cfg)
	assert.NotNil(t, g.limiter)
}
