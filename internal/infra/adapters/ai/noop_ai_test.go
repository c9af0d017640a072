package ai_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"interview-intel/internal/domain/ports/adapter"
	ai "interview-intel/internal/infra/adapters/ai"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestNoopEmbedder_DeterministicAndTopical(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := ai.NewNoopAIAdapter(384)

	a1, _ := e.Embed(ctx, "Google system design interview distributed cache")
	a2, _ := e.Embed(ctx, "Google system design interview distributed cache")
	b, _ := e.Embed(ctx, "system design interview at Google about a cache")
	c, _ := e.Embed(ctx, "frontend react hooks css animations")

	if len(a1) != 384 || e.Dimensions() != 384 {
		t.Fatalf("expected 384 dims, got %d", len(a1))
	}
	if cosine(a1, a2) < 0.9999 {
		t.Error("same text must embed identically")
	}
	if cosine(a1, b) <= cosine(a1, c) {
		t.Errorf("overlapping vocabulary should be closer: %.3f vs %.3f", cosine(a1, b), cosine(a1, c))
	}
}

func TestLimitedAI_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	inner := &slowAI{delay: 20 * time.Millisecond}
	l := ai.NewLimitedAI(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Chat(context.Background(), "m", nil, adapter.ChatOptions{})
		}()
	}
	wg.Wait()
	if inner.peak > 2 {
		t.Errorf("expected at most 2 concurrent calls, saw %d", inner.peak)
	}
}

func TestLimitedAI_RespectsCancellation(t *testing.T) {
	t.Parallel()
	inner := &slowAI{delay: 200 * time.Millisecond}
	l := ai.NewLimitedAI(inner, 1)
	go func() { _, _ = l.Chat(context.Background(), "m", nil, adapter.ChatOptions{}) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Chat(ctx, "m", nil, adapter.ChatOptions{}); err == nil {
		t.Error("expected waiting call to give up when its context expires")
	}
}

func TestThrottledEmbedder_SpacesCalls(t *testing.T) {
	t.Parallel()
	e := ai.NewThrottledEmbedder(ai.NewNoopAIAdapter(8), 20)
	start := time.Now()
	for i := 0; i < 25; i++ {
		if _, err := e.Embed(context.Background(), "x"); err != nil {
			t.Fatalf("embed: %v", err)
		}
	}
	// 20 burst tokens, then 5 more at 50ms each.
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("expected throttling, finished in %s", elapsed)
	}
	if e.Model() != "noop-ai-model" || e.Dimensions() != 8 {
		t.Error("throttled embedder must report the inner model")
	}
}

type slowAI struct {
	recordingAI
	delay time.Duration
	mu    sync.Mutex
	cur   int
	peak  int
}

func (s *slowAI) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	s.mu.Lock()
	s.cur++
	if s.cur > s.peak {
		s.peak = s.cur
	}
	s.mu.Unlock()
	time.Sleep(s.delay)
	s.mu.Lock()
	s.cur--
	s.mu.Unlock()
	return "ok", nil
}
