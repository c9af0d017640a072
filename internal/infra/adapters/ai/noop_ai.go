package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"interview-intel/internal/domain/ports/adapter"
)

var (
	_ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)
	_ adapter.Embedder         = (*NoopAIAdapter)(nil)
)

const noopModel = "noop-ai-model"

// NoopAIAdapter is the offline provider for local runs and tests. Embeddings
// are feature-hashed bags of words, so texts sharing vocabulary land close
// together; chat echoes a canned summary of the prompt.
type NoopAIAdapter struct {
	dims int
}

func NewNoopAIAdapter(dims int) *NoopAIAdapter {
	if dims <= 0 {
		dims = 384
	}
	return &NoopAIAdapter{dims: dims}
}

func (a *NoopAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{noopModel}, nil
}

func (a *NoopAIAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{
		Name:        noopModel,
		Description: "Noop AI model for testing",
		MaxTokens:   1024,
		Supports:    []string{"chat", "embedding"},
	}, nil
}

// CountTokens approximates one token per word.
func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(strings.Fields(m.Content))
	}
	return n, nil
}

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	reply, _, err := a.ChatWithUsage(ctx, model, messages, opts)
	return reply, err
}

func (a *NoopAIAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	if err := ctx.Err(); err != nil {
		return "", adapter.Usage{}, err
	}
	in, _ := a.CountTokens(ctx, model, messages)
	reply := fmt.Sprintf("## Summary\nOffline analysis over %d prompt words. Configure a real AI provider for generated insights.", in)
	out := len(strings.Fields(reply))
	return reply, adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}, nil
}

func (a *NoopAIAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, a.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%a.dims] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

func (a *NoopAIAdapter) Model() string   { return noopModel }
func (a *NoopAIAdapter) Dimensions() int { return a.dims }
