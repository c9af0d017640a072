package ai_test

import (
	"context"
	"errors"
	"testing"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/ports/adapter"
	ai "interview-intel/internal/infra/adapters/ai"
)

// recordingAI remembers which model each call was routed with.
type recordingAI struct {
	name     string
	models   []string
	lastOpts adapter.ChatOptions
}

func (s *recordingAI) ListModels(ctx context.Context) ([]string, error) {
	return []string{s.name + "-default"}, nil
}
func (s *recordingAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{Name: model, Description: s.name}, nil
}
func (s *recordingAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	s.models = append(s.models, model)
	return len(messages), nil
}
func (s *recordingAI) Chat(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, error) {
	s.models = append(s.models, model)
	s.lastOpts = opts
	return s.name, nil
}
func (s *recordingAI) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message, opts adapter.ChatOptions) (string, adapter.Usage, error) {
	out, err := s.Chat(ctx, model, messages, opts)
	return out, adapter.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, err
}

func TestMultiAIAdapter_Routing(t *testing.T) {
	open := &recordingAI{name: "openai"}
	gem := &recordingAI{name: "gemini"}
	noop := &recordingAI{name: "noop"}
	m := ai.NewMultiAIAdapter("gemini",
		map[string]adapter.AIServiceAdapter{"openai": open, "gemini": gem, "noop": noop},
		map[string]string{"analyst-v2": "openai"},
	)

	cases := []struct {
		model string
		want  string
	}{
		{"analyst-v2", "openai"},
		{"gpt-4o-mini", "openai"},
		{"o3-mini", "openai"},
		{"gemini-2.5-flash", "gemini"},
		{"noop-echo", "noop"},
		{"mystery-model", "gemini"},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			got, err := m.Chat(context.Background(), tc.model, nil, adapter.ChatOptions{})
			if err != nil {
				t.Fatalf("Chat: %v", err)
			}
			if got != tc.want {
				t.Fatalf("model %q routed to %q, want %q", tc.model, got, tc.want)
			}
		})
	}
}

func TestMultiAIAdapter_PassesOptions(t *testing.T) {
	gem := &recordingAI{name: "gemini"}
	m := ai.NewMultiAIAdapter("gemini", map[string]adapter.AIServiceAdapter{"gemini": gem}, nil)
	temp := 0.2

	_, usage, err := m.ChatWithUsage(context.Background(), "gemini-2.5-flash", nil, adapter.ChatOptions{Temperature: &temp, MaxTokens: 900})

	if err != nil {
		t.Fatalf("ChatWithUsage: %v", err)
	}
	if gem.lastOpts.MaxTokens != 900 || gem.lastOpts.Temperature == nil || *gem.lastOpts.Temperature != 0.2 {
		t.Fatalf("options not forwarded: %+v", gem.lastOpts)
	}
	if usage.TotalTokens != 2 {
		t.Fatalf("usage = %+v", usage)
	}
}

func TestMultiAIAdapter_FallsBackInStableOrder(t *testing.T) {
	gem := &recordingAI{name: "gemini"}
	noop := &recordingAI{name: "noop"}
	// default provider is not configured; pick the alphabetically first
	m := ai.NewMultiAIAdapter("openai", map[string]adapter.AIServiceAdapter{"noop": noop, "gemini": gem}, nil)

	for range 5 {
		got, err := m.Chat(context.Background(), "gpt-4o", nil, adapter.ChatOptions{})
		if err != nil || got != "gemini" {
			t.Fatalf("got %q, %v", got, err)
		}
	}
}

func TestMultiAIAdapter_NoProviders(t *testing.T) {
	m := ai.NewMultiAIAdapter("openai", map[string]adapter.AIServiceAdapter{}, nil)

	if _, err := m.Chat(context.Background(), "gpt-4o", nil, adapter.ChatOptions{}); !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("Chat err = %v", err)
	}
	if _, _, err := m.ChatWithUsage(context.Background(), "gpt-4o", nil, adapter.ChatOptions{}); !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("ChatWithUsage err = %v", err)
	}
	if n, err := m.CountTokens(context.Background(), "gpt-4o", []adapter.Message{{Role: "user"}}); n != 0 || err != nil {
		t.Fatalf("CountTokens = %d, %v", n, err)
	}
}

func TestMultiAIAdapter_ListModelsUnion(t *testing.T) {
	m := ai.NewMultiAIAdapter("gemini",
		map[string]adapter.AIServiceAdapter{"openai": &recordingAI{name: "openai"}, "gemini": &recordingAI{name: "gemini"}},
		map[string]string{"analyst-v2": "openai", "gemini-default": "gemini"},
	)

	models, err := m.ListModels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]int{}
	for _, name := range models {
		seen[name]++
	}
	for _, want := range []string{"analyst-v2", "openai-default", "gemini-default"} {
		if seen[want] != 1 {
			t.Fatalf("want %q exactly once in %v", want, models)
		}
	}
}
