package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiCallsLatencyMs,
		embeddingCallsTotal,
		embeddingLatencyMs,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "Chat completion latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 20000},
		},
		[]string{"provider", "model", "success"},
	)

	embeddingCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_calls_total",
			Help: "Embedding requests per provider/model and outcome.",
		},
		[]string{"provider", "model", "success"},
	)

	embeddingLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedding_latency_ms",
			Help:    "Embedding request latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000},
		},
		[]string{"provider", "model"},
	)
)

func ObserveChatUsage(provider, model string, tokensIn, tokensOut int, latencyMs int, success bool) {
	lbl := []string{norm(provider), norm(model)}
	aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
	aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func ObserveEmbedding(provider, model string, latencyMs int, success bool) {
	embeddingCallsTotal.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).Inc()
	if success {
		embeddingLatencyMs.WithLabelValues(norm(provider), norm(model)).Observe(float64(latencyMs))
	}
}
