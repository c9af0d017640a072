// File: internal/infra/api/apiv1/server.go
package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"interview-intel/internal/usecase"
)

// Server implements the /api/v1 surface on top of the use cases.
type Server struct {
	retrieval   usecase.RetrievalUseCase
	rag         usecase.RAGUseCase
	comparative usecase.ComparativeUseCase
	intel       usecase.IntelligenceUseCase
	embeddings  usecase.EmbeddingUseCase

	log *zerolog.Logger
}

func NewServer(
	retrieval usecase.RetrievalUseCase,
	rag usecase.RAGUseCase,
	comparative usecase.ComparativeUseCase,
	intel usecase.IntelligenceUseCase,
	embeddings usecase.EmbeddingUseCase,
	logger *zerolog.Logger,
) *Server {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Server{
		retrieval:   retrieval,
		rag:         rag,
		comparative: comparative,
		intel:       intel,
		embeddings:  embeddings,
		log:         logger,
	}
}

// Guards are optional middlewares applied per route group. Nil means none.
type Guards struct {
	Auth      func(http.Handler) http.Handler
	RateLimit func(http.Handler) http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

// RegisterAPIV1 mounts every v1 route on r under /api/v1. The LLM-backed and
// aggregate routes additionally sit behind the rate limiter.
func RegisterAPIV1(r chi.Router, s *Server, g Guards) {
	if g.Auth == nil {
		g.Auth = passthrough
	}
	if g.RateLimit == nil {
		g.RateLimit = passthrough
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(g.Auth)

		r.Post("/embeddings/jobs", s.enqueueJob)
		r.Get("/embeddings/jobs/{id}", s.getJob)
		r.Get("/embeddings/queue", s.queueStats)
		r.Get("/embeddings/stats", s.embeddingStats)

		r.Get("/search", s.search)
		r.Get("/posts/{postId}/similar", s.similar)
		r.Get("/topics/trending", s.trending)

		r.Group(func(r chi.Router) {
			r.Use(g.RateLimit)
			r.Post("/analysis/rag", s.ragAnalysis)
			r.Post("/analysis/compare-scenarios", s.compareScenarios)
			r.Get("/posts/{postId}/comparison", s.postComparison)
			r.Post("/intelligence/report", s.intelligenceReport)
		})
	})
}
