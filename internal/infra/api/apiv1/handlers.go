package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/infra/logging"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Error: msg})
}

// writeUseCaseError maps the domain error taxonomy onto HTTP. Insufficient
// data is a successful request with no answer, so it is a 200.
func (s *Server) writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid      *domain.InvalidInputError
		insufficient *domain.InsufficientDataError
	)
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, Envelope{Error: invalid.Reason, Field: invalid.Field})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusOK, Envelope{Error: insufficient.Reason, Suggestion: insufficient.Suggestion})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrNoEmbedding):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case domain.IsTransient(err), errors.Is(err, domain.ErrModelUnavailable):
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("dependency unavailable")
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody reads a JSON body. An empty body is allowed only when optional.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return domain.NewInvalidInput("body", "request body is required")
		}
		return domain.NewInvalidInput("body", "malformed JSON")
	}
	return nil
}

func bindQuery(q url.Values, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
		return domain.NewInvalidInput(name, err.Error())
	}
	return nil
}

// ---- embeddings ----

func (s *Server) enqueueJob(w http.ResponseWriter, r *http.Request) {
	var spec model.JobSpec
	if err := decodeBody(r, &spec, true); err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	job, err := s.embeddings.Enqueue(r.Context(), spec)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusAccepted, job)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.embeddings.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, job)
}

func (s *Server) queueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.embeddings.QueueStats(r.Context())
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, stats)
}

func (s *Server) embeddingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.embeddings.CoverageStats(r.Context())
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, stats)
}

// ---- retrieval ----

func bindSearchParams(q url.Values) (SearchParams, error) {
	var p SearchParams
	if err := runtime.BindQueryParameter("form", true, true, "queryText", q, &p.QueryText); err != nil {
		return p, domain.NewInvalidInput("queryText", err.Error())
	}
	// Filters are named filterRole etc.; the short names are accepted as aliases
	// and only read when the full name is absent.
	binds := []struct {
		name, alias string
		dest        any
	}{
		{"matchCount", "", &p.MatchCount},
		{"matchThreshold", "", &p.MatchThreshold},
		{"filterRole", "role", &p.Role},
		{"filterLevel", "level", &p.Level},
		{"filterOutcome", "outcome", &p.Outcome},
		{"filterCompany", "company", &p.Company},
		{"timeFilter", "", &p.TimeFilter},
	}
	for _, b := range binds {
		name := b.name
		if !q.Has(name) && b.alias != "" {
			name = b.alias
		}
		if err := bindQuery(q, name, b.dest); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	p, err := bindSearchParams(r.URL.Query())
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	req := model.SearchRequest{
		QueryText:      p.QueryText,
		MatchCount:     p.MatchCount,
		MatchThreshold: p.MatchThreshold,
		FilterRole:     p.Role,
		FilterLevel:    p.Level,
		FilterOutcome:  p.Outcome,
		FilterCompany:  p.Company,
	}
	if p.TimeFilter != nil {
		req.TimeFilter = model.TimeFilter(*p.TimeFilter)
	}
	res, err := s.retrieval.SearchText(r.Context(), req)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, SearchResponse{Count: len(res.Items), Results: toHits(res.Items)})
}

func (s *Server) similar(w http.ResponseWriter, r *http.Request) {
	limit, minSim := 10, 0.0
	q := r.URL.Query()
	var limitP *int
	var minP *float64
	if err := bindQuery(q, "limit", &limitP); err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	if err := bindQuery(q, "minSimilarity", &minP); err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	if limitP != nil {
		limit = *limitP
	}
	if minP != nil {
		minSim = *minP
	}
	res, err := s.retrieval.Similar(r.Context(), chi.URLParam(r, "postId"), limit, minSim)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, SearchResponse{Count: len(res.Items), Results: toHits(res.Items)})
}

func (s *Server) trending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var days, limit *int
	if err := bindQuery(q, "days", &days); err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	if err := bindQuery(q, "limit", &limit); err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	window, n := 30, 0
	if days != nil {
		if *days < 1 {
			s.writeUseCaseError(w, r, domain.NewInvalidInput("days", "must be positive"))
			return
		}
		window = *days
	}
	if limit != nil {
		n = *limit
	}
	topics, sample, err := s.retrieval.Trending(r.Context(), time.Duration(window)*24*time.Hour, n)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, TrendingResponse{WindowDays: window, SampleSize: sample, Topics: topics})
}

// ---- analysis ----

func (s *Server) ragAnalysis(w http.ResponseWriter, r *http.Request) {
	var req model.AnalysisRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	res, err := s.rag.Analyze(r.Context(), req)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res)
}

func (s *Server) compareScenarios(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	res, err := s.rag.CompareScenarios(r.Context(), req.Scenario1, req.Scenario2)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res)
}

func (s *Server) postComparison(w http.ResponseWriter, r *http.Request) {
	res, err := s.comparative.Compare(r.Context(), chi.URLParam(r, "postId"))
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, res)
}

func (s *Server) intelligenceReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	report, err := s.intel.Generate(r.Context(), req.FoundationPoolIDs)
	if err != nil {
		s.writeUseCaseError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, report)
}
