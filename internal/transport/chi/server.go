package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/equidex/internal/domain"
	"github.com/kailas-cloud/equidex/internal/domain/agent"
	"github.com/kailas-cloud/equidex/internal/domain/analysis"
	"github.com/kailas-cloud/equidex/internal/domain/document"
	domreport "github.com/kailas-cloud/equidex/internal/domain/report"
	"github.com/kailas-cloud/equidex/internal/logger"
	healthuc "github.com/kailas-cloud/equidex/internal/usecase/health"
	pipelineuc "github.com/kailas-cloud/equidex/internal/usecase/pipeline"
)

// MaxBodySize caps request bodies; documents arrive inline.
const MaxBodySize = 32 << 20 // 32MB

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest              = "bad_request"
	CodeValidationFailed        = "validation_failed"
	CodeUnknownAgentSet         = "unknown_agent_set"
	CodeEmptyCorpus             = "empty_corpus"
	CodeRateLimited             = "rate_limited"
	CodeEmbeddingQuotaExceeded  = "embedding_quota_exceeded"
	CodeEmbeddingProviderError  = "embedding_provider_error"
	CodeGenerationProviderError = "generation_provider_error"
	CodeInvalidResponse         = "invalid_generation_response"
	CodeTimeout                 = "timeout"
	CodeConfiguration           = "configuration_error"
	CodeInternalError           = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalysisRequest is the POST /api/v1/analyses body.
type AnalysisRequest struct {
	Company     string              `json:"company"`
	Set         string              `json:"set"`
	TokenBudget int                 `json:"token_budget"`
	TopK        int                 `json:"top_k"`
	Report      bool                `json:"report"`
	Documents   []document.Document `json:"documents"`
}

// AnalysisResponse is one finished run. Results holds one entry per agent in registration order.
type AnalysisResponse struct {
	RunID       string                 `json:"run_id"`
	Company     string                 `json:"company"`
	Set         string                 `json:"set"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
	Results     []analysis.Result      `json:"results"`
	Missing     []string               `json:"missing"`
	Corpus      pipelineuc.CorpusStats `json:"corpus"`
	Usage       domain.UsageSnapshot   `json:"usage"`
	Report      *domreport.Report      `json:"report,omitempty"`
	ReportError string                 `json:"report_error,omitempty"`
}

// RetrievalRequest is the POST /api/v1/retrievals body.
type RetrievalRequest struct {
	Query     string              `json:"query"`
	K         int                 `json:"k"`
	Documents []document.Document `json:"documents"`
}

// MatchItem is one scored fragment.
type MatchItem struct {
	Payload string  `json:"payload"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score"`
}

// CategoryItem groups matches of one category.
type CategoryItem struct {
	Category string      `json:"category"`
	Matches  []MatchItem `json:"matches"`
}

// RetrievalResponse lists matches per category in text, table, article order.
type RetrievalResponse struct {
	Query      string               `json:"query"`
	Categories []CategoryItem       `json:"categories"`
	Usage      domain.UsageSnapshot `json:"usage"`
}

// AgentItem describes one registered agent.
type AgentItem struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Query string `json:"query"`
}

// AgentListResponse is the GET /api/v1/agents body.
type AgentListResponse struct {
	Set    string      `json:"set"`
	Agents []AgentItem `json:"agents"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the analysis HTTP API.
type Server struct {
	pipeline      *pipelineuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(pipeline *pipelineuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		health:   health,
		logger:   logger,
	}
	// Order matters: request errors first, then provider errors, then timeouts.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnknownAgentSet, http.StatusBadRequest, CodeUnknownAgentSet),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrEmptyCorpus, http.StatusBadRequest, CodeEmptyCorpus),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusPaymentRequired, CodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrInvalidResponse, http.StatusBadGateway, CodeInvalidResponse),
		sentinelHandler(domain.ErrGenerationProviderError,
			http.StatusBadGateway, CodeGenerationProviderError),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(context.Canceled, http.StatusGatewayTimeout, CodeTimeout),
		configErrorHandler,
	}
	return s
}

// CreateAnalysis handles POST /api/v1/analyses.
func (s *Server) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if !s.decode(w, r, &req) {
		return
	}

	set, err := agent.ParseSet(req.Set)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	res, err := s.pipeline.Analyze(r.Context(), pipelineuc.Request{
		Company:     req.Company,
		Set:         set,
		Documents:   req.Documents,
		TokenBudget: req.TokenBudget,
		TopK:        req.TopK,
		Report:      req.Report,
	})
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	resp := NewAnalysisResponse(req.Company, res)
	setUsageHeaders(w, res.Usage)
	writeJSON(w, http.StatusOK, resp)
}

// NewAnalysisResponse renders a pipeline result. Report failures are reduced to their sentinel message.
func NewAnalysisResponse(company string, res pipelineuc.Result) AnalysisResponse {
	resp := AnalysisResponse{
		RunID:      res.Run.ID.String(),
		Company:    company,
		Set:        res.Run.Set,
		StartedAt:  res.Run.StartedAt,
		FinishedAt: res.Run.FinishedAt,
		Results:    res.Run.Results,
		Missing:    res.Run.MissingAgents(),
		Corpus:     res.Corpus,
		Usage:      res.Usage,
		Report:     res.Report,
	}
	if resp.Missing == nil {
		resp.Missing = []string{}
	}
	if res.ReportErr != nil {
		resp.ReportError = safeDomainMessage(res.ReportErr)
	}
	return resp
}

// CreateRetrieval handles POST /api/v1/retrievals.
func (s *Server) CreateRetrieval(w http.ResponseWriter, r *http.Request) {
	var req RetrievalRequest
	if !s.decode(w, r, &req) {
		return
	}

	groups, usage, err := s.pipeline.Retrieve(r.Context(), req.Documents, req.Query, req.K)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	resp := RetrievalResponse{Query: req.Query, Categories: make([]CategoryItem, 0, len(groups)), Usage: usage}
	for _, g := range groups {
		item := CategoryItem{Category: string(g.Category), Matches: make([]MatchItem, 0, len(g.Matches))}
		for _, m := range g.Matches {
			item.Matches = append(item.Matches, MatchItem{
				Payload: m.Fragment.Payload(),
				Source:  m.Fragment.Source(),
				Score:   m.Score,
			})
		}
		resp.Categories = append(resp.Categories, item)
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// ListAgents handles GET /api/v1/agents.
func (s *Server) ListAgents(w http.ResponseWriter, r *http.Request) {
	set, err := agent.ParseSet(r.URL.Query().Get("set"))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	agents, err := s.pipeline.Agents(set)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	resp := AgentListResponse{Set: string(set), Agents: make([]AgentItem, 0, len(agents))}
	for _, a := range agents {
		resp.Agents = append(resp.Agents, AgentItem{Name: a.Name(), Role: a.Role(), Query: a.Query()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setUsageHeaders(w http.ResponseWriter, u domain.UsageSnapshot) {
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(u.EmbeddingTokens))
	w.Header().Set("X-Generation-Tokens", strconv.Itoa(u.PromptTokens+u.CompletionTokens))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	// Validation details are caller-supplied and safe to echo back.
	if errors.Is(err, domain.ErrInvalidRequest) || errors.Is(err, domain.ErrUnknownAgentSet) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrEmptyCorpus,
		domain.ErrRateLimited,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingProviderError,
		domain.ErrInvalidResponse,
		domain.ErrGenerationProviderError,
		domain.ErrVectorDimMismatch,
		domain.ErrNonFiniteVector,
		domain.ErrUnknownCategory,
		domain.ErrInvalidTemplate,
		context.DeadlineExceeded,
		context.Canceled,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// configErrorHandler reports server-side configuration faults (dimension mismatch, broken templates).
func configErrorHandler(w http.ResponseWriter, err error, msg string) bool {
	if !domain.IsConfigError(err) {
		return false
	}
	writeError(w, http.StatusInternalServerError, CodeConfiguration, msg)
	return true
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContextOr(ctx, s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
