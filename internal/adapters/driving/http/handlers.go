package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// maxQueryBody caps the query request body
const maxQueryBody = 16 << 10

// defaultHistoryWindow is the summary window when no since is given
const defaultHistoryWindow = 24 * time.Hour

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string           `json:"error" example:"invalid query"`
	Code  domain.ErrorCode `json:"code" example:"invalid_input"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports readiness and the state of each dependency
// @Description Readiness response
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// QueryRequest is the body of a query call
// @Description Question to answer
type QueryRequest struct {
	Query string `json:"query" example:"Tell me about a time you scaled a data pipeline"`
}

// SearchRequest is the body of a retrieval-only search
// @Description Text to rank profile chunks against
type SearchRequest struct {
	Query string `json:"query" example:"kafka migration"`
	K     int    `json:"k" example:"5"`
}

// SearchResponse lists ranked chunks, best first
// @Description Ranked profile chunks
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []domain.Source `json:"results"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Ready when embedding and generation are configured and every backing store answers
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: map[string]string{}}
	ready := true

	mark := func(name string, ok bool, detail string) {
		if ok {
			resp.Checks[name] = "ok"
			return
		}
		ready = false
		resp.Checks[name] = detail
	}

	mark("embedding", s.runtime != nil && s.runtime.EmbeddingAvailable(), "not configured")
	mark("generation", s.runtime != nil && s.runtime.LLMAvailable(), "not configured")
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			mark(name, false, "unreachable")
			continue
		}
		mark(name, true, "")
	}

	status := http.StatusOK
	if !ready {
		resp.Status = "not ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Query endpoints

// handleQuery godoc
// @Summary      Answer a question
// @Description  Answers from the semantic cache when a close enough question was seen recently, otherwise retrieves profile context and generates
// @Tags         RAG
// @Accept       json
// @Produce      json
// @Param        X-Client-ID  header    string        false  "Caller identity used for throttling"
// @Param        request      body      QueryRequest  true   "Question"
// @Success      200          {object}  domain.QueryResult
// @Failure      400          {object}  ErrorResponse  "Invalid query"
// @Failure      429          {object}  ErrorResponse  "Too many requests"
// @Failure      502          {object}  ErrorResponse  "Upstream returned an unexpected response"
// @Failure      503          {object}  ErrorResponse  "Upstream unavailable or over quota"
// @Router       /api/v1/rag/query [post]
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, domain.CodeInvalidInput, "invalid request body")
		return
	}

	result, err := s.queryService.Query(r.Context(), domain.QueryRequest{
		Query:    req.Query,
		ClientID: ClientIDFromContext(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSearch godoc
// @Summary      Semantic search
// @Description  Ranks profile chunks by similarity to the query without generating an answer. k defaults to the configured top-K and is capped at the index size.
// @Tags         RAG
// @Accept       json
// @Produce      json
// @Param        X-Client-ID  header    string         false  "Caller identity used for throttling"
// @Param        request      body      SearchRequest  true   "Search"
// @Success      200          {object}  SearchResponse
// @Failure      400          {object}  ErrorResponse  "Invalid query"
// @Failure      429          {object}  ErrorResponse  "Too many requests"
// @Failure      503          {object}  ErrorResponse  "Upstream unavailable or over quota"
// @Router       /api/v1/rag/search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, domain.CodeInvalidInput, "invalid request body")
		return
	}
	if req.K < 0 {
		writeErrorCode(w, http.StatusBadRequest, domain.CodeInvalidInput, "k must be a non-negative integer")
		return
	}

	results, err := s.queryService.Search(r.Context(), req.Query, req.K)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Query: req.Query, Results: results})
}

// handleStats godoc
// @Summary      Cache statistics
// @Description  Semantic cache size, hit rate and average answer latency
// @Tags         RAG
// @Produce      json
// @Success      200  {object}  domain.CacheStats
// @Router       /api/v1/rag/stats [get]
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queryService.Stats(r.Context()))
}

// handleQueryHistory godoc
// @Summary      Query history
// @Description  Recent queries and a summary of queries since a point in time
// @Tags         RAG
// @Produce      json
// @Param        limit  query     int     false  "Recent events to return (default 20, max 100)"
// @Param        since  query     string  false  "RFC 3339 start of the summary window (default 24h ago)"
// @Success      200    {object}  domain.QueryHistory
// @Failure      400    {object}  ErrorResponse  "Invalid parameters"
// @Failure      503    {object}  ErrorResponse  "Query log not configured"
// @Router       /api/v1/rag/queries [get]
func (s *Server) handleQueryHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErrorCode(w, http.StatusBadRequest, domain.CodeInvalidInput, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	since := time.Now().Add(-defaultHistoryWindow)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, domain.CodeInvalidInput, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}

	history, err := s.queryService.History(r.Context(), limit, since)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// Index endpoints

// handleIndexStatus godoc
// @Summary      Index status
// @Description  Whether the embedding index is built, and its size and model
// @Tags         Index
// @Produce      json
// @Success      200  {object}  domain.IndexStatus
// @Router       /api/v1/rag/index [get]
func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.indexService.Status())
}

// handleIndexWarm godoc
// @Summary      Build the index
// @Description  Builds the embedding index now instead of on the first query
// @Tags         Index
// @Produce      json
// @Success      200  {object}  domain.IndexStatus
// @Failure      500  {object}  ErrorResponse  "Index build failed"
// @Failure      503  {object}  ErrorResponse  "Embedding unavailable or over quota"
// @Router       /api/v1/rag/index/warm [post]
func (s *Server) handleIndexWarm(w http.ResponseWriter, r *http.Request) {
	status, err := s.indexService.Warm(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Helper functions

// statusForCode maps stable error codes onto HTTP statuses
func statusForCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	case domain.CodeUpstreamQuotaExceeded, domain.CodeUpstreamUnavailable, domain.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case domain.CodeUpstreamMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError logs err in full and writes its public form
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	status := statusForCode(code)

	attrs := []any{
		"request_id", RequestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"code", code,
		"error", err,
	}
	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		attrs = append(attrs, "stage", stageErr.Stage)
	}
	var upErr *domain.UpstreamError
	if errors.As(err, &upErr) {
		attrs = append(attrs, "provider", upErr.Provider, "upstream_status", upErr.StatusCode, "upstream_body", upErr.Raw)
	}
	if status >= 500 {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Info("request rejected", attrs...)
	}

	writeErrorCode(w, status, code, domain.PublicMessage(err))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErrorCode(w http.ResponseWriter, status int, code domain.ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
