package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/core/ports"
	"github.com/alphaboard/research-qa/internal/observability/metrics"
)

const tenantHeader = "X-Org-Id"

type Router struct {
	answerer ports.QuestionAnswerer
	metrics  *metrics.HTTPServerMetrics
	service  string

	rateLimitRPS     float64
	rateLimitBurst   int
	maxConcurrent    int
	backpressureWait time.Duration
}

type RouterOptions struct {
	Metrics          *metrics.HTTPServerMetrics
	Service          string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxConcurrent    int
	BackpressureWait time.Duration
}

func NewRouter(answerer ports.QuestionAnswerer, options RouterOptions) *Router {
	service := options.Service
	if service == "" {
		service = "api"
	}
	return &Router{
		answerer:         answerer,
		metrics:          options.Metrics,
		service:          service,
		rateLimitRPS:     options.RateLimitRPS,
		rateLimitBurst:   options.RateLimitBurst,
		maxConcurrent:    options.MaxConcurrent,
		backpressureWait: options.BackpressureWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/answers/query", rt.answerQuery)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.maxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.maxConcurrent, rt.backpressureWait)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) answerQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	tenantID := strings.TrimSpace(r.Header.Get(tenantHeader))
	if tenantID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + tenantHeader + " header"})
		return
	}

	var req domain.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.TenantID = tenantID
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	started := time.Now()
	response, err := rt.answerer.Ask(r.Context(), req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.recordPipelineMetrics(response, time.Since(started))
	writeJSON(w, http.StatusOK, response)
}

func (rt *Router) recordPipelineMetrics(response *domain.FinalResponse, elapsed time.Duration) {
	if rt.metrics == nil || response == nil || response.RetrievalDebug == nil {
		return
	}
	debug := response.RetrievalDebug

	rt.metrics.RecordQuery(rt.service, debug.Tier, elapsed)
	rt.metrics.RecordCacheLookup(rt.service, debug.CacheHit)
	if debug.Tier == "enhanced" && !debug.CacheHit {
		rt.metrics.RecordRetrievedChunks(rt.service, debug.ChunksAfterDedup)
		if !debug.RerankApplied {
			rt.metrics.RecordRerankFallback(rt.service)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
