// Package handler implements the HTTP API: collection listing, attribute
// vocabularies, page queries, page previews, exports, and cache controls.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Hussein-Mohammed/ScriptSight/internal/analytics"
	"github.com/Hussein-Mohammed/ScriptSight/internal/cache"
	"github.com/Hussein-Mohammed/ScriptSight/internal/catalogue"
	"github.com/Hussein-Mohammed/ScriptSight/internal/collection"
	"github.com/Hussein-Mohammed/ScriptSight/internal/export"
	"github.com/Hussein-Mohammed/ScriptSight/internal/preview"
	"github.com/Hussein-Mohammed/ScriptSight/internal/query"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/config"
	apperrors "github.com/Hussein-Mohammed/ScriptSight/pkg/errors"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/logger"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/metrics"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/middleware"
)

type Handler struct {
	router    *collection.Router
	evaluator *query.Evaluator
	cache     *cache.QueryCache
	exporter  *export.Exporter
	ledger    *export.Ledger
	collector *analytics.Collector
	metrics   *metrics.Metrics
	queryCfg  config.QueryConfig
	logger    *slog.Logger
}

func New(router *collection.Router, evaluator *query.Evaluator, queryCache *cache.QueryCache,
	exporter *export.Exporter, ledger *export.Ledger, collector *analytics.Collector,
	m *metrics.Metrics, queryCfg config.QueryConfig) *Handler {
	return &Handler{
		router:    router,
		evaluator: evaluator,
		cache:     queryCache,
		exporter:  exporter,
		ledger:    ledger,
		collector: collector,
		metrics:   m,
		queryCfg:  queryCfg,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

// Register wires every route onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/collections", h.ListCollections)
	mux.HandleFunc("GET /api/v1/collections/{collection}/attributes", h.Attributes)
	mux.HandleFunc("GET /api/v1/collections/{collection}/pages", h.QueryPages)
	mux.HandleFunc("GET /api/v1/collections/{collection}/pages/{page}", h.GetPage)
	mux.HandleFunc("POST /api/v1/exports", h.CreateExport)
	mux.HandleFunc("GET /api/v1/exports", h.ListExports)
	mux.HandleFunc("POST /api/v1/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// ListCollections returns every loaded collection with its page count.
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"collections": h.router.Collections(),
	})
}

// Attributes returns the attribute vocabulary of one collection.
func (h *Handler) Attributes(w http.ResponseWriter, r *http.Request) {
	eng, err := h.router.Get(r.PathValue("collection"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"collection": eng.Catalogue().Name(),
		"attributes": eng.Catalogue().Vocabulary(),
	})
}

// QueryPages evaluates a filter query over one collection and returns the
// matching pages, paginated.
func (h *Handler) QueryPages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	if h.queryCfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queryCfg.Timeout)
		defer cancel()
	}
	log := logger.FromContext(ctx)
	name := r.PathValue("collection")

	eng, err := h.router.Get(name)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	plan, err := query.Parse(name, r.URL.Query())
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	limit, offset, err := h.pagination(r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	result, cacheHit, err := h.cache.GetOrCompute(ctx, plan, func(ctx context.Context) (*query.Result, error) {
		return h.evaluator.Evaluate(ctx, eng, plan)
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	page := result.Slice(offset, limit)
	latencyMs := time.Since(start).Milliseconds()

	resultType := "hits"
	if result.TotalHits == 0 {
		resultType = "zero"
	}
	h.metrics.QueriesTotal.WithLabelValues(resultType).Inc()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.metrics.QueryLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.QueryResultsCount.Observe(float64(result.TotalHits))

	log.Info("query completed",
		"collection", name,
		"query", plan.Describe(),
		"total_hits", result.TotalHits,
		"returned", len(page),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.collector.Track(analytics.QueryEvent{
		Type:       analytics.EventQuery,
		Collection: name,
		Query:      plan.Describe(),
		TotalHits:  result.TotalHits,
		Returned:   len(page),
		LatencyMs:  latencyMs,
		CacheHit:   cacheHit,
		Timestamp:  time.Now().UTC(),
		RequestID:  middleware.GetRequestID(ctx),
	})

	h.writeJSON(w, http.StatusOK, map[string]any{
		"collection": name,
		"query":      plan,
		"total_hits": result.TotalHits,
		"offset":     offset,
		"limit":      limit,
		"pages":      page,
	})
}

// GetPage returns the preview view of a single page.
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("collection")
	eng, err := h.router.Get(name)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	rec, err := eng.Catalogue().Get(name + "/" + r.PathValue("page"))
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, preview.Build(name, rec))
}

// exportRequest is the POST /api/v1/exports body.
type exportRequest struct {
	Collection  string   `json:"collection"`
	Implement   []string `json:"implement,omitempty"`
	Orientation []string `json:"orientation,omitempty"`
	Colour      []string `json:"colour,omitempty"`
	MinScore    float64  `json:"min_score,omitempty"`
	MinArea     float64  `json:"min_area,omitempty"`
	NoText      bool     `json:"no_text,omitempty"`
}

func (req *exportRequest) plan() *query.Plan {
	plan := &query.Plan{
		Collection:   req.Collection,
		MinScore:     req.MinScore,
		MinAreaRatio: req.MinArea,
		NoText:       req.NoText,
	}
	for _, c := range []struct {
		attribute string
		values    []string
	}{
		{catalogue.AttrColour, req.Colour},
		{catalogue.AttrImplement, req.Implement},
		{catalogue.AttrOrientation, req.Orientation},
	} {
		if len(c.values) > 0 {
			plan.Criteria = append(plan.Criteria, query.Criterion{Attribute: c.attribute, Values: c.values})
		}
	}
	return plan
}

// CreateExport evaluates the query and copies the matching page images into
// a date-stamped folder. The run record comes back in the response.
func (h *Handler) CreateExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Collection == "" {
		h.writeError(w, http.StatusBadRequest, "collection is required")
		return
	}

	eng, err := h.router.Get(req.Collection)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	plan := req.plan()
	result, _, err := h.cache.GetOrCompute(ctx, plan, func(ctx context.Context) (*query.Result, error) {
		return h.evaluator.Evaluate(ctx, eng, plan)
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	run, err := h.exporter.Export(ctx, plan, result)
	latencyMs := time.Since(start).Milliseconds()
	if run != nil {
		h.collector.Track(analytics.ExportEvent{
			Type:         analytics.EventExport,
			Collection:   req.Collection,
			Query:        plan.Describe(),
			Folder:       run.Folder,
			PagesCopied:  run.PagesCopied,
			PagesSkipped: run.PagesSkipped,
			Status:       run.Status,
			LatencyMs:    latencyMs,
			Timestamp:    time.Now().UTC(),
		})
	}
	if err != nil {
		log.Error("export failed", "collection", req.Collection, "error", err)
		h.writeAppError(w, r, err)
		return
	}

	log.Info("export completed",
		"collection", req.Collection,
		"folder", run.Folder,
		"copied", run.PagesCopied,
		"latency_ms", latencyMs,
	)
	h.writeJSON(w, http.StatusCreated, run)
}

// ListExports returns recent export runs from the ledger.
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"status": "ledger disabled", "runs": []export.Run{}})
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	runs, err := h.ledger.Recent(r.Context(), r.URL.Query().Get("collection"), limit)
	if err != nil {
		h.logger.Error("listing export runs failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "listing export runs failed")
		return
	}
	if runs == nil {
		runs = []export.Run{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// Reload re-reads changed catalogue files and drops the query cache when
// anything actually changed.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changed, err := h.router.ReloadAll()
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if changed > 0 {
		if _, err := h.cache.Invalidate(ctx); err != nil {
			h.logger.Warn("cache invalidation after reload failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"changed":     changed,
		"collections": h.router.Count(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "deleted": deleted})
}

func (h *Handler) pagination(r *http.Request) (limit, offset int, err error) {
	limit = h.queryCfg.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, perr := strconv.Atoi(raw)
		if perr != nil || parsed < 1 {
			return 0, 0, &query.ValidationError{Fields: map[string]string{"limit": "must be a positive integer"}}
		}
		if parsed > h.queryCfg.MaxResults {
			parsed = h.queryCfg.MaxResults
		}
		limit = parsed
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, perr := strconv.Atoi(raw)
		if perr != nil || parsed < 0 {
			return 0, 0, &query.ValidationError{Fields: map[string]string{"offset": "must be a non-negative integer"}}
		}
		offset = parsed
	}
	return limit, offset, nil
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	body := map[string]any{"error": err.Error()}
	var verr *query.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
