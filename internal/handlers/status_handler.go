package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

// selfTestTicker is the symbol the selftest endpoint runs end to end.
const selfTestTicker = "AAPL"

// StatusHandler serves health, version and the in-process selftest.
type StatusHandler struct {
	analyzer Analyzer
	logger   arbor.ILogger
	started  time.Time
}

// NewStatusHandler creates the status handler.
func NewStatusHandler(analyzer Analyzer, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		analyzer: analyzer,
		logger:   logger,
		started:  time.Now(),
	}
}

// HealthHandler handles GET /health.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"version":        common.GetVersion(),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// VersionHandler handles GET /api/version.
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetFullVersion(),
	})
}

// SelfTestHandler handles GET /selftest: a metrics-only run for a fixed
// symbol at today's date, proving storage and the vendor chain end to end
// without spending LLM tokens.
func (h *StatusHandler) SelfTestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	start := time.Now()
	bundle, err := h.analyzer.Analyze(r.Context(), models.AnalysisInput{
		Ticker: selfTestTicker,
		Mode:   "metrics-only",
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("Selftest failed")
		WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	response := map[string]interface{}{
		"ok":         true,
		"ticker":     selfTestTicker,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}
	if meta := bundle.PriceMetaOrNil(); meta != nil {
		response["price"] = meta.Value
		response["price_source"] = meta.Source
	}
	if bundle.Momentum != nil && bundle.Momentum.Error == "" {
		response["momentum_score"] = bundle.Momentum.Score
	}
	WriteJSON(w, http.StatusOK, response)
}

// NotFoundHandler answers unmatched /api/ paths.
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "unknown API route: "+r.URL.Path)
}
