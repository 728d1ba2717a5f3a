package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/interfaces"
)

// ResetCacheRequest is the POST /api/reset-cache body.
type ResetCacheRequest struct {
	Ticker string `json:"ticker" validate:"required,max=12"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
	Model  string `json:"model" validate:"omitempty,max=64"`
}

// CacheHandler clears cached analysis state for one (ticker, date).
type CacheHandler struct {
	analyzer Analyzer
	results  interfaces.ResultStore
	blobs    interfaces.BlobCache
	logger   arbor.ILogger
	validate *validator.Validate
}

// NewCacheHandler creates the cache handler.
func NewCacheHandler(analyzer Analyzer, results interfaces.ResultStore, blobs interfaces.BlobCache, logger arbor.ILogger) *CacheHandler {
	return &CacheHandler{
		analyzer: analyzer,
		results:  results,
		blobs:    blobs,
		logger:   logger,
		validate: validator.New(),
	}
}

// ResetCacheHandler handles POST /api/reset-cache. Every model variant of
// the bundle plus every blob keyed by the ticker (and date, when given) is
// removed.
func (h *CacheHandler) ResetCacheHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ResetCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ticker, err := common.NormalizeSymbol(req.Ticker)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cleared, err := h.results.DeleteVariants(r.Context(), ticker, req.Date, h.analyzer.Variants(req.Model))
	if err != nil {
		h.logger.Warn().Err(err).Str("ticker", ticker).Msg("Variant delete failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	removed, err := h.blobs.ClearTicker(r.Context(), ticker, req.Date)
	if err != nil {
		h.logger.Warn().Err(err).Str("ticker", ticker).Msg("Blob cache clear failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cleared += removed

	h.logger.Info().
		Str("ticker", ticker).
		Str("date", req.Date).
		Int("cleared", cleared).
		Msg("Cache reset")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":                  true,
		"cleared_cache_files": cleared,
	})
}
