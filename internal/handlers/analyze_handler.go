package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/models"
)

// Analyzer is the orchestration surface the HTTP layer depends on.
type Analyzer interface {
	Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisBundle, error)
	Variants(model string) []string
}

// AnalyzeRequest is the POST /api/analyze body.
type AnalyzeRequest struct {
	Ticker string `json:"ticker" validate:"required,max=12"`
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Model  string `json:"model" validate:"omitempty,max=64"`
	Mode   string `json:"mode" validate:"omitempty,oneof=full cached-only metrics-only deferred"`
}

// AnalyzeHandler serves single analysis requests.
type AnalyzeHandler struct {
	analyzer Analyzer
	logger   arbor.ILogger
	validate *validator.Validate
}

// NewAnalyzeHandler creates the analyze handler.
func NewAnalyzeHandler(analyzer Analyzer, logger arbor.ILogger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer: analyzer,
		logger:   logger,
		validate: validator.New(),
	}
}

// AnalyzeRequestHandler handles POST /api/analyze.
func (h *AnalyzeHandler) AnalyzeRequestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	bundle, err := h.analyzer.Analyze(r.Context(), models.AnalysisInput{
		Ticker: req.Ticker,
		Date:   req.Date,
		Model:  req.Model,
		Mode:   req.Mode,
	})
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("ticker", req.Ticker).
			Str("mode", req.Mode).
			Msg("Analysis request failed")
		WriteAnalysisError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bundle)
}
