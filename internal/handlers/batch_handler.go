package handlers

import (
	"context"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/batch"
)

// maxBatchUpload caps the multipart form held in memory.
const maxBatchUpload = 10 << 20 // 10 MB

// BatchRunner is the executor surface the batch endpoint drives.
type BatchRunner interface {
	Run(ctx context.Context, rows []batch.Row, mode string) []batch.Result
}

// BatchHandler serves CSV uploads of analysis rows.
type BatchHandler struct {
	runner BatchRunner
	logger arbor.ILogger
}

// NewBatchHandler creates the batch handler.
func NewBatchHandler(runner BatchRunner, logger arbor.ILogger) *BatchHandler {
	return &BatchHandler{
		runner: runner,
		logger: logger,
	}
}

// BatchRequestHandler handles POST /api/batch: multipart "file" plus a
// "mode" query parameter, responding with the result CSV.
func (h *BatchHandler) BatchRequestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := r.ParseMultipartForm(maxBatchUpload); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing batch file: "+err.Error())
		return
	}
	defer file.Close()

	source, err := batch.NewRowSource(header.Filename, file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := source.Rows()
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rows) == 0 {
		WriteError(w, http.StatusBadRequest, "batch file contains no rows")
		return
	}

	mode := r.URL.Query().Get("mode")
	h.logger.Info().
		Str("file", header.Filename).
		Int("rows", len(rows)).
		Str("mode", mode).
		Msg("Batch upload accepted")

	results := h.runner.Run(r.Context(), rows, mode)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)
	if err := batch.WriteCSV(w, results); err != nil {
		h.logger.Warn().Err(err).Msg("Batch CSV write failed")
	}
}
