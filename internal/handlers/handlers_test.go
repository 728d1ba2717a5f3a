package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/batch"
	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/models"
)

type stubAnalyzer struct {
	err    error
	bundle *models.AnalysisBundle
	inputs []models.AnalysisInput
}

func (s *stubAnalyzer) Analyze(ctx context.Context, input models.AnalysisInput) (*models.AnalysisBundle, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	if s.bundle != nil {
		return s.bundle, nil
	}
	return &models.AnalysisBundle{
		Input: &models.AnalysisInput{Ticker: input.Ticker, Date: input.Date},
		Fetched: &models.FetchedData{FinnhubSummary: &models.FinnhubSummary{
			PriceMeta: &models.PriceMeta{Value: 187.5, Source: "fmp_live"},
		}},
	}, nil
}

func (s *stubAnalyzer) Variants(model string) []string {
	return []string{"m", "m__full", "m__metrics"}
}

type stubResults struct {
	interfaces.ResultStore
	deleted int
}

func (s *stubResults) DeleteVariants(ctx context.Context, ticker, date string, variants []string) (int, error) {
	s.deleted = len(variants)
	return 2, nil
}

type stubBlobs struct {
	interfaces.BlobCache
	clearedTicker string
	clearedDate   string
}

func (s *stubBlobs) ClearTicker(ctx context.Context, ticker, date string) (int, error) {
	s.clearedTicker = ticker
	s.clearedDate = date
	return 5, nil
}

func TestAnalyzeRequestHandler(t *testing.T) {
	handler := NewAnalyzeHandler(&stubAnalyzer{}, arbor.NewLogger())

	body := `{"ticker":"NVDA","date":"2024-01-02","mode":"metrics-only"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.AnalyzeRequestHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var bundle models.AnalysisBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, "NVDA", bundle.Input.Ticker)
}

func TestAnalyzeRequestHandlerRejectsBadInput(t *testing.T) {
	handler := NewAnalyzeHandler(&stubAnalyzer{}, arbor.NewLogger())

	cases := []string{
		`{"date":"2024-01-02"}`,                 // missing ticker
		`{"ticker":"NVDA","date":"01/02/2024"}`, // wrong date format
		`{"ticker":"NVDA","mode":"turbo"}`,      // unknown mode
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.AnalyzeRequestHandler(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestAnalyzeRequestHandlerStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{interfaces.NewValidationError("bad ticker"), http.StatusBadRequest},
		{interfaces.ErrCacheMiss, http.StatusConflict},
		{interfaces.ErrLLMDisabled, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		handler := NewAnalyzeHandler(&stubAnalyzer{err: tc.err}, arbor.NewLogger())
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"ticker":"NVDA"}`))
		rec := httptest.NewRecorder()
		handler.AnalyzeRequestHandler(rec, req)
		assert.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}

func TestAnalyzeRequestHandlerRequiresPost(t *testing.T) {
	handler := NewAnalyzeHandler(&stubAnalyzer{}, arbor.NewLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
	rec := httptest.NewRecorder()
	handler.AnalyzeRequestHandler(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestResetCacheHandler(t *testing.T) {
	results := &stubResults{}
	blobs := &stubBlobs{}
	handler := NewCacheHandler(&stubAnalyzer{}, results, blobs, arbor.NewLogger())

	body := `{"ticker":"nvda","date":"2024-01-02"}`
	req := httptest.NewRequest(http.MethodPost, "/api/reset-cache", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ResetCacheHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		OK      bool `json:"ok"`
		Cleared int  `json:"cleared_cache_files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 7, resp.Cleared) // 2 variants + 5 blobs
	assert.Equal(t, 3, results.deleted)
	assert.Equal(t, "NVDA", blobs.clearedTicker)
	assert.Equal(t, "2024-01-02", blobs.clearedDate)
}

func TestResetCacheHandlerRequiresDate(t *testing.T) {
	handler := NewCacheHandler(&stubAnalyzer{}, &stubResults{}, &stubBlobs{}, arbor.NewLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/reset-cache", strings.NewReader(`{"ticker":"NVDA"}`))
	rec := httptest.NewRecorder()
	handler.ResetCacheHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubRunner struct {
	mode string
	rows []batch.Row
}

func (s *stubRunner) Run(ctx context.Context, rows []batch.Row, mode string) []batch.Result {
	s.rows = rows
	s.mode = mode
	results := make([]batch.Result, len(rows))
	for i, row := range rows {
		results[i] = batch.Result{Row: row}
	}
	return results
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestBatchRequestHandler(t *testing.T) {
	runner := &stubRunner{}
	handler := NewBatchHandler(runner, arbor.NewLogger())

	buf, contentType := multipartUpload(t, "rows.csv", "NVDA,2024-01-02\nAAPL,2024-01-02\n")
	req := httptest.NewRequest(http.MethodPost, "/api/batch?mode=metrics-only", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.BatchRequestHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "metrics-only", runner.mode)
	require.Len(t, runner.rows, 2)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 3) // header + 2 rows
}

func TestBatchRequestHandlerRejectsSpreadsheet(t *testing.T) {
	handler := NewBatchHandler(&stubRunner{}, arbor.NewLogger())

	buf, contentType := multipartUpload(t, "rows.xlsx", "binary")
	req := httptest.NewRequest(http.MethodPost, "/api/batch", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.BatchRequestHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelfTestHandler(t *testing.T) {
	analyzer := &stubAnalyzer{}
	handler := NewStatusHandler(analyzer, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/selftest", nil)
	rec := httptest.NewRecorder()
	handler.SelfTestHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, 187.5, resp["price"])

	require.Len(t, analyzer.inputs, 1)
	assert.Equal(t, "metrics-only", analyzer.inputs[0].Mode)
	assert.Empty(t, analyzer.inputs[0].Date)
}

func TestHealthHandler(t *testing.T) {
	handler := NewStatusHandler(&stubAnalyzer{}, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
