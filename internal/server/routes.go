package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Analysis
	mux.HandleFunc("/api/analyze", s.app.AnalyzeHandler.AnalyzeRequestHandler) // POST - single analysis request
	mux.HandleFunc("/api/reset-cache", s.app.CacheHandler.ResetCacheHandler)   // POST - clear cached state for a ticker/date
	mux.HandleFunc("/api/batch", s.app.BatchHandler.BatchRequestHandler)       // POST - CSV upload, CSV response

	// API routes - System
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/selftest", s.app.StatusHandler.SelfTestHandler) // GET - in-process metrics-only run

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}
