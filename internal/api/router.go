package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/verdant/esgengine/internal/api/handlers"
	"github.com/verdant/esgengine/internal/feed"
	"github.com/verdant/esgengine/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	companyHandler *handlers.CompanyHandler,
	documentHandler *handlers.DocumentHandler,
	benchmarkHandler *handlers.BenchmarkHandler,
	portfolioHandler *handlers.PortfolioHandler,
	adminHandler *handlers.AdminHandler,
	hub *feed.Hub,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Live update feed
	if hub != nil {
		r.HandleFunc("/ws/updates", hub.ServeWS)
	}

	api := r.PathPrefix("/api").Subrouter()

	// Company endpoints
	api.HandleFunc("/companies", companyHandler.List).Methods("GET")
	api.HandleFunc("/companies", companyHandler.Register).Methods("POST")
	api.HandleFunc("/companies/{id}/score", companyHandler.GetScore).Methods("GET")
	api.HandleFunc("/companies/{id}/score/history", companyHandler.GetScoreHistory).Methods("GET")
	api.HandleFunc("/companies/{id}/documents", companyHandler.GetDocuments).Methods("GET")
	api.HandleFunc("/companies/{id}/benchmark", benchmarkHandler.GetComparison).Methods("GET")

	// Document submission
	api.HandleFunc("/documents", documentHandler.Ingest).Methods("POST")

	// Sector endpoints
	api.HandleFunc("/sectors/{id}/benchmark", benchmarkHandler.GetBenchmark).Methods("GET")

	// Portfolio endpoints
	api.HandleFunc("/portfolios/{id}/holdings", portfolioHandler.GetHoldings).Methods("GET")
	api.HandleFunc("/portfolios/{id}/holdings", portfolioHandler.SetHoldings).Methods("PUT")
	api.HandleFunc("/portfolios/{id}/score", portfolioHandler.GetScore).Methods("GET")
	api.HandleFunc("/portfolios/{id}/aggregate", portfolioHandler.Aggregate).Methods("POST")

	// Operational endpoints
	api.HandleFunc("/refresh", adminHandler.Refresh).Methods("POST")
	api.HandleFunc("/refresh/all", adminHandler.RefreshAll).Methods("POST")
	api.HandleFunc("/ingest", adminHandler.Ingest).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "esgengine-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
