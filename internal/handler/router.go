package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/segyhp/loan-engine/internal/handler/middleware"
	"github.com/segyhp/loan-engine/pkg/response"
)

// NewRouter wires health probes and the authenticated loan API.
func NewRouter(loans *LoanHandler, health *HealthHandler, jwtSecret string) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware, response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.WithAuth(jwtSecret))

	api.HandleFunc("/loans", loans.CreateLoan).Methods(http.MethodPost)
	api.HandleFunc("/loans", loans.ListLoans).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}", loans.GetLoan).Methods(http.MethodGet)
	api.HandleFunc("/loans/{loanId}/approve", loans.ApproveLoan).Methods(http.MethodPatch)
	api.HandleFunc("/loans/{loanId}/repayments", loans.RepayLoan).Methods(http.MethodPost)

	return router
}
