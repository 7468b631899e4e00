package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/brokerledger/internal/logger"
	"go.uber.org/zap"
)

// NewRouter wires every route onto a gorilla/mux router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/balances", h.CreateBalanceHandler).Methods("POST")
	v1.HandleFunc("/balances/recalculate", h.RecalculateAllHandler).Methods("POST")
	v1.HandleFunc("/balances/{user_id}", h.GetBalanceHandler).Methods("GET")
	v1.HandleFunc("/balances/{user_id}/adjustments", h.AdjustBalanceHandler).Methods("POST")
	v1.HandleFunc("/balances/{user_id}/recalculate", h.RecalculateTotalHandler).Methods("POST")
	v1.HandleFunc("/balances/{user_id}/transactions", h.ListTransactionsHandler).Methods("GET")
	v1.HandleFunc("/positions", h.OpenPositionHandler).Methods("POST")
	v1.HandleFunc("/positions/{id}", h.GetPositionHandler).Methods("GET")
	v1.HandleFunc("/positions/{id}/close", h.ClosePositionHandler).Methods("POST")
	v1.HandleFunc("/distributions", h.DistributeHandler).Methods("POST")

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
