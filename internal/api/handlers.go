package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/punchamoorthee/brokerledger/internal/logger"
	"github.com/punchamoorthee/brokerledger/internal/metrics"
	"github.com/punchamoorthee/brokerledger/internal/models"
	"github.com/punchamoorthee/brokerledger/internal/service"
	"go.uber.org/zap"
)

type Handler struct {
	balances  *service.BalanceService
	positions *service.PositionService
	engine    *service.DistributionEngine
	validate  *validator.Validate
}

func NewHandler(balances *service.BalanceService, positions *service.PositionService, engine *service.DistributionEngine) *Handler {
	return &Handler{
		balances:  balances,
		positions: positions,
		engine:    engine,
		validate:  validator.New(),
	}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateBalanceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/balances"
	var req models.CreateBalanceRequest
	if !h.decode(w, r, &req, "POST", endpoint) {
		return
	}

	rec, err := h.balances.CreateBalance(r.Context(), req.UserID)
	if err != nil {
		respondWithServiceError(w, "POST", endpoint, err)
		return
	}
	respond(w, "POST", endpoint, http.StatusCreated, models.BalanceResponse{Balance: rec})
}

func (h *Handler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/balances/{user_id}"
	userID, ok := pathID(w, r, "user_id", "GET", endpoint)
	if !ok {
		return
	}

	rec, err := h.balances.GetBalance(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, "GET", endpoint, err)
		return
	}
	respond(w, "GET", endpoint, http.StatusOK, models.BalanceResponse{Balance: rec})
}

func (h *Handler) AdjustBalanceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/balances/{user_id}/adjustments"
	timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	userID, ok := pathID(w, r, "user_id", "POST", endpoint)
	if !ok {
		return
	}

	var req models.AdjustRequest
	if !h.decode(w, r, &req, "POST", endpoint) {
		return
	}
	if req.Amount.IsZero() {
		respondError(w, "POST", endpoint, http.StatusUnprocessableEntity, "Non-zero amount required")
		return
	}

	rec, err := h.balances.Adjust(r.Context(), service.AdjustParams{
		UserID:      userID,
		Kind:        domain.SubBalance(req.BalanceType),
		Delta:       req.Amount,
		Description: req.Description,
		Type:        domain.TransactionType(req.Type),
	})
	if err != nil {
		respondWithServiceError(w, "POST", endpoint, err)
		return
	}
	respond(w, "POST", endpoint, http.StatusOK, models.BalanceResponse{Balance: rec})
}

func (h *Handler) RecalculateTotalHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/balances/{user_id}/recalculate"
	userID, ok := pathID(w, r, "user_id", "POST", endpoint)
	if !ok {
		return
	}

	rec, err := h.balances.RecalculateTotal(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, "POST", endpoint, err)
		return
	}
	respond(w, "POST", endpoint, http.StatusOK, models.BalanceResponse{Balance: rec})
}

func (h *Handler) RecalculateAllHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/balances/recalculate"
	n, err := h.balances.RecalculateAll(r.Context())
	if err != nil {
		respondWithServiceError(w, "POST", endpoint, err)
		return
	}
	respond(w, "POST", endpoint, http.StatusOK, models.RepairResponse{Repaired: n})
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/balances/{user_id}/transactions"
	userID, ok := pathID(w, r, "user_id", "GET", endpoint)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	txs, err := h.balances.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		respondWithServiceError(w, "GET", endpoint, err)
		return
	}
	respond(w, "GET", endpoint, http.StatusOK, models.TransactionsResponse{Transactions: txs, Limit: limit, Offset: offset})
}

func (h *Handler) OpenPositionHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/positions"
	timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	var req models.OpenPositionRequest
	if !h.decode(w, r, &req, "POST", endpoint) {
		return
	}
	if !req.Amount.IsPositive() {
		respondError(w, "POST", endpoint, http.StatusUnprocessableEntity, "Positive amount required")
		return
	}

	pos, err := h.positions.Open(r.Context(), service.OpenParams{UserID: req.UserID, PlanID: req.PlanID, Amount: req.Amount})
	if err != nil {
		respondWithServiceError(w, "POST", endpoint, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/positions/%d", pos.ID))
	respond(w, "POST", endpoint, http.StatusCreated, pos)
}

func (h *Handler) GetPositionHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/positions/{id}"
	id, ok := pathID(w, r, "id", "GET", endpoint)
	if !ok {
		return
	}

	pos, err := h.positions.Get(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, "GET", endpoint, err)
		return
	}
	respond(w, "GET", endpoint, http.StatusOK, pos)
}

func (h *Handler) ClosePositionHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/positions/{id}/close"
	id, ok := pathID(w, r, "id", "POST", endpoint)
	if !ok {
		return
	}

	var req models.ClosePositionRequest
	if !h.decode(w, r, &req, "POST", endpoint) {
		return
	}

	pos, err := h.positions.Close(r.Context(), id, domain.PositionStatus(req.Outcome))
	if err != nil {
		respondWithServiceError(w, "POST", endpoint, err)
		return
	}
	respond(w, "POST", endpoint, http.StatusOK, pos)
}

// DistributeHandler is the admin trigger for one profit distribution run.
func (h *Handler) DistributeHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/distributions"
	timer := prometheus.NewTimer(metrics.HTTPRequestDuration.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	summary, err := h.engine.DistributePendingProfits(r.Context())
	if err != nil {
		respondWithServiceError(w, "POST", endpoint, err)
		return
	}
	respond(w, "POST", endpoint, http.StatusOK, summary)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, method, endpoint string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, method, endpoint, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, method, endpoint, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name, method, endpoint string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, method, endpoint, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// statusFor maps the domain error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondWithServiceError(w http.ResponseWriter, method, endpoint string, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("method", method), zap.String("endpoint", endpoint), zap.Error(err))
		msg = "Internal Server Error"
	}
	respondError(w, method, endpoint, code, msg)
}

func respondError(w http.ResponseWriter, method, endpoint string, code int, message string) {
	respond(w, method, endpoint, code, map[string]string{"error": message})
}

func respond(w http.ResponseWriter, method, endpoint string, code int, payload interface{}) {
	metrics.RecordHTTPRequest(method, endpoint, strconv.Itoa(code))
	respondWithJSON(w, code, payload)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
