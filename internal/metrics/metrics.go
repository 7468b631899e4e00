package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	BalanceAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_balance_adjustments_total",
		Help: "Committed sub-balance adjustments",
	}, []string{"type", "balance_type"})

	ClampedDeductionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_clamped_deductions_total",
		Help: "Deductions floored at zero because they exceeded the sub-balance",
	})

	PositionsOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_positions_opened_total",
		Help: "Positions opened",
	}, []string{"kind"})

	PositionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_positions_closed_total",
		Help: "Positions moved to a terminal status",
	}, []string{"kind", "outcome"})

	ProfitPeriodsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_profit_periods_total",
		Help: "Accrual periods credited",
	}, []string{"kind"})

	ProfitDistributedAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_profit_distributed_amount",
		Help: "Profit credited, in currency units",
	}, []string{"kind"})

	DuplicatePeriodsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_duplicate_periods_total",
		Help: "Distribution attempts skipped because the period was already recorded",
	})

	DistributionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_distribution_failures_total",
		Help: "Positions skipped by a distribution run due to an error",
	})
)

func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}

func RecordAdjustment(txType, balanceType string, clamped bool) {
	BalanceAdjustmentsTotal.WithLabelValues(txType, balanceType).Inc()
	if clamped {
		ClampedDeductionsTotal.Inc()
	}
}

func RecordPositionOpened(kind string) {
	PositionsOpenedTotal.WithLabelValues(kind).Inc()
}

func RecordPositionClosed(kind, outcome string) {
	PositionsClosedTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordProfit(kind string, amount float64) {
	ProfitPeriodsTotal.WithLabelValues(kind).Inc()
	ProfitDistributedAmount.WithLabelValues(kind).Add(amount)
}

func RecordDuplicatePeriod() {
	DuplicatePeriodsTotal.Inc()
}

func RecordDistributionFailure() {
	DistributionFailuresTotal.Inc()
}
