package models

import (
	"github.com/punchamoorthee/brokerledger/internal/domain"
	"github.com/shopspring/decimal"
)

type CreateBalanceRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// AdjustRequest is the admin payload for a manual sub-balance change.
// Amount is signed: negative values deduct.
type AdjustRequest struct {
	BalanceType string          `json:"balance_type" validate:"required,oneof=profit deposit bonus card credit_score"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"required,oneof=deposit withdrawal investment live_trade_investment principal_return profit bonus referral_commission admin_funding admin_deduction"`
	Description string          `json:"description" validate:"max=255"`
}

// OpenPositionRequest opens an investment or live trade on a plan.
type OpenPositionRequest struct {
	UserID int64           `json:"user_id" validate:"required,gt=0"`
	PlanID int64           `json:"plan_id" validate:"required,gt=0"`
	Amount decimal.Decimal `json:"amount"`
}

type ClosePositionRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=completed cancelled deactivated"`
}

type BalanceResponse struct {
	Balance *domain.BalanceRecord `json:"balance"`
}

type TransactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

type RepairResponse struct {
	Repaired int64 `json:"repaired"`
}
