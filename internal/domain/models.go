package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places every stored amount carries.
const AmountScale = 2

// BalanceRecord holds a user's typed sub-balances.
// Total must always equal Profit + Deposit + Bonus + Card. CreditScore is not money
// and never enters Total.
type BalanceRecord struct {
	UserID      int64           `json:"user_id"`
	Profit      decimal.Decimal `json:"profit"`
	Deposit     decimal.Decimal `json:"deposit"`
	Bonus       decimal.Decimal `json:"bonus"`
	Card        decimal.Decimal `json:"card"`
	CreditScore decimal.Decimal `json:"credit_score"`
	Total       decimal.Decimal `json:"total"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Get returns the value of one sub-balance.
func (b *BalanceRecord) Get(kind SubBalance) decimal.Decimal {
	switch kind {
	case SubBalanceProfit:
		return b.Profit
	case SubBalanceDeposit:
		return b.Deposit
	case SubBalanceBonus:
		return b.Bonus
	case SubBalanceCard:
		return b.Card
	case SubBalanceCreditScore:
		return b.CreditScore
	}
	return decimal.Zero
}

// Set overwrites one sub-balance and recomputes Total.
func (b *BalanceRecord) Set(kind SubBalance, v decimal.Decimal) {
	v = v.Round(AmountScale)
	switch kind {
	case SubBalanceProfit:
		b.Profit = v
	case SubBalanceDeposit:
		b.Deposit = v
	case SubBalanceBonus:
		b.Bonus = v
	case SubBalanceCard:
		b.Card = v
	case SubBalanceCreditScore:
		b.CreditScore = v
	}
	b.Recompute()
}

// Recompute derives Total from the four monetary sub-balances.
func (b *BalanceRecord) Recompute() {
	b.Total = b.ExpectedTotal()
}

// ExpectedTotal is the value Total must hold.
func (b *BalanceRecord) ExpectedTotal() decimal.Decimal {
	return b.Profit.Add(b.Deposit).Add(b.Bonus).Add(b.Card)
}

// Consistent reports whether the stored Total matches its components.
func (b *BalanceRecord) Consistent() bool {
	return b.Total.Equal(b.ExpectedTotal())
}

// Transaction is one append-only ledger row. Amount is always non-negative;
// Direction says whether it was added to or taken from BalanceType.
type Transaction struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Direction   Direction         `json:"direction"`
	BalanceType SubBalance        `json:"balance_type"`
	Description string            `json:"description"`
	PositionID  *int64            `json:"position_id,omitempty"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Validate checks every enumerated field.
func (t *Transaction) Validate() error {
	if !t.Type.Valid() {
		return Validationf("unknown transaction type %q", t.Type)
	}
	if !t.BalanceType.Valid() {
		return Validationf("unknown balance type %q", t.BalanceType)
	}
	if !t.Direction.Valid() {
		return Validationf("unknown direction %q", t.Direction)
	}
	if !t.Status.Valid() {
		return Validationf("unknown transaction status %q", t.Status)
	}
	if t.Amount.IsNegative() {
		return Validationf("transaction amount must not be negative")
	}
	return nil
}

// Plan is read-only reference data describing what a position may be opened on.
// Rate is the fraction of principal paid per accrual period.
type Plan struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Kind      PositionKind     `json:"kind"`
	MinAmount decimal.Decimal  `json:"min_amount"`
	MaxAmount *decimal.Decimal `json:"max_amount,omitempty"`
	Rate      decimal.Decimal  `json:"rate"`
	Duration  int              `json:"duration"`
	IsActive  bool             `json:"is_active"`
}

// Accepts validates an amount against the plan's bounds.
func (p *Plan) Accepts(amount decimal.Decimal) error {
	if !p.IsActive {
		return Validationf("plan %d is not active", p.ID)
	}
	if amount.LessThan(p.MinAmount) {
		return Validationf("amount %s is below plan minimum %s", amount.StringFixed(AmountScale), p.MinAmount.StringFixed(AmountScale))
	}
	if p.MaxAmount != nil && amount.GreaterThan(*p.MaxAmount) {
		return Validationf("amount %s exceeds plan maximum %s", amount.StringFixed(AmountScale), p.MaxAmount.StringFixed(AmountScale))
	}
	return nil
}

// Position is principal committed to a plan. Rate and Duration are copied from the
// plan when the position opens so later plan edits do not change running positions.
type Position struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	PlanID      int64           `json:"plan_id"`
	Kind        PositionKind    `json:"kind"`
	Principal   decimal.Decimal `json:"principal"`
	Rate        decimal.Decimal `json:"rate"`
	Duration    int             `json:"duration"`
	Status      PositionStatus  `json:"status"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	TotalProfit decimal.Decimal `json:"total_profit"`
}

// PeriodLength is the accrual granularity of the position.
func (p *Position) PeriodLength() time.Duration {
	return p.Kind.PeriodLength()
}

// MaturesAt is the instant the last accrual period ends.
func (p *Position) MaturesAt() time.Time {
	return p.StartTime.Add(time.Duration(p.Duration) * p.PeriodLength())
}

// PeriodsElapsed counts whole periods since StartTime, capped at Duration.
func (p *Position) PeriodsElapsed(now time.Time) int {
	if now.Before(p.StartTime) {
		return 0
	}
	n := int(now.Sub(p.StartTime) / p.PeriodLength())
	if n > p.Duration {
		n = p.Duration
	}
	return n
}

// PeriodAt is the idempotence key for period k (1-based): the end of that period
// truncated to the accrual granularity.
func (p *Position) PeriodAt(k int) time.Time {
	l := p.PeriodLength()
	return p.StartTime.Add(time.Duration(k) * l).UTC().Truncate(l)
}

// ProfitPerPeriod is principal * rate at ledger precision.
func (p *Position) ProfitPerPeriod() decimal.Decimal {
	return p.Principal.Mul(p.Rate).Round(AmountScale)
}

// Distribution marks that period PeriodIndex of a position has been credited.
type Distribution struct {
	ID          int64           `json:"id"`
	PositionID  int64           `json:"position_id"`
	UserID      int64           `json:"user_id"`
	PeriodIndex int             `json:"period_index"`
	Period      time.Time       `json:"period"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PositionFailure describes one position the engine had to skip.
type PositionFailure struct {
	PositionID int64  `json:"position_id"`
	Error      string `json:"error"`
}

// DistributionSummary is the outcome of one distribution run.
type DistributionSummary struct {
	RunID              string            `json:"run_id"`
	PositionsScanned   int               `json:"positions_scanned"`
	Processed          int               `json:"processed"`
	TotalAmount        decimal.Decimal   `json:"total_amount"`
	PositionsCompleted int               `json:"positions_completed"`
	Failures           []PositionFailure `json:"failures"`
}
