package domain

import "time"

// SubBalance names one typed component of a user's funds.
type SubBalance string

const (
	SubBalanceProfit      SubBalance = "profit"
	SubBalanceDeposit     SubBalance = "deposit"
	SubBalanceBonus       SubBalance = "bonus"
	SubBalanceCard        SubBalance = "card"
	SubBalanceCreditScore SubBalance = "credit_score"
)

// SubBalances lists every recognized kind in storage column order.
var SubBalances = []SubBalance{
	SubBalanceProfit,
	SubBalanceDeposit,
	SubBalanceBonus,
	SubBalanceCard,
	SubBalanceCreditScore,
}

func (s SubBalance) Valid() bool {
	switch s {
	case SubBalanceProfit, SubBalanceDeposit, SubBalanceBonus, SubBalanceCard, SubBalanceCreditScore:
		return true
	}
	return false
}

// ParseSubBalance returns ErrValidation for unknown kinds.
func ParseSubBalance(s string) (SubBalance, error) {
	k := SubBalance(s)
	if !k.Valid() {
		return "", Validationf("unknown balance type %q", s)
	}
	return k, nil
}

type TransactionType string

const (
	TxDeposit             TransactionType = "deposit"
	TxWithdrawal          TransactionType = "withdrawal"
	TxInvestment          TransactionType = "investment"
	TxLiveTradeInvestment TransactionType = "live_trade_investment"
	TxPrincipalReturn     TransactionType = "principal_return"
	TxProfit              TransactionType = "profit"
	TxBonus               TransactionType = "bonus"
	TxReferralCommission  TransactionType = "referral_commission"
	TxAdminFunding        TransactionType = "admin_funding"
	TxAdminDeduction      TransactionType = "admin_deduction"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxDeposit, TxWithdrawal, TxInvestment, TxLiveTradeInvestment, TxPrincipalReturn,
		TxProfit, TxBonus, TxReferralCommission, TxAdminFunding, TxAdminDeduction:
		return true
	}
	return false
}

func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !t.Valid() {
		return "", Validationf("unknown transaction type %q", s)
	}
	return t, nil
}

type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TxPending, TxCompleted, TxFailed:
		return true
	}
	return false
}

// PositionKind selects the accrual granularity.
type PositionKind string

const (
	KindInvestment PositionKind = "investment"
	KindLiveTrade  PositionKind = "live_trade"
)

func (k PositionKind) Valid() bool {
	return k == KindInvestment || k == KindLiveTrade
}

// PeriodLength is a day for investments and an hour for live trades.
func (k PositionKind) PeriodLength() time.Duration {
	if k == KindLiveTrade {
		return time.Hour
	}
	return 24 * time.Hour
}

// OpeningTransaction is the ledger type used when principal is committed.
func (k PositionKind) OpeningTransaction() TransactionType {
	if k == KindLiveTrade {
		return TxLiveTradeInvestment
	}
	return TxInvestment
}

type PositionStatus string

const (
	PositionActive      PositionStatus = "active"
	PositionCompleted   PositionStatus = "completed"
	PositionCancelled   PositionStatus = "cancelled"
	PositionDeactivated PositionStatus = "deactivated"
)

func (s PositionStatus) Valid() bool {
	switch s {
	case PositionActive, PositionCompleted, PositionCancelled, PositionDeactivated:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s PositionStatus) Terminal() bool {
	return s == PositionCompleted || s == PositionCancelled || s == PositionDeactivated
}

// ParseOutcome accepts only the terminal statuses a close may request.
func ParseOutcome(s string) (PositionStatus, error) {
	st := PositionStatus(s)
	if !st.Terminal() {
		return "", Validationf("unknown close outcome %q", s)
	}
	return st, nil
}

// OverdraftPolicy decides what happens when a deduction exceeds the sub-balance.
type OverdraftPolicy string

const (
	// OverdraftClamp floors the sub-balance at zero and records the realized amount.
	OverdraftClamp OverdraftPolicy = "clamp"
	// OverdraftReject fails the adjustment with ErrInsufficientFunds.
	OverdraftReject OverdraftPolicy = "reject"
)

func ParseOverdraftPolicy(s string) (OverdraftPolicy, error) {
	switch p := OverdraftPolicy(s); p {
	case OverdraftClamp, OverdraftReject:
		return p, nil
	case "":
		return OverdraftClamp, nil
	}
	return "", Validationf("unknown overdraft policy %q", s)
}
