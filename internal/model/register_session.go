package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterStatus is the lifecycle state of a cash drawer session.
// CLOSED → OPEN → RECONCILING → CLOSED (RECONCILING → OPEN on dismiss)
type RegisterStatus string

const (
	RegisterClosed      RegisterStatus = "CLOSED"
	RegisterOpen        RegisterStatus = "OPEN"
	RegisterReconciling RegisterStatus = "RECONCILING"
)

// MovementType: "sale" | "deposit" | "withdrawal" | "expense" | "adjustment"
type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementDeposit    MovementType = "deposit"
	MovementWithdrawal MovementType = "withdrawal"
	MovementExpense    MovementType = "expense"
	MovementAdjustment MovementType = "adjustment"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementSale, MovementDeposit, MovementWithdrawal, MovementExpense, MovementAdjustment:
		return true
	}
	return false
}

// Signed applies the sign convention: sale and deposit are positive,
// withdrawal and expense negative, adjustment keeps the sign it was given.
func (t MovementType) Signed(amount decimal.Decimal) decimal.Decimal {
	switch t {
	case MovementSale, MovementDeposit:
		return amount.Abs()
	case MovementWithdrawal, MovementExpense:
		return amount.Abs().Neg()
	default:
		return amount
	}
}

// Movement is an immutable cash-affecting event of a register session.
// Movements are never modified or deleted.
type Movement struct {
	ID        string          `json:"id"`
	Type      MovementType    `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// RegisterSession represents the lifecycle of a physical cash drawer.
// Closing fields are set once, when the session is confirmed CLOSED; the
// record is never mutated afterwards.
type RegisterSession struct {
	ID             string          `json:"id"`
	PDVID          int             `json:"pdv_id"`
	OpenedBy       string          `json:"opened_by"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	OpeningNotes   string          `json:"opening_notes,omitempty"`
	Status         RegisterStatus  `json:"status"`
	Movements      []Movement      `json:"movements"`
	OpenedAt       time.Time       `json:"opened_at"`

	ClosingBalance  *decimal.Decimal `json:"closing_balance,omitempty"`
	ClosingNotes    string           `json:"closing_notes,omitempty"`
	ExpectedBalance *decimal.Decimal `json:"expected_balance,omitempty"`
	Difference      *decimal.Decimal `json:"difference,omitempty"`
	DeviationPct    *decimal.Decimal `json:"deviation_pct,omitempty"`
	// Classification: "normal" | "warning" | "critical"
	Classification string     `json:"classification,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// AcceptsMovements reports whether new movements may be accrued.
func (r *RegisterSession) AcceptsMovements() bool {
	return r.Status == RegisterOpen || r.Status == RegisterReconciling
}

// LocalBalance is opening balance plus all local movements. It is a display
// hint only: reconciliation always uses the backend aggregation.
func (r *RegisterSession) LocalBalance() decimal.Decimal {
	total := r.OpeningBalance
	for _, m := range r.Movements {
		total = total.Add(m.Amount)
	}
	return total
}

// Clone returns a deep copy.
func (r RegisterSession) Clone() RegisterSession {
	out := r
	out.Movements = append([]Movement(nil), r.Movements...)
	if r.ClosingBalance != nil {
		v := *r.ClosingBalance
		out.ClosingBalance = &v
	}
	if r.ExpectedBalance != nil {
		v := *r.ExpectedBalance
		out.ExpectedBalance = &v
	}
	if r.Difference != nil {
		v := *r.Difference
		out.Difference = &v
	}
	if r.DeviationPct != nil {
		v := *r.DeviationPct
		out.DeviationPct = &v
	}
	if r.ClosedAt != nil {
		v := *r.ClosedAt
		out.ClosedAt = &v
	}
	return out
}

// ReconciliationSummary is the backend's canonical aggregation of a session's
// movements, fetched right before a close is confirmed.
type ReconciliationSummary struct {
	RegisterID             string                            `json:"register_id"`
	OpeningBalance         decimal.Decimal                   `json:"opening_balance"`
	TotalSales             decimal.Decimal                   `json:"total_sales"`
	TotalDeposits          decimal.Decimal                   `json:"total_deposits"`
	TotalWithdrawals       decimal.Decimal                   `json:"total_withdrawals"`
	TotalExpenses          decimal.Decimal                   `json:"total_expenses"`
	TotalAdjustments       decimal.Decimal                   `json:"total_adjustments"`
	PaymentMethodBreakdown map[PaymentMethod]decimal.Decimal `json:"payment_method_breakdown,omitempty"`
	ExpectedBalance        decimal.Decimal                   `json:"expected_balance"`
	FetchedAt              time.Time                         `json:"fetched_at"`
}

// Reconciliation is the outcome of comparing a counted amount with the
// expected balance.
type Reconciliation struct {
	Expected       decimal.Decimal `json:"expected"`
	Counted        decimal.Decimal `json:"counted"`
	Difference     decimal.Decimal `json:"difference"`
	DeviationPct   decimal.Decimal `json:"deviation_pct"`
	Classification string          `json:"classification"`
}
