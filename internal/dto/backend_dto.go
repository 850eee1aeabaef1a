package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wire types of the backend ledger API. Amounts sent to the backend are
// always rounded to the currency minor unit by the caller.

// ─── Registers ───────────────────────────────────────────────────────────────

type OpenRegisterRequest struct {
	PDVID          int             `json:"pdv_id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	OpeningNotes   string          `json:"opening_notes,omitempty"`
}

type CloseRegisterRequest struct {
	RegisterID     string          `json:"register_id"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	ClosingNotes   string          `json:"closing_notes,omitempty"`
}

type RegisterMovement struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type RegisterResponse struct {
	ID              string             `json:"id"`
	PDVID           int                `json:"pdv_id"`
	OpenedBy        string             `json:"opened_by"`
	OpeningBalance  decimal.Decimal    `json:"opening_balance"`
	OpeningNotes    string             `json:"opening_notes"`
	Status          string             `json:"status"` // open | closed
	Movements       []RegisterMovement `json:"movements"`
	ClosingBalance  *decimal.Decimal   `json:"closing_balance"`
	ClosingNotes    string             `json:"closing_notes"`
	ExpectedBalance *decimal.Decimal   `json:"expected_balance"`
	Difference      *decimal.Decimal   `json:"difference"`
	OpenedAt        time.Time          `json:"opened_at"`
	ClosedAt        *time.Time         `json:"closed_at"`
}

// ClosingSummaryResponse is the backend's canonical aggregation of a
// session's movements. ExpectedBalance is nil when the backend omits it.
type ClosingSummaryResponse struct {
	RegisterID             string                     `json:"register_id"`
	OpeningBalance         decimal.Decimal            `json:"opening_balance"`
	TotalSales             decimal.Decimal            `json:"total_sales"`
	TotalDeposits          decimal.Decimal            `json:"total_deposits"`
	TotalWithdrawals       decimal.Decimal            `json:"total_withdrawals"`
	TotalExpenses          decimal.Decimal            `json:"total_expenses"`
	TotalAdjustments       decimal.Decimal            `json:"total_adjustments"`
	PaymentMethodBreakdown map[string]decimal.Decimal `json:"payment_method_breakdown"`
	ExpectedBalance        *decimal.Decimal           `json:"expected_balance"`
}

type CreateMovementRequest struct {
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

// ─── Sales ───────────────────────────────────────────────────────────────────

type SaleItem struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
}

type SalePayment struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

type CreateSaleRequest struct {
	CustomerID string          `json:"customer_id"`
	RegisterID string          `json:"register_id"`
	Items      []SaleItem      `json:"items"`
	Payments   []SalePayment   `json:"payments"`
	Discount   decimal.Decimal `json:"discount"`
	Shipping   decimal.Decimal `json:"shipping"`
	Total      decimal.Decimal `json:"total"`
}

type CreateSaleResponse struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	CreatedAt time.Time `json:"created_at"`
}
