package dto

import (
	"github.com/ally-360/pos-terminal/internal/model"

	"github.com/shopspring/decimal"
)

// Local API consumed by the cashier UI.

// ─── Windows ─────────────────────────────────────────────────────────────────

type AddItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"   validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"min=0"`
	TaxRate   decimal.Decimal `json:"tax_rate"   validate:"min=0,max=100"`
}

// UpdateQuantityRequest is checked by the service: a zero or negative quantity
// is reported as a validation error rather than removing the line.
type UpdateQuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

type BindCustomerRequest struct {
	CustomerID   string `json:"customer_id"   validate:"required"`
	CustomerName string `json:"customer_name"`
}

type AdjustmentsRequest struct {
	Discount decimal.Decimal `json:"discount" validate:"min=0"`
	Shipping decimal.Decimal `json:"shipping" validate:"min=0"`
}

type AddPaymentRequest struct {
	Method    string          `json:"method"    validate:"required,oneof=cash card transfer other"`
	Amount    decimal.Decimal `json:"amount"    validate:"gt=0"`
	Reference string          `json:"reference" validate:"max=120"`
}

type WindowListResponse struct {
	Windows        []model.SaleWindow `json:"windows"`
	ActiveWindowID string             `json:"active_window_id"`
}

// WindowMutationResponse returns the updated window; LineID and PaymentID are
// set by the operations that create them.
type WindowMutationResponse struct {
	Window    model.SaleWindow `json:"window"`
	LineID    string           `json:"line_id,omitempty"`
	PaymentID string           `json:"payment_id,omitempty"`
}

// CompleteSaleResponse carries the recorded sale. Late is set when the backend
// acknowledged the sale after its register stopped accepting movements.
type CompleteSaleResponse struct {
	Sale model.CompletedSale `json:"sale"`
	Late bool                `json:"late,omitempty"`
}

// ─── Register ────────────────────────────────────────────────────────────────

type OpenRegisterLocalRequest struct {
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"min=0"`
	Notes          string          `json:"notes"           validate:"max=500"`
}

type MovementRequest struct {
	Type      string          `json:"type"      validate:"required,oneof=deposit withdrawal expense adjustment"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference" validate:"max=120"`
}

type ConfirmCloseRequest struct {
	CountedBalance decimal.Decimal `json:"counted_balance" validate:"min=0"`
	Notes          string          `json:"notes"           validate:"max=1000"`
}

// RegisterResponseLocal wraps the session so "no register" serializes as
// {"register": null} instead of an empty body.
type RegisterResponseLocal struct {
	Register *model.RegisterSession `json:"register"`
}
