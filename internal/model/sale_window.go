package model

import (
	"time"

	"github.com/ally-360/pos-terminal/internal/pricing"

	"github.com/shopspring/decimal"
)

// WindowStatus is the lifecycle state of a SaleWindow.
// DRAFT | AWAITING_PAYMENT | READY_TO_COMPLETE | COMPLETED | CANCELLED
type WindowStatus string

const (
	WindowDraft           WindowStatus = "DRAFT"
	WindowAwaitingPayment WindowStatus = "AWAITING_PAYMENT"
	WindowReady           WindowStatus = "READY_TO_COMPLETE"
	WindowCompleted       WindowStatus = "COMPLETED"
	WindowCancelled       WindowStatus = "CANCELLED"
)

// Terminal reports whether no further mutation is allowed.
func (s WindowStatus) Terminal() bool {
	return s == WindowCompleted || s == WindowCancelled
}

// PaymentMethod: "cash" | "card" | "transfer" | "other"
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

// Valid reports whether m is one of the enumerated methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentOther:
		return true
	}
	return false
}

// LineItem is one cart line. UnitPrice and TaxRate are captured when the line
// is added and never follow the catalog afterwards. Subtotal and Tax are
// always recomputed by the pricing engine.
type LineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
}

// PricingLine converts the item to the pricing engine input.
func (l LineItem) PricingLine() pricing.Line {
	return pricing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice, TaxRate: l.TaxRate}
}

// Payment is one tender collected against a window.
type Payment struct {
	ID        string          `json:"id"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaleWindow is one in-progress sale (a cashier tab). It is owned by the
// engine instance that created it and is never shared across windows.
type SaleWindow struct {
	ID           string          `json:"id"`
	CustomerID   *string         `json:"customer_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	Items        []LineItem      `json:"items"`
	Payments     []Payment       `json:"payments"`
	Discount     decimal.Decimal `json:"discount"`
	Shipping     decimal.Decimal `json:"shipping"`
	Status       WindowStatus    `json:"status"`
	Totals       pricing.Totals  `json:"totals"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HasCustomer reports whether a customer reference is bound.
func (w *SaleWindow) HasCustomer() bool {
	return w.CustomerID != nil && *w.CustomerID != ""
}

// PricingLines returns the pricing view of the cart.
func (w *SaleWindow) PricingLines() []pricing.Line {
	lines := make([]pricing.Line, len(w.Items))
	for i, it := range w.Items {
		lines[i] = it.PricingLine()
	}
	return lines
}

// Clone returns a deep copy so callers never alias engine state.
func (w SaleWindow) Clone() SaleWindow {
	out := w
	if w.CustomerID != nil {
		id := *w.CustomerID
		out.CustomerID = &id
	}
	out.Items = append([]LineItem(nil), w.Items...)
	out.Payments = append([]Payment(nil), w.Payments...)
	out.Totals.Lines = append([]pricing.LineTotals(nil), w.Totals.Lines...)
	return out
}

// CompletedSale is the immutable record kept after the backend acknowledged a
// window. It is retained in a bounded history for reprinting.
type CompletedSale struct {
	WindowID     string          `json:"window_id"`
	SaleID       string          `json:"sale_id"`
	Number       string          `json:"number"`
	RegisterID   string          `json:"register_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	Items        []LineItem      `json:"items"`
	Payments     []Payment       `json:"payments"`
	Totals       pricing.Totals  `json:"totals"`
	Paid         decimal.Decimal `json:"paid"`
	ChangeDue    decimal.Decimal `json:"change_due"`
	CompletedAt  time.Time       `json:"completed_at"`
}
