package service

import (
	"fmt"
	"time"

	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentCollector accumulates tenders against a window and answers
// payability questions. Queries never fail; they clamp instead.
type PaymentCollector struct {
	pricing pricing.Engine
	newID   func() string
	now     func() time.Time
}

func NewPaymentCollector(engine pricing.Engine) *PaymentCollector {
	return &PaymentCollector{
		pricing: engine,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// AddPayment appends a payment and recomputes the window status.
func (c *PaymentCollector) AddPayment(w *model.SaleWindow, p model.Payment) (string, error) {
	if w.Status.Terminal() {
		return "", fmt.Errorf("add payment to %s window: %w", w.Status, ErrInvalidTransition)
	}
	if !p.Method.Valid() {
		return "", invalid("method", fmt.Sprintf("unknown payment method %q", p.Method))
	}
	if !p.Amount.IsPositive() {
		return "", invalid("amount", "payment amount must be positive")
	}
	if p.ID == "" {
		p.ID = c.newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = c.now()
	}
	w.Payments = append(w.Payments, p)
	recompute(w, c.pricing)
	w.UpdatedAt = c.now()
	return p.ID, nil
}

// RemovePayment drops a payment by id and recomputes the window status.
func (c *PaymentCollector) RemovePayment(w *model.SaleWindow, paymentID string) error {
	if w.Status.Terminal() {
		return fmt.Errorf("remove payment from %s window: %w", w.Status, ErrInvalidTransition)
	}
	for i, p := range w.Payments {
		if p.ID == paymentID {
			w.Payments = append(w.Payments[:i:i], w.Payments[i+1:]...)
			recompute(w, c.pricing)
			w.UpdatedAt = c.now()
			return nil
		}
	}
	return ErrPaymentNotFound
}

// Paid returns Σ payment amounts.
func (c *PaymentCollector) Paid(w *model.SaleWindow) decimal.Decimal {
	return sumPayments(w)
}

// IsPayable is true iff Σpayments ≥ grand total (at currency precision).
func (c *PaymentCollector) IsPayable(w *model.SaleWindow) bool {
	return isPayable(w, c.pricing)
}

// ChangeDue is Σpayments − grand total, or zero while the window is not
// payable.
func (c *PaymentCollector) ChangeDue(w *model.SaleWindow) decimal.Decimal {
	change := sumPayments(w).Sub(c.pricing.Round(w.Totals.GrandTotal))
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}

// Outstanding is what is still owed, never negative.
func (c *PaymentCollector) Outstanding(w *model.SaleWindow) decimal.Decimal {
	owed := c.pricing.Round(w.Totals.GrandTotal).Sub(sumPayments(w))
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}

func sumPayments(w *model.SaleWindow) decimal.Decimal {
	total := decimal.Zero
	for _, p := range w.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

func isPayable(w *model.SaleWindow, e pricing.Engine) bool {
	return sumPayments(w).GreaterThanOrEqual(e.Round(w.Totals.GrandTotal))
}
