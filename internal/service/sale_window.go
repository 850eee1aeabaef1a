package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemInput is what the cashier scans or types. UnitPrice and TaxRate are
// the catalog values at this moment and are frozen into the line.
type LineItemInput struct {
	ProductID string
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
}

// WindowEditor applies cart mutations to one window. Every mutation
// recomputes totals and status; nothing is edited independently.
type WindowEditor struct {
	pricing pricing.Engine
	newID   func() string
	now     func() time.Time
}

func NewWindowEditor(engine pricing.Engine) *WindowEditor {
	return &WindowEditor{pricing: engine, newID: uuid.NewString, now: time.Now}
}

// AddItem appends a line, or merges into an existing line for the same product
// at the same captured price and rate. Returns the line id.
func (e *WindowEditor) AddItem(w *model.SaleWindow, in LineItemInput) (string, error) {
	if err := guardMutable(w, "add item"); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.ProductID) == "" {
		return "", invalid("product_id", "product reference is required")
	}
	if !in.Quantity.IsPositive() {
		return "", invalid("quantity", "quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return "", invalid("unit_price", "unit price cannot be negative")
	}
	if in.TaxRate.IsNegative() {
		return "", invalid("tax_rate", "tax rate cannot be negative")
	}

	for i := range w.Items {
		it := &w.Items[i]
		if it.ProductID == in.ProductID && it.UnitPrice.Equal(in.UnitPrice) && it.TaxRate.Equal(in.TaxRate) {
			it.Quantity = it.Quantity.Add(in.Quantity)
			e.touch(w)
			return it.ID, nil
		}
	}

	line := model.LineItem{
		ID:        e.newID(),
		ProductID: in.ProductID,
		Name:      in.Name,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		TaxRate:   in.TaxRate,
	}
	w.Items = append(w.Items, line)
	e.touch(w)
	return line.ID, nil
}

// UpdateQuantity sets the quantity of an existing line.
func (e *WindowEditor) UpdateQuantity(w *model.SaleWindow, lineID string, qty decimal.Decimal) error {
	if err := guardMutable(w, "update item"); err != nil {
		return err
	}
	if !qty.IsPositive() {
		return invalid("quantity", "quantity must be positive")
	}
	i := findLine(w, lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	w.Items[i].Quantity = qty
	e.touch(w)
	return nil
}

// RemoveItem drops a line.
func (e *WindowEditor) RemoveItem(w *model.SaleWindow, lineID string) error {
	if err := guardMutable(w, "remove item"); err != nil {
		return err
	}
	i := findLine(w, lineID)
	if i < 0 {
		return ErrLineNotFound
	}
	w.Items = append(w.Items[:i:i], w.Items[i+1:]...)
	e.touch(w)
	return nil
}

// BindCustomer attaches the customer reference required for completion.
func (e *WindowEditor) BindCustomer(w *model.SaleWindow, customerID, name string) error {
	if err := guardMutable(w, "bind customer"); err != nil {
		return err
	}
	if strings.TrimSpace(customerID) == "" {
		return invalid("customer_id", "customer reference is required")
	}
	w.CustomerID = &customerID
	w.CustomerName = name
	e.touch(w)
	return nil
}

// UnbindCustomer clears the customer; the window drops out of
// READY_TO_COMPLETE.
func (e *WindowEditor) UnbindCustomer(w *model.SaleWindow) error {
	if err := guardMutable(w, "unbind customer"); err != nil {
		return err
	}
	w.CustomerID = nil
	w.CustomerName = ""
	e.touch(w)
	return nil
}

// SetAdjustments sets the window-level discount and shipping amounts.
func (e *WindowEditor) SetAdjustments(w *model.SaleWindow, discount, shipping decimal.Decimal) error {
	if err := guardMutable(w, "set adjustments"); err != nil {
		return err
	}
	if discount.IsNegative() {
		return invalid("discount", "discount cannot be negative")
	}
	if shipping.IsNegative() {
		return invalid("shipping", "shipping cannot be negative")
	}
	w.Discount = discount
	w.Shipping = shipping
	e.touch(w)
	return nil
}

// Cancel abandons a non-terminal window. No backend record is created.
func (e *WindowEditor) Cancel(w *model.SaleWindow) error {
	if err := guardMutable(w, "cancel"); err != nil {
		return err
	}
	w.Status = model.WindowCancelled
	w.UpdatedAt = e.now()
	return nil
}

// ValidateCompletion is the local half of completion: non-empty cart, bound
// customer and sufficient payments.
func (e *WindowEditor) ValidateCompletion(w *model.SaleWindow) error {
	if w.Status.Terminal() {
		return fmt.Errorf("complete %s window: %w", w.Status, ErrInvalidTransition)
	}
	if len(w.Items) == 0 {
		return invalid("items", "cart is empty")
	}
	if !w.HasCustomer() {
		return invalid("customer_id", "a customer must be bound before completing the sale")
	}
	if !isPayable(w, e.pricing) {
		owed := e.pricing.Round(w.Totals.GrandTotal).Sub(sumPayments(w))
		return invalid("payments", fmt.Sprintf("insufficient payment: %s outstanding", owed.String()))
	}
	return nil
}

// Recompute refreshes totals and derived status, e.g. after a restore.
func (e *WindowEditor) Recompute(w *model.SaleWindow) {
	recompute(w, e.pricing)
}

func (e *WindowEditor) touch(w *model.SaleWindow) {
	recompute(w, e.pricing)
	w.UpdatedAt = e.now()
}

// recompute derives totals, per-line values and the status from the cart and
// payments currently held by the window.
func recompute(w *model.SaleWindow, e pricing.Engine) {
	w.Totals = e.ComputeTotals(w.PricingLines(), w.Discount, w.Shipping)
	for i := range w.Items {
		w.Items[i].Subtotal = w.Totals.Lines[i].Subtotal
		w.Items[i].Tax = w.Totals.Lines[i].Tax
	}
	if !w.Status.Terminal() {
		w.Status = deriveStatus(w, e)
	}
}

func deriveStatus(w *model.SaleWindow, e pricing.Engine) model.WindowStatus {
	switch {
	case len(w.Items) == 0:
		return model.WindowDraft
	case !isPayable(w, e):
		return model.WindowAwaitingPayment
	case !w.HasCustomer():
		return model.WindowAwaitingPayment
	default:
		return model.WindowReady
	}
}

func guardMutable(w *model.SaleWindow, op string) error {
	if w.Status.Terminal() {
		return fmt.Errorf("%s on %s window: %w", op, w.Status, ErrInvalidTransition)
	}
	return nil
}

func findLine(w *model.SaleWindow, lineID string) int {
	for i, it := range w.Items {
		if it.ID == lineID {
			return i
		}
	}
	return -1
}
