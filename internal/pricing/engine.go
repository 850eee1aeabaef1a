// Package pricing computes line and aggregate totals of a cart.
//
// Everything here is pure: no I/O, no errors. Invalid inputs (negative
// quantities, prices, rates, discount or shipping) are clamped to zero and the
// discount never exceeds the subtotal, so a grand total can never go negative.
// Intermediate values keep full decimal precision; Round is applied only by
// callers that hand an amount to the outside world.
package pricing

import (
	"github.com/shopspring/decimal"
)

// DefaultDecimals is the minor-unit precision used when none is configured.
const DefaultDecimals int32 = 2

// Line is the pricing view of a cart line.
// TaxRate is a percentage (19 means 19%).
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
}

// LineTotals holds the recomputed values of one line.
type LineTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
}

// Totals is the aggregate of a cart.
// GrandTotal = Subtotal - Discount + TaxTotal + Shipping.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	Discount   decimal.Decimal `json:"discount"`
	Shipping   decimal.Decimal `json:"shipping"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Lines      []LineTotals    `json:"lines,omitempty"`
}

// Engine carries the currency precision. The zero value rounds to
// DefaultDecimals.
type Engine struct {
	decimals int32
	set      bool
}

// NewEngine returns an engine rounding to the given number of minor-unit
// decimals. Negative values fall back to DefaultDecimals.
func NewEngine(decimals int32) Engine {
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	return Engine{decimals: decimals, set: true}
}

// Decimals returns the minor-unit precision.
func (e Engine) Decimals() int32 {
	if !e.set {
		return DefaultDecimals
	}
	return e.decimals
}

// Round rounds an amount to the currency minor unit (half away from zero).
func (e Engine) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(e.Decimals())
}

// ComputeLine returns subtotal and tax of a single line.
func (e Engine) ComputeLine(l Line) LineTotals {
	qty := clamp(l.Quantity)
	price := clamp(l.UnitPrice)
	rate := clamp(l.TaxRate)

	subtotal := qty.Mul(price)
	return LineTotals{
		Subtotal: subtotal,
		Tax:      subtotal.Mul(rate).Shift(-2),
	}
}

// ComputeTotals computes the cart aggregate. Tax is computed per line from
// each line's own rate and summed, never on the aggregate.
func (e Engine) ComputeTotals(lines []Line, discount, shipping decimal.Decimal) Totals {
	t := Totals{
		Subtotal: decimal.Zero,
		TaxTotal: decimal.Zero,
		Lines:    make([]LineTotals, 0, len(lines)),
	}
	for _, l := range lines {
		lt := e.ComputeLine(l)
		t.Subtotal = t.Subtotal.Add(lt.Subtotal)
		t.TaxTotal = t.TaxTotal.Add(lt.Tax)
		t.Lines = append(t.Lines, lt)
	}

	t.Discount = clamp(discount)
	if t.Discount.GreaterThan(t.Subtotal) {
		t.Discount = t.Subtotal
	}
	t.Shipping = clamp(shipping)
	t.GrandTotal = t.Subtotal.Sub(t.Discount).Add(t.TaxTotal).Add(t.Shipping)
	return t
}

// Rounded returns a copy of t with every amount rounded to the minor unit.
// Used for submissions and receipts only.
func (e Engine) Rounded(t Totals) Totals {
	out := Totals{
		Subtotal:   e.Round(t.Subtotal),
		TaxTotal:   e.Round(t.TaxTotal),
		Discount:   e.Round(t.Discount),
		Shipping:   e.Round(t.Shipping),
		GrandTotal: e.Round(t.GrandTotal),
	}
	if len(t.Lines) > 0 {
		out.Lines = make([]LineTotals, len(t.Lines))
		for i, l := range t.Lines {
			out.Lines[i] = LineTotals{Subtotal: e.Round(l.Subtotal), Tax: e.Round(l.Tax)}
		}
	}
	return out
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
