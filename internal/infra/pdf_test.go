package infra

import (
	"bytes"
	"testing"
	"time"

	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReceiptPDF(t *testing.T) {
	sale := model.CompletedSale{
		SaleID:       "sale-1",
		Number:       "POS-000123",
		RegisterID:   "reg-1",
		CustomerID:   "cust-1",
		CustomerName: "Ana Gómez",
		Items: []model.LineItem{
			{ProductID: "A", Name: "Café molido 500g", Quantity: decimal.NewFromInt(3), Subtotal: decimal.NewFromInt(15000)},
			{ProductID: "B", Quantity: decimal.NewFromInt(1), Subtotal: decimal.NewFromInt(10000)},
		},
		Payments: []model.Payment{{Method: model.PaymentCash, Amount: decimal.NewFromInt(30000)}},
		Totals: pricing.Totals{
			Subtotal:   decimal.NewFromInt(25000),
			TaxTotal:   decimal.NewFromInt(4750),
			GrandTotal: decimal.NewFromInt(29750),
		},
		Paid:        decimal.NewFromInt(30000),
		ChangeDue:   decimal.NewFromInt(250),
		CompletedAt: time.Date(2026, 5, 2, 15, 4, 0, 0, time.UTC),
	}

	out, err := RenderReceiptPDF(sale, ReceiptOptions{BusinessName: "Tienda Central", Locale: "es-CO", Decimals: 2})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestMoneyFormatterUsesLocale(t *testing.T) {
	amount := decimal.RequireFromString("129750.5")
	assert.Equal(t, "$129,750.50", moneyFormatter("en", 2)(amount))
	assert.Equal(t, "$129.750,50", moneyFormatter("es", 2)(amount))
	assert.Equal(t, "$129,751", moneyFormatter("not a tag", 0)(amount))
}
