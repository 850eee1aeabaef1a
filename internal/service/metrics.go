package service

import (
	"github.com/ally-360/pos-terminal/internal/model"

	"github.com/shopspring/decimal"
)

// Metrics receives domain counters. The observability package provides the
// Prometheus implementation.
type Metrics interface {
	SaleCompleted(total decimal.Decimal)
	SaleFailed(reason string)
	RegisterTransition(to model.RegisterStatus)
}

type noopMetrics struct{}

func (noopMetrics) SaleCompleted(decimal.Decimal)          {}
func (noopMetrics) SaleFailed(string)                      {}
func (noopMetrics) RegisterTransition(model.RegisterStatus) {}

func orNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
