package service

import (
	"context"
	"strings"
	"time"

	"github.com/ally-360/pos-terminal/internal/dto"
	"github.com/ally-360/pos-terminal/internal/model"

	"github.com/shopspring/decimal"
)

// Deviation classifications.
const (
	DeviationNormal   = "normal"
	DeviationWarning  = "warning"
	DeviationCritical = "critical"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
	five    = decimal.NewFromInt(5)
)

// ReconciliationEngine compares a counted drawer amount against the backend's
// canonical expectation. Local movements are never used for the expectation.
type ReconciliationEngine struct {
	backend BackendClient
	now     func() time.Time
}

func NewReconciliationEngine(backend BackendClient) *ReconciliationEngine {
	return &ReconciliationEngine{backend: backend, now: time.Now}
}

// Summarize fetches the closing summary of a register. A failed fetch is a
// SubmissionError.
func (r *ReconciliationEngine) Summarize(ctx context.Context, registerID string) (*model.ReconciliationSummary, error) {
	resp, err := r.backend.ClosingSummary(ctx, registerID)
	if err != nil {
		return nil, &SubmissionError{Op: "fetch closing summary", Err: err}
	}
	return summaryFromDTO(registerID, resp, r.now()), nil
}

// Difference is counted − expected.
func (r *ReconciliationEngine) Difference(counted, expected decimal.Decimal) decimal.Decimal {
	return counted.Sub(expected)
}

// Evaluate applies the closing rule: a non-zero difference needs non-blank
// notes. Notes are optional when the drawer matches.
func (r *ReconciliationEngine) Evaluate(summary *model.ReconciliationSummary, counted decimal.Decimal, notes string) (*model.Reconciliation, error) {
	diff := r.Difference(counted, summary.ExpectedBalance)
	if !diff.IsZero() && strings.TrimSpace(notes) == "" {
		return nil, &ReconciliationError{
			Expected:   summary.ExpectedBalance,
			Counted:    counted,
			Difference: diff,
		}
	}

	var pct decimal.Decimal
	if !summary.ExpectedBalance.IsZero() {
		pct = diff.Div(summary.ExpectedBalance).Mul(hundred).Round(2)
	}
	return &model.Reconciliation{
		Expected:       summary.ExpectedBalance,
		Counted:        counted,
		Difference:     diff,
		DeviationPct:   pct,
		Classification: classifyDeviation(pct),
	}, nil
}

// classifyDeviation: normal |pct| <= 1, warning <= 5, critical > 5.
func classifyDeviation(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(one):
		return DeviationNormal
	case abs.LessThanOrEqual(five):
		return DeviationWarning
	default:
		return DeviationCritical
	}
}

// summaryFromDTO maps the wire summary. Withdrawal and expense totals are
// treated as magnitudes whatever sign the backend uses. When the backend
// omits expected_balance it is derived from its own aggregates.
func summaryFromDTO(registerID string, resp *dto.ClosingSummaryResponse, fetchedAt time.Time) *model.ReconciliationSummary {
	s := &model.ReconciliationSummary{
		RegisterID:       registerID,
		OpeningBalance:   resp.OpeningBalance,
		TotalSales:       resp.TotalSales,
		TotalDeposits:    resp.TotalDeposits,
		TotalWithdrawals: resp.TotalWithdrawals.Abs(),
		TotalExpenses:    resp.TotalExpenses.Abs(),
		TotalAdjustments: resp.TotalAdjustments,
		FetchedAt:        fetchedAt,
	}
	if len(resp.PaymentMethodBreakdown) > 0 {
		s.PaymentMethodBreakdown = make(map[model.PaymentMethod]decimal.Decimal, len(resp.PaymentMethodBreakdown))
		for method, amount := range resp.PaymentMethodBreakdown {
			s.PaymentMethodBreakdown[model.PaymentMethod(method)] = amount
		}
	}
	if resp.ExpectedBalance != nil {
		s.ExpectedBalance = *resp.ExpectedBalance
	} else {
		s.ExpectedBalance = s.OpeningBalance.
			Add(s.TotalSales).
			Add(s.TotalDeposits).
			Sub(s.TotalWithdrawals).
			Sub(s.TotalExpenses).
			Add(s.TotalAdjustments)
	}
	return s
}
