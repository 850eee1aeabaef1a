package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ally-360/pos-terminal/internal/dto"
	"github.com/ally-360/pos-terminal/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDeviation(t *testing.T) {
	tests := []struct {
		pct  string
		want string
	}{
		{"0", DeviationNormal},
		{"-1", DeviationNormal},
		{"1", DeviationNormal},
		{"1.01", DeviationWarning},
		{"-5", DeviationWarning},
		{"5.01", DeviationCritical},
		{"-12.5", DeviationCritical},
	}
	for _, tc := range tests {
		t.Run(tc.pct, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyDeviation(dec(tc.pct)))
		})
	}
}

func TestEvaluate(t *testing.T) {
	r := NewReconciliationEngine(newFakeBackend())
	summary := &model.ReconciliationSummary{ExpectedBalance: dec("129750")}

	_, err := r.Evaluate(summary, dec("129000"), "")
	var rerr *ReconciliationError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "-750", rerr.Difference.String())
	assert.Contains(t, rerr.Error(), "closing notes are required")

	got, err := r.Evaluate(summary, dec("129000"), "short")
	require.NoError(t, err)
	assert.Equal(t, "-750", got.Difference.String())
	assert.Equal(t, "-0.58", got.DeviationPct.String())
	assert.Equal(t, DeviationNormal, got.Classification)

	got, err = r.Evaluate(summary, dec("129750"), "")
	require.NoError(t, err)
	assert.True(t, got.Difference.IsZero())

	got, err = r.Evaluate(summary, dec("100000"), "theft report filed")
	require.NoError(t, err)
	assert.Equal(t, DeviationCritical, got.Classification)

	// Nothing expected: the percentage stays zero instead of dividing by zero.
	got, err = r.Evaluate(&model.ReconciliationSummary{}, dec("10"), "found coins")
	require.NoError(t, err)
	assert.True(t, got.DeviationPct.IsZero())
}

func TestDifference(t *testing.T) {
	r := NewReconciliationEngine(newFakeBackend())
	assert.Equal(t, "-750", r.Difference(dec("129000"), dec("129750")).String())
	assert.Equal(t, "10.5", r.Difference(dec("110.5"), dec("100")).String())
}

func TestSummaryDerivesMissingExpectedBalance(t *testing.T) {
	at := time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC)
	got := summaryFromDTO("reg-1", &dto.ClosingSummaryResponse{
		OpeningBalance:   dec("100000"),
		TotalSales:       dec("29750"),
		TotalDeposits:    dec("5000"),
		TotalWithdrawals: dec("-2000"),
		TotalExpenses:    dec("1000"),
		TotalAdjustments: dec("-50"),
		PaymentMethodBreakdown: map[string]decimal.Decimal{
			"cash": dec("20000"),
			"card": dec("9750"),
		},
	}, at)

	assert.Equal(t, "131700", got.ExpectedBalance.String())
	assert.Equal(t, "2000", got.TotalWithdrawals.String())
	assert.Equal(t, "9750", got.PaymentMethodBreakdown[model.PaymentCard].String())
	assert.Equal(t, at, got.FetchedAt)
}

func TestSummarizeWrapsBackendFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.summaryErr = errors.New("unreachable")
	_, err := NewReconciliationEngine(backend).Summarize(context.Background(), "reg-1")
	var serr *SubmissionError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "fetch closing summary", serr.Op)
}

func TestSummarizeUsesBackendNotLocalMovements(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	reg, err := env.registers.Open(ctx, OpenRegisterInput{OpeningBalance: dec("1000")})
	require.NoError(t, err)

	// A local-only movement never reaches the expectation.
	require.NoError(t, env.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		st.register.Movements = append(st.register.Movements, model.Movement{
			ID: "local", Type: model.MovementDeposit, Amount: dec("999"),
		})
		return nil, nil
	}))

	env.backend.omitExpected = true
	summary, err := env.registers.recon.Summarize(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000", summary.ExpectedBalance.String())
}
