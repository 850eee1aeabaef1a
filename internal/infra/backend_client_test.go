package infra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ally-360/pos-terminal/internal/apierror"
	"github.com/ally-360/pos-terminal/internal/dto"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*BackendClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewBackendClient(srv.URL, "secret-token", 2*time.Second, NewCircuitBreaker(DefaultCBConfig())), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestOpenRegisterSendsTokenAndDecodes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/registers/open", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var req dto.OpenRegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.PDVID)
		assert.Equal(t, "100000", req.OpeningBalance.String())

		writeJSON(w, http.StatusCreated, dto.RegisterResponse{
			ID: "reg-1", PDVID: 3, Status: "open", OpeningBalance: req.OpeningBalance,
		})
	})

	resp, err := client.OpenRegister(context.Background(), dto.OpenRegisterRequest{
		PDVID: 3, OpeningBalance: decimal.NewFromInt(100000),
	})
	require.NoError(t, err)
	assert.Equal(t, "reg-1", resp.ID)
	assert.Equal(t, "open", resp.Status)
}

func TestOpenRegisterConflictIsStructured(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, apierror.WithCode(apierror.CodeRegisterAlreadyOpen, "a register is already open for this point of sale"))
	})

	_, err := client.OpenRegister(context.Background(), dto.OpenRegisterRequest{PDVID: 1})
	var remote *apierror.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.True(t, remote.IsConflict())
	assert.Equal(t, apierror.CodeRegisterAlreadyOpen, remote.Code)
	// A 4xx is a healthy answer.
	assert.Equal(t, CBClosed, client.Breaker().State())
}

func TestCurrentRegisterNotFoundIsNil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/registers/current", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("pdv_id"))
		writeJSON(w, http.StatusNotFound, apierror.WithCode(apierror.CodeNotFound, "no open register"))
	})

	reg, err := client.CurrentRegister(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, reg)
}

func TestClosingSummaryDecodesOptionalExpected(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/registers/reg-9/summary", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"register_id": "reg-9",
			"opening_balance": "100000",
			"total_sales": "29750",
			"total_deposits": "0",
			"total_withdrawals": "0",
			"total_expenses": "0",
			"total_adjustments": "0",
			"payment_method_breakdown": {"cash": "29750"}
		}`))
	})

	summary, err := client.ClosingSummary(context.Background(), "reg-9")
	require.NoError(t, err)
	assert.Nil(t, summary.ExpectedBalance)
	assert.Equal(t, "29750", summary.TotalSales.String())
	assert.Equal(t, "29750", summary.PaymentMethodBreakdown["cash"].String())
}

func TestCreateSaleRequiresID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, dto.CreateSaleResponse{Number: "A-1"})
	})
	_, err := client.CreateSale(context.Background(), dto.CreateSaleRequest{})
	require.Error(t, err)
}

func TestServerErrorsTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	ctx := context.Background()
	for i := 0; i < DefaultCBConfig().FailureThreshold; i++ {
		_, err := client.RecordMovement(ctx, "reg-1", dto.CreateMovementRequest{Type: "deposit"})
		var remote *apierror.RemoteError
		require.True(t, errors.As(err, &remote))
		assert.Equal(t, http.StatusBadGateway, remote.Status)
		assert.Equal(t, "upstream down", remote.Detail)
	}

	_, err := client.RecordMovement(ctx, "reg-1", dto.CreateMovementRequest{Type: "deposit"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(DefaultCBConfig().FailureThreshold), calls.Load())
}

func TestUnreachableBackendIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewBackendClient(url, "", time.Second, nil)
	_, err := client.CloseRegister(context.Background(), dto.CloseRegisterRequest{RegisterID: "reg-1"})
	require.Error(t, err)
	var remote *apierror.RemoteError
	assert.False(t, errors.As(err, &remote))
}
