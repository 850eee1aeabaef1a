package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ally-360/pos-terminal/internal/apierror"
	"github.com/ally-360/pos-terminal/internal/dto"
	"github.com/ally-360/pos-terminal/internal/pricing"
	"github.com/ally-360/pos-terminal/internal/repository"

	"github.com/shopspring/decimal"
)

// fakeBackend is an in-memory ledger that enforces one open register per PDV,
// answering a duplicate open with a structured conflict.
type fakeBackend struct {
	mu        sync.Mutex
	seq       int
	registers map[string]*dto.RegisterResponse
	openByPDV map[int]string
	sales     []dto.CreateSaleRequest

	openCalls    int
	summaryCalls int

	saleErr      error
	closeErr     error
	summaryErr   error
	omitExpected bool

	// saleStarted is signalled when CreateSale is entered; saleGate, when set,
	// holds the call until closed.
	saleStarted chan struct{}
	saleGate    chan struct{}
	// afterSale runs once the sale is recorded, before CreateSale returns.
	afterSale func()

	closeStarted chan struct{}
	closeGate    chan struct{}
}

var _ BackendClient = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		registers: make(map[string]*dto.RegisterResponse),
		openByPDV: make(map[int]string),
	}
}

func (f *fakeBackend) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

// seedOpen creates an open register directly, as another device would.
func (f *fakeBackend) seedOpen(pdvID int, opening decimal.Decimal) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("reg")
	f.registers[id] = &dto.RegisterResponse{
		ID: id, PDVID: pdvID, OpenedBy: "other-device", OpeningBalance: opening,
		Status: "open", OpenedAt: time.Now(),
	}
	f.openByPDV[pdvID] = id
	return id
}

// forceClose closes the PDV's register behind the client's back.
func (f *fakeBackend) forceClose(pdvID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.openByPDV[pdvID]; ok {
		f.registers[id].Status = "closed"
		delete(f.openByPDV, pdvID)
	}
}

func (f *fakeBackend) OpenRegister(_ context.Context, req dto.OpenRegisterRequest) (*dto.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	if _, ok := f.openByPDV[req.PDVID]; ok {
		return nil, &apierror.RemoteError{
			Status: http.StatusConflict,
			Code:   apierror.CodeRegisterAlreadyOpen,
			Detail: "a register is already open for this point of sale",
		}
	}
	id := f.nextID("reg")
	reg := &dto.RegisterResponse{
		ID: id, PDVID: req.PDVID, OpeningBalance: req.OpeningBalance,
		OpeningNotes: req.OpeningNotes, Status: "open", OpenedAt: time.Now(),
	}
	f.registers[id] = reg
	f.openByPDV[req.PDVID] = id
	out := *reg
	return &out, nil
}

func (f *fakeBackend) CurrentRegister(_ context.Context, pdvID int) (*dto.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.openByPDV[pdvID]
	if !ok {
		return nil, nil
	}
	reg, ok := f.registers[id]
	if !ok {
		return nil, &apierror.RemoteError{Status: http.StatusInternalServerError, Detail: "register index out of sync"}
	}
	out := *reg
	return &out, nil
}

func (f *fakeBackend) CloseRegister(ctx context.Context, req dto.CloseRegisterRequest) (*dto.RegisterResponse, error) {
	f.mu.Lock()
	started, gate := f.closeStarted, f.closeGate
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	reg, ok := f.registers[req.RegisterID]
	if !ok || reg.Status != "open" {
		return nil, &apierror.RemoteError{Status: http.StatusNotFound, Detail: "register not open"}
	}
	now := time.Now()
	balance := req.ClosingBalance
	reg.Status = "closed"
	reg.ClosingBalance = &balance
	reg.ClosingNotes = req.ClosingNotes
	reg.ClosedAt = &now
	delete(f.openByPDV, reg.PDVID)
	out := *reg
	return &out, nil
}

func (f *fakeBackend) ClosingSummary(_ context.Context, registerID string) (*dto.ClosingSummaryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	reg, ok := f.registers[registerID]
	if !ok {
		return nil, &apierror.RemoteError{Status: http.StatusNotFound, Detail: "register not found"}
	}
	s := &dto.ClosingSummaryResponse{
		RegisterID:             registerID,
		OpeningBalance:         reg.OpeningBalance,
		PaymentMethodBreakdown: map[string]decimal.Decimal{},
	}
	expected := reg.OpeningBalance
	for _, m := range reg.Movements {
		expected = expected.Add(m.Amount)
		switch m.Type {
		case "sale":
			s.TotalSales = s.TotalSales.Add(m.Amount)
		case "deposit":
			s.TotalDeposits = s.TotalDeposits.Add(m.Amount)
		case "withdrawal":
			s.TotalWithdrawals = s.TotalWithdrawals.Add(m.Amount.Abs())
		case "expense":
			s.TotalExpenses = s.TotalExpenses.Add(m.Amount.Abs())
		case "adjustment":
			s.TotalAdjustments = s.TotalAdjustments.Add(m.Amount)
		}
	}
	for _, sale := range f.sales {
		if sale.RegisterID != registerID {
			continue
		}
		for _, p := range sale.Payments {
			s.PaymentMethodBreakdown[p.Method] = s.PaymentMethodBreakdown[p.Method].Add(p.Amount)
		}
	}
	if !f.omitExpected {
		s.ExpectedBalance = &expected
	}
	return s, nil
}

func (f *fakeBackend) CreateSale(ctx context.Context, req dto.CreateSaleRequest) (*dto.CreateSaleResponse, error) {
	f.mu.Lock()
	started, gate, saleErr := f.saleStarted, f.saleGate, f.saleErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if saleErr != nil {
		return nil, saleErr
	}

	f.mu.Lock()
	id := f.nextID("sale")
	f.sales = append(f.sales, req)
	if reg, ok := f.registers[req.RegisterID]; ok && reg.Status == "open" {
		reg.Movements = append(reg.Movements, dto.RegisterMovement{
			ID: f.nextID("mov"), Type: "sale", Amount: req.Total, Reference: id, CreatedAt: time.Now(),
		})
	}
	resp := &dto.CreateSaleResponse{ID: id, Number: fmt.Sprintf("F-%04d", len(f.sales)), CreatedAt: time.Now()}
	after := f.afterSale
	f.mu.Unlock()

	if after != nil {
		after()
	}
	return resp, nil
}

func (f *fakeBackend) RecordMovement(_ context.Context, registerID string, req dto.CreateMovementRequest) (*dto.RegisterMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.registers[registerID]
	if !ok || reg.Status != "open" {
		return nil, &apierror.RemoteError{Status: http.StatusConflict, Detail: "register not open"}
	}
	mov := dto.RegisterMovement{ID: f.nextID("mov"), Type: req.Type, Amount: req.Amount, Reference: req.Reference, CreatedAt: time.Now()}
	reg.Movements = append(reg.Movements, mov)
	return &mov, nil
}

func (f *fakeBackend) saleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sales)
}

// ── Test environment ─────────────────────────────────────────────────────────

const testPDV = 1

type testEnv struct {
	backend   *fakeBackend
	store     *repository.MemoryStore
	repo      repository.SnapshotRepository
	state     *StateManager
	sales     *SaleService
	registers *RegisterService
}

func newTestEnv() *testEnv {
	backend := newFakeBackend()
	store := repository.NewMemoryStore()
	repo := repository.NewSnapshotRepository(store, testPDV)
	state := NewStateManager(repo, 10)
	engine := pricing.NewEngine(2)
	return &testEnv{
		backend:   backend,
		store:     store,
		repo:      repo,
		state:     state,
		sales:     NewSaleService(state, backend, engine, nil),
		registers: NewRegisterService(testPDV, state, backend, NewReconciliationEngine(backend), engine, nil),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testEngine() pricing.Engine {
	return pricing.NewEngine(2)
}
