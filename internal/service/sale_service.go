package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ally-360/pos-terminal/internal/dto"
	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Confirmation is the result of the local half of completion, shown to the
// cashier before the sale is submitted.
type Confirmation struct {
	WindowID     string          `json:"window_id"`
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name,omitempty"`
	Totals       pricing.Totals  `json:"totals"`
	Paid         decimal.Decimal `json:"paid"`
	ChangeDue    decimal.Decimal `json:"change_due"`
	RegisterID   string          `json:"register_id"`
}

// SaleService is the mutation API for sale windows and the two-phase
// completion against the backend.
type SaleService struct {
	state    *StateManager
	backend  BackendClient
	pricing  pricing.Engine
	editor   *WindowEditor
	payments *PaymentCollector
	metrics  Metrics
	newID    func() string
	now      func() time.Time
}

func NewSaleService(state *StateManager, backend BackendClient, engine pricing.Engine, metrics Metrics) *SaleService {
	return &SaleService{
		state:    state,
		backend:  backend,
		pricing:  engine,
		editor:   NewWindowEditor(engine),
		payments: NewPaymentCollector(engine),
		metrics:  orNoop(metrics),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// ── Window set ───────────────────────────────────────────────────────────────

func (s *SaleService) CreateWindow(ctx context.Context) (model.SaleWindow, error) {
	var out model.SaleWindow
	err := s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		id := st.windows.CreateWindow()
		w, err := st.windows.Get(id)
		if err != nil {
			return nil, err
		}
		out = w
		return []Event{
			{Type: EventWindowChanged, WindowID: id},
			{Type: EventActiveChanged, WindowID: id},
		}, nil
	})
	return out, err
}

// ListWindows returns copies of all open windows and the active id.
func (s *SaleService) ListWindows() ([]model.SaleWindow, string) {
	var (
		windows []model.SaleWindow
		active  string
	)
	s.state.View(func(st *engineState) {
		windows = st.windows.List()
		active = st.windows.ActiveID()
	})
	return windows, active
}

func (s *SaleService) GetWindow(id string) (model.SaleWindow, error) {
	var (
		w   model.SaleWindow
		err error
	)
	s.state.View(func(st *engineState) {
		w, err = st.windows.Get(id)
	})
	return w, err
}

func (s *SaleService) SetActive(ctx context.Context, id string) error {
	return s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		if err := st.windows.SetActive(id); err != nil {
			return nil, err
		}
		return []Event{{Type: EventActiveChanged, WindowID: id}}, nil
	})
}

// Cancel abandons a window. It leaves no backend trace.
func (s *SaleService) Cancel(ctx context.Context, id string) error {
	return s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		w, err := s.editable(st, id)
		if err != nil {
			return nil, err
		}
		if err := s.editor.Cancel(w); err != nil {
			return nil, err
		}
		if err := st.windows.RemoveWindow(id); err != nil {
			return nil, err
		}
		log.Info().Str("window_id", id).Msg("sale window cancelled")
		return []Event{{Type: EventWindowRemoved, WindowID: id}}, nil
	})
}

// ── Cart and payments ────────────────────────────────────────────────────────

func (s *SaleService) AddItem(ctx context.Context, id string, in LineItemInput) (model.SaleWindow, string, error) {
	var lineID string
	w, err := s.edit(ctx, id, func(w *model.SaleWindow) error {
		var err error
		lineID, err = s.editor.AddItem(w, in)
		return err
	})
	return w, lineID, err
}

func (s *SaleService) UpdateQuantity(ctx context.Context, id, lineID string, qty decimal.Decimal) (model.SaleWindow, error) {
	return s.edit(ctx, id, func(w *model.SaleWindow) error {
		return s.editor.UpdateQuantity(w, lineID, qty)
	})
}

func (s *SaleService) RemoveItem(ctx context.Context, id, lineID string) (model.SaleWindow, error) {
	return s.edit(ctx, id, func(w *model.SaleWindow) error {
		return s.editor.RemoveItem(w, lineID)
	})
}

func (s *SaleService) BindCustomer(ctx context.Context, id, customerID, name string) (model.SaleWindow, error) {
	return s.edit(ctx, id, func(w *model.SaleWindow) error {
		return s.editor.BindCustomer(w, customerID, name)
	})
}

func (s *SaleService) UnbindCustomer(ctx context.Context, id string) (model.SaleWindow, error) {
	return s.edit(ctx, id, func(w *model.SaleWindow) error {
		return s.editor.UnbindCustomer(w)
	})
}

func (s *SaleService) SetAdjustments(ctx context.Context, id string, discount, shipping decimal.Decimal) (model.SaleWindow, error) {
	return s.edit(ctx, id, func(w *model.SaleWindow) error {
		return s.editor.SetAdjustments(w, discount, shipping)
	})
}

func (s *SaleService) AddPayment(ctx context.Context, id string, p model.Payment) (model.SaleWindow, string, error) {
	var paymentID string
	w, err := s.edit(ctx, id, func(w *model.SaleWindow) error {
		var err error
		paymentID, err = s.payments.AddPayment(w, p)
		return err
	})
	return w, paymentID, err
}

func (s *SaleService) RemovePayment(ctx context.Context, id, paymentID string) (model.SaleWindow, error) {
	return s.edit(ctx, id, func(w *model.SaleWindow) error {
		return s.payments.RemovePayment(w, paymentID)
	})
}

// edit runs one cart or payment mutation and returns the updated copy.
func (s *SaleService) edit(ctx context.Context, id string, fn func(w *model.SaleWindow) error) (model.SaleWindow, error) {
	var out model.SaleWindow
	err := s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		w, err := s.editable(st, id)
		if err != nil {
			return nil, err
		}
		if err := fn(w); err != nil {
			return nil, err
		}
		out = w.Clone()
		return []Event{{Type: EventWindowChanged, WindowID: id}}, nil
	})
	return out, err
}

// editable returns the live window unless a submission for it is in flight;
// the cart must not change under a sale the backend may be recording.
func (s *SaleService) editable(st *engineState, id string) (*model.SaleWindow, error) {
	w, err := st.windows.window(id)
	if err != nil {
		return nil, err
	}
	if _, busy := st.inFlight[id]; busy {
		return nil, ErrSubmissionInFlight
	}
	return w, nil
}

// ── Completion ───────────────────────────────────────────────────────────────

// PrepareCompletion is the local validation phase: customer bound, cart not
// empty, payable, register accepting sales.
func (s *SaleService) PrepareCompletion(id string) (*Confirmation, error) {
	var (
		conf *Confirmation
		err  error
	)
	s.state.View(func(st *engineState) {
		var w *model.SaleWindow
		if w, err = st.windows.window(id); err != nil {
			return
		}
		if err = s.checkCompletable(st, w); err != nil {
			return
		}
		conf = s.confirmation(w, st.register.ID)
	})
	return conf, err
}

// Complete submits the window to the backend. On failure the window stays
// READY_TO_COMPLETE with cart and payments untouched and a SubmissionError is
// returned; it is never retried automatically. On success the window is
// replaced by a CompletedSale and the register accrues one sale movement.
//
// If the register stopped accepting movements while the call was in flight,
// the sale is still recorded in history but no movement is accrued and
// ErrLateSubmission is returned along with the sale.
func (s *SaleService) Complete(ctx context.Context, id string) (*model.CompletedSale, error) {
	var (
		snapshot   model.SaleWindow
		registerID string
		req        dto.CreateSaleRequest
	)
	err := s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		w, err := st.windows.window(id)
		if err != nil {
			return nil, err
		}
		if _, busy := st.inFlight[id]; busy {
			return nil, ErrSubmissionInFlight
		}
		if err := s.checkCompletable(st, w); err != nil {
			return nil, err
		}
		registerID = st.register.ID
		st.inFlight[id] = registerID
		snapshot = w.Clone()
		req = s.saleRequest(&snapshot, registerID)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("window_id", id).Str("register_id", registerID).
		Str("total", req.Total.String()).Msg("submitting sale")

	resp, err := s.backend.CreateSale(ctx, req)
	if err != nil {
		s.release(id)
		s.metrics.SaleFailed("backend")
		log.Warn().Err(err).Str("window_id", id).Msg("sale submission failed")
		return nil, &SubmissionError{Op: "submit sale", Err: err}
	}

	var (
		sale *model.CompletedSale
		late bool
	)
	err = s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		delete(st.inFlight, id)

		sale = s.completedSale(&snapshot, resp, registerID)
		st.history = append(st.history, *sale)
		if w, err := st.windows.window(id); err == nil {
			w.Status = model.WindowCompleted
			_ = st.windows.RemoveWindow(id)
		}

		events := []Event{
			{Type: EventSaleCompleted, WindowID: id, SaleID: sale.SaleID, RegisterID: registerID},
			{Type: EventWindowRemoved, WindowID: id},
		}
		reg := st.register
		if reg == nil || reg.ID != registerID || !reg.AcceptsMovements() || st.confirming {
			late = true
			return events, nil
		}
		if hasSaleMovement(reg, sale) {
			// A sync during the submission already brought in the backend's copy.
			return append(events, Event{Type: EventRegisterChanged, RegisterID: registerID}), nil
		}
		reg.Movements = append(reg.Movements, model.Movement{
			ID:        s.newID(),
			Type:      model.MovementSale,
			Amount:    model.MovementSale.Signed(sale.Totals.GrandTotal),
			Reference: sale.Number,
			CreatedAt: sale.CompletedAt,
		})
		return append(events, Event{Type: EventRegisterChanged, RegisterID: registerID}), nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SaleCompleted(sale.Totals.GrandTotal)
	if late {
		log.Error().Str("sale_id", sale.SaleID).Str("register_id", registerID).
			Msg("sale acknowledged after its register stopped accepting movements")
		return sale, fmt.Errorf("sale %s: %w", sale.Number, ErrLateSubmission)
	}
	log.Info().Str("sale_id", sale.SaleID).Str("number", sale.Number).
		Str("change_due", sale.ChangeDue.String()).Msg("sale completed")
	return sale, nil
}

// History returns the retained completed sales, newest first.
func (s *SaleService) History() []model.CompletedSale {
	var out []model.CompletedSale
	s.state.View(func(st *engineState) {
		out = make([]model.CompletedSale, 0, len(st.history))
		for i := len(st.history) - 1; i >= 0; i-- {
			out = append(out, st.history[i])
		}
	})
	return out
}

// Sale looks up a retained sale by backend id or sale number.
func (s *SaleService) Sale(idOrNumber string) (model.CompletedSale, error) {
	var (
		sale  model.CompletedSale
		found bool
	)
	s.state.View(func(st *engineState) {
		for _, cs := range st.history {
			if cs.SaleID == idOrNumber || cs.Number == idOrNumber {
				sale, found = cs, true
				return
			}
		}
	})
	if !found {
		return model.CompletedSale{}, ErrSaleNotFound
	}
	return sale, nil
}

func (s *SaleService) checkCompletable(st *engineState, w *model.SaleWindow) error {
	if err := s.editor.ValidateCompletion(w); err != nil {
		return err
	}
	if st.register == nil || !st.register.AcceptsMovements() {
		return ErrRegisterNotOpen
	}
	if st.confirming {
		return ErrCloseInProgress
	}
	return nil
}

func hasSaleMovement(reg *model.RegisterSession, sale *model.CompletedSale) bool {
	for _, m := range reg.Movements {
		if m.Type == model.MovementSale && (m.Reference == sale.Number || m.Reference == sale.SaleID) {
			return true
		}
	}
	return false
}

func (s *SaleService) release(id string) {
	s.state.update(func(st *engineState) {
		delete(st.inFlight, id)
	})
}

func (s *SaleService) confirmation(w *model.SaleWindow, registerID string) *Confirmation {
	c := &Confirmation{
		WindowID:     w.ID,
		CustomerName: w.CustomerName,
		Totals:       s.pricing.Rounded(w.Totals),
		Paid:         s.payments.Paid(w),
		ChangeDue:    s.payments.ChangeDue(w),
		RegisterID:   registerID,
	}
	if w.CustomerID != nil {
		c.CustomerID = *w.CustomerID
	}
	return c
}

// saleRequest builds the backend payload, rounded to the currency minor unit.
func (s *SaleService) saleRequest(w *model.SaleWindow, registerID string) dto.CreateSaleRequest {
	rounded := s.pricing.Rounded(w.Totals)
	req := dto.CreateSaleRequest{
		CustomerID: *w.CustomerID,
		RegisterID: registerID,
		Items:      make([]dto.SaleItem, len(w.Items)),
		Payments:   make([]dto.SalePayment, len(w.Payments)),
		Discount:   rounded.Discount,
		Shipping:   rounded.Shipping,
		Total:      rounded.GrandTotal,
	}
	for i, it := range w.Items {
		req.Items[i] = dto.SaleItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: s.pricing.Round(it.UnitPrice),
			TaxRate:   it.TaxRate,
		}
	}
	for i, p := range w.Payments {
		req.Payments[i] = dto.SalePayment{
			Method:    string(p.Method),
			Amount:    s.pricing.Round(p.Amount),
			Reference: p.Reference,
		}
	}
	return req
}

func (s *SaleService) completedSale(w *model.SaleWindow, resp *dto.CreateSaleResponse, registerID string) *model.CompletedSale {
	completedAt := resp.CreatedAt
	if completedAt.IsZero() {
		completedAt = s.now()
	}
	w.Status = model.WindowCompleted
	sale := &model.CompletedSale{
		WindowID:     w.ID,
		SaleID:       resp.ID,
		Number:       resp.Number,
		RegisterID:   registerID,
		CustomerName: w.CustomerName,
		Items:        w.Items,
		Payments:     w.Payments,
		Totals:       s.pricing.Rounded(w.Totals),
		Paid:         s.payments.Paid(w),
		ChangeDue:    s.payments.ChangeDue(w),
		CompletedAt:  completedAt,
	}
	if w.CustomerID != nil {
		sale.CustomerID = *w.CustomerID
	}
	return sale
}
