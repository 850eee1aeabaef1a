package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ally-360/pos-terminal/internal/dto"
	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/pricing"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// OpenRegisterInput is what the cashier declares when opening the drawer.
type OpenRegisterInput struct {
	OpeningBalance decimal.Decimal
	Notes          string
	OpenedBy       string
}

// RegisterService drives the cash drawer lifecycle of one PDV:
// CLOSED → OPEN → RECONCILING → CLOSED, and RECONCILING → OPEN on dismiss.
// The backend is the arbiter of which session is open.
type RegisterService struct {
	pdvID   int
	state   *StateManager
	backend BackendClient
	recon   *ReconciliationEngine
	pricing pricing.Engine
	metrics Metrics
	group   singleflight.Group
	now     func() time.Time
}

func NewRegisterService(pdvID int, state *StateManager, backend BackendClient, recon *ReconciliationEngine, engine pricing.Engine, metrics Metrics) *RegisterService {
	return &RegisterService{
		pdvID:   pdvID,
		state:   state,
		backend: backend,
		recon:   recon,
		pricing: engine,
		metrics: orNoop(metrics),
		now:     time.Now,
	}
}

// Current returns a copy of the local register session, or nil.
func (s *RegisterService) Current() *model.RegisterSession {
	var out *model.RegisterSession
	s.state.View(func(st *engineState) {
		if st.register != nil {
			reg := st.register.Clone()
			out = &reg
		}
	})
	return out
}

// ── Open ──────────────────────────────────────────────────────────────────────

// Open requests a new session from the backend. When the backend answers that
// a session is already open for the PDV, the canonical session is fetched and
// adopted instead, replacing whatever is held locally. Concurrent opens for
// the PDV share one round-trip.
func (s *RegisterService) Open(ctx context.Context, in OpenRegisterInput) (*model.RegisterSession, error) {
	if in.OpeningBalance.IsNegative() {
		return nil, invalid("opening_balance", "opening balance cannot be negative")
	}
	var confirming bool
	s.state.View(func(st *engineState) { confirming = st.confirming })
	if confirming {
		return nil, ErrCloseInProgress
	}

	v, err, shared := s.group.Do("open:"+strconv.Itoa(s.pdvID), func() (interface{}, error) {
		return s.open(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Int("pdv_id", s.pdvID).Msg("register open deduplicated")
	}
	reg := v.(*model.RegisterSession).Clone()
	return &reg, nil
}

func (s *RegisterService) open(ctx context.Context, in OpenRegisterInput) (*model.RegisterSession, error) {
	resp, err := s.backend.OpenRegister(ctx, dto.OpenRegisterRequest{
		PDVID:          s.pdvID,
		OpeningBalance: s.pricing.Round(in.OpeningBalance),
		OpeningNotes:   in.Notes,
	})
	if err != nil {
		if !isConflict(err) {
			return nil, &SubmissionError{Op: "open register", Err: err}
		}
		log.Warn().Int("pdv_id", s.pdvID).Msg("register already open on backend, adopting it")
		resp, err = s.backend.CurrentRegister(ctx, s.pdvID)
		if err != nil {
			return nil, &ConflictError{PDVID: s.pdvID, Err: err}
		}
		if resp == nil {
			return nil, &ConflictError{PDVID: s.pdvID, Err: fmt.Errorf("backend reported no current session")}
		}
	}
	if resp.OpenedBy == "" {
		resp.OpenedBy = in.OpenedBy
	}
	return s.adopt(ctx, resp)
}

// adopt installs a backend session as local state. A session already held
// locally under the same id keeps its RECONCILING status and, when the
// backend sends no movements, its local movements.
func (s *RegisterService) adopt(ctx context.Context, resp *dto.RegisterResponse) (*model.RegisterSession, error) {
	incoming := registerFromDTO(resp)
	var out model.RegisterSession
	err := s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		if st.confirming {
			return nil, ErrCloseInProgress
		}
		if cur := st.register; cur != nil && cur.ID == incoming.ID {
			if cur.Status == model.RegisterClosed {
				out = cur.Clone()
				return nil, nil
			}
			if cur.Status == model.RegisterReconciling && incoming.Status == model.RegisterOpen {
				incoming.Status = model.RegisterReconciling
			}
			if resp.Movements == nil {
				incoming.Movements = cur.Movements
			}
		} else if cur != nil {
			log.Warn().Str("local_register_id", cur.ID).Str("register_id", incoming.ID).
				Msg("replacing local register session with backend session")
		}
		st.register = incoming
		out = incoming.Clone()
		return []Event{{Type: EventRegisterChanged, RegisterID: incoming.ID}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RegisterTransition(out.Status)
	log.Info().Str("register_id", out.ID).Int("pdv_id", out.PDVID).Str("status", string(out.Status)).
		Msg("register session adopted")
	return &out, nil
}

// Sync reconciles local state with the backend's current session for the
// PDV: a different session is adopted, a local session the backend no longer
// reports as open is dropped. Nothing changes while a close is being
// confirmed.
func (s *RegisterService) Sync(ctx context.Context) (*model.RegisterSession, error) {
	v, err, _ := s.group.Do("sync:"+strconv.Itoa(s.pdvID), func() (interface{}, error) {
		resp, err := s.backend.CurrentRegister(ctx, s.pdvID)
		if err != nil {
			return nil, &SubmissionError{Op: "sync register", Err: err}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp, _ := v.(*dto.RegisterResponse)

	var (
		confirming bool
		local      *model.RegisterSession
	)
	s.state.View(func(st *engineState) {
		confirming = st.confirming
		if st.register != nil {
			reg := st.register.Clone()
			local = &reg
		}
	})
	if confirming {
		return local, nil
	}

	if resp != nil && !strings.EqualFold(resp.Status, "closed") {
		reg, err := s.adopt(ctx, resp)
		if errors.Is(err, ErrCloseInProgress) {
			return s.Current(), nil
		}
		return reg, err
	}
	if local == nil || local.Status == model.RegisterClosed {
		return local, nil
	}

	err = s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		if st.register == nil || st.register.ID != local.ID || st.confirming {
			return nil, nil
		}
		log.Warn().Str("register_id", local.ID).Msg("backend reports no open session, dropping stale local session")
		st.register = nil
		return []Event{{Type: EventRegisterChanged, RegisterID: local.ID}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RegisterTransition(model.RegisterClosed)
	return nil, nil
}

// ── Movements ─────────────────────────────────────────────────────────────────

// RecordMovement registers a manual cash movement on the open register. Sale
// movements only come from completed sales.
func (s *RegisterService) RecordMovement(ctx context.Context, typ model.MovementType, amount decimal.Decimal, reference string) (*model.Movement, error) {
	if !typ.Valid() || typ == model.MovementSale {
		return nil, invalid("type", fmt.Sprintf("unsupported movement type %q", typ))
	}
	if amount.IsZero() || (typ != model.MovementAdjustment && amount.IsNegative()) {
		return nil, invalid("amount", "movement amount must be positive")
	}
	signed := s.pricing.Round(typ.Signed(amount))

	var registerID string
	s.state.View(func(st *engineState) {
		if st.register != nil && st.register.Status == model.RegisterOpen && !st.confirming {
			registerID = st.register.ID
		}
	})
	if registerID == "" {
		return nil, ErrRegisterNotOpen
	}

	resp, err := s.backend.RecordMovement(ctx, registerID, dto.CreateMovementRequest{
		Type:      string(typ),
		Amount:    signed,
		Reference: reference,
	})
	if err != nil {
		return nil, &SubmissionError{Op: "record movement", Err: err}
	}

	mov := model.Movement{
		ID:        resp.ID,
		Type:      typ,
		Amount:    signed,
		Reference: reference,
		CreatedAt: resp.CreatedAt,
	}
	if mov.CreatedAt.IsZero() {
		mov.CreatedAt = s.now()
	}
	err = s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		if st.register == nil || st.register.ID != registerID || !st.register.AcceptsMovements() {
			return nil, fmt.Errorf("movement %s: %w", mov.ID, ErrLateSubmission)
		}
		st.register.Movements = append(st.register.Movements, mov)
		return []Event{{Type: EventRegisterChanged, RegisterID: registerID}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &mov, nil
}

// ── Close ─────────────────────────────────────────────────────────────────────

// InitiateClose moves the register to RECONCILING and fetches a fresh
// summary. If the fetch fails the register stays RECONCILING; the summary can
// be re-fetched or the dialog dismissed.
func (s *RegisterService) InitiateClose(ctx context.Context) (*model.ReconciliationSummary, error) {
	var registerID string
	err := s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		reg := st.register
		if reg == nil || reg.Status == model.RegisterClosed {
			return nil, ErrRegisterNotOpen
		}
		registerID = reg.ID
		if reg.Status == model.RegisterReconciling {
			return nil, nil
		}
		reg.Status = model.RegisterReconciling
		return []Event{{Type: EventRegisterChanged, RegisterID: reg.ID}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RegisterTransition(model.RegisterReconciling)
	log.Info().Str("register_id", registerID).Msg("register close initiated")
	return s.recon.Summarize(ctx, registerID)
}

// RefreshSummary re-fetches the summary while the close dialog is open.
func (s *RegisterService) RefreshSummary(ctx context.Context) (*model.ReconciliationSummary, error) {
	registerID, err := s.reconcilingID()
	if err != nil {
		return nil, err
	}
	return s.recon.Summarize(ctx, registerID)
}

// DismissClose returns the register to OPEN without side effects.
func (s *RegisterService) DismissClose(ctx context.Context) (*model.RegisterSession, error) {
	var out model.RegisterSession
	err := s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		reg := st.register
		if reg == nil || reg.Status != model.RegisterReconciling {
			return nil, fmt.Errorf("dismiss close: %w", ErrInvalidTransition)
		}
		if st.confirming {
			return nil, ErrCloseInProgress
		}
		reg.Status = model.RegisterOpen
		out = reg.Clone()
		return []Event{{Type: EventRegisterChanged, RegisterID: reg.ID}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RegisterTransition(model.RegisterOpen)
	return &out, nil
}

// ConfirmClose closes the register with the counted drawer amount. The
// summary is fetched again right before the rule is evaluated so sales
// completed during the dialog count towards the expected balance. It is
// rejected while any sale submission for the register is in flight.
func (s *RegisterService) ConfirmClose(ctx context.Context, counted decimal.Decimal, notes string) (*model.RegisterSession, error) {
	if counted.IsNegative() {
		return nil, invalid("closing_balance", "counted amount cannot be negative")
	}
	counted = s.pricing.Round(counted)

	var registerID string
	err := s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		reg := st.register
		if reg == nil || reg.Status != model.RegisterReconciling {
			return nil, fmt.Errorf("confirm close: %w", ErrInvalidTransition)
		}
		if st.confirming {
			return nil, ErrCloseInProgress
		}
		if n := st.submissionsFor(reg.ID); n > 0 {
			return nil, fmt.Errorf("%d sale(s) pending for register %s: %w", n, reg.ID, ErrSubmissionInFlight)
		}
		st.confirming = true
		registerID = reg.ID
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	summary, err := s.recon.Summarize(ctx, registerID)
	if err != nil {
		s.endConfirm()
		return nil, err
	}
	result, err := s.recon.Evaluate(summary, counted, notes)
	if err != nil {
		s.endConfirm()
		return nil, err
	}

	resp, err := s.backend.CloseRegister(ctx, dto.CloseRegisterRequest{
		RegisterID:     registerID,
		ClosingBalance: counted,
		ClosingNotes:   strings.TrimSpace(notes),
	})
	if err != nil {
		s.endConfirm()
		return nil, &SubmissionError{Op: "close register", Err: err}
	}

	closedAt := s.now()
	if resp != nil && resp.ClosedAt != nil {
		closedAt = *resp.ClosedAt
	}
	var out model.RegisterSession
	err = s.state.Mutate(ctx, func(st *engineState) ([]Event, error) {
		st.confirming = false
		reg := st.register
		if reg == nil || reg.ID != registerID {
			return nil, fmt.Errorf("confirm close: register %s no longer held: %w", registerID, ErrInvalidTransition)
		}
		reg.Status = model.RegisterClosed
		reg.ClosingBalance = &result.Counted
		reg.ClosingNotes = strings.TrimSpace(notes)
		reg.ExpectedBalance = &result.Expected
		reg.Difference = &result.Difference
		reg.DeviationPct = &result.DeviationPct
		reg.Classification = result.Classification
		reg.ClosedAt = &closedAt
		out = reg.Clone()
		return []Event{{Type: EventRegisterChanged, RegisterID: reg.ID}}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RegisterTransition(model.RegisterClosed)
	log.Info().
		Str("register_id", registerID).
		Str("expected", result.Expected.String()).
		Str("counted", result.Counted.String()).
		Str("difference", result.Difference.String()).
		Str("classification", result.Classification).
		Msg("register closed")
	return &out, nil
}

func (s *RegisterService) endConfirm() {
	s.state.update(func(st *engineState) {
		st.confirming = false
	})
}

func (s *RegisterService) reconcilingID() (string, error) {
	var (
		id  string
		err error
	)
	s.state.View(func(st *engineState) {
		if st.register == nil || st.register.Status != model.RegisterReconciling {
			err = fmt.Errorf("refresh summary: %w", ErrInvalidTransition)
			return
		}
		id = st.register.ID
	})
	return id, err
}

func registerFromDTO(resp *dto.RegisterResponse) *model.RegisterSession {
	reg := &model.RegisterSession{
		ID:              resp.ID,
		PDVID:           resp.PDVID,
		OpenedBy:        resp.OpenedBy,
		OpeningBalance:  resp.OpeningBalance,
		OpeningNotes:    resp.OpeningNotes,
		Status:          model.RegisterOpen,
		Movements:       make([]model.Movement, 0, len(resp.Movements)),
		OpenedAt:        resp.OpenedAt,
		ClosingBalance:  resp.ClosingBalance,
		ClosingNotes:    resp.ClosingNotes,
		ExpectedBalance: resp.ExpectedBalance,
		Difference:      resp.Difference,
		ClosedAt:        resp.ClosedAt,
	}
	if strings.EqualFold(resp.Status, "closed") {
		reg.Status = model.RegisterClosed
	}
	for _, m := range resp.Movements {
		typ := model.MovementType(strings.ToLower(m.Type))
		reg.Movements = append(reg.Movements, model.Movement{
			ID:        m.ID,
			Type:      typ,
			Amount:    typ.Signed(m.Amount),
			Reference: m.Reference,
			CreatedAt: m.CreatedAt,
		})
	}
	return reg
}
