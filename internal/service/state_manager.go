package service

import (
	"context"
	"sync"
	"time"

	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/repository"

	"github.com/rs/zerolog/log"
)

// DefaultHistoryLimit bounds the CompletedSale history kept locally.
const DefaultHistoryLimit = 50

// EventType names what changed in the engine state.
type EventType string

const (
	EventWindowChanged   EventType = "window.changed"
	EventWindowRemoved   EventType = "window.removed"
	EventActiveChanged   EventType = "window.active"
	EventSaleCompleted   EventType = "sale.completed"
	EventRegisterChanged EventType = "register.changed"
	EventStateReset      EventType = "state.reset"
)

// Event is delivered to subscribers after a mutation has been applied and
// persisted.
type Event struct {
	Type       EventType `json:"type"`
	WindowID   string    `json:"window_id,omitempty"`
	RegisterID string    `json:"register_id,omitempty"`
	SaleID     string    `json:"sale_id,omitempty"`
	At         time.Time `json:"at"`
}

// Subscriber receives events synchronously, outside the state lock. It must
// not block.
type Subscriber func(Event)

// engineState is everything the StateManager guards.
type engineState struct {
	windows  *SaleWindowManager
	register *model.RegisterSession
	history  []model.CompletedSale
	// inFlight maps window id to the register id the submission was built
	// against.
	inFlight   map[string]string
	confirming bool
}

func (st *engineState) submissionsFor(registerID string) int {
	n := 0
	for _, rid := range st.inFlight {
		if rid == registerID {
			n++
		}
	}
	return n
}

// StateManager is the single owner of engine state. All mutations go through
// Mutate, which serializes them, writes the snapshot through to the
// repository and then notifies subscribers.
type StateManager struct {
	mu           sync.Mutex
	st           engineState
	repo         repository.SnapshotRepository
	historyLimit int

	subMu   sync.RWMutex
	subs    map[int]Subscriber
	nextSub int

	now func() time.Time
}

func NewStateManager(repo repository.SnapshotRepository, historyLimit int) *StateManager {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &StateManager{
		st: engineState{
			windows:  NewSaleWindowManager(),
			inFlight: make(map[string]string),
		},
		repo:         repo,
		historyLimit: historyLimit,
		subs:         make(map[int]Subscriber),
		now:          time.Now,
	}
}

// Mutate applies fn under the state lock. When fn succeeds the new state is
// persisted and the returned events are published. A persistence failure is
// logged and does not undo the mutation.
func (m *StateManager) Mutate(ctx context.Context, fn func(st *engineState) ([]Event, error)) error {
	m.mu.Lock()
	events, err := fn(&m.st)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.trimHistory()
	m.persist(ctx)
	m.mu.Unlock()

	m.publish(events)
	return nil
}

// View runs fn under the state lock for reads. fn must not change the state
// or retain pointers into it.
func (m *StateManager) View(fn func(st *engineState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.st)
}

// update changes bookkeeping that is never persisted (in-flight submissions,
// the close confirmation flag). It neither saves nor publishes.
func (m *StateManager) update(fn func(st *engineState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.st)
}

// Snapshot returns a deep copy of the current state.
func (m *StateManager) Snapshot() model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers fn and returns the function that removes it.
func (m *StateManager) Subscribe(fn Subscriber) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// Restore loads the persisted snapshot into memory. Totals and statuses of
// restored windows are kept as persisted.
func (m *StateManager) Restore(ctx context.Context) error {
	snap, err := m.repo.Load(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.st.windows.Restore(snap.Windows, snap.ActiveWindowID)
	if snap.Register != nil {
		reg := snap.Register.Clone()
		m.st.register = &reg
	} else {
		m.st.register = nil
	}
	m.st.history = append([]model.CompletedSale(nil), snap.History...)
	m.st.inFlight = make(map[string]string)
	m.st.confirming = false
	m.trimHistory()
	windows := m.st.windows.Len()
	m.mu.Unlock()

	log.Info().
		Int("windows", windows).
		Bool("register", snap.Register != nil).
		Int("history", len(snap.History)).
		Msg("state: restored snapshot")
	m.publish([]Event{{Type: EventStateReset}})
	return nil
}

// Reset drops all in-memory state and clears the persisted keys. Used on
// explicit logout. It is refused while a sale submission or a register close
// confirmation is waiting on the backend.
func (m *StateManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	if len(m.st.inFlight) > 0 {
		m.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if m.st.confirming {
		m.mu.Unlock()
		return ErrCloseInProgress
	}
	if err := m.repo.Clear(ctx); err != nil {
		m.mu.Unlock()
		return err
	}
	m.st = engineState{
		windows:  NewSaleWindowManager(),
		inFlight: make(map[string]string),
	}
	m.mu.Unlock()

	m.publish([]Event{{Type: EventStateReset}})
	return nil
}

func (m *StateManager) snapshotLocked() model.Snapshot {
	snap := model.Snapshot{
		Windows:        m.st.windows.List(),
		ActiveWindowID: m.st.windows.ActiveID(),
		History:        make([]model.CompletedSale, len(m.st.history)),
	}
	copy(snap.History, m.st.history)
	if m.st.register != nil {
		reg := m.st.register.Clone()
		snap.Register = &reg
	}
	return snap
}

func (m *StateManager) persist(ctx context.Context) {
	snap := m.snapshotLocked()
	if err := m.repo.Save(ctx, &snap); err != nil {
		log.Error().Err(err).Msg("state: failed to persist snapshot")
	}
}

// trimHistory keeps the newest historyLimit sales; history is appended in
// completion order.
func (m *StateManager) trimHistory() {
	if extra := len(m.st.history) - m.historyLimit; extra > 0 {
		m.st.history = append([]model.CompletedSale(nil), m.st.history[extra:]...)
	}
}

func (m *StateManager) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	m.subMu.RLock()
	subs := make([]Subscriber, 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.RUnlock()

	now := m.now()
	for _, ev := range events {
		if ev.At.IsZero() {
			ev.At = now
		}
		for _, fn := range subs {
			fn(ev)
		}
	}
}
