package service

import (
	"time"

	"github.com/ally-360/pos-terminal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleWindowManager owns the set of concurrent windows and the active
// selection. Windows live in a map keyed by id; order keeps creation order for
// listing and for picking a replacement when the active window goes away.
//
// SaleWindowManager is not safe for concurrent use; StateManager serializes
// access to it.
type SaleWindowManager struct {
	windows map[string]*model.SaleWindow
	order   []string
	active  string
	newID   func() string
	now     func() time.Time
}

func NewSaleWindowManager() *SaleWindowManager {
	return &SaleWindowManager{
		windows: make(map[string]*model.SaleWindow),
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// CreateWindow opens an empty DRAFT window and makes it the active one.
func (m *SaleWindowManager) CreateWindow() string {
	now := m.now()
	w := &model.SaleWindow{
		ID:        m.newID(),
		Items:     []model.LineItem{},
		Payments:  []model.Payment{},
		Discount:  decimal.Zero,
		Shipping:  decimal.Zero,
		Status:    model.WindowDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.windows[w.ID] = w
	m.order = append(m.order, w.ID)
	m.active = w.ID
	return w.ID
}

// RemoveWindow drops a window from the managed set. If it was active, the
// first remaining window becomes active.
func (m *SaleWindowManager) RemoveWindow(id string) error {
	if _, ok := m.windows[id]; !ok {
		return ErrWindowNotFound
	}
	delete(m.windows, id)
	for i, wid := range m.order {
		if wid == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	if m.active == id {
		m.active = ""
		if len(m.order) > 0 {
			m.active = m.order[0]
		}
	}
	return nil
}

func (m *SaleWindowManager) SetActive(id string) error {
	if _, ok := m.windows[id]; !ok {
		return ErrWindowNotFound
	}
	m.active = id
	return nil
}

// ActiveID is empty only when no windows exist.
func (m *SaleWindowManager) ActiveID() string {
	return m.active
}

// List returns deep copies in creation order.
func (m *SaleWindowManager) List() []model.SaleWindow {
	out := make([]model.SaleWindow, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.windows[id].Clone())
	}
	return out
}

// Get returns a copy of one window.
func (m *SaleWindowManager) Get(id string) (model.SaleWindow, error) {
	w, ok := m.windows[id]
	if !ok {
		return model.SaleWindow{}, ErrWindowNotFound
	}
	return w.Clone(), nil
}

// window hands out the live pointer for in-package mutation.
func (m *SaleWindowManager) window(id string) (*model.SaleWindow, error) {
	w, ok := m.windows[id]
	if !ok {
		return nil, ErrWindowNotFound
	}
	return w, nil
}

func (m *SaleWindowManager) Len() int {
	return len(m.order)
}

// Restore replaces the managed set with persisted windows. Terminal windows
// are skipped; they should never have been persisted as open.
func (m *SaleWindowManager) Restore(windows []model.SaleWindow, activeID string) {
	m.windows = make(map[string]*model.SaleWindow, len(windows))
	m.order = m.order[:0]
	m.active = ""
	for i := range windows {
		w := windows[i].Clone()
		if w.Status.Terminal() {
			continue
		}
		if _, dup := m.windows[w.ID]; dup {
			continue
		}
		m.windows[w.ID] = &w
		m.order = append(m.order, w.ID)
	}
	if _, ok := m.windows[activeID]; ok {
		m.active = activeID
	} else if len(m.order) > 0 {
		m.active = m.order[0]
	}
}
