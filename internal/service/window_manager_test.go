package service

import (
	"testing"

	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWindowBecomesActive(t *testing.T) {
	m := NewSaleWindowManager()
	assert.Empty(t, m.ActiveID())

	a := m.CreateWindow()
	assert.Equal(t, a, m.ActiveID())
	b := m.CreateWindow()
	assert.Equal(t, b, m.ActiveID())

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, a, list[0].ID)
	assert.Equal(t, b, list[1].ID)
	assert.Equal(t, model.WindowDraft, list[0].Status)
}

func TestRemoveActiveSelectsFirstRemaining(t *testing.T) {
	m := NewSaleWindowManager()
	a := m.CreateWindow()
	b := m.CreateWindow()
	c := m.CreateWindow()

	require.NoError(t, m.SetActive(b))
	require.NoError(t, m.RemoveWindow(b))
	assert.Equal(t, a, m.ActiveID())

	// Removing a non-active window keeps the selection.
	require.NoError(t, m.RemoveWindow(c))
	assert.Equal(t, a, m.ActiveID())

	require.NoError(t, m.RemoveWindow(a))
	assert.Empty(t, m.ActiveID())
	assert.Zero(t, m.Len())

	assert.ErrorIs(t, m.RemoveWindow(a), ErrWindowNotFound)
	assert.ErrorIs(t, m.SetActive("nope"), ErrWindowNotFound)
}

func TestWindowsAreIsolated(t *testing.T) {
	e := pricing.NewEngine(2)
	ed := NewWindowEditor(e)
	m := NewSaleWindowManager()
	a := m.CreateWindow()
	b := m.CreateWindow()

	wa, err := m.window(a)
	require.NoError(t, err)
	_, err = ed.AddItem(wa, item("A", "2", "100", "19"))
	require.NoError(t, err)

	got, err := m.Get(b)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Equal(t, model.WindowDraft, got.Status)

	// Copies handed out never alias managed state.
	copyA, err := m.Get(a)
	require.NoError(t, err)
	copyA.Items[0].Quantity = dec("99")
	again, err := m.Get(a)
	require.NoError(t, err)
	assert.Equal(t, "2", again.Items[0].Quantity.String())
}

func TestRestoreSkipsTerminalAndRepairsActive(t *testing.T) {
	m := NewSaleWindowManager()
	m.Restore([]model.SaleWindow{
		{ID: "w1", Status: model.WindowCompleted},
		{ID: "w2", Status: model.WindowDraft},
		{ID: "w3", Status: model.WindowAwaitingPayment},
	}, "w1")

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "w2", m.ActiveID())

	m.Restore([]model.SaleWindow{{ID: "w4", Status: model.WindowDraft}}, "w4")
	assert.Equal(t, "w4", m.ActiveID())
	_, err := m.Get("w2")
	assert.ErrorIs(t, err, ErrWindowNotFound)
}
