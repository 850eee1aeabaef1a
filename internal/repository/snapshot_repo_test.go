package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/pricing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newRedisStore(t *testing.T) KeyValueStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb)
}

func newGormStore(t *testing.T) KeyValueStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "pos.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.SnapshotEntry{}))
	return NewGormStore(db)
}

var stores = []struct {
	name string
	new  func(t *testing.T) KeyValueStore
}{
	{"memory", func(*testing.T) KeyValueStore { return NewMemoryStore() }},
	{"redis", newRedisStore},
	{"gorm_sqlite", newGormStore},
}

func draftWindow() model.SaleWindow {
	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	e := pricing.NewEngine(2)
	w := model.SaleWindow{
		ID: "7a1f6f7e-0d4c-4a57-9d43-3b1f1e0c2a11",
		Items: []model.LineItem{
			{ID: "l-1", ProductID: "p-a", Name: "Item A", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(5000), TaxRate: decimal.NewFromInt(19)},
			{ID: "l-2", ProductID: "p-b", Name: "Item B", Quantity: decimal.RequireFromString("1.5"), UnitPrice: decimal.RequireFromString("10000.25"), TaxRate: decimal.NewFromInt(5)},
		},
		Payments: []model.Payment{
			{ID: "pay-1", Method: model.PaymentCash, Amount: decimal.NewFromInt(1000), Reference: "drawer", CreatedAt: at},
		},
		Discount:  decimal.Zero,
		Shipping:  decimal.Zero,
		Status:    model.WindowDraft,
		CreatedAt: at,
		UpdatedAt: at,
	}
	w.Totals = e.ComputeTotals(w.PricingLines(), w.Discount, w.Shipping)
	for i := range w.Items {
		w.Items[i].Subtotal = w.Totals.Lines[i].Subtotal
		w.Items[i].Tax = w.Totals.Lines[i].Tax
	}
	return w
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, tc := range stores {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewSnapshotRepository(tc.new(t), 1)

			w := draftWindow()
			require.NoError(t, repo.Save(ctx, &model.Snapshot{
				Windows:        []model.SaleWindow{w},
				ActiveWindowID: w.ID,
			}))

			got, err := repo.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got.Windows, 1)
			assert.Equal(t, w.ID, got.ActiveWindowID)
			assert.Nil(t, got.Register)

			restored := got.Windows[0]
			assert.Equal(t, model.WindowDraft, restored.Status)
			require.Len(t, restored.Items, 2)
			require.Len(t, restored.Payments, 1)
			for i := range w.Items {
				assert.Equal(t, w.Items[i].ID, restored.Items[i].ID)
				assert.Equal(t, w.Items[i].ProductID, restored.Items[i].ProductID)
				assert.True(t, w.Items[i].Quantity.Equal(restored.Items[i].Quantity))
				assert.True(t, w.Items[i].UnitPrice.Equal(restored.Items[i].UnitPrice))
				assert.True(t, w.Items[i].TaxRate.Equal(restored.Items[i].TaxRate))
				assert.True(t, w.Items[i].Subtotal.Equal(restored.Items[i].Subtotal))
			}
			assert.Equal(t, w.Payments[0].ID, restored.Payments[0].ID)
			assert.Equal(t, w.Payments[0].Method, restored.Payments[0].Method)
			assert.True(t, w.Payments[0].Amount.Equal(restored.Payments[0].Amount))
			assert.True(t, w.Payments[0].CreatedAt.Equal(restored.Payments[0].CreatedAt))

			// Identical serialized form: nothing was lost or re-derived.
			want, err := json.Marshal(w)
			require.NoError(t, err)
			have, err := json.Marshal(restored)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(have))
		})
	}
}

func TestSnapshotRegisterAndHistory(t *testing.T) {
	for _, tc := range stores {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewSnapshotRepository(tc.new(t), 3)

			reg := &model.RegisterSession{
				ID:             "reg-1",
				PDVID:          3,
				OpenedBy:       "cashier-1",
				OpeningBalance: decimal.NewFromInt(100000),
				Status:         model.RegisterOpen,
				Movements: []model.Movement{
					{ID: "m-1", Type: model.MovementSale, Amount: decimal.NewFromInt(29750), Reference: "S-1"},
				},
			}
			sale := model.CompletedSale{WindowID: "w-1", SaleID: "s-1", Number: "S-1", RegisterID: "reg-1"}
			require.NoError(t, repo.Save(ctx, &model.Snapshot{Register: reg, History: []model.CompletedSale{sale}}))

			got, err := repo.Load(ctx)
			require.NoError(t, err)
			require.NotNil(t, got.Register)
			assert.Equal(t, "reg-1", got.Register.ID)
			assert.Equal(t, model.RegisterOpen, got.Register.Status)
			require.Len(t, got.Register.Movements, 1)
			assert.Equal(t, "29750", got.Register.Movements[0].Amount.String())
			require.Len(t, got.History, 1)
			assert.Equal(t, "S-1", got.History[0].Number)

			// Dropping the register deletes its key.
			require.NoError(t, repo.Save(ctx, &model.Snapshot{History: got.History}))
			got, err = repo.Load(ctx)
			require.NoError(t, err)
			assert.Nil(t, got.Register)
			assert.Len(t, got.History, 1)
		})
	}
}

func TestSnapshotClear(t *testing.T) {
	for _, tc := range stores {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewSnapshotRepository(tc.new(t), 1)
			w := draftWindow()
			require.NoError(t, repo.Save(ctx, &model.Snapshot{
				Register: &model.RegisterSession{ID: "reg-1", Status: model.RegisterOpen},
				Windows:  []model.SaleWindow{w},
			}))

			require.NoError(t, repo.Clear(ctx))

			got, err := repo.Load(ctx)
			require.NoError(t, err)
			assert.True(t, got.Empty())
		})
	}
}

func TestSnapshotLoadEmpty(t *testing.T) {
	got, err := NewSnapshotRepository(NewMemoryStore(), 9).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestSnapshotKeysArePerPDV(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	one := NewSnapshotRepository(store, 1)
	two := NewSnapshotRepository(store, 2)

	require.NoError(t, one.Save(ctx, &model.Snapshot{Windows: []model.SaleWindow{draftWindow()}}))

	got, err := two.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Windows)

	r, w, h := Keys(1)
	assert.Equal(t, "pos:1:register", r)
	assert.Equal(t, "pos:1:windows", w)
	assert.Equal(t, "pos:1:history", h)
}

func TestSnapshotRejectsUnknownVersion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, windowsKey, _ := Keys(1)
	require.NoError(t, store.Set(ctx, windowsKey, []byte(`{"v":99,"windows":[]}`)))

	_, err := NewSnapshotRepository(store, 1).Load(ctx)
	assert.ErrorContains(t, err, "unsupported version 99")
}

func TestSnapshotCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, _, historyKey := Keys(1)
	require.NoError(t, store.Set(ctx, historyKey, []byte(`not-json`)))

	_, err := NewSnapshotRepository(store, 1).Load(ctx)
	assert.ErrorContains(t, err, "decode")
}
