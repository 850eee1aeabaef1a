package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ally-360/pos-terminal/internal/model"
)

// ErrNotFound is returned by a KeyValueStore when the key does not exist.
var ErrNotFound = errors.New("key not found")

// snapshotVersion is bumped when the envelope layout changes incompatibly.
const snapshotVersion = 1

// KeyValueStore is the persistence port. Adapters only move opaque bytes; the
// snapshot layout is owned by SnapshotRepository.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// SnapshotRepository persists and restores the engine state of one PDV.
type SnapshotRepository interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, s *model.Snapshot) error
	Clear(ctx context.Context) error
}

// Keys returns the engine-owned storage keys of a PDV. No other component
// writes these keys.
func Keys(pdvID int) (register, windows, history string) {
	prefix := fmt.Sprintf("pos:%d:", pdvID)
	return prefix + "register", prefix + "windows", prefix + "history"
}

type registerEnvelope struct {
	Version  int                    `json:"v"`
	Register *model.RegisterSession `json:"register"`
}

type windowsEnvelope struct {
	Version        int                `json:"v"`
	ActiveWindowID string             `json:"active_window_id"`
	Windows        []model.SaleWindow `json:"windows"`
}

type historyEnvelope struct {
	Version int                   `json:"v"`
	Sales   []model.CompletedSale `json:"sales"`
}

type snapshotRepo struct {
	store       KeyValueStore
	registerKey string
	windowsKey  string
	historyKey  string
}

// NewSnapshotRepository builds the repository for one PDV over any store.
func NewSnapshotRepository(store KeyValueStore, pdvID int) SnapshotRepository {
	r, w, h := Keys(pdvID)
	return &snapshotRepo{store: store, registerKey: r, windowsKey: w, historyKey: h}
}

// Load returns an empty snapshot when nothing has been persisted yet.
func (r *snapshotRepo) Load(ctx context.Context) (*model.Snapshot, error) {
	snap := &model.Snapshot{}

	var reg registerEnvelope
	if ok, err := r.read(ctx, r.registerKey, &reg); err != nil {
		return nil, err
	} else if ok {
		if err := checkVersion(r.registerKey, reg.Version); err != nil {
			return nil, err
		}
		snap.Register = reg.Register
	}

	var win windowsEnvelope
	if ok, err := r.read(ctx, r.windowsKey, &win); err != nil {
		return nil, err
	} else if ok {
		if err := checkVersion(r.windowsKey, win.Version); err != nil {
			return nil, err
		}
		snap.Windows = win.Windows
		snap.ActiveWindowID = win.ActiveWindowID
	}

	var hist historyEnvelope
	if ok, err := r.read(ctx, r.historyKey, &hist); err != nil {
		return nil, err
	} else if ok {
		if err := checkVersion(r.historyKey, hist.Version); err != nil {
			return nil, err
		}
		snap.History = hist.Sales
	}
	return snap, nil
}

// Save writes all three keys. A nil register deletes the register key.
func (r *snapshotRepo) Save(ctx context.Context, s *model.Snapshot) error {
	if s == nil {
		return r.Clear(ctx)
	}
	if s.Register == nil {
		if err := r.store.Delete(ctx, r.registerKey); err != nil {
			return fmt.Errorf("snapshot: delete %s: %w", r.registerKey, err)
		}
	} else if err := r.write(ctx, r.registerKey, registerEnvelope{Version: snapshotVersion, Register: s.Register}); err != nil {
		return err
	}
	if err := r.write(ctx, r.windowsKey, windowsEnvelope{
		Version:        snapshotVersion,
		ActiveWindowID: s.ActiveWindowID,
		Windows:        s.Windows,
	}); err != nil {
		return err
	}
	return r.write(ctx, r.historyKey, historyEnvelope{Version: snapshotVersion, Sales: s.History})
}

// Clear removes every engine-owned key (explicit logout).
func (r *snapshotRepo) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, r.registerKey, r.windowsKey, r.historyKey); err != nil {
		return fmt.Errorf("snapshot: clear: %w", err)
	}
	return nil
}

func (r *snapshotRepo) read(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("snapshot: read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("snapshot: decode %s: %w", key, err)
	}
	return true, nil
}

func (r *snapshotRepo) write(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("snapshot: encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", key, err)
	}
	return nil
}

func checkVersion(key string, v int) error {
	if v != snapshotVersion {
		return fmt.Errorf("snapshot: %s has unsupported version %d", key, v)
	}
	return nil
}
