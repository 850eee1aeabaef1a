package model

import "time"

// Snapshot is the locally persisted engine state, restored on process start
// and cleared on logout.
type Snapshot struct {
	Register       *RegisterSession `json:"register"`
	Windows        []SaleWindow     `json:"windows"`
	ActiveWindowID string           `json:"active_window_id"`
	History        []CompletedSale  `json:"history"`
}

// Empty reports whether nothing was restored.
func (s *Snapshot) Empty() bool {
	return s == nil || (s.Register == nil && len(s.Windows) == 0 && len(s.History) == 0)
}

// SnapshotEntry is the relational row backing the SQL snapshot store: one row
// per engine-owned key.
type SnapshotEntry struct {
	Key       string `gorm:"type:varchar(120);primaryKey"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName pins the table name so GORM does not pluralize it differently
// across dialects.
func (SnapshotEntry) TableName() string { return "pos_snapshot_entries" }
