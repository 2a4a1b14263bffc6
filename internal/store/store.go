// Package store persists ledger snapshots. Every monthly run writes a new
// snapshot; earlier snapshots are superseded, never updated.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/ledger"
	"github.com/sells-group/adhs-etl/internal/model"
)

// Snapshot describes one persisted ledger version.
type Snapshot struct {
	ID          string       `json:"id"`
	Period      model.Period `json:"period"`
	RowCount    int          `json:"row_count"`
	ColumnCount int          `json:"column_count"`
	CreatedAt   time.Time    `json:"created_at"`
}

// LedgerStore defines persistence for the historical ledger.
type LedgerStore interface {
	// Snapshots. SaveSnapshot also replaces the period's status tallies
	// when counts is non-nil, in the same transaction.
	SaveSnapshot(ctx context.Context, period model.Period, l *ledger.Ledger, counts map[change.Status]int) (*Snapshot, error)
	LatestSnapshot(ctx context.Context) (*Snapshot, error)
	LoadSnapshot(ctx context.Context, id string, schema *ledger.Schema) (*ledger.Ledger, error)
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)

	// Per-month status tallies. Saving replaces every tally of the period.
	SavePeriodCounts(ctx context.Context, period model.Period, counts map[change.Status]int) error
	PeriodCounts(ctx context.Context, period model.Period) (map[change.Status]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// LoadLatest returns the newest snapshot's ledger, or (nil, nil, nil) when
// nothing has been persisted yet.
func LoadLatest(ctx context.Context, st LedgerStore, schema *ledger.Schema) (*ledger.Ledger, *Snapshot, error) {
	snap, err := st.LatestSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	if snap == nil {
		return nil, nil, nil
	}
	l, err := st.LoadSnapshot(ctx, snap.ID, schema)
	if err != nil {
		return nil, nil, err
	}
	return l, snap, nil
}

func encodeCells(cells []string) (string, error) {
	b, err := json.Marshal(cells)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal cells")
	}
	return string(b), nil
}

func decodeCells(s string) ([]string, error) {
	var cells []string
	if err := json.Unmarshal([]byte(s), &cells); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal cells")
	}
	return cells, nil
}

func newSnapshot(id string, period model.Period, l *ledger.Ledger) *Snapshot {
	return &Snapshot{
		ID:          id,
		Period:      period,
		RowCount:    l.Len(),
		ColumnCount: len(l.Columns()),
		CreatedAt:   time.Now().UTC(),
	}
}
