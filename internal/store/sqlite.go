package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/ledger"
	"github.com/sells-group/adhs-etl/internal/model"
)

// SQLiteStore implements LedgerStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ledger_snapshots (
	id           TEXT PRIMARY KEY,
	period       TEXT NOT NULL,
	columns      TEXT NOT NULL,
	row_count    INTEGER NOT NULL,
	column_count INTEGER NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ledger_rows (
	snapshot_id TEXT NOT NULL REFERENCES ledger_snapshots(id) ON DELETE CASCADE,
	row_idx     INTEGER NOT NULL,
	cells       TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, row_idx)
);

CREATE TABLE IF NOT EXISTS period_counts (
	period     TEXT NOT NULL,
	status     TEXT NOT NULL,
	count      INTEGER NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (period, status)
);

CREATE INDEX IF NOT EXISTS idx_ledger_snapshots_created ON ledger_snapshots(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot validates l and writes it with all of its rows, and the
// period's tallies when counts is non-nil, in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, period model.Period, l *ledger.Ledger, counts map[change.Status]int) (*Snapshot, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	cols, err := encodeCells(l.Columns())
	if err != nil {
		return nil, err
	}
	snap := newSnapshot(uuid.New().String(), period, l)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin snapshot tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_snapshots (id, period, columns, row_count, column_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, period.String(), cols, snap.RowCount, snap.ColumnCount, snap.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ledger_rows (snapshot_id, row_idx, cells) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare row insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range l.Rows() {
		cells, err := encodeCells(row)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx, snap.ID, i, cells); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert row %d", i)
		}
	}

	if counts != nil {
		if err := replaceSQLiteCounts(ctx, tx, period, counts); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit snapshot")
	}
	return snap, nil
}

// LatestSnapshot returns the newest snapshot, or nil when there is none.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, period, row_count, column_count, created_at FROM ledger_snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshot")
	}
	return snap, nil
}

// ListSnapshots returns snapshots newest first. A non-positive limit
// returns all of them.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, period, row_count, column_count, created_at FROM ledger_snapshots ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

// LoadSnapshot reads a snapshot back and validates it against schema.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, id string, schema *ledger.Schema) (*ledger.Ledger, error) {
	var colsJSON string
	err := s.db.QueryRowContext(ctx, `SELECT columns FROM ledger_snapshots WHERE id = ?`, id).Scan(&colsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: snapshot not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load snapshot %s", id)
	}
	cols, err := decodeCells(colsJSON)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT cells FROM ledger_rows WHERE snapshot_id = ? ORDER BY row_idx`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load rows %s", id)
	}
	defer rows.Close() //nolint:errcheck

	var table [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return nil, err
		}
		table = append(table, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load rows iterate")
	}
	return ledger.FromTable(schema, cols, table)
}

// SavePeriodCounts replaces the status tallies of period. Statuses missing
// from counts no longer have a row afterwards.
func (s *SQLiteStore) SavePeriodCounts(ctx context.Context, period model.Period, counts map[change.Status]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin counts tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := replaceSQLiteCounts(ctx, tx, period, counts); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit counts")
}

func replaceSQLiteCounts(ctx context.Context, tx *sql.Tx, period model.Period, counts map[change.Status]int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM period_counts WHERE period = ?`, period.String()); err != nil {
		return eris.Wrapf(err, "sqlite: clear counts %s", period)
	}
	for st, n := range counts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO period_counts (period, status, count, updated_at) VALUES (?, ?, ?, datetime('now'))`,
			period.String(), string(st), n,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert count %s", st)
		}
	}
	return nil
}

// PeriodCounts returns the stored tallies of period.
func (s *SQLiteStore) PeriodCounts(ctx context.Context, period model.Period) (map[change.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count FROM period_counts WHERE period = ?`, period.String())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: period counts")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[change.Status]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		out[change.Status(st)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: period counts iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*Snapshot, error) {
	var snap Snapshot
	var period string
	if err := row.Scan(&snap.ID, &period, &snap.RowCount, &snap.ColumnCount, &snap.CreatedAt); err != nil {
		return nil, err
	}
	p, err := model.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	snap.Period = p
	return &snap, nil
}
