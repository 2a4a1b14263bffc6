package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/db"
	"github.com/sells-group/adhs-etl/internal/ledger"
	"github.com/sells-group/adhs-etl/internal/model"
)

// PostgresStore implements LedgerStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var periodCountsUpsert = db.UpsertConfig{
	Table:        "period_counts",
	Columns:      []string{"period", "status", "count", "updated_at"},
	ConflictKeys: []string{"period", "status"},
}

var ledgerRowColumns = []string{"snapshot_id", "row_idx", "cells"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(4), int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ledger_snapshots (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	seq          BIGSERIAL,
	period       TEXT NOT NULL,
	columns      JSONB NOT NULL,
	row_count    INTEGER NOT NULL,
	column_count INTEGER NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
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
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (period, status)
);

CREATE INDEX IF NOT EXISTS idx_ledger_snapshots_created ON ledger_snapshots(created_at DESC, seq DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveSnapshot validates l, then inserts the snapshot header, COPYs its rows
// and replaces the period's tallies when counts is non-nil, in one
// transaction.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, period model.Period, l *ledger.Ledger, counts map[change.Status]int) (*Snapshot, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	cols, err := encodeCells(l.Columns())
	if err != nil {
		return nil, err
	}
	snap := newSnapshot(uuid.New().String(), period, l)

	rows := make([][]any, 0, l.Len())
	for i, row := range l.Rows() {
		cells, err := encodeCells(row)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{snap.ID, i, cells})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin snapshot tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_snapshots (id, period, columns, row_count, column_count, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.ID, period.String(), cols, snap.RowCount, snap.ColumnCount, snap.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}

	if _, err := db.CopyFrom(ctx, tx, "ledger_rows", ledgerRowColumns, rows); err != nil {
		return nil, eris.Wrap(err, "postgres: copy snapshot rows")
	}

	if counts != nil {
		if err := replacePostgresCounts(ctx, tx, period, counts); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit snapshot")
	}
	return snap, nil
}

// LatestSnapshot returns the newest snapshot, or nil when there is none.
func (s *PostgresStore) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, period, row_count, column_count, created_at FROM ledger_snapshots ORDER BY created_at DESC, seq DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}
	return snap, nil
}

// ListSnapshots returns snapshots newest first. A non-positive limit
// returns all of them.
func (s *PostgresStore) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, period, row_count, column_count, created_at FROM ledger_snapshots ORDER BY created_at DESC, seq DESC LIMIT $1`,
		limitArg,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

// LoadSnapshot reads a snapshot back and validates it against schema.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, id string, schema *ledger.Schema) (*ledger.Ledger, error) {
	var colsJSON string
	err := s.pool.QueryRow(ctx, `SELECT columns::text FROM ledger_snapshots WHERE id = $1`, id).Scan(&colsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: snapshot not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load snapshot %s", id)
	}
	cols, err := decodeCells(colsJSON)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT cells FROM ledger_rows WHERE snapshot_id = $1 ORDER BY row_idx`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load rows %s", id)
	}
	defer rows.Close()

	var table [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return nil, err
		}
		table = append(table, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load rows iterate")
	}
	return ledger.FromTable(schema, cols, table)
}

// SavePeriodCounts replaces the status tallies of period. Statuses missing
// from counts no longer have a row afterwards.
func (s *PostgresStore) SavePeriodCounts(ctx context.Context, period model.Period, counts map[change.Status]int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin counts tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := replacePostgresCounts(ctx, tx, period, counts); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit counts")
}

// replacePostgresCounts clears period and upserts counts through a staging
// table, as a savepoint of tx.
func replacePostgresCounts(ctx context.Context, tx pgx.Tx, period model.Period, counts map[change.Status]int) error {
	if _, err := tx.Exec(ctx, `DELETE FROM period_counts WHERE period = $1`, period.String()); err != nil {
		return eris.Wrapf(err, "postgres: clear counts %s", period)
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(counts))
	for _, st := range change.AllStatuses() {
		if n, ok := counts[st]; ok {
			rows = append(rows, []any{period.String(), string(st), n, now})
		}
	}
	_, err := db.BulkUpsert(ctx, tx, periodCountsUpsert, rows)
	return eris.Wrapf(err, "postgres: save counts %s", period)
}

// PeriodCounts returns the stored tallies of period.
func (s *PostgresStore) PeriodCounts(ctx context.Context, period model.Period) (map[change.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count FROM period_counts WHERE period = $1`, period.String())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: period counts")
	}
	defer rows.Close()

	out := make(map[change.Status]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		out[change.Status(st)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: period counts iterate")
}
