package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adhs-etl/internal/change"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ledger_snapshots`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSnapshot_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, period, row_count, column_count, created_at FROM ledger_snapshots`).
		WillReturnError(pgx.ErrNoRows)

	snap, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM ledger_snapshots ORDER BY created_at DESC, seq DESC LIMIT 1`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "period", "row_count", "column_count", "created_at"}).
			AddRow("snap-1", "2025-07", 12, 44, now))

	snap, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, july, snap.Period)
	assert.Equal(t, 12, snap.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	l := testLedger(t, testSchema(t), june)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO ledger_snapshots`).
		WithArgs(pgxmock.AnyArg(), "2025-06", pgxmock.AnyArg(), 2, len(l.Columns()), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_rows"}, ledgerRowColumns).WillReturnResult(2)
	mock.ExpectCommit()

	snap, err := s.SaveSnapshot(context.Background(), june, l, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot_WithCounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	l := testLedger(t, testSchema(t), june)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO ledger_snapshots`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_rows"}, ledgerRowColumns).WillReturnResult(2)
	mock.ExpectExec(`DELETE FROM period_counts WHERE period = \$1`).
		WithArgs("2025-06").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_period_counts"}, periodCountsUpsert.Columns).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectCommit()

	_, err := s.SaveSnapshot(context.Background(), june, l, map[change.Status]int{
		change.NewTypeNewAddress: 2,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot_CountsFailRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	l := testLedger(t, testSchema(t), june)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO ledger_snapshots`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_rows"}, ledgerRowColumns).WillReturnResult(2)
	mock.ExpectExec(`DELETE FROM period_counts`).WillReturnError(fmt.Errorf("lock timeout"))
	mock.ExpectRollback()

	_, err := s.SaveSnapshot(context.Background(), june, l, map[change.Status]int{
		change.NewTypeNewAddress: 2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear counts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	l := testLedger(t, testSchema(t), june)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO ledger_snapshots`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"ledger_rows"}, ledgerRowColumns).
		WillReturnError(fmt.Errorf("connection reset"))
	mock.ExpectRollback()

	_, err := s.SaveSnapshot(context.Background(), june, l, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy snapshot rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT columns::text FROM ledger_snapshots WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LoadSnapshot(context.Background(), "missing", testSchema(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	schema := testSchema(t)
	l := testLedger(t, schema, june)

	cols, err := encodeCells(l.Columns())
	require.NoError(t, err)
	rows := pgxmock.NewRows([]string{"cells"})
	for _, r := range l.Rows() {
		cells, err := encodeCells(r)
		require.NoError(t, err)
		rows.AddRow(cells)
	}

	mock.ExpectQuery(`SELECT columns::text FROM ledger_snapshots`).
		WithArgs("snap-1").
		WillReturnRows(pgxmock.NewRows([]string{"columns"}).AddRow(cols))
	mock.ExpectQuery(`SELECT cells FROM ledger_rows WHERE snapshot_id = \$1 ORDER BY row_idx`).
		WithArgs("snap-1").
		WillReturnRows(rows)

	loaded, err := s.LoadSnapshot(context.Background(), "snap-1", schema)
	require.NoError(t, err)
	assert.Equal(t, l.Rows(), loaded.Rows())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePeriodCounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM period_counts WHERE period = \$1`).
		WithArgs("2025-06").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_stage_period_counts"}, periodCountsUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`ON CONFLICT`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectCommit()

	err := s.SavePeriodCounts(context.Background(), june, map[change.Status]int{
		change.NewTypeNewAddress:          3,
		change.LostTypeLostAddress0Remain: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePeriodCounts_ClearsDroppedStatuses(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// An empty tally still clears the month; no staging table is needed.
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM period_counts WHERE period = \$1`).
		WithArgs("2025-06").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	require.NoError(t, s.SavePeriodCounts(context.Background(), june, map[change.Status]int{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PeriodCounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT status, count FROM period_counts WHERE period = \$1`).
		WithArgs("2025-06").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("NEW_TYPE_NEW_ADDRESS", 3).
			AddRow("LOST_TYPE_LOST_ADDRESS_0_REMAIN", 1))

	got, err := s.PeriodCounts(context.Background(), june)
	require.NoError(t, err)
	assert.Equal(t, map[change.Status]int{
		change.NewTypeNewAddress:          3,
		change.LostTypeLostAddress0Remain: 1,
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	called := false
	s := &PostgresStore{closeFn: func() { called = true }}
	require.NoError(t, s.Close())
	assert.True(t, called)
}
