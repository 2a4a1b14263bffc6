package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rowColumns = []string{"snapshot_id", "row_idx", "cells"}

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "ledger_rows", rowColumns, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_NoColumns(t *testing.T) {
	_, err := CopyFrom(context.Background(), nil, "ledger_rows", nil, [][]any{{"s1", 0, "[]"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"ledger_rows"}, rowColumns).WillReturnResult(3)

	rows := [][]any{{"s1", 0, `["a"]`}, {"s1", 1, `["b"]`}, {"s1", 2, `["c"]`}}
	n, err := CopyFrom(context.Background(), mock, "ledger_rows", rowColumns, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"adhs", "ledger_rows"}, rowColumns).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "adhs.ledger_rows", rowColumns, [][]any{{"s1", 0, "[]"}})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_ShortCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"ledger_rows"}, rowColumns).WillReturnResult(1)

	_, err = CopyFrom(context.Background(), mock, "ledger_rows", rowColumns, [][]any{{"s1", 0, "[]"}, {"s1", 1, "[]"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copied 1 of 2 rows")
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"ledger_rows"}, rowColumns).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "ledger_rows", rowColumns, [][]any{{"s1", 0, "[]"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO ledger_rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTableIdentifier(t *testing.T) {
	assert.Equal(t, pgx.Identifier{"ledger_rows"}, tableIdentifier("ledger_rows"))
	assert.Equal(t, pgx.Identifier{"adhs", "period_counts"}, tableIdentifier("adhs.period_counts"))
	assert.Equal(t, `"adhs"."period_counts"`, sanitizeTable("adhs.period_counts"))
}
