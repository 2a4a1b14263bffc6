package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/config"
	"github.com/sells-group/adhs-etl/internal/ledger"
	"github.com/sells-group/adhs-etl/internal/model"
	"github.com/sells-group/adhs-etl/internal/provider"
	"github.com/sells-group/adhs-etl/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var (
	june = model.NewPeriod(2025, 6)
	july = model.NewPeriod(2025, 7)
	aug  = model.NewPeriod(2025, 8)
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func newTestPipeline(t *testing.T, st store.LedgerStore, start, end string) *Pipeline {
	t.Helper()
	rng, err := ledger.ParseRange(start, end)
	require.NoError(t, err)
	return New(st, ledger.NewSchema(rng, ""), provider.DefaultOptions())
}

func sunrise(p model.Period) model.ProviderRecord {
	return model.ProviderRecord{
		ProviderType: "ASSISTED_LIVING_HOME",
		ProviderName: "SUNRISE CARE",
		Address:      "123 MAIN ST",
		City:         "PHOENIX",
		Month:        int(p.Month),
		Year:         p.Year,
	}
}

func desertBloom(p model.Period) model.ProviderRecord {
	return model.ProviderRecord{
		ProviderType: "ASSISTED_LIVING_HOME",
		ProviderName: "DESERT BLOOM",
		Address:      "9 ELM ST",
		City:         "MESA",
		Month:        int(p.Month),
		Year:         p.Year,
	}
}

func statusOf(t *testing.T, res *Result, name string) change.Status {
	t.Helper()
	for _, row := range res.Rows {
		if row.Record.ProviderName == name {
			return row.Status
		}
	}
	t.Fatalf("no row for %s", name)
	return ""
}

func TestRun_FirstMonth(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPipeline(t, st, "2025-06", "2025-08")

	res, err := p.Run(ctx, Input{Period: june, Current: []model.ProviderRecord{sunrise(june), desertBloom(june)}})
	require.NoError(t, err)

	assert.NotEmpty(t, res.SnapshotID)
	assert.Nil(t, res.PreviousPeriod)
	assert.Equal(t, 2, res.Counts[change.NewTypeNewAddress])
	assert.Equal(t, 2, res.Groups)
	assert.Len(t, res.GroupIDs, len(res.Rows))
	assert.Equal(t, 2, res.Ledger.Len())
	assert.Len(t, res.Ledger.Columns(), ledger.ExpectedColumnCount(p.Schema().Range()))

	snap, err := st.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, res.SnapshotID, snap.ID)
	assert.Equal(t, june, snap.Period)
}

func TestRun_DerivesPreviousMonth(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPipeline(t, st, "2025-06", "2025-08")

	_, err := p.Run(ctx, Input{Period: june, Current: []model.ProviderRecord{sunrise(june), desertBloom(june)}})
	require.NoError(t, err)

	res, err := p.Run(ctx, Input{Period: july, Current: []model.ProviderRecord{sunrise(july)}})
	require.NoError(t, err)

	require.NotNil(t, res.PreviousPeriod)
	assert.Equal(t, june, *res.PreviousPeriod)
	assert.Equal(t, change.ExistingTypeExistingAddress, statusOf(t, res, "SUNRISE CARE"))
	assert.Equal(t, change.LostTypeLostAddress0Remain, statusOf(t, res, "DESERT BLOOM"))
	assert.Equal(t, 4, res.Ledger.Len())

	counts, err := st.PeriodCounts(ctx, july)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[change.ExistingTypeExistingAddress])
	assert.Equal(t, 1, counts[change.LostTypeLostAddress0Remain])
}

func TestRun_ExplicitEmptyPreviousTreatsAllAsNew(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPipeline(t, st, "2025-06", "2025-08")

	_, err := p.Run(ctx, Input{Period: june, Current: []model.ProviderRecord{sunrise(june)}})
	require.NoError(t, err)

	res, err := p.Run(ctx, Input{
		Period:   july,
		Current:  []model.ProviderRecord{sunrise(july)},
		Previous: []model.ProviderRecord{},
	})
	require.NoError(t, err)

	assert.Nil(t, res.PreviousPeriod)
	// Seen in June but absent from the supplied previous month.
	assert.Equal(t, change.ReinstatedExistingAddress, statusOf(t, res, "SUNRISE CARE"))
}

func TestRun_ReprocessingReplacesMonth(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPipeline(t, st, "2025-06", "2025-08")

	_, err := p.Run(ctx, Input{Period: june, Current: []model.ProviderRecord{sunrise(june), desertBloom(june)}})
	require.NoError(t, err)
	first, err := p.Run(ctx, Input{Period: july, Current: []model.ProviderRecord{sunrise(july)}})
	require.NoError(t, err)
	second, err := p.Run(ctx, Input{Period: july, Current: []model.ProviderRecord{sunrise(july)}})
	require.NoError(t, err)

	assert.Equal(t, 0, first.Replaced)
	assert.Equal(t, 2, second.Replaced)
	assert.Equal(t, first.Ledger.Rows(), second.Ledger.Rows())
	assert.NotEqual(t, first.SnapshotID, second.SnapshotID)

	snaps, err := st.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 3)
}

func TestRun_ReprocessingReplacesPeriodCounts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPipeline(t, st, "2025-06", "2025-08")

	_, err := p.Run(ctx, Input{Period: june, Current: []model.ProviderRecord{sunrise(june), desertBloom(june)}})
	require.NoError(t, err)
	_, err = p.Run(ctx, Input{Period: july, Current: []model.ProviderRecord{sunrise(july)}})
	require.NoError(t, err)

	// The corrected July file still lists Desert Bloom, so nothing is lost.
	_, err = p.Run(ctx, Input{Period: july, Current: []model.ProviderRecord{sunrise(july), desertBloom(july)}})
	require.NoError(t, err)

	counts, err := st.PeriodCounts(ctx, july)
	require.NoError(t, err)
	assert.Equal(t, map[change.Status]int{change.ExistingTypeExistingAddress: 2}, counts)
}

func TestRun_Reinstated(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPipeline(t, st, "2025-06", "2025-08")

	_, err := p.Run(ctx, Input{Period: june, Current: []model.ProviderRecord{sunrise(june), desertBloom(june)}})
	require.NoError(t, err)
	_, err = p.Run(ctx, Input{Period: july, Current: []model.ProviderRecord{sunrise(july)}})
	require.NoError(t, err)

	res, err := p.Run(ctx, Input{Period: aug, Current: []model.ProviderRecord{sunrise(aug), desertBloom(aug)}})
	require.NoError(t, err)

	assert.Equal(t, change.ReinstatedExistingAddress, statusOf(t, res, "DESERT BLOOM"))
	for _, row := range res.Rows {
		if row.Record.ProviderName == "DESERT BLOOM" {
			assert.True(t, row.Reinstated)
			assert.Equal(t, 1, row.MonthsSinceLost)
		}
	}
}

func TestRun_PeriodOutOfRange(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := newTestPipeline(t, st, "2025-06", "2025-08")

	sept := model.NewPeriod(2025, 9)
	_, err := p.Run(ctx, Input{Period: sept, Current: []model.ProviderRecord{sunrise(sept)}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ledger.ErrPeriodOutOfRange))

	snap, err := st.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRun_SnapshotWithDifferentContract(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	narrow := newTestPipeline(t, st, "2025-06", "2025-08")
	_, err := narrow.Run(ctx, Input{Period: june, Current: []model.ProviderRecord{sunrise(june)}})
	require.NoError(t, err)

	wide := newTestPipeline(t, st, "2025-06", "2025-12")
	_, err = wide.Run(ctx, Input{Period: july, Current: []model.ProviderRecord{sunrise(july)}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ledger.ErrColumnCount))

	snaps, err := st.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestRun_CancelledContext(t *testing.T) {
	st := newTestStore(t)
	p := newTestPipeline(t, st, "2025-06", "2025-08")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Input{Period: june, Current: []model.ProviderRecord{sunrise(june)}})
	require.Error(t, err)
}

func TestLatest_EmptyStore(t *testing.T) {
	st := newTestStore(t)
	p := newTestPipeline(t, st, "2025-06", "2025-08")

	l, snap, err := p.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, p.Schema().Columns(), l.Columns())
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Ledger.Start = "2022-09"
	cfg.Ledger.End = "2025-12"
	cfg.Grouping.NameThreshold = 85
	cfg.Grouping.Window = 30

	p, err := NewFromConfig(cfg, newTestStore(t))
	require.NoError(t, err)
	assert.Equal(t, 155, p.Schema().ColumnCount())

	cfg.Ledger.End = "2022-01"
	_, err = NewFromConfig(cfg, newTestStore(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: ledger range")
}
