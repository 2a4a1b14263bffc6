package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/ledger"
	"github.com/sells-group/adhs-etl/internal/model"
	"github.com/sells-group/adhs-etl/internal/provider"
)

var (
	june = model.NewPeriod(2025, 6)
	july = model.NewPeriod(2025, 7)
)

func testSchema(t *testing.T) *ledger.Schema {
	t.Helper()
	rng, err := ledger.ParseRange("2025-06", "2025-08")
	require.NoError(t, err)
	return ledger.NewSchema(rng, "")
}

// testLedger folds one small month into an empty ledger.
func testLedger(t *testing.T, schema *ledger.Schema, p model.Period) *ledger.Ledger {
	t.Helper()
	current := []model.ProviderRecord{
		{ProviderType: "NURSING_HOME", ProviderName: "Sunrise Care", Address: "123 Main St", City: "Phoenix", Month: int(p.Month), Year: p.Year},
		{ProviderType: "NURSING_HOME", ProviderName: "Desert Bloom", Address: "9 Elm St", City: "Mesa", Month: int(p.Month), Year: p.Year},
	}
	res := change.Analyze(change.Input{Period: p, Current: current})
	groups := provider.NewGrouper(provider.DefaultOptions()).Group(res.Records())
	l, err := ledger.NewBuilder(schema).Fold(nil, ledger.FoldInput{Analysis: res, Groups: groups})
	require.NoError(t, err)
	return l
}
