package pipeline

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adhs-etl/internal/fetcher"
	"github.com/sells-group/adhs-etl/internal/ledger"
)

const (
	ledgerSheet   = "Ledger"
	analysisSheet = "Analysis"
)

var analysisColumns = []string{
	ledger.ColProviderType,
	ledger.ColProvider,
	ledger.ColAddress,
	ledger.ColCity,
	ledger.ColZip,
	ledger.ColCapacity,
	ledger.ColLongitude,
	ledger.ColLatitude,
	ledger.ColCounty,
	ledger.ColMonth,
	ledger.ColYear,
	ledger.ColStatus,
	ledger.ColLeadType,
	ledger.ColGroupIndex,
	ledger.ColReinstatedFlag,
	ledger.ColMonthsSinceLost,
}

// WriteLedger runs the schema gate and writes l to path. No file is
// created when the gate fails.
func WriteLedger(path string, l *ledger.Ledger) error {
	if err := l.Validate(); err != nil {
		return eris.Wrap(err, "pipeline: refuse to export ledger")
	}
	if err := fetcher.WriteTable(path, ledgerSheet, l.Columns(), l.Rows()); err != nil {
		return eris.Wrap(err, "pipeline: write ledger")
	}
	zap.L().Info("pipeline: ledger exported",
		zap.String("path", path),
		zap.Int("rows", l.Len()),
		zap.Int("columns", len(l.Columns())),
	)
	return nil
}

// ExportLedger writes the latest persisted ledger to path.
func (p *Pipeline) ExportLedger(ctx context.Context, path string) error {
	l, _, err := p.Latest(ctx)
	if err != nil {
		return err
	}
	return WriteLedger(path, l)
}

// WriteAnalysis writes the month's annotated rows, one per current or lost
// license, to path.
func WriteAnalysis(path string, res *Result) error {
	rows := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		r := row.Record
		group := ""
		if i < len(res.GroupIDs) && res.GroupIDs[i] > 0 {
			group = strconv.Itoa(int(res.GroupIDs[i]))
		}
		months := ""
		if row.Reinstated {
			months = strconv.Itoa(row.MonthsSinceLost)
		}
		rows[i] = []string{
			r.ProviderType,
			r.ProviderName,
			r.Address,
			r.City,
			r.Zip,
			intCell(r.Capacity),
			floatCell(r.Longitude),
			floatCell(r.Latitude),
			r.County,
			strconv.Itoa(r.Month),
			strconv.Itoa(r.Year),
			string(row.Status),
			string(row.Lead),
			group,
			flagCell(row.Reinstated),
			months,
		}
	}
	if err := fetcher.WriteTable(path, analysisSheet, analysisColumns, rows); err != nil {
		return eris.Wrap(err, "pipeline: write analysis")
	}
	return nil
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func flagCell(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
