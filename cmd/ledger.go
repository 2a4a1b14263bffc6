package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adhs-etl/internal/ledger"
	"github.com/sells-group/adhs-etl/internal/pipeline"
	"github.com/sells-group/adhs-etl/internal/store"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and export the historical provider ledger",
}

// -- ledger status --

var ledgerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger snapshots and per-month row counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("ledger"); err != nil {
			return err
		}
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snaps, err := st.ListSnapshots(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "ledger status")
		}
		if len(snaps) == 0 {
			fmt.Fprintln(os.Stderr, "No ledger snapshots found.")
			return nil
		}
		formatSnapshots(os.Stdout, snaps)

		p, err := pipeline.NewFromConfig(cfg, st)
		if err != nil {
			return err
		}
		l, _, err := p.Latest(ctx)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(os.Stdout)
		return formatPeriods(ctx, os.Stdout, st, l)
	},
}

// -- ledger export --

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the latest ledger snapshot to a workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("ledger"); err != nil {
			return err
		}
		ctx := cmd.Context()
		output, _ := cmd.Flags().GetString("output")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := pipeline.NewFromConfig(cfg, st)
		if err != nil {
			return err
		}
		return p.ExportLedger(ctx, output)
	},
}

func formatSnapshots(out io.Writer, snaps []store.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPERIOD\tROWS\tCOLUMNS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t-------\t-------")
	for _, s := range snaps {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			truncateID(s.ID),
			s.Period,
			s.RowCount,
			s.ColumnCount,
			s.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func formatPeriods(ctx context.Context, out io.Writer, st store.LedgerStore, l *ledger.Ledger) error {
	rowCounts := l.RowCounts()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PERIOD\tROWS\tACTIVE\tLOST")
	_, _ = fmt.Fprintln(w, "------\t----\t------\t----")
	for _, p := range l.Periods() {
		counts, err := st.PeriodCounts(ctx, p)
		if err != nil {
			return eris.Wrapf(err, "ledger status: counts for %s", p)
		}
		active, lost := 0, 0
		for status, n := range counts {
			if status.IsLost() {
				lost += n
			} else {
				active += n
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", p, rowCounts[p], active, lost)
	}
	return w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	ledgerStatusCmd.Flags().Int("limit", 10, "max number of snapshots to display")
	ledgerExportCmd.Flags().String("output", "", "output file (.xlsx or .csv)")
	_ = ledgerExportCmd.MarkFlagRequired("output")

	ledgerCmd.AddCommand(ledgerStatusCmd)
	ledgerCmd.AddCommand(ledgerExportCmd)
	rootCmd.AddCommand(ledgerCmd)
}
