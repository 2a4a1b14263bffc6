package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/fetcher"
	"github.com/sells-group/adhs-etl/internal/ingest"
	"github.com/sells-group/adhs-etl/internal/model"
	"github.com/sells-group/adhs-etl/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fold one month of ADHS licenses into the ledger",
	Long:  "Loads the month's licensing workbook (local file, ZIP archive or URL), classifies it against the previous month and the ledger history, groups providers and writes a new ledger snapshot.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		ctx := cmd.Context()

		monthStr, _ := cmd.Flags().GetString("month")
		input, _ := cmd.Flags().GetString("input")
		previousPath, _ := cmd.Flags().GetString("previous")
		providerType, _ := cmd.Flags().GetString("provider-type")
		exportPath, _ := cmd.Flags().GetString("export")
		analysisPath, _ := cmd.Flags().GetString("analysis")
		asJSON, _ := cmd.Flags().GetBool("json")

		period, err := model.ParsePeriod(monthStr)
		if err != nil {
			return err
		}
		if providerType == "" {
			providerType = cfg.Ingest.ProviderType
		}

		fm := ingest.DefaultFieldMap()
		if cfg.Ingest.FieldMap != "" {
			fm, err = ingest.LoadFieldMap(cfg.Ingest.FieldMap)
			if err != nil {
				return err
			}
		}

		workDir, cleanup, err := runWorkDir()
		if err != nil {
			return err
		}
		defer cleanup()

		loader := &batchLoader{
			fieldMap:     fm,
			providerType: providerType,
			workDir:      workDir,
			downloader: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				UserAgent:         cfg.Fetch.UserAgent,
				Timeout:           time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
				RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			}),
		}

		in := pipeline.Input{Period: period}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			recs, err := loader.load(gctx, input, period)
			in.Current = recs
			return err
		})
		if previousPath != "" {
			g.Go(func() error {
				recs, err := loader.load(gctx, previousPath, period.Add(-1))
				if recs == nil && err == nil {
					recs = []model.ProviderRecord{}
				}
				in.Previous = recs
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := pipeline.NewFromConfig(cfg, st)
		if err != nil {
			return err
		}

		res, err := p.Run(ctx, in)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		if exportPath != "" {
			if err := pipeline.WriteLedger(exportPath, res.Ledger); err != nil {
				return err
			}
		}
		if analysisPath != "" {
			if err := pipeline.WriteAnalysis(analysisPath, res); err != nil {
				return err
			}
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		formatRunSummary(os.Stdout, res)
		return nil
	},
}

// batchLoader turns one input location into mapped provider records.
type batchLoader struct {
	fieldMap     ingest.FieldMap
	providerType string
	workDir      string
	downloader   fetcher.Downloader
}

func (l *batchLoader) load(ctx context.Context, location string, period model.Period) ([]model.ProviderRecord, error) {
	path, err := fetcher.Locate(ctx, location, l.workDir, l.downloader)
	if err != nil {
		return nil, err
	}
	rows, err := fetcher.ReadTable(path)
	if err != nil {
		return nil, err
	}
	recs, report, err := ingest.MapProviderRows(rows, l.fieldMap, period, l.providerType)
	if err != nil {
		return nil, eris.Wrapf(err, "map %s", location)
	}

	log := zap.L().With(zap.String("input", location), zap.String("period", period.String()))
	if len(report.Missing) > 0 {
		missing := make([]string, len(report.Missing))
		for i, f := range report.Missing {
			missing[i] = string(f)
		}
		log.Warn("input is missing columns", zap.Strings("fields", missing))
	}
	log.Info("input mapped",
		zap.Int("rows", report.Rows),
		zap.Int("mapped", report.Mapped),
		zap.Int("skipped", report.Skipped),
		zap.Int("invalid_numbers", report.InvalidNumbers),
	)
	return recs, nil
}

func runWorkDir() (string, func(), error) {
	if cfg.Ingest.WorkDir != "" {
		if err := os.MkdirAll(cfg.Ingest.WorkDir, 0o755); err != nil {
			return "", nil, eris.Wrap(err, "create work dir")
		}
		return cfg.Ingest.WorkDir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "adhs-etl-*")
	if err != nil {
		return "", nil, eris.Wrap(err, "create temp work dir")
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func formatRunSummary(out io.Writer, res *pipeline.Result) {
	_, _ = fmt.Fprintf(out, "Period:    %s\n", res.Period)
	_, _ = fmt.Fprintf(out, "Snapshot:  %s\n", res.SnapshotID)
	if res.PreviousPeriod != nil {
		_, _ = fmt.Fprintf(out, "Previous:  %s\n", res.PreviousPeriod)
	}
	_, _ = fmt.Fprintf(out, "Groups:    %d\n", res.Groups)
	_, _ = fmt.Fprintf(out, "Ledger:    %d rows (%d replaced)\n\n", res.Ledger.Len(), res.Replaced)
	formatStatusCounts(out, res.Counts)
}

func formatStatusCounts(out io.Writer, counts map[change.Status]int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tLEAD_TYPE\tCOUNT")
	_, _ = fmt.Fprintln(w, "------\t---------\t-----")
	for _, st := range change.AllStatuses() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", st, st.LeadType(), counts[st])
	}
	_ = w.Flush()
}

func init() {
	runCmd.Flags().String("month", "", "month being processed (YYYY-MM)")
	runCmd.Flags().String("input", "", "monthly licensing workbook: .xlsx, .csv, .zip or URL")
	runCmd.Flags().String("previous", "", "previous month's workbook (default: taken from the ledger)")
	runCmd.Flags().String("provider-type", "", "provider type for sheets without a type column")
	runCmd.Flags().String("export", "", "write the updated ledger to this .xlsx or .csv file")
	runCmd.Flags().String("analysis", "", "write the month's annotated rows to this .xlsx or .csv file")
	runCmd.Flags().Bool("json", false, "print the run result as JSON")
	_ = runCmd.MarkFlagRequired("month")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}
