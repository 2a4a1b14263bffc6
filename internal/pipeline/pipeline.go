// Package pipeline runs one monthly ingest end to end: load the latest
// ledger snapshot, classify the month, group providers, fold the month into
// the ledger and persist the new snapshot.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/config"
	"github.com/sells-group/adhs-etl/internal/ledger"
	"github.com/sells-group/adhs-etl/internal/model"
	"github.com/sells-group/adhs-etl/internal/provider"
	"github.com/sells-group/adhs-etl/internal/resolve"
	"github.com/sells-group/adhs-etl/internal/store"
)

// Pipeline orchestrates monthly ledger updates.
type Pipeline struct {
	store   store.LedgerStore
	builder *ledger.Builder
	grouper *provider.Grouper
}

// New creates a Pipeline over st for the given column contract.
func New(st store.LedgerStore, schema *ledger.Schema, opts provider.Options) *Pipeline {
	return &Pipeline{
		store:   st,
		builder: ledger.NewBuilder(schema),
		grouper: provider.NewGrouper(opts),
	}
}

// NewFromConfig builds the schema and grouping options from cfg.
func NewFromConfig(cfg *config.Config, st store.LedgerStore) (*Pipeline, error) {
	schema, err := SchemaFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts := provider.Options{
		NameThreshold:  cfg.Grouping.NameThreshold,
		SubstringMin:   cfg.Grouping.SubstringMin,
		AddressPrefix:  cfg.Grouping.AddressPrefix,
		Window:         cfg.Grouping.Window,
		MaxClusterSize: cfg.Grouping.MaxClusterSize,
	}
	return New(st, schema, opts), nil
}

// SchemaFromConfig derives the ledger column contract from the configured
// month range.
func SchemaFromConfig(cfg *config.Config) (*ledger.Schema, error) {
	rng, err := ledger.ParseRange(cfg.Ledger.Start, cfg.Ledger.End)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: ledger range")
	}
	return ledger.NewSchema(rng, cfg.Ledger.NotApplicable), nil
}

// Schema returns the column contract the pipeline writes.
func (p *Pipeline) Schema() *ledger.Schema { return p.builder.Schema() }

// Input is one month's batch. A nil Previous is derived from the latest
// month already in the ledger; a non-nil empty Previous means the previous
// month had no licenses.
type Input struct {
	Period   model.Period
	Current  []model.ProviderRecord
	Previous []model.ProviderRecord
}

// Result summarizes one run. GroupIDs is parallel to Rows.
type Result struct {
	SnapshotID     string                `json:"snapshot_id"`
	Period         model.Period          `json:"period"`
	PreviousPeriod *model.Period         `json:"previous_period,omitempty"`
	Rows           []change.Row          `json:"rows"`
	GroupIDs       []resolve.GroupID     `json:"group_ids"`
	Groups         int                   `json:"groups"`
	GroupStats     provider.Stats        `json:"group_stats"`
	Counts         map[change.Status]int `json:"counts"`
	Replaced       int                   `json:"replaced"`
	Ledger         *ledger.Ledger        `json:"-"`
	Duration       int64                 `json:"duration_ms"`
}

// Run folds one month into the ledger and persists the new snapshot.
// Nothing is written when any step fails.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	schema := p.Schema()
	if !schema.Range().Contains(in.Period) {
		return nil, eris.Wrapf(ledger.ErrPeriodOutOfRange, "pipeline: %s not in %s..%s",
			in.Period, schema.Range().Start, schema.Range().End)
	}

	log := zap.L().With(zap.String("component", "pipeline"), zap.String("period", in.Period.String()))
	log.Info("pipeline: starting monthly run", zap.Int("current", len(in.Current)))

	prior, snap, err := store.LoadLatest(ctx, p.store, schema)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load latest snapshot")
	}
	if prior == nil {
		prior = ledger.New(schema)
	} else {
		log.Info("pipeline: loaded snapshot",
			zap.String("snapshot_id", snap.ID),
			zap.String("snapshot_period", snap.Period.String()),
			zap.Int("rows", prior.Len()),
		)
	}

	base := prior.WithoutPeriod(in.Period)
	result := &Result{
		Period:   in.Period,
		Replaced: prior.Len() - base.Len(),
	}

	previous := in.Previous
	if previous == nil {
		if prev, ok := base.PreviousPeriod(in.Period); ok {
			previous = base.ActiveRecords(prev)
			result.PreviousPeriod = &prev
		}
	}

	analysis := change.Analyze(change.Input{
		Period:   in.Period,
		Current:  in.Current,
		Previous: previous,
		History:  base.History(in.Period),
	})

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled before grouping")
	}

	groups := p.grouper.Group(analysis.Records())
	log.Debug("pipeline: grouping stats",
		zap.Int("unique_pairs", groups.Stats.UniquePairs),
		zap.Int("fuzzy_compared", groups.Stats.FuzzyCompared),
		zap.Int("fuzzy_merges", groups.Stats.FuzzyMerges),
		zap.Int("skipped_by_cap", groups.Stats.SkippedByCap),
	)

	next, err := p.builder.Fold(prior, ledger.FoldInput{Analysis: analysis, Groups: groups})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: fold month")
	}

	saved, err := p.store.SaveSnapshot(ctx, in.Period, next, analysis.Counts)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: save snapshot")
	}

	result.SnapshotID = saved.ID
	result.Rows = analysis.Rows
	result.GroupIDs = groups.Assign(analysis.Records())
	result.Groups = groups.Stats.Groups
	result.GroupStats = groups.Stats
	result.Counts = analysis.Counts
	result.Ledger = next
	result.Duration = time.Since(start).Milliseconds()

	fields := []zap.Field{
		zap.String("snapshot_id", saved.ID),
		zap.Int("rows_in", len(in.Current)),
		zap.Int("groups", result.Groups),
		zap.Int("ledger_rows", next.Len()),
		zap.Int("replaced", result.Replaced),
		zap.Int64("duration_ms", result.Duration),
	}
	for _, st := range change.AllStatuses() {
		if n := analysis.Counts[st]; n > 0 {
			fields = append(fields, zap.Int(string(st), n))
		}
	}
	log.Info("pipeline: monthly run complete", fields...)

	return result, nil
}

// Latest returns the newest ledger, or an empty one when nothing has been
// persisted yet.
func (p *Pipeline) Latest(ctx context.Context) (*ledger.Ledger, *store.Snapshot, error) {
	l, snap, err := store.LoadLatest(ctx, p.store, p.Schema())
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: load latest snapshot")
	}
	if l == nil {
		return ledger.New(p.Schema()), nil, nil
	}
	return l, snap, nil
}
