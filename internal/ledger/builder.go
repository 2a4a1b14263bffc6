package ledger

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/model"
	"github.com/sells-group/adhs-etl/internal/provider"
	"github.com/sells-group/adhs-etl/internal/resolve"
)

// FoldInput is one processed month ready to be folded into the ledger.
type FoldInput struct {
	Analysis *change.Result
	Groups   *provider.Assignment
}

// Builder folds analyzed months into ledger snapshots.
type Builder struct {
	schema *Schema
}

// NewBuilder creates a Builder for schema.
func NewBuilder(schema *Schema) *Builder {
	return &Builder{schema: schema}
}

// Schema returns the builder's layout.
func (b *Builder) Schema() *Schema { return b.schema }

// groupView is everything the month slots and tracking columns need to
// know about one provider group.
type groupView struct {
	id        resolve.GroupID
	members   map[model.RecordKey]bool
	dba       string
	counts    []int
	populated []bool
	movement  []string
	cities    int
	types     int
	trend     trend
}

// Fold returns a new ledger holding every row of prior outside the
// analyzed month plus one freshly computed row per analyzed record. prior
// may be nil. The result is validated before it is returned; prior is
// never modified.
func (b *Builder) Fold(prior *Ledger, in FoldInput) (*Ledger, error) {
	if in.Analysis == nil || in.Groups == nil {
		return nil, eris.New("ledger: fold requires an analysis and a group assignment")
	}
	period := in.Analysis.Period
	if !b.schema.Range().Contains(period) {
		return nil, eris.Wrapf(ErrPeriodOutOfRange, "%s not in %s..%s",
			period, b.schema.Range().Start, b.schema.Range().End)
	}

	base := New(b.schema)
	if prior != nil {
		checked := &Ledger{schema: b.schema, columns: prior.columns, rows: prior.rows}
		if err := checked.Validate(); err != nil {
			return nil, eris.Wrap(err, "ledger: prior snapshot")
		}
		base = checked.WithoutPeriod(period)
	}

	hist := base.History(period)
	active := activeByMonth(base, period)
	cur := make(map[model.RecordKey]bool)
	for _, row := range in.Analysis.Rows {
		if !row.Lost {
			cur[row.Record.RecordKey()] = true
		}
	}
	active[period.Index()] = cur

	views := b.groupViews(in, active, priorGroupCounts(base, period), period)

	out := &Ledger{
		schema:  b.schema,
		columns: b.schema.Columns(),
		rows:    make([][]string, 0, base.Len()+len(in.Analysis.Rows)),
	}
	out.rows = append(out.rows, base.rows...)
	for _, row := range in.Analysis.Rows {
		gv := views[in.Groups.Lookup(row.Record)]
		out.rows = append(out.rows, b.renderRow(row, gv, hist, period))
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}

	zap.L().Info("ledger: folded month",
		zap.String("period", period.String()),
		zap.Int("replaced", prior.lenOrZero()-base.Len()),
		zap.Int("appended", len(in.Analysis.Rows)),
		zap.Int("rows", out.Len()),
	)
	return out, nil
}

func (l *Ledger) lenOrZero() int {
	if l == nil {
		return 0
	}
	return l.Len()
}

// activeByMonth indexes the grouping pairs licensed in each month before p.
func activeByMonth(l *Ledger, p model.Period) map[int]map[model.RecordKey]bool {
	out := make(map[int]map[model.RecordKey]bool)
	for i := range l.rows {
		rp, ok := l.RowPeriod(i)
		if !ok || !rp.Before(p) {
			continue
		}
		idx := rp.Index()
		if out[idx] == nil {
			out[idx] = make(map[model.RecordKey]bool)
		}
		if l.RowStatus(i).IsLost() {
			continue
		}
		out[idx][l.Record(i).RecordKey()] = true
	}
	return out
}

// priorGroup is the group a pair belonged to in an earlier month, with the
// address count recorded for that group then.
type priorGroup struct {
	index string
	count int
}

// priorGroupCounts indexes, per month before p, the group and group address
// count each pair was written with.
func priorGroupCounts(l *Ledger, p model.Period) map[int]map[model.RecordKey]priorGroup {
	out := make(map[int]map[model.RecordKey]priorGroup)
	for i := range l.rows {
		rp, ok := l.RowPeriod(i)
		if !ok || !rp.Before(p) {
			continue
		}
		n, err := strconv.Atoi(l.Get(i, ColGroupAddressCount))
		if err != nil {
			continue
		}
		idx := rp.Index()
		if out[idx] == nil {
			out[idx] = make(map[model.RecordKey]priorGroup)
		}
		out[idx][l.Record(i).RecordKey()] = priorGroup{index: l.Get(i, ColGroupIndex), count: n}
	}
	return out
}

// pastCount is the address count of a group in an earlier month: the sum of
// the counts recorded then for every distinct earlier group its members
// belonged to. ok is false when none of the members was written that month.
func pastCount(prior map[model.RecordKey]priorGroup, members map[model.RecordKey]bool) (int, bool) {
	seen := make(map[string]bool)
	total := 0
	for k := range members {
		pg, ok := prior[k]
		if !ok || seen[pg.index] {
			continue
		}
		seen[pg.index] = true
		total += pg.count
	}
	return total, len(seen) > 0
}

func (b *Builder) groupViews(in FoldInput, active map[int]map[model.RecordKey]bool, prior map[int]map[model.RecordKey]priorGroup, period model.Period) map[resolve.GroupID]*groupView {
	months := b.schema.Range().Months()
	views := make(map[resolve.GroupID]*groupView, len(in.Groups.Members))

	cities := make(map[resolve.GroupID]map[string]bool)
	types := make(map[resolve.GroupID]map[string]bool)
	for _, row := range in.Analysis.Rows {
		if row.Lost {
			continue
		}
		id := in.Groups.Lookup(row.Record)
		if cities[id] == nil {
			cities[id] = make(map[string]bool)
			types[id] = make(map[string]bool)
		}
		if c := strings.ToUpper(strings.TrimSpace(row.Record.City)); c != "" {
			cities[id][c] = true
		}
		types[id][row.Record.Key().ProviderType] = true
	}

	for id, keys := range in.Groups.Members {
		gv := &groupView{
			id:        id,
			members:   make(map[model.RecordKey]bool, len(keys)),
			counts:    make([]int, len(months)),
			populated: make([]bool, len(months)),
			movement:  make([]string, len(months)),
			cities:    len(cities[id]),
			types:     len(types[id]),
		}
		names := make(map[string]bool)
		for _, k := range keys {
			gv.members[k] = true
			if k.ProviderName != "" {
				names[k.ProviderName] = true
			}
		}
		gv.dba = joinSorted(names)

		prev := -1
		for s, m := range months {
			if m.After(period) {
				break
			}
			set, ok := active[m.Index()]
			if !ok {
				gv.movement[s] = MovementNoMovement
				continue
			}
			gv.populated[s] = true
			if n, ok := pastCount(prior[m.Index()], gv.members); ok {
				gv.counts[s] = n
			} else {
				gv.counts[s] = distinctAddresses(set, gv.members)
			}
			switch {
			case prev < 0 || gv.counts[s] == gv.counts[prev]:
				gv.movement[s] = MovementNoMovement
			case gv.counts[s] > gv.counts[prev]:
				gv.movement[s] = MovementIncreased
			default:
				gv.movement[s] = MovementDecreased
			}
			prev = s
		}
		gv.trend = computeTrend(gv)
		views[id] = gv
	}
	return views
}

func distinctAddresses(active, members map[model.RecordKey]bool) int {
	addrs := make(map[string]bool)
	for k := range members {
		if active[k] {
			addrs[k.Address] = true
		}
	}
	return len(addrs)
}

func joinSorted(set map[string]bool) string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func (b *Builder) renderRow(row change.Row, gv *groupView, hist *change.History, period model.Period) []string {
	s := b.schema
	cells := make([]string, s.ColumnCount())
	set := func(col, v string) { cells[s.mustIndex(col)] = v }

	r := row.Record
	set(ColMonth, strconv.Itoa(int(period.Month)))
	set(ColYear, strconv.Itoa(period.Year))
	set(ColProviderType, r.ProviderType)
	set(ColProvider, r.ProviderName)
	set(ColAddress, r.Address)
	set(ColCity, r.City)
	set(ColZip, r.Zip)
	set(ColFullAddress, r.FullAddress())
	set(ColCapacity, formatInt(r.Capacity))
	set(ColLongitude, formatFloat(r.Longitude))
	set(ColLatitude, formatFloat(r.Latitude))
	set(ColCounty, r.County)
	set(ColStatus, string(row.Status))
	set(ColLeadType, string(row.Lead))

	if gv == nil {
		gv = &groupView{}
	}
	cur := -1
	for i, m := range s.Range().Months() {
		if m == period {
			cur = i
		}
	}
	addrCount := 0
	if cur >= 0 && len(gv.counts) > cur {
		addrCount = gv.counts[cur]
	}
	set(ColGroupIndex, strconv.Itoa(int(gv.id)))
	set(ColGroupDBA, gv.dba)
	set(ColGroupAddressCount, strconv.Itoa(addrCount))

	for i, m := range s.Range().Months() {
		if m.After(period) || i >= len(gv.counts) {
			set(CountColumn(m), s.NotApplicable())
			set(ToPrevColumn(m), s.NotApplicable())
			set(SummaryColumn(m), s.NotApplicable())
			continue
		}
		set(CountColumn(m), strconv.Itoa(gv.counts[i]))
		set(ToPrevColumn(m), gv.movement[i])
		set(SummaryColumn(m), summary(gv.counts[i], gv.dba, gv.id))
	}

	b.renderTracking(set, row, gv, hist, period)
	return cells
}

// summary is the composite SUMMARY cell: address count, DBA names and
// group id.
func summary(count int, dba string, id resolve.GroupID) string {
	return strings.Join([]string{strconv.Itoa(count), dba, strconv.Itoa(int(id))}, ", ")
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
