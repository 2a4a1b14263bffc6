package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adhs-etl/internal/model"
)

// Report summarizes one mapping pass.
type Report struct {
	Rows           int     `json:"rows"`
	Mapped         int     `json:"mapped"`
	Skipped        int     `json:"skipped"`
	InvalidNumbers int     `json:"invalid_numbers"`
	Missing        []Field `json:"missing,omitempty"`
}

// MapProviderRows maps a header-first table into provider records for
// period. Rows with neither a name nor an address are skipped. Optional
// numeric cells that are blank or unparseable become nil. defaultType fills
// the provider type when the sheet has no type column or the cell is blank.
func MapProviderRows(rows [][]string, fm FieldMap, period model.Period, defaultType string) ([]model.ProviderRecord, Report, error) {
	var rep Report
	if len(rows) == 0 {
		return nil, rep, eris.New("ingest: empty sheet")
	}
	cols := fm.Resolve(rows[0])
	for _, f := range Fields() {
		if _, ok := cols[f]; !ok {
			rep.Missing = append(rep.Missing, f)
		}
	}
	_, hasName := cols[FieldProviderName]
	_, hasAddr := cols[FieldAddress]
	if !hasName && !hasAddr {
		return nil, rep, eris.Errorf("ingest: header has neither a provider name nor an address column: %v", rows[0])
	}

	out := make([]model.ProviderRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rep.Rows++
		get := func(f Field) string {
			idx, ok := cols[f]
			if !ok || idx >= len(row) {
				return ""
			}
			return cleanCell(row[idx])
		}

		r := model.ProviderRecord{
			ProviderName: strings.ToUpper(get(FieldProviderName)),
			Address:      strings.ToUpper(get(FieldAddress)),
			City:         strings.ToUpper(get(FieldCity)),
			Zip:          cleanZip(get(FieldZip)),
			ProviderType: strings.ToUpper(get(FieldProviderType)),
			County:       strings.ToUpper(get(FieldCounty)),
			Month:        int(period.Month),
			Year:         period.Year,
		}
		if r.ProviderName == "" && r.Address == "" {
			rep.Skipped++
			continue
		}
		if r.ProviderType == "" {
			r.ProviderType = strings.ToUpper(strings.TrimSpace(defaultType))
		}

		var bad bool
		r.Capacity, bad = parseIntPtr(get(FieldCapacity))
		rep.InvalidNumbers += boolInt(bad)
		r.Latitude, bad = parseFloatPtr(get(FieldLatitude))
		rep.InvalidNumbers += boolInt(bad)
		r.Longitude, bad = parseFloatPtr(get(FieldLongitude))
		rep.InvalidNumbers += boolInt(bad)

		out = append(out, r)
	}
	rep.Mapped = len(out)

	zap.L().Info("ingest: mapped provider rows",
		zap.String("period", period.String()),
		zap.Int("rows", rep.Rows),
		zap.Int("mapped", rep.Mapped),
		zap.Int("skipped", rep.Skipped),
		zap.Int("invalid_numbers", rep.InvalidNumbers),
	)
	return out, rep, nil
}

func cleanCell(s string) string {
	return strings.Join(strings.Fields(strings.Trim(strings.TrimSpace(s), `"`)), " ")
}

// cleanZip drops a spreadsheet's numeric ".0" suffix and ZIP+4 extensions.
func cleanZip(s string) string {
	s = strings.TrimSuffix(s, ".0")
	if i := strings.IndexByte(s, '-'); i == 5 {
		s = s[:5]
	}
	return s
}

// parseIntPtr parses a count such as "12", "12.0" or "1,200". The second
// result reports a non-blank value that could not be parsed.
func parseIntPtr(s string) (*int, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return &v, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, true
	}
	v := int(f)
	return &v, false
}

func parseFloatPtr(s string) (*float64, bool) {
	if s == "" {
		return nil, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, true
	}
	return &v, false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
