package ingest

import (
	"strings"

	"github.com/sells-group/adhs-etl/internal/family"
)

// MapCorporateRows turns a header-first registry extract into one record
// per data row keyed by the trimmed header text. Fully blank rows are
// dropped; short rows leave their trailing columns unset.
func MapCorporateRows(rows [][]string) []family.CorporateRecord {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	out := make([]family.CorporateRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(family.CorporateRecord, len(header))
		empty := true
		for i, h := range header {
			if h == "" || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v != "" {
				empty = false
			}
			rec[h] = v
		}
		if !empty {
			out = append(out, rec)
		}
	}
	return out
}
