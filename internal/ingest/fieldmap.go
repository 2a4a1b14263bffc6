// Package ingest maps raw spreadsheet rows into the normalized records the
// analysis packages consume.
package ingest

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field is a canonical provider attribute.
type Field string

const (
	FieldProviderName Field = "provider_name"
	FieldAddress      Field = "address"
	FieldCity         Field = "city"
	FieldZip          Field = "zip"
	FieldProviderType Field = "provider_type"
	FieldCapacity     Field = "capacity"
	FieldLatitude     Field = "latitude"
	FieldLongitude    Field = "longitude"
	FieldCounty       Field = "county"
)

// Fields lists every canonical field in output order.
func Fields() []Field {
	return []Field{
		FieldProviderName, FieldAddress, FieldCity, FieldZip, FieldProviderType,
		FieldCapacity, FieldLatitude, FieldLongitude, FieldCounty,
	}
}

// FieldMap lists the header aliases accepted for each field. Matching is
// case-insensitive and ignores repeated whitespace and underscores.
type FieldMap map[Field][]string

// DefaultFieldMap covers the headers seen in the monthly licensing exports.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		FieldProviderName: {"PROVIDER", "PROVIDER NAME", "FACILITY NAME", "NAME", "LICENSEE"},
		FieldAddress:      {"ADDRESS", "PHYSICAL ADDRESS", "STREET ADDRESS", "ADDRESS1", "FACILITY ADDRESS"},
		FieldCity:         {"CITY", "FACILITY CITY"},
		FieldZip:          {"ZIP", "ZIP CODE", "ZIPCODE", "POSTAL CODE"},
		FieldProviderType: {"PROVIDER TYPE", "LICENSE TYPE", "FACILITY TYPE", "TYPE"},
		FieldCapacity:     {"CAPACITY", "LICENSED CAPACITY", "BEDS", "TOTAL CAPACITY"},
		FieldLatitude:     {"LATITUDE", "LAT", "Y"},
		FieldLongitude:    {"LONGITUDE", "LONG", "LON", "X"},
		FieldCounty:       {"COUNTY"},
	}
}

// LoadFieldMap reads a YAML alias file and layers it over the defaults.
// Aliases listed for a field replace that field's defaults.
//
//	provider_name: ["FACILITY", "PROVIDER"]
//	capacity: ["LICENSED BEDS"]
func LoadFieldMap(path string) (FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read field map %s", path)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "ingest: parse field map")
	}

	fm := DefaultFieldMap()
	known := make(map[Field]bool)
	for _, f := range Fields() {
		known[f] = true
	}
	for k, aliases := range raw {
		f := Field(strings.ToLower(strings.TrimSpace(k)))
		if !known[f] {
			return nil, eris.Errorf("ingest: unknown field %q in field map", k)
		}
		if len(aliases) > 0 {
			fm[f] = aliases
		}
	}
	return fm, nil
}

// Resolve finds the column index of every field present in header. The
// first alias found wins; fields with no matching column are absent.
func (fm FieldMap) Resolve(header []string) map[Field]int {
	cols := mapColumns(header)
	out := make(map[Field]int)
	for _, f := range Fields() {
		for _, alias := range fm[f] {
			if idx, ok := cols[normalizeHeader(alias)]; ok {
				out[f] = idx
				break
			}
		}
	}
	return out
}

func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		key := normalizeHeader(col)
		if _, dup := m[key]; !dup {
			m[key] = i
		}
	}
	return m
}

func normalizeHeader(s string) string {
	s = strings.ReplaceAll(strings.ToUpper(s), "_", " ")
	return strings.Join(strings.Fields(s), " ")
}
