// Package family groups corporate registration records into entity
// families: records controlled by overlapping sets of named individuals.
package family

import (
	"fmt"
	"sort"
	"strings"
)

// CorporateRecord is one flat Ecorp/ACC row keyed by column name.
type CorporateRecord map[string]string

// PersonSet is the set of individual names referenced by one record.
type PersonSet map[string]struct{}

// Names returns the members sorted.
func (s PersonSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NewPersonSet builds a set from already-normalized names.
func NewPersonSet(names ...string) PersonSet {
	s := make(PersonSet, len(names))
	for _, n := range names {
		if n = normalizePerson(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// roleFields lists every column scanned for individuals, in scan order.
var roleFields = buildRoleFields()

func buildRoleFields() []string {
	var fields []string
	add := func(prefix string, n int, suffix string) {
		for i := 1; i <= n; i++ {
			fields = append(fields, fmt.Sprintf("%s%d%s", prefix, i, suffix))
		}
	}
	add("StatutoryAgent", 3, "_Name")
	add("Manager", 5, "_Name")
	add("Member", 5, "_Name")
	add("Manager/Member", 5, "_Name")
	add("IndividualName", 4, "")
	return fields
}

// RoleFields returns the scanned column names.
func RoleFields() []string {
	out := make([]string, len(roleFields))
	copy(out, roleFields)
	return out
}

// nullValues are placeholders spreadsheet exports use for missing cells.
var nullValues = map[string]bool{
	"NAN":  true,
	"NONE": true,
	"NULL": true,
	"N/A":  true,
}

// Extract returns the individuals named in the record's statutory agent,
// manager, member, manager/member and individual-name columns, upper-cased,
// trimmed and deduplicated by exact string.
func Extract(rec CorporateRecord) PersonSet {
	set := make(PersonSet)
	for _, f := range roleFields {
		v, ok := rec[f]
		if !ok {
			continue
		}
		if n := normalizePerson(v); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func normalizePerson(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if nullValues[v] {
		return ""
	}
	return v
}
