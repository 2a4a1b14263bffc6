// Package resolve provides the name normalization, similarity scoring and
// disjoint-set primitives shared by provider grouping and entity-family
// grouping.
package resolve

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// businessSuffixRe matches one trailing legal-entity token with optional
	// trailing punctuation. A preceding token is required, so a name made up
	// of only "LLC" is left alone.
	businessSuffixRe = regexp.MustCompile(`[\s,]+(L\.?L\.?C|P\.?L\.?L\.?C|INCORPORATED|INC|CORPORATION|CORP|COMPANY|LTD|L\.?P|P\.?C|CO)[.,]*$`)

	// romanNumeralRe matches a trailing Roman numeral I through XV.
	romanNumeralRe = regexp.MustCompile(`\s+(XV|XIV|XIII|XII|XI|X|IX|VIII|VII|VI|V|IV|III|II|I)$`)

	// trailingNumberRe matches a trailing cardinal such as "2" or "#12".
	trailingNumberRe = regexp.MustCompile(`\s+#?\d+$`)

	// remnantRe matches separators left dangling once a token is stripped.
	remnantRe = regexp.MustCompile(`[\s,/\-]+$`)

	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// CleanText upper-cases s, folds accented characters to their ASCII base,
// and collapses runs of whitespace.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = foldDiacritics(s)
	s = strings.ToUpper(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// BaseName reduces a provider or company name to the coarse identity used
// as the exact-match grouping key. Anything after the first "/" is treated
// as a location qualifier and dropped. Business suffixes, trailing Roman
// numerals, trailing numbers and dangling separators are then stripped
// repeatedly until the name stops changing, so BaseName is idempotent.
//
//	BaseName("Ready For Life LLC")  == "READY FOR LIFE"
//	BaseName("READY FOR LIFE III")  == "READY FOR LIFE"
//	BaseName("SUNRISE CARE/TEMPE")  == "SUNRISE CARE"
func BaseName(name string) string {
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[:i]
	}
	name = CleanText(name)

	for {
		prev := name
		name = businessSuffixRe.ReplaceAllString(name, "")
		name = romanNumeralRe.ReplaceAllString(name, "")
		name = trailingNumberRe.ReplaceAllString(name, "")
		name = remnantRe.ReplaceAllString(name, "")
		if name == prev {
			return name
		}
	}
}

// AddressPrefix returns the first n characters of the cleaned address. An
// address shorter than n is returned whole.
func AddressPrefix(address string, n int) string {
	a := []rune(CleanText(address))
	if n <= 0 || len(a) <= n {
		return string(a)
	}
	return string(a[:n])
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
