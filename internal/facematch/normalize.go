package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics strips combining marks from a string
// (e.g., "Nguyễn Văn A" -> "Nguyen Van A").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a full name for lookup: lowercase, no
// diacritics, dashes as spaces, single spaces. Roster names entered by
// admins and names typed into search boxes rarely agree on accents.
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// ContainsNormalized reports whether the normalized haystack contains the
// already-normalized query.
func ContainsNormalized(haystack, normalizedQuery string) bool {
	return strings.Contains(NormalizePersonName(haystack), normalizedQuery)
}
