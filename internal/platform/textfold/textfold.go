// Package textfold normalizes labels for identifiers and search keys.
package textfold

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Umlauts are transliterated before remaining marks are dropped.
var umlauts = strings.NewReplacer(
	"ä", "ae",
	"ö", "oe",
	"ü", "ue",
	"Ä", "Ae",
	"Ö", "Oe",
	"Ü", "Ue",
	"ß", "ss",
	"ẞ", "SS",
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9-]`)
)

// Fold transliterates umlauts and strips all other diacritics:
// "Müller" -> "Mueller", "Café" -> "Cafe".
func Fold(s string) string {
	composed := umlauts.Replace(norm.NFC.String(s))
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), composed)
	if err != nil {
		return composed
	}
	return folded
}

// Slug lowercases and folds s, joins whitespace runs with "-" and drops
// anything outside [a-z0-9-].
func Slug(s string) string {
	s = Fold(strings.ToLower(strings.TrimSpace(s)))
	s = whitespaceRun.ReplaceAllString(s, "-")
	return nonSlugChars.ReplaceAllString(s, "")
}

// Key is the comparison form used by search: folded, lowercased, single spaced.
func Key(s string) string {
	s = strings.ToLower(Fold(strings.TrimSpace(s)))
	return whitespaceRun.ReplaceAllString(s, " ")
}
