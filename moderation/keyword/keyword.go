package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
	nonSlugChars  = regexp.MustCompile(`[^\pL\pN]+`)
)

// Splits free-form text in to tokens, including lower-case, unicode
// normalization, and some unicode folding.
//
// The intent is to enable fast matching of message text against a list of
// known forbidden tokens, robust against casing, punctuation, and accent
// tricks.
func TokenizeText(text string) []string {
	// this transform chain needs to be re-defined in every function call to prevent a race condition
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	split := strings.ToLower(nonTokenChars.ReplaceAllString(text, " "))
	out, _, err := transform.String(normFunc, split)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		out = split
	}
	return strings.Fields(out)
}

// Takes an arbitrary string (eg, free-form message text) and returns a
// version with all non-letter, non-digit characters removed, and all
// lower-case.
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(orig, ""))
}
