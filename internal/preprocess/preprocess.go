// Package preprocess implements the canonicalization step shared by training
// and inference. Every step is idempotent and the whole
// pipeline must be byte-identical whether it runs at corpus-prep time or at
// predict time: any skew here silently destroys accuracy.
package preprocess

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxRunes is the fixed truncation length K applied after normalization:
// any input longer than this is cut, not rejected.
const MaxRunes = 1024

var (
	urlPattern    = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	emailPattern  = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Canonicalize runs the single shared pipeline used at both corpus-prep time
// and inference. Steps, in order: NFC-normalize, strip URLs, strip emails,
// collapse whitespace runs to a single space, trim, truncate to MaxRunes,
// then trim again (a cut can end on a space). Script and case are
// preserved; this is not StripDiacritics.
func Canonicalize(s string) string {
	nfc := norm.NFC.String(s)
	nfc = urlPattern.ReplaceAllString(nfc, " ")
	nfc = emailPattern.ReplaceAllString(nfc, " ")
	nfc = whitespaceRun.ReplaceAllString(nfc, " ")
	nfc = strings.TrimSpace(nfc)
	return strings.TrimSpace(truncateRunes(nfc, MaxRunes))
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// isMn reports whether r is a nonspacing mark, used by StripDiacritics.
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// StripDiacritics removes combining diacritical marks from s, e.g. for
// building auxiliary ASCII-folded features. It is not part of the default
// Canonicalize pipeline but is exposed for
// feature families that want a folded view (internal/features).
func StripDiacritics(s string) (string, error) {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return "", err
	}
	return out, nil
}
