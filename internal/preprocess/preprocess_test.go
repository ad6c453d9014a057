package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Visit https://example.com NOW!   already normalized",
		"contact me at person@example.co.uk thanks",
		"  multiple     spaces\tand\ttabs  ",
		"plain ascii sentence",
		"日本語のテキストです。",
		"www.example.org/path?x=1 trailing",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		twice := Canonicalize(once)
		require.Equal(t, once, twice, "not idempotent for %q", in)
	}
}

func TestCanonicalizeStripsURLAndEmail(t *testing.T) {
	out := Canonicalize("see https://example.com/a/b?q=1 or mail me at a.b+c@example.com today")
	require.False(t, strings.Contains(out, "http"))
	require.False(t, strings.Contains(out, "@"))
	require.Contains(t, out, "today")
}

func TestCanonicalizeCollapsesWhitespace(t *testing.T) {
	out := Canonicalize("a    b\t\tc d")
	require.Equal(t, "a b c d", out)
}

func TestCanonicalizeTruncates(t *testing.T) {
	long := strings.Repeat("a", MaxRunes+500)
	out := Canonicalize(long)
	require.LessOrEqual(t, len([]rune(out)), MaxRunes)
}

func TestCanonicalizePreservesScriptAndCase(t *testing.T) {
	out := Canonicalize("Café MÜNCHEN")
	require.Contains(t, out, "Café")
	require.Contains(t, out, "MÜNCHEN")
}

func TestStripDiacritics(t *testing.T) {
	out, err := StripDiacritics("café")
	require.NoError(t, err)
	require.Equal(t, "cafe", out)
}
