package langtable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalLang(t *testing.T) {
	require.Equal(t, "fas", CanonicalLang("pes"))
	require.Equal(t, "eng", CanonicalLang("eng"))
}

func TestIsExcluded(t *testing.T) {
	require.True(t, IsExcluded("vol"))
	require.False(t, IsExcluded("eng"))
}

func TestSameGroup(t *testing.T) {
	require.True(t, SameGroup("bos", "hrv"))
	require.True(t, SameGroup("eng", "eng"))
	require.False(t, SameGroup("eng", "fra"))
	require.False(t, SameGroup("bos", "fra"))
}
