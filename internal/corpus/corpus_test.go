package corpus

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRawLang(t *testing.T, corpusDir, lang string, n int, prefix string) {
	t.Helper()
	dir := filepath.Join(corpusDir, lang)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	f, err := os.Create(filepath.Join(dir, "part-0.tsv"))
	require.NoError(t, err)
	defer f.Close()
	w := bufio.NewWriter(f)
	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "%d\t%s sentence number %d\n", i, prefix, i)
	}
	require.NoError(t, w.Flush())
}

func smallConfig() Config {
	return Config{MinPerLang: 10, MaxTestPerLang: 100, MaxDevPerLang: 100, Seed: 42}
}

func TestPrepareBasicSplit(t *testing.T) {
	corpusDir := t.TempDir()
	workDir := t.TempDir()
	writeRawLang(t, corpusDir, "eng", 200, "english")
	writeRawLang(t, corpusDir, "fra", 200, "french")

	report, err := Prepare(corpusDir, workDir, smallConfig())
	require.NoError(t, err)
	require.Len(t, report.Languages, 2)

	for _, lr := range report.Languages {
		require.False(t, lr.DroppedSmall)
		require.Equal(t, lr.TestCount+lr.DevCount+lr.PoolCount, lr.DedupedCount)
		require.FileExists(t, filepath.Join(workDir, "pool", lr.CanonicalCode))
	}
	require.FileExists(t, filepath.Join(workDir, "dev.txt"))
	require.FileExists(t, filepath.Join(workDir, "test_raw.txt"))
}

func TestPrepareDropsSmallLanguage(t *testing.T) {
	corpusDir := t.TempDir()
	workDir := t.TempDir()
	writeRawLang(t, corpusDir, "eng", 200, "english")
	writeRawLang(t, corpusDir, "xzz", 3, "tiny")

	report, err := Prepare(corpusDir, workDir, smallConfig())
	require.NoError(t, err)

	var tinyDropped bool
	for _, lr := range report.Languages {
		if lr.CanonicalCode == "xzz" {
			tinyDropped = lr.DroppedSmall
		}
	}
	require.True(t, tinyDropped)
	_, err = os.Stat(filepath.Join(workDir, "pool", "xzz"))
	require.True(t, os.IsNotExist(err))
}

func TestPrepareExcludesConfiguredLanguages(t *testing.T) {
	corpusDir := t.TempDir()
	workDir := t.TempDir()
	writeRawLang(t, corpusDir, "eng", 200, "english")
	writeRawLang(t, corpusDir, "vol", 200, "volapuk")

	report, err := Prepare(corpusDir, workDir, smallConfig())
	require.NoError(t, err)

	var volExcluded bool
	for _, lr := range report.Languages {
		if lr.RawCode == "vol" {
			volExcluded = lr.Excluded
		}
	}
	require.True(t, volExcluded)
	_, err = os.Stat(filepath.Join(workDir, "pool", "vol"))
	require.True(t, os.IsNotExist(err))
}

func TestPrepareMergesVariants(t *testing.T) {
	corpusDir := t.TempDir()
	workDir := t.TempDir()
	writeRawLang(t, corpusDir, "cmn", 100, "mandarin")
	writeRawLang(t, corpusDir, "yue", 100, "cantonese")

	report, err := Prepare(corpusDir, workDir, smallConfig())
	require.NoError(t, err)

	var zhoTotal int
	for _, lr := range report.Languages {
		if lr.CanonicalCode == "zho" && !lr.Excluded {
			zhoTotal += lr.DedupedCount
		}
	}
	require.Equal(t, 200, zhoTotal)
	require.FileExists(t, filepath.Join(workDir, "pool", "zho"))
	_, err = os.Stat(filepath.Join(workDir, "pool", "cmn"))
	require.True(t, os.IsNotExist(err))
}

func TestPrepareDeterministic(t *testing.T) {
	corpusDir := t.TempDir()
	writeRawLang(t, corpusDir, "eng", 150, "english")

	workDir1 := t.TempDir()
	workDir2 := t.TempDir()
	_, err := Prepare(corpusDir, workDir1, smallConfig())
	require.NoError(t, err)
	_, err = Prepare(corpusDir, workDir2, smallConfig())
	require.NoError(t, err)

	b1, err := os.ReadFile(filepath.Join(workDir1, "pool", "eng"))
	require.NoError(t, err)
	b2, err := os.ReadFile(filepath.Join(workDir2, "pool", "eng"))
	require.NoError(t, err)
	require.Equal(t, b1, b2)

	d1, err := os.ReadFile(filepath.Join(workDir1, "dev.txt"))
	require.NoError(t, err)
	d2, err := os.ReadFile(filepath.Join(workDir2, "dev.txt"))
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestDedupFirstOccurrenceWins(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b"}
	out := dedup(in)
	require.Equal(t, []string{"a", "b", "c"}, out)
}
