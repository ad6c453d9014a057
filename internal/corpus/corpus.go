// Package corpus implements the Corpus Preparer: turning a
// directory of per-language raw sentence dumps into the pool/dev/test
// splits the rest of the pipeline consumes.
package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/jjviana/langid/internal/errs"
	"github.com/jjviana/langid/internal/langtable"
	"github.com/jjviana/langid/internal/preprocess"
)

// Config holds the tunable policy constants for Prepare.
type Config struct {
	MinPerLang     int   // drop a language if fewer sentences survive merge+dedup
	MaxTestPerLang int   // cap on the 10% test split
	MaxDevPerLang  int   // cap on the 10%-of-remainder dev split
	Seed           int64 // fixed seed combined with hash(lang) for the per-language shuffle
}

// DefaultConfig returns the stock policy constants (MIN_PER_LANG ≈ 10000).
func DefaultConfig() Config {
	return Config{
		MinPerLang:     10000,
		MaxTestPerLang: 5000,
		MaxDevPerLang:  2000,
		Seed:           42,
	}
}

// LangReport summarizes what happened to one raw language code.
type LangReport struct {
	RawCode      string
	CanonicalCode string
	Excluded     bool
	DroppedSmall bool
	RawCount     int
	DedupedCount int
	PoolCount    int
	DevCount     int
	TestCount    int
}

// Report is the result of Prepare: what ended up where, for every
// language code seen in the corpus directory.
type Report struct {
	Languages []LangReport
}

// Prepare reads corpusDir (one subdirectory per raw language code, each
// containing tab-delimited "rowid\ttext" files), applies the merge and
// exclusion tables, dedups and splits deterministically, and writes
// pool/<lang>, dev.txt, and test_raw.txt under workDir.
func Prepare(corpusDir, workDir string, cfg Config) (*Report, error) {
	rawDirs, err := sortedSubdirs(corpusDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", errs.ErrCorpusNotFound, err)
		}
		return nil, err
	}
	if len(rawDirs) == 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrCorpusNotFound, corpusDir)
	}

	// Merge raw codes into canonical pools, preserving deterministic
	// (sorted-subdir, sorted-file, in-file-order) read order.
	pools := make(map[string][]string) // canonical code -> sentences, pre-merge order
	rawCounts := make(map[string]int)
	canonOf := make(map[string]string)
	var canonOrder []string
	seenCanon := make(map[string]bool)

	for _, raw := range rawDirs {
		canon := langtable.CanonicalLang(raw)
		canonOf[raw] = canon
		if !seenCanon[canon] {
			seenCanon[canon] = true
			canonOrder = append(canonOrder, canon)
		}
		sentences, err := readLangDir(filepath.Join(corpusDir, raw))
		if err != nil {
			return nil, err
		}
		rawCounts[raw] = len(sentences)
		pools[canon] = append(pools[canon], sentences...)
	}

	if err := os.MkdirAll(filepath.Join(workDir, "pool"), 0o755); err != nil {
		return nil, err
	}
	devFile, err := os.Create(filepath.Join(workDir, "dev.txt"))
	if err != nil {
		return nil, err
	}
	defer devFile.Close()
	testFile, err := os.Create(filepath.Join(workDir, "test_raw.txt"))
	if err != nil {
		return nil, err
	}
	defer testFile.Close()
	devW := bufio.NewWriter(devFile)
	testW := bufio.NewWriter(testFile)

	report := &Report{}
	for _, raw := range rawDirs {
		canon := canonOf[raw]
		lr := LangReport{RawCode: raw, CanonicalCode: canon, RawCount: rawCounts[raw]}
		if langtable.IsExcluded(canon) {
			lr.Excluded = true
			report.Languages = append(report.Languages, lr)
		}
	}

	for _, canon := range canonOrder {
		if langtable.IsExcluded(canon) {
			continue // already reported per raw code above
		}
		sentences := dedup(pools[canon])
		lr := LangReport{RawCode: canon, CanonicalCode: canon, DedupedCount: len(sentences)}
		if len(sentences) < cfg.MinPerLang {
			lr.DroppedSmall = true
			report.Languages = append(report.Languages, lr)
			continue
		}

		shuffled := deterministicShuffle(sentences, seedFor(canon, cfg.Seed))
		testN := min(len(shuffled)/10, cfg.MaxTestPerLang)
		rest := shuffled[testN:]
		devN := min(len(rest)/10, cfg.MaxDevPerLang)
		devSet := rest[:devN]
		poolSet := rest[devN:]
		testSet := shuffled[:testN]

		lr.TestCount = len(testSet)
		lr.DevCount = len(devSet)
		lr.PoolCount = len(poolSet)

		if err := writePool(filepath.Join(workDir, "pool", canon), poolSet); err != nil {
			return nil, err
		}
		for _, s := range devSet {
			fmt.Fprintf(devW, "%s\t%s\n", canon, preprocess.Canonicalize(s))
		}
		for _, s := range testSet {
			fmt.Fprintf(testW, "%s\t%s\n", canon, s)
		}
		report.Languages = append(report.Languages, lr)
	}

	if err := devW.Flush(); err != nil {
		return nil, err
	}
	if err := testW.Flush(); err != nil {
		return nil, err
	}

	survived := false
	for _, lr := range report.Languages {
		if !lr.Excluded && !lr.DroppedSmall {
			survived = true
			break
		}
	}
	if !survived {
		return nil, errs.ErrNoLanguages
	}
	return report, nil
}

func sortedSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: reading %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// readLangDir reads every file in dir (sorted by name) as tab-delimited
// "rowid\ttext" lines, returning the text column in file order. Malformed
// lines (missing tab) are skipped, not fatal — mirroring the trainer's
// "skippable data" policy.
func readLangDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: reading %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			line := sc.Text()
			tab := strings.IndexByte(line, '\t')
			if tab < 0 {
				continue
			}
			out = append(out, line[tab+1:])
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("corpus: scanning %s: %w", filepath.Join(dir, name), err)
		}
	}
	return out, nil
}

// dedup drops every sentence after its first occurrence, keyed by a
// 64-bit hash of its text.
func dedup(sentences []string) []string {
	seen := make(map[uint64]bool, len(sentences))
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		h := xxhash.Sum64String(s)
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, s)
	}
	return out
}

// seedFor derives the per-language shuffle seed, hash(lang) + fixed_seed.
func seedFor(lang string, base int64) int64 {
	return int64(xxhash.Sum64String(lang)) + base
}

func deterministicShuffle(in []string, seed int64) []string {
	out := append([]string(nil), in...)
	r := rand.New(rand.NewSource(seed))
	for i := len(out) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func writePool(path string, sentences []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, s := range sentences {
		if _, err := w.WriteString(preprocess.Canonicalize(s)); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
