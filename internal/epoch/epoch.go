// Package epoch implements the Epoch Sampler: a flat
// per-language cap computed by binary search, reservoir sampling into
// per-language temp files, and a randomized multi-way interleave into one
// epoch file consumed by the trainer's scan phase.
package epoch

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Sampler knows the pool directory and per-language sizes, and can build a
// flat-capped, interleaved epoch file from them.
type Sampler struct {
	PoolDir   string
	Languages []string // canonical codes, sorted for determinism
	PoolSize  map[string]int
	BaseSeed  int64
}

// NewSampler scans poolDir (one file per language, as written by
// internal/corpus) and counts lines per language.
func NewSampler(poolDir string, baseSeed int64) (*Sampler, error) {
	entries, err := os.ReadDir(poolDir)
	if err != nil {
		return nil, fmt.Errorf("epoch: reading pool dir %s: %w", poolDir, err)
	}
	s := &Sampler{PoolDir: poolDir, PoolSize: make(map[string]int), BaseSeed: baseSeed}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, err := countLines(filepath.Join(poolDir, e.Name()))
		if err != nil {
			return nil, err
		}
		s.Languages = append(s.Languages, e.Name())
		s.PoolSize[e.Name()] = n
	}
	sort.Strings(s.Languages)
	return s, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}

// FlatCap computes, by binary search, the largest per-language cap C such
// that Σ_lang min(poolSize(lang), C) does not exceed target.
func (s *Sampler) FlatCap(target int) int {
	if len(s.Languages) == 0 {
		return 0
	}
	maxN := 0
	for _, n := range s.PoolSize {
		if n > maxN {
			maxN = n
		}
	}
	lo, hi := 0, maxN
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if s.sumCapped(mid) <= target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

func (s *Sampler) sumCapped(cap int) int {
	sum := 0
	for _, n := range s.PoolSize {
		if n < cap {
			sum += n
		} else {
			sum += cap
		}
	}
	return sum
}

// PerLanguageTarget returns min(poolSize(lang), cap).
func (s *Sampler) PerLanguageTarget(lang string, cap int) int {
	n := s.PoolSize[lang]
	if n < cap {
		return n
	}
	return cap
}

// seedFor derives the per-(epoch, language) RNG seed from
// (baseSeed, epochIndex, langIndex).
func seedFor(baseSeed int64, epochIndex, langIndex int) int64 {
	h := xxhash.New()
	var b [24]byte
	putInt64(b[0:8], baseSeed)
	putInt64(b[8:16], int64(epochIndex))
	putInt64(b[16:24], int64(langIndex))
	h.Write(b[:])
	return int64(h.Sum64())
}

func putInt64(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// CreateEpochFile builds one epoch's training file at outPath: for each
// language, reservoir-sample PerLanguageTarget(lang, cap) lines from its
// pool file into a temp file, then randomly interleave all the per-language
// temp files into outPath as "lang\ttext\n" lines. Temp
// files are removed eagerly once the interleave completes, and on any
// error path.
func (s *Sampler) CreateEpochFile(epochIndex, cap int, tmpDir, outPath string) error {
	tmpFiles := make([]string, 0, len(s.Languages))
	defer func() {
		for _, p := range tmpFiles {
			os.Remove(p)
		}
	}()

	for langIdx, lang := range s.Languages {
		target := s.PerLanguageTarget(lang, cap)
		seed := seedFor(s.BaseSeed, epochIndex, langIdx)
		lines, err := reservoirSample(filepath.Join(s.PoolDir, lang), target, seed)
		if err != nil {
			return err
		}
		tmpPath := filepath.Join(tmpDir, lang+".epoch.tmp")
		if err := writeLangTemp(tmpPath, lang, lines); err != nil {
			return err
		}
		tmpFiles = append(tmpFiles, tmpPath)
	}

	interleaveSeed := seedFor(s.BaseSeed, epochIndex, -1)
	return interleave(tmpFiles, outPath, interleaveSeed)
}

// reservoirSample implements Algorithm R over the lines of
// path, returning exactly min(target, lineCount) lines.
func reservoirSample(path string, target int, seed int64) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := rand.New(rand.NewSource(seed))
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	reservoir := make([]string, 0, target)
	i := 0
	for sc.Scan() {
		line := sc.Text()
		if i < target {
			reservoir = append(reservoir, line)
		} else {
			j := r.Intn(i + 1)
			if j < target {
				reservoir[j] = line
			}
		}
		i++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return reservoir, nil
}

func writeLangTemp(path, lang string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", lang, l); err != nil {
			return err
		}
	}
	return w.Flush()
}

// interleave multi-way merges the per-language temp files into outPath,
// at every step picking a uniformly random still-open file.
func interleave(tmpFiles []string, outPath string, seed int64) error {
	type source struct {
		sc *bufio.Scanner
		f  *os.File
	}
	sources := make([]*source, 0, len(tmpFiles))
	for _, p := range tmpFiles {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		sources = append(sources, &source{sc: sc, f: f})
	}
	defer func() {
		for _, s := range sources {
			s.f.Close()
		}
	}()

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	r := rand.New(rand.NewSource(seed))
	open := sources
	for len(open) > 0 {
		i := r.Intn(len(open))
		s := open[i]
		if s.sc.Scan() {
			if _, err := w.WriteString(s.sc.Text()); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
			continue
		}
		if err := s.sc.Err(); err != nil {
			return err
		}
		// exhausted: drop from the open set
		open[i] = open[len(open)-1]
		open = open[:len(open)-1]
	}
	return w.Flush()
}
