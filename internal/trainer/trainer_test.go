package trainer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jjviana/langid/internal/eval"
)

// writeSeparableTrainingFile builds a training file where each language's
// sentences are drawn from a disjoint character set, so a tiny model can
// trivially reach near-perfect separation.
func writeSeparableTrainingFile(t *testing.T, path string, perLang int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := bufio.NewWriter(f)

	alphabets := map[string]string{
		"eng": "abcdefghijklmnopqrstuvwxyz",
		"grk": "αβγδεζηθικλμνξοπρστυφχψω",
		"cyr": "абвгдежзийклмнопрстуфхцчшщ",
	}
	for lang, alpha := range alphabets {
		r := newXorshift(uint64(len(lang)) + 1)
		for i := 0; i < perLang; i++ {
			n := 6 + int(r.next()%8)
			sentence := make([]rune, 0, n)
			runes := []rune(alpha)
			for j := 0; j < n; j++ {
				sentence = append(sentence, runes[r.next()%uint64(len(runes))])
			}
			fmt.Fprintf(w, "%s\t%s\n", lang, string(sentence))
		}
	}
	require.NoError(t, w.Flush())
}

// xorshift is a tiny deterministic PRNG so the test has no dependency on
// math/rand's global state or version-specific sequences.
type xorshift struct{ s uint64 }

func newXorshift(seed uint64) *xorshift {
	if seed == 0 {
		seed = 1
	}
	return &xorshift{s: seed}
}

func (x *xorshift) next() uint64 {
	x.s ^= x.s << 13
	x.s ^= x.s >> 7
	x.s ^= x.s << 17
	return x.s
}

func readLabeledFile(t *testing.T, path string) []eval.Sample {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []eval.Sample
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		for i := 0; i < len(line); i++ {
			if line[i] == '\t' {
				out = append(out, eval.Sample{Lang: line[:i], Text: line[i+1:]})
				break
			}
		}
	}
	require.NoError(t, sc.Err())
	return out
}

func TestS7EndToEndMicroTrain(t *testing.T) {
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "train.txt")
	devPath := filepath.Join(dir, "dev.txt")
	testPath := filepath.Join(dir, "test.txt")

	writeSeparableTrainingFile(t, trainPath, 1000)
	writeSeparableTrainingFile(t, devPath, 100)
	writeSeparableTrainingFile(t, testPath, 100)

	cfg := DefaultConfig(1024)
	cfg.AdamEpochs = 2
	cfg.MaxEpochs = 4
	cfg.ChunkSize = 10_000
	cfg.BatchSize = 1000
	cfg.CheckpointInterval = 500
	cfg.DevSubsampleSize = 100
	cfg.Patience = 4
	cfg.SgdThreads = 2
	cfg.AdamThreads = 1
	cfg.Preprocessed = true

	tr := New(cfg, nil)
	require.NoError(t, tr.Scan(trainPath))

	dev := readLabeledFile(t, devPath)
	_, err := tr.Train(context.Background(), dev)
	require.NoError(t, err)

	testSet := readLabeledFile(t, testPath)
	res := evaluateDev(tr.extractor, tr.model, testSet)
	require.GreaterOrEqual(t, res.Accuracy, 0.99)
	require.GreaterOrEqual(t, res.MacroF1, 0.99)
}

func TestHogwildThreadCountToleranceOnF1(t *testing.T) {
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "train.txt")
	devPath := filepath.Join(dir, "dev.txt")
	writeSeparableTrainingFile(t, trainPath, 500)
	writeSeparableTrainingFile(t, devPath, 80)
	dev := readLabeledFile(t, devPath)

	run := func(threads int) float64 {
		cfg := DefaultConfig(512)
		cfg.AdamEpochs = 1
		cfg.MaxEpochs = 3
		cfg.ChunkSize = 10_000
		cfg.BatchSize = 500
		cfg.CheckpointInterval = 100_000 // effectively disable within-epoch stop
		cfg.DevSubsampleSize = 80
		cfg.Patience = 3
		cfg.SgdThreads = threads
		cfg.Preprocessed = true

		tr := New(cfg, nil)
		require.NoError(t, tr.Scan(trainPath))
		_, err := tr.Train(context.Background(), dev)
		require.NoError(t, err)
		res := evaluateDev(tr.extractor, tr.model, dev)
		return res.MacroF1
	}

	f1Single := run(1)
	f1Double := run(2)
	require.InDelta(t, f1Single, f1Double, 0.01)
}
