package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jjviana/langid/internal/config"
	"github.com/jjviana/langid/internal/corpus"
	"github.com/jjviana/langid/internal/eval"
	"github.com/jjviana/langid/internal/model"
)

func TestReadSamplesParsesTabDelimitedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.txt")
	require.NoError(t, os.WriteFile(path, []byte("eng\thello there\nspa\thola\n\n"), 0o644))

	samples, err := readSamples(path)
	require.NoError(t, err)
	require.Equal(t, []eval.Sample{
		{Lang: "eng", Text: "hello there"},
		{Lang: "spa", Text: "hola"},
	}, samples)
}

// xorshift is a tiny deterministic PRNG so corpus generation has no
// dependency on math/rand's global state or version-specific sequences.
type xorshift struct{ s uint64 }

func (x *xorshift) next() uint64 {
	x.s ^= x.s << 13
	x.s ^= x.s >> 7
	x.s ^= x.s << 17
	return x.s
}

// writeRawCorpus builds a corpus.Prepare-compatible directory tree for
// two languages with overlapping alphabets ("deu" draws from a-z plus
// äöüß, "eng" from a-z only, so they are only partly separable), with
// enough distinct sentences per language to clear corpus.Config's
// MinPerLang when overridden down for test speed.
func writeRawCorpus(t *testing.T, dir string, perLang int) {
	t.Helper()
	alphabets := map[string]string{
		"eng": "abcdefghijklmnopqrstuvwxyz",
		"deu": "äöüßabcdefghijklmnopqrstuvwxyz",
	}
	seed := uint64(1)
	for lang, alpha := range alphabets {
		langDir := filepath.Join(dir, lang)
		require.NoError(t, os.MkdirAll(langDir, 0o755))
		f, err := os.Create(filepath.Join(langDir, "part-0.tsv"))
		require.NoError(t, err)
		r := &xorshift{s: seed}
		seed += 7919
		runes := []rune(alpha)
		for i := 0; i < perLang; i++ {
			n := 8 + int(r.next()%8)
			sentence := make([]rune, 0, n)
			for j := 0; j < n; j++ {
				sentence = append(sentence, runes[r.next()%uint64(len(runes))])
			}
			fmt.Fprintf(f, "%d\t%s\n", i, string(sentence))
		}
		require.NoError(t, f.Close())
	}
}

func TestEndToEndPrepareTrainEvaluatePredict(t *testing.T) {
	dir := t.TempDir()
	corpusDir := filepath.Join(dir, "corpus")
	workDir := filepath.Join(dir, "work")
	writeRawCorpus(t, corpusDir, 400)

	ccfg := corpus.DefaultConfig()
	ccfg.MinPerLang = 100
	ccfg.MaxTestPerLang = 50
	ccfg.MaxDevPerLang = 50
	_, err := corpus.Prepare(corpusDir, workDir, ccfg)
	require.NoError(t, err)

	cfg := config.DefaultTrainConfig()
	cfg.WorkDir = workDir
	cfg.ModelPath = filepath.Join(dir, "model.bin")
	cfg.NumBuckets = 1024
	cfg.AdamEpochs = 1
	cfg.MaxEpochs = 2
	cfg.ChunkSize = 10_000
	cfg.BatchSize = 1000
	cfg.CheckpointInterval = 100_000
	cfg.DevSubsampleSize = 50
	cfg.Patience = 2
	cfg.SgdThreads = 2
	cfg.AdamThreads = 1
	cfg.TwoPass = true

	require.NoError(t, runTrain(context.Background(), cfg, 2000))

	f, err := os.Open(cfg.ModelPath)
	require.NoError(t, err)
	defer f.Close()
	m, err := model.Load(f)
	require.NoError(t, err)
	require.Equal(t, 2, m.NumClasses)

	samples, err := readSamples(filepath.Join(workDir, "test_raw.txt"))
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	res := eval.Evaluate(modelPredictor{m}, samples)
	require.Greater(t, res.Accuracy, 0.5)
}
