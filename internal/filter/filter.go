// Package filter implements the Filter Pass: after pass-1
// training, re-score every pool file against the current model and drop
// sentences whose predicted label is neither the pool label nor in its
// confusable group, writing survivors to a mirrored pool_filtered/<lang>
// tree for pass 2.
package filter

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jjviana/langid/internal/features"
	"github.com/jjviana/langid/internal/langtable"
	"github.com/jjviana/langid/internal/trainmodel"
)

// LangResult reports one language's filter outcome.
type LangResult struct {
	Lang  string
	Kept  int
	Total int
}

// Report bundles every language's LangResult, sorted by language code so
// callers get a deterministic summary regardless of scheduling order.
type Report struct {
	Languages []LangResult
}

// Predictor is the minimal scoring interface the filter pass needs from
// the pass-1 FP32 model: extract features for text and return the
// argmax label. internal/trainer's live model satisfies this via a thin
// adapter (cmd/langid wires it), matching the extractor/trainmodel.Model
// pair the trainer itself scores with.
type Predictor interface {
	PredictLabel(extractor *features.Extractor, text string) string
}

// modelPredictor adapts a trainmodel.Model (the pass-1 FP32 weights) to
// Predictor, doing the same forward pass internal/trainer's checkpoint
// evaluator does but without needing a full eval.Predictor (score isn't
// used for filtering, only the argmax label is).
type modelPredictor struct{ m *trainmodel.Model }

func (p modelPredictor) PredictLabel(extractor *features.Extractor, text string) string {
	counts := make([]int32, extractor.NumBuckets())
	idx := extractor.Extract(text, counts, nil)
	logits := make([]float32, p.m.NumClasses)
	copy(logits, p.m.Biases)
	for _, b := range idx {
		row := p.m.Row(int(b))
		f := float32(counts[b])
		for k := range row {
			logits[k] += row[k] * f
		}
	}
	best := 0
	for k := 1; k < len(logits); k++ {
		if logits[k] > logits[best] {
			best = k
		}
	}
	return p.m.Labels[best]
}

// NewModelPredictor wraps a trainmodel.Model for use with Run.
func NewModelPredictor(m *trainmodel.Model) Predictor { return modelPredictor{m: m} }

// Run iterates every "<poolDir>/<lang>" file discovered under poolDir in
// parallel, bounded to maxParallel concurrent languages, and writes
// kept sentences to "<outDir>/<lang>". maxParallel <= 0 defaults to
// GOMAXPROCS.
func Run(ctx context.Context, poolDir, outDir string, extractor *features.Extractor, p Predictor, maxParallel int) (*Report, error) {
	entries, err := os.ReadDir(poolDir)
	if err != nil {
		return nil, fmt.Errorf("filter: reading %s: %w", poolDir, err)
	}
	var langs []string
	for _, e := range entries {
		if !e.IsDir() {
			langs = append(langs, e.Name())
		}
	}
	sort.Strings(langs)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if maxParallel <= 0 {
		maxParallel = runtime.GOMAXPROCS(0)
	}

	results := make([]LangResult, len(langs))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxParallel)

	for i, lang := range langs {
		i, lang := i, lang
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			if err := gctx.Err(); err != nil {
				return err
			}
			kept, total, err := filterOne(filepath.Join(poolDir, lang), filepath.Join(outDir, lang), lang, extractor, p)
			if err != nil {
				return fmt.Errorf("filter: %s: %w", lang, err)
			}
			results[i] = LangResult{Lang: lang, Kept: kept, Total: total}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Report{Languages: results}, nil
}

// filterOne re-scores every line of inPath (one sentence per line, already
// canonicalized by the corpus preparer) and writes the kept subset to
// outPath, keeping a sentence iff the model's predicted label equals lang
// or is in lang's confusable group.
func filterOne(inPath, outPath, lang string, extractor *features.Extractor, p Predictor) (kept, total int, err error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, 0, err
	}
	defer in.Close()
	out, err := os.Create(outPath)
	if err != nil {
		return 0, 0, err
	}
	defer out.Close()

	r := bufio.NewScanner(in)
	r.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	w := bufio.NewWriter(out)

	for r.Scan() {
		text := r.Text()
		if text == "" {
			continue
		}
		total++
		pred := p.PredictLabel(extractor, text)
		if pred == lang || langtable.SameGroup(pred, lang) {
			kept++
			if _, err := w.WriteString(text); err != nil {
				return kept, total, err
			}
			if err := w.WriteByte('\n'); err != nil {
				return kept, total, err
			}
		}
	}
	if err := r.Err(); err != nil {
		return kept, total, err
	}
	return kept, total, w.Flush()
}
