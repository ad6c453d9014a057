// Package model implements the INT8, ship-time linear model: per-class weights and scale, a numerically-safe softmax scorer,
// and its binary serialization format. Once loaded, a Model is immutable and safe
// for concurrent Predict calls from any number of goroutines.
package model

import (
	"sort"

	"github.com/jjviana/langid/internal/eval"
)

// Model is the quantized, class-major linear model served at inference
// time. Weights[c] is a contiguous row of NumBuckets int8 values for
// class c; dequantized weight = Weights[c][b] * Scales[c].
type Model struct {
	NumBuckets int
	NumClasses int
	Labels     []string
	labelIndex map[string]int
	Scales     []float32
	Biases     []float32
	Weights    [][]int8 // [NumClasses][NumBuckets]
}

// New builds a Model from already-quantized fields, indexing labels for
// LabelIndex. It does not validate shape; callers that build a
// Model by hand (tests, Quantize) are trusted to pass matching lengths,
// and Load validates shape explicitly for untrusted byte streams.
func New(numBuckets int, labels []string, scales, biases []float32, weights [][]int8) *Model {
	m := &Model{
		NumBuckets: numBuckets,
		NumClasses: len(labels),
		Labels:     labels,
		Scales:     scales,
		Biases:     biases,
		Weights:    weights,
	}
	m.buildIndex()
	return m
}

func (m *Model) buildIndex() {
	m.labelIndex = make(map[string]int, len(m.Labels))
	for i, l := range m.Labels {
		m.labelIndex[l] = i
	}
}

// GetLabel returns the label string for class index idx.
func (m *Model) GetLabel(idx int) string { return m.Labels[idx] }

// GetLabels returns the full, sorted label list.
func (m *Model) GetLabels() []string { return m.Labels }

// LabelIndex returns the class index for a label, or -1 if unknown.
func (m *Model) LabelIndex(label string) int {
	if i, ok := m.labelIndex[label]; ok {
		return i
	}
	return -1
}

// PredictSparse scores the sparse feature vector described by (activeIdx,
// counts) — counts has length NumBuckets, activeIdx names the nonzero
// positions (the exact interface internal/features.Extractor exposes).
// It returns per-class softmax probabilities.
func (m *Model) PredictSparse(activeIdx []int32, counts []int32) []float32 {
	logits := make([]float32, m.NumClasses)
	copy(logits, m.Biases)
	for c := 0; c < m.NumClasses; c++ {
		row := m.Weights[c]
		scale := m.Scales[c]
		var acc float32
		for _, b := range activeIdx {
			acc += float32(row[b]) * float32(counts[b])
		}
		logits[c] += scale * acc
	}
	probs := make([]float32, m.NumClasses)
	eval.Softmax(logits, probs)
	return probs
}

// PredictDense scores a fully materialized feature vector of length
// NumBuckets, matching abstract signature
// predict(features[B]) -> probs[C]. It is a convenience wrapper over
// PredictSparse that first collects the nonzero positions; hot-path
// callers (the CLI, the evaluator) should prefer PredictSparse with the
// indices the extractor already produced.
func (m *Model) PredictDense(features []int32) []float32 {
	idx := make([]int32, 0, len(features)/20)
	for i, v := range features {
		if v != 0 {
			idx = append(idx, int32(i))
		}
	}
	return m.PredictSparse(idx, features)
}

// TopK returns the k highest-probability (label, score) pairs, sorted
// descending by score, satisfying predictTopK.
func TopK(labels []string, probs []float32, k int) []LabelScore {
	n := len(labels)
	if k > n {
		k = n
	}
	out := make([]LabelScore, n)
	for i := range labels {
		out[i] = LabelScore{Label: labels[i], Score: probs[i]}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out[:k]
}

// LabelScore pairs a predicted label with its softmax probability.
type LabelScore struct {
	Label string
	Score float32
}
