// Package trainmodel holds the FP32, training-time linear model: bucket-major weights for cache-friendly sparse scoring, plus the
// transient Adam optimizer state. Everything here is freed once
// internal/model.Quantize has produced the shipped INT8 model.
package trainmodel

import (
	"math"
	"sort"
)

// Model is the trainer's live FP32 weight matrix. Weights are stored
// bucket-major ([]float32 of length NumBuckets*NumClasses, row b at
// b*NumClasses) so that scoring one active bucket touches one contiguous
// row of per-class weights — the access pattern the sparse forward pass
// needs.
type Model struct {
	NumBuckets int
	NumClasses int
	Labels     []string
	LabelIndex map[string]int
	Weights    []float32
	Biases     []float32
}

// New allocates a zeroed Model for the given label set and bucket width.
// labels must already be sorted and unique; New does not re-sort them so
// that the caller's frozen LabelIndex (built during the scan phase) stays
// in agreement with Labels' order.
func New(labels []string, numBuckets int) *Model {
	c := len(labels)
	idx := make(map[string]int, c)
	for i, l := range labels {
		idx[l] = i
	}
	return &Model{
		NumBuckets: numBuckets,
		NumClasses: c,
		Labels:     append([]string(nil), labels...),
		LabelIndex: idx,
		Weights:    make([]float32, numBuckets*c),
		Biases:     make([]float32, c),
	}
}

// SortedLabels returns the keys of a label set as a freshly sorted slice,
// matching the "labels unique and sorted" invariant. The trainer's scan
// phase does the same sort inline and does not call it.
func SortedLabels(seen map[string]struct{}) []string {
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Row returns the weight row for bucket b as a slice of length NumClasses,
// sharing storage with m.Weights — mutating it mutates the model.
func (m *Model) Row(b int) []float32 {
	off := b * m.NumClasses
	return m.Weights[off : off+m.NumClasses]
}

// Norm returns the L2 norm of the weight matrix, used for the non-finite
// diagnostics requires when training aborts.
func (m *Model) Norm() float64 {
	var sum float64
	for _, w := range m.Weights {
		f := float64(w)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// MaxAbsWeight returns the largest-magnitude weight in the matrix.
func (m *Model) MaxAbsWeight() float64 {
	var max float64
	for _, w := range m.Weights {
		a := math.Abs(float64(w))
		if a > max {
			max = a
		}
	}
	return max
}

// IsFinite reports whether every weight and bias is finite. The trainer
// calls this at checkpoint boundaries; a non-finite value is fatal.
func (m *Model) IsFinite() bool {
	for _, w := range m.Weights {
		if math.IsNaN(float64(w)) || math.IsInf(float64(w), 0) {
			return false
		}
	}
	for _, b := range m.Biases {
		if math.IsNaN(float64(b)) || math.IsInf(float64(b), 0) {
			return false
		}
	}
	return true
}

// AdamMoments is the transient first/second-moment state for one Adam
// "owner" (either the single shared owner in single-threaded Adam, or one
// per worker in multi-threaded Hogwild-Adam — requires
// per-thread moments and step counters whenever threads > 1).
type AdamMoments struct {
	M, V       []float32 // shaped like Weights: [NumBuckets*NumClasses]
	MBias, VBias []float32 // shaped like Biases: [NumClasses]
	Step       uint64     // not updated by internal/trainer, which keeps Adam's step count in its own counters
}

// NewAdamMoments allocates zeroed moment arrays for a model of the given
// shape.
func NewAdamMoments(numBuckets, numClasses int) *AdamMoments {
	return &AdamMoments{
		M:     make([]float32, numBuckets*numClasses),
		V:     make([]float32, numBuckets*numClasses),
		MBias: make([]float32, numClasses),
		VBias: make([]float32, numClasses),
	}
}

// Row returns the moment rows for bucket b (m, v), each of length
// NumClasses, sharing storage with the AdamMoments arrays.
func (a *AdamMoments) Row(b, numClasses int) (m, v []float32) {
	off := b * numClasses
	return a.M[off : off+numClasses], a.V[off : off+numClasses]
}
