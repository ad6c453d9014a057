package eval

import "math"

// Softmax computes a numerically stable softmax over logits, writing into
// out (which must be the same length as logits; out and logits may alias).
// Per : subtract max(logits) before exp; if the resulting sum
// is zero, return a uniform distribution instead of dividing by zero.
func Softmax(logits []float32, out []float32) {
	if len(logits) == 0 {
		return
	}
	max := logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}
	var sum float64
	exps := make([]float64, len(logits))
	for i, l := range logits {
		e := math.Exp(float64(l) - float64(max))
		exps[i] = e
		sum += e
	}
	if sum == 0 {
		uniform := float32(1.0 / float64(len(logits)))
		for i := range out {
			out[i] = uniform
		}
		return
	}
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
}

// Argmax returns the index of the largest element of v, breaking ties by
// first occurrence.
func Argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
