package eval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	logits := []float32{1000, 1001, 999}
	out := make([]float32, 3)
	Softmax(logits, out)
	var sum float64
	for _, v := range out {
		require.False(t, math.IsNaN(float64(v)))
		require.False(t, math.IsInf(float64(v), 0))
		sum += float64(v)
	}
	require.InDelta(t, 1.0, sum, 1e-5)
	require.Greater(t, out[1], out[0])
	require.Greater(t, out[0], out[2])
}

func TestSoftmaxShiftInvariant(t *testing.T) {
	base := []float32{2.5, -1.0, 0.3, 7.0}
	shifted := make([]float32, len(base))
	for i, v := range base {
		shifted[i] = v + 1000
	}
	o1 := make([]float32, len(base))
	o2 := make([]float32, len(base))
	Softmax(base, o1)
	Softmax(shifted, o2)
	for i := range o1 {
		require.InDelta(t, float64(o1[i]), float64(o2[i]), 1e-5)
	}
}

func TestSoftmaxArgmaxPreserved(t *testing.T) {
	logits := []float32{-5, 3, 1, -100, 3.0001}
	out := make([]float32, len(logits))
	Softmax(logits, out)
	require.Equal(t, Argmax(logits), Argmax(out))
}

func TestSoftmaxAllEqualIsUniform(t *testing.T) {
	logits := []float32{5, 5, 5, 5}
	out := make([]float32, 4)
	Softmax(logits, out)
	for _, v := range out {
		require.InDelta(t, 0.25, float64(v), 1e-6)
	}
}
