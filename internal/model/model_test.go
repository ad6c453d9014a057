package model

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jjviana/langid/internal/trainmodel"
)

func buildS1() *Model {
	weights := make([][]int8, 3)
	for c := range weights {
		weights[c] = make([]int8, 256)
	}
	weights[0][0] = 127
	weights[0][1] = -127
	weights[1][10] = 50
	weights[2][100] = -100
	return New(256,
		[]string{"eng", "deu", "fra"},
		[]float32{0.01, 0.02, 0.015},
		[]float32{0.1, -0.05, 0.0},
		weights,
	)
}

func TestS1ModelRoundTrip(t *testing.T) {
	m := buildS1()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, m))

	saved := buf.Bytes()
	require.Equal(t, []byte{0x4C, 0x44, 0x4D, 0x31}, saved[:4])

	loaded, err := Load(bytes.NewReader(saved))
	require.NoError(t, err)

	require.Equal(t, m.NumBuckets, loaded.NumBuckets)
	require.Equal(t, m.NumClasses, loaded.NumClasses)
	require.Equal(t, m.Labels, loaded.Labels)
	require.Equal(t, m.Scales, loaded.Scales)
	require.Equal(t, m.Biases, loaded.Biases)
	require.Equal(t, m.Weights, loaded.Weights)
}

func TestS3Predict(t *testing.T) {
	weights := [][]int8{
		{127, 0, 0, 0},
		{0, 127, 0, 0},
	}
	m := New(4, []string{"a", "b"}, []float32{1, 1}, []float32{0, 0}, weights)

	probs := m.PredictDense([]int32{10, 0, 0, 0})
	require.Equal(t, 0, argmax(probs))

	probs = m.PredictDense([]int32{0, 10, 0, 0})
	require.Equal(t, 1, argmax(probs))
}

func argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func TestS4BadMagicRejected(t *testing.T) {
	bad := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 1, 0, 0, 0, 1}
	_, err := Load(bytes.NewReader(bad))
	require.Error(t, err)
}

func TestLoadTruncatedRejected(t *testing.T) {
	m := buildS1()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, m))
	truncated := buf.Bytes()[:len(buf.Bytes())-10]
	_, err := Load(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestS5QuantizerBound(t *testing.T) {
	fp := trainmodel.New([]string{"a", "b", "c"}, 100)
	// class 2, bucket 7, max abs 0.37
	fp.Row(7)[2] = 0.37
	fp.Row(3)[2] = -0.1
	fp.Row(50)[0] = 0.05

	q := Quantize(fp)
	require.InDelta(t, 0.37/127.0, float64(q.Scales[2]), 1e-6)
	require.True(t, q.Scales[2] >= 0.00291 && q.Scales[2] <= 0.00292)

	for b := 0; b < fp.NumBuckets; b++ {
		orig := float64(fp.Row(b)[2])
		deq := float64(q.Weights[2][b]) * float64(q.Scales[2])
		require.LessOrEqual(t, math.Abs(deq-orig), float64(q.Scales[2])+1e-9)
	}
}

func TestQuantizeZeroRowUsesScaleOne(t *testing.T) {
	fp := trainmodel.New([]string{"a"}, 16)
	q := Quantize(fp)
	require.Equal(t, float32(1.0), q.Scales[0])
	for _, w := range q.Weights[0] {
		require.Zero(t, w)
	}
}

func TestTopK(t *testing.T) {
	labels := []string{"a", "b", "c"}
	probs := []float32{0.1, 0.7, 0.2}
	top := TopK(labels, probs, 2)
	require.Len(t, top, 2)
	require.Equal(t, "b", top[0].Label)
	require.Equal(t, "c", top[1].Label)
}
