package engine

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lora-inspector/inspector/fs/safetensors"
)

func TestDecodeRoundTrip(t *testing.T) {
	values := []float32{1, -2, 0.5, 3}

	for _, dtype := range []safetensors.DType{safetensors.DTypeF16, safetensors.DTypeBF16, safetensors.DTypeF32, safetensors.DTypeF64} {
		t.Run(string(dtype), func(t *testing.T) {
			bts, err := Encode(dtype, values)
			require.NoError(t, err)

			info := safetensors.TensorInfo{Name: "x", DType: dtype, Shape: []uint64{2, 2}, Offsets: [2]uint64{0, uint64(len(bts))}}
			got, err := Decode(info, bytes.NewReader(bts))
			require.NoError(t, err)

			assert.Equal(t, []int{2, 2}, got.Shape)
			assert.Equal(t, []float64{1, -2, 0.5, 3}, got.Data)
		})
	}
}

func TestDecodeUnsupported(t *testing.T) {
	info := safetensors.TensorInfo{Name: "x", DType: safetensors.DTypeI8, Shape: []uint64{1}, Offsets: [2]uint64{0, 1}}
	_, err := Decode(info, bytes.NewReader([]byte{1}))
	if !errors.Is(err, ErrUnsupportedDType) {
		t.Errorf("Erwartete ErrUnsupportedDType, bekam %v", err)
	}
}

func TestLoRA(t *testing.T) {
	up := &Tensor{Shape: []int{2, 1}, Data: []float64{1, 2}}
	down := &Tensor{Shape: []int{1, 3}, Data: []float64{1, 0, -1}}

	w, err := LoRA(up, down, 0.5)
	require.NoError(t, err)

	// alpha 0.5 / rank 1
	assert.Equal(t, []int{2, 3}, w.Shape)
	assert.Equal(t, []float64{0.5, 0, -0.5, 1, 0, -1}, w.Data)
}

func TestLoRAConv(t *testing.T) {
	up := &Tensor{Shape: []int{2, 1, 1, 1}, Data: []float64{1, 1}}
	down := &Tensor{Shape: []int{1, 1, 3, 3}, Data: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1}}

	w, err := LoRA(up, down, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 9}, w.Shape)
}

func TestLoRAShapeMismatch(t *testing.T) {
	up := &Tensor{Shape: []int{2, 2}, Data: []float64{1, 2, 3, 4}}
	down := &Tensor{Shape: []int{3, 1}, Data: []float64{1, 2, 3}}

	_, err := LoRA(up, down, 1)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Erwartete ErrShapeMismatch, bekam %v", err)
	}
}

func TestLoHa(t *testing.T) {
	w1a := &Tensor{Shape: []int{2, 1}, Data: []float64{1, 2}}
	w1b := &Tensor{Shape: []int{1, 2}, Data: []float64{1, 1}}
	w2a := &Tensor{Shape: []int{2, 1}, Data: []float64{3, 1}}
	w2b := &Tensor{Shape: []int{1, 2}, Data: []float64{1, 2}}

	w, err := LoHa(w1a, w1b, w2a, w2b, 2)
	require.NoError(t, err)

	// (w1a@w1b) = [[1,1],[2,2]], (w2a@w2b) = [[3,6],[1,2]], alpha/rank = 2
	assert.Equal(t, []float64{6, 12, 4, 8}, w.Data)
}

func TestLoKr(t *testing.T) {
	w1 := &Tensor{Shape: []int{1, 2}, Data: []float64{1, 2}}
	w2 := &Tensor{Shape: []int{2, 1}, Data: []float64{1, -1}}

	w, err := LoKr(w1, w2, 1)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2}, w.Shape)
	assert.Equal(t, []float64{1, 2, -1, -2}, w.Data)
}

func TestNorms(t *testing.T) {
	tt := &Tensor{Shape: []int{2, 2}, Data: []float64{3, -4, 0, 1}}

	got := Norms(tt, AllMetrics...)
	assert.InDelta(t, 8, got["l1_norm"], 1e-9)
	assert.InDelta(t, math.Sqrt(26), got["l2_norm"], 1e-9)
	assert.InDelta(t, math.Sqrt(26), got["matrix_norm"], 1e-9)
	assert.InDelta(t, -4, got["min"], 1e-9)
	assert.InDelta(t, 3, got["max"], 1e-9)
	assert.InDelta(t, 0.5, got["median"], 1e-9)
	assert.InDelta(t, math.Sqrt(6.5), got["std_dev"], 1e-9)
}

func TestNormsOnlyRequested(t *testing.T) {
	got := Norms(&Tensor{Shape: []int{3}, Data: []float64{1, 2, 3}}, MetricMedian)
	assert.Equal(t, map[string]float64{"median": 2}, got)
}

func TestNormsEmptyOmitsMetrics(t *testing.T) {
	got := Norms(&Tensor{Shape: []int{0}}, AllMetrics...)
	assert.Empty(t, got)
}

func TestParseMetrics(t *testing.T) {
	got, err := ParseMetrics(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMetrics, got)

	got, err = ParseMetrics([]string{"max", "max", "median"})
	require.NoError(t, err)
	assert.Equal(t, []Metric{MetricMax, MetricMedian}, got)

	_, err = ParseMetrics([]string{"l2norm"})
	require.ErrorIs(t, err, ErrUnknownMetric)
	assert.Contains(t, err.Error(), `"l2_norm"`)
}

func TestSparsity(t *testing.T) {
	s := Sparsity(&Tensor{Shape: []int{4}, Data: []float64{0, 1e-9, 1, -1}}, 1e-6)
	assert.InDelta(t, 0.5, s, 1e-9)
}
