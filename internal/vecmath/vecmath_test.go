package vecmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUnitLength(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
	assert.InDelta(t, 1.0, Norm(v), 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestDotEqualsCosineForUnitVectors(t *testing.T) {
	a := Normalize([]float32{1, 2, 3})
	b := Normalize([]float32{2, 1, 0})
	assert.InDelta(t, CosineSimilarity(a, b), Dot(a, b), 1e-6)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-6)
}

func TestMean(t *testing.T) {
	m := Mean([][]float32{{1, 0}, {3, 2}})
	assert.Equal(t, []float32{2, 1}, m)
	assert.Nil(t, Mean(nil))
}
