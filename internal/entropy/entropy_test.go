package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeededIsDeterministic(t *testing.T) {
	a := NewSeeded(99)
	b := NewSeeded(99)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Intn(1000), b.Intn(1000))
		assert.Equal(t, a.Float(), b.Float())
	}
}

func TestFloatRange(t *testing.T) {
	src := NewSeeded(1)
	for i := 0; i < 1000; i++ {
		f := src.Float()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestWeightedIndexBounds(t *testing.T) {
	src := NewSeeded(5)
	weights := []int{1, 2, 3, 4, 5, 5, 4, 3, 2, 1}
	for i := 0; i < 1000; i++ {
		idx := WeightedIndex(src, weights)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, len(weights))
	}
}

func TestWeightedIndexSkipsZeroWeights(t *testing.T) {
	src := NewSeeded(5)
	for i := 0; i < 200; i++ {
		assert.Equal(t, 1, WeightedIndex(src, []int{0, 7, 0}))
	}
}

func TestBetween(t *testing.T) {
	src := NewSeeded(7)
	for i := 0; i < 1000; i++ {
		f := Between(src, 0.75, 1.25)
		assert.GreaterOrEqual(t, f, 0.75)
		assert.Less(t, f, 1.25)
	}
}
