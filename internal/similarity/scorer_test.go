package similarity

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func TestScoreIdenticalVectors(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		v := make([]float32, 384)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		v = unit(v)

		res, err := Score(v, v)
		require.NoError(t, err)
		assert.Equal(t, 1.0, res.Raw)
		assert.Equal(t, 100.0, res.Percentage)
		assert.Equal(t, QualityExcellent, res.Quality)
		assert.Equal(t, ConfidenceHigh, res.Confidence)
	}
}

func TestScoreOrthogonalVectors(t *testing.T) {
	t.Parallel()

	res, err := Score([]float32{1, 0, 0}, []float32{0, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.Raw, 1e-9)
	assert.InDelta(t, 50.0, res.Percentage, 1e-9)
	assert.Equal(t, QualityModerate, res.Quality)
	assert.Equal(t, ConfidenceLow, res.Confidence)
}

func TestScoreOppositeVectors(t *testing.T) {
	t.Parallel()

	res, err := Score([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.Equal(t, -1.0, res.Raw)
	assert.Equal(t, 0.0, res.Percentage)
	assert.Equal(t, QualityPoor, res.Quality)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
}

func TestScoreKnownCosine(t *testing.T) {
	t.Parallel()

	res, err := Score([]float32{1, 0}, []float32{0.8, 0.6})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, res.Raw, 1e-6)
	assert.InDelta(t, 90.0, res.Percentage, 1e-4)
	assert.Equal(t, ConfidenceHigh, res.Confidence)
	assert.Equal(t, QualityExcellent, res.Quality)
	assert.Equal(t, "Very strong semantic match", res.Description)
}

func TestScoreInvalidVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
	}{
		{name: "dimension mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}},
		{name: "empty", a: nil, b: []float32{1}},
		{name: "zero norm", a: []float32{0, 0}, b: []float32{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Score(tt.a, tt.b)
			require.ErrorIs(t, err, ErrInvalidVector)
		})
	}
}

func TestInterpretClampsDrift(t *testing.T) {
	t.Parallel()

	high := Interpret(1 + 1e-7)
	assert.Equal(t, 1.0, high.Raw)
	assert.Equal(t, 100.0, high.Percentage)

	low := Interpret(-1 - 1e-7)
	assert.Equal(t, -1.0, low.Raw)
	assert.Equal(t, 0.0, low.Percentage)
}

func TestConfidenceBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    float64
		expect Confidence
	}{
		{raw: 0, expect: ConfidenceLow},
		{raw: 0.0999, expect: ConfidenceLow},
		{raw: 0.1, expect: ConfidenceMedium},
		{raw: -0.1, expect: ConfidenceMedium},
		{raw: 0.6999, expect: ConfidenceMedium},
		{raw: 0.7, expect: ConfidenceHigh},
		{raw: -0.95, expect: ConfidenceHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, ConfidenceFor(tt.raw), "raw=%v", tt.raw)
	}
}

func TestQualityTiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		percentage float64
		expect     Quality
	}{
		{percentage: 100, expect: QualityExcellent},
		{percentage: 80, expect: QualityExcellent},
		{percentage: 79.99, expect: QualityGood},
		{percentage: 60, expect: QualityGood},
		{percentage: 40, expect: QualityModerate},
		{percentage: 20, expect: QualityWeak},
		{percentage: 19.99, expect: QualityPoor},
		{percentage: 0, expect: QualityPoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, QualityFor(tt.percentage), "percentage=%v", tt.percentage)
		assert.NotEmpty(t, descriptions[tt.expect])
	}
}
