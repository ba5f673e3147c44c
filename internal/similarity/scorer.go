// Package similarity turns a pair of embeddings into an interpreted
// compatibility score.
package similarity

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVector is returned when two vectors cannot be compared.
var ErrInvalidVector = errors.New("invalid vector")

const (
	// MinConfidenceThreshold is the absolute similarity below which a result
	// carries low confidence.
	MinConfidenceThreshold = 0.1
	// HighConfidenceThreshold is the absolute similarity at which a result
	// carries high confidence.
	HighConfidenceThreshold = 0.7
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type Quality string

const (
	QualityPoor      Quality = "poor"
	QualityWeak      Quality = "weak"
	QualityModerate  Quality = "moderate"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
)

var descriptions = map[Quality]string{
	QualityExcellent: "Very strong semantic match",
	QualityGood:      "Good semantic alignment",
	QualityModerate:  "Moderate semantic similarity",
	QualityWeak:      "Limited semantic overlap",
	QualityPoor:      "Minimal semantic similarity",
}

// Result is the interpretation of a raw cosine similarity.
type Result struct {
	Raw         float64    `json:"raw_similarity"`
	Percentage  float64    `json:"percentage"`
	Confidence  Confidence `json:"confidence"`
	Quality     Quality    `json:"quality"`
	Description string     `json:"description"`
}

// Score compares two embeddings and interprets their cosine similarity.
func Score(a, b []float32) (Result, error) {
	raw, err := Cosine(a, b)
	if err != nil {
		return Result{}, err
	}
	return Interpret(raw), nil
}

// Cosine returns the cosine similarity of a and b clamped to [-1, 1].
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimension mismatch %d != %d", ErrInvalidVector, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero norm", ErrInvalidVector)
	}

	sim := dot / math.Sqrt(normA*normB)
	if math.IsNaN(sim) {
		return 0, fmt.Errorf("%w: similarity is not a number", ErrInvalidVector)
	}

	return clamp(sim, -1, 1), nil
}

// Interpret maps a raw similarity onto percentage, confidence and quality.
func Interpret(raw float64) Result {
	raw = clamp(raw, -1, 1)
	percentage := ToPercentage(raw)
	quality := QualityFor(percentage)

	return Result{
		Raw:         raw,
		Percentage:  percentage,
		Confidence:  ConfidenceFor(raw),
		Quality:     quality,
		Description: descriptions[quality],
	}
}

// ToPercentage maps [-1, 1] onto [0, 100].
func ToPercentage(raw float64) float64 {
	return clamp((raw+1)/2*100, 0, 100)
}

func ConfidenceFor(raw float64) Confidence {
	abs := math.Abs(raw)
	switch {
	case abs >= HighConfidenceThreshold:
		return ConfidenceHigh
	case abs >= MinConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func QualityFor(percentage float64) Quality {
	switch {
	case percentage >= 80:
		return QualityExcellent
	case percentage >= 60:
		return QualityGood
	case percentage >= 40:
		return QualityModerate
	case percentage >= 20:
		return QualityWeak
	default:
		return QualityPoor
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
