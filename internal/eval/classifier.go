package eval

import (
	"encoding/json"
	"fmt"
	"os"
)

// Classifier labels response embeddings for the faithfulness split. Label 1
// routes a response to the context judge, label 0 to the relevance fallback.
type Classifier interface {
	Predict(embeddings [][]float32) []int
}

// LinearClassifier is a logistic-regression decision boundary loaded from a
// trained artifact.
type LinearClassifier struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

var _ Classifier = (*LinearClassifier)(nil)

// LoadClassifier reads a linear classifier artifact from a JSON file.
func LoadClassifier(path string) (*LinearClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier artifact: %w", err)
	}
	var c LinearClassifier
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse classifier artifact: %w", err)
	}
	if len(c.Weights) == 0 {
		return nil, fmt.Errorf("classifier artifact has no weights")
	}
	return &c, nil
}

// Predict assigns label 1 to embeddings on the positive side of the decision
// boundary. Embeddings whose dimension does not match the weights get label 0.
func (c *LinearClassifier) Predict(embeddings [][]float32) []int {
	labels := make([]int, len(embeddings))
	for i, emb := range embeddings {
		if len(emb) != len(c.Weights) {
			continue
		}
		score := c.Intercept
		for j, v := range emb {
			score += c.Weights[j] * float64(v)
		}
		if score > 0 {
			labels[i] = 1
		}
	}
	return labels
}
