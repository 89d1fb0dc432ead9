package clustering

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/logtriage/logtriage-ai/internal/vecmath"
)

// Centroid is one cluster's mean vector with its stable id.
type Centroid struct {
	ID     string
	Vector []float32
}

// Model is the fitted clustering artifact the predict path runs against.
// A fit produces per-cluster centroids; prediction is nearest-centroid by
// cosine distance with a cutoff. The struct is gob-encoded as one blob.
type Model struct {
	Algorithm       string
	EmbedModel      string
	TailChars       int
	AssignThreshold float64
	Centroids       []Centroid
	NextID          int
	TrainedAt       time.Time
}

// Predict returns the id of the nearest centroid when its cosine
// distance is within the assign threshold. ok is false when the vector
// is too far from every centroid and needs a fresh cluster.
func (m *Model) Predict(vector []float32) (id string, distance float64, ok bool) {
	best := -1
	bestDist := 2.0
	for i := range m.Centroids {
		if d := vecmath.CosineDistance(vector, m.Centroids[i].Vector); d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best == -1 || bestDist > m.AssignThreshold {
		return "", bestDist, false
	}
	return m.Centroids[best].ID, bestDist, true
}

// SaveModel writes the model atomically: temp file in the target
// directory, then rename.
func SaveModel(m *Model, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(m); err != nil {
		tmp.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename model file: %w", err)
	}
	return nil
}

// LoadModel reads a model written by SaveModel.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &m, nil
}
