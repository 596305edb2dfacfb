package matching

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"sync/atomic"
)

// Artifact is a trained logistic regression: coefficients, intercept and the
// feature ordering they were fit against. Serialized with gob.
type Artifact struct {
	Coefficients []float64
	Intercept    float64
	FeatureOrder []string
	TrainedOn    int
}

// LoadArtifact reads a gob-encoded model artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var artifact Artifact
	if err := gob.NewDecoder(file).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	if len(artifact.Coefficients) != FeatureCount {
		return nil, fmt.Errorf("model artifact has %d coefficients, expected %d", len(artifact.Coefficients), FeatureCount)
	}
	return &artifact, nil
}

// Save writes the artifact to a temp file and renames it into place, so a
// concurrent loader never sees a half-written model.
func (a *Artifact) Save(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(a); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode model artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close artifact file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to install artifact: %w", err)
	}
	return nil
}

// Blender holds the learned classifier and combines its prediction with the
// rule-based score. The artifact is shared read-only across concurrent
// scoring calls; Swap replaces it atomically so readers see either the old
// or the new model, never a mix.
type Blender struct {
	artifact   atomic.Pointer[Artifact]
	ruleWeight float64
	mlWeight   float64
	warnOnce   sync.Once
}

func NewBlender(cfg *Config) *Blender {
	return &Blender{
		ruleWeight: cfg.RuleWeight,
		mlWeight:   cfg.MLWeight,
	}
}

// LoadFrom loads and installs an artifact from disk. A missing artifact is
// not an error: the blender degrades to rule-based-only scoring.
func (b *Blender) LoadFrom(path string) error {
	artifact, err := LoadArtifact(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No trained model artifact, scoring is rule-based only",
				slog.String("type", "match"),
				slog.String("path", path))
			return nil
		}
		return err
	}
	b.Swap(artifact)
	return nil
}

// Swap atomically installs a new artifact.
func (b *Blender) Swap(artifact *Artifact) {
	b.artifact.Store(artifact)
	slog.Info("Model artifact installed",
		slog.String("type", "match"),
		slog.Int("trained_on", artifact.TrainedOn))
}

// Ready reports whether a trained model is loaded.
func (b *Blender) Ready() bool {
	return b.artifact.Load() != nil
}

// Predict returns the classifier's match confidence for a feature vector.
// Without a trained model it returns the neutral fallback 0.0.
func (b *Blender) Predict(features []float64) float64 {
	artifact := b.artifact.Load()
	if artifact == nil {
		b.warnOnce.Do(func() {
			slog.Warn("Predict called without a model, returning neutral fallback",
				slog.String("type", "match"))
		})
		return 0.0
	}

	z := artifact.Intercept
	for i, coef := range artifact.Coefficients {
		if i < len(features) {
			z += coef * features[i]
		}
	}
	return logistic(z)
}

// Combine blends rule-based and learned scores into one normalized score.
// The weighted sum is always divided by the weight total; an unnormalized
// combination can exceed 1.0 and must never escape this method. Without a
// model the rule score passes through unchanged.
func (b *Blender) Combine(ruleScore, mlScore float64) float64 {
	if !b.Ready() {
		return clamp01(ruleScore)
	}
	combined := (ruleScore*b.ruleWeight + mlScore*b.mlWeight) / (b.ruleWeight + b.mlWeight)
	return clamp01(combined)
}

func logistic(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
