package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/barterhub/barterhub/barterhub/database/repositories"
	"github.com/barterhub/barterhub/barterhub/matching"
)

var ErrCorpusTooSmall = errors.New("training corpus lacks examples of both labels")

// Trainer fits the logistic regression the score blender runs. Plain batch
// gradient descent is enough at this feature count; the corpus fits in
// memory and a fit takes milliseconds.
type Trainer struct {
	training     repositories.TrainingRepository
	epochs       int
	learningRate float64
}

func NewTrainer(training repositories.TrainingRepository, epochs int, learningRate float64) *Trainer {
	return &Trainer{
		training:     training,
		epochs:       epochs,
		learningRate: learningRate,
	}
}

// Train fits a fresh model on the full training corpus. The corpus must
// contain at least one positive and one negative example; a single-class fit
// would degenerate to a constant predictor.
func (t *Trainer) Train(ctx context.Context) (*matching.Artifact, error) {
	pairs, err := t.training.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load training corpus: %w", err)
	}

	positives := 0
	for _, pair := range pairs {
		if len(pair.Features) != matching.FeatureCount {
			return nil, fmt.Errorf("training pair %s has %d features, want %d",
				pair.PairID, len(pair.Features), matching.FeatureCount)
		}
		if pair.Label {
			positives++
		}
	}
	if positives == 0 || positives == len(pairs) {
		return nil, fmt.Errorf("%w: %d positive of %d", ErrCorpusTooSmall, positives, len(pairs))
	}

	started := time.Now()
	coefficients := make([]float64, matching.FeatureCount)
	intercept := 0.0
	n := float64(len(pairs))

	for epoch := 0; epoch < t.epochs; epoch++ {
		gradW := make([]float64, matching.FeatureCount)
		gradB := 0.0

		for _, pair := range pairs {
			z := intercept
			for i, coef := range coefficients {
				z += coef * pair.Features[i]
			}
			predicted := 1.0 / (1.0 + math.Exp(-z))

			target := 0.0
			if pair.Label {
				target = 1.0
			}
			residual := predicted - target

			for i, feat := range pair.Features {
				gradW[i] += residual * feat
			}
			gradB += residual
		}

		for i := range coefficients {
			coefficients[i] -= t.learningRate * gradW[i] / n
		}
		intercept -= t.learningRate * gradB / n
	}

	slog.Info("Model retrained",
		slog.String("type", "feedback"),
		slog.Int("corpus", len(pairs)),
		slog.Int("positives", positives),
		slog.Int("epochs", t.epochs),
		slog.Duration("took", time.Since(started)))

	return &matching.Artifact{
		Coefficients: coefficients,
		Intercept:    intercept,
		FeatureOrder: append([]string(nil), matching.FeatureNames...),
		TrainedOn:    len(pairs),
	}, nil
}

// TrainAndInstall fits a model, persists the artifact and hot-swaps it into
// the blender. On any failure the currently installed model stays active.
func (t *Trainer) TrainAndInstall(ctx context.Context, blender *matching.Blender, artifactPath string) error {
	artifact, err := t.Train(ctx)
	if err != nil {
		return err
	}
	if err := artifact.Save(artifactPath); err != nil {
		return err
	}
	blender.Swap(artifact)
	return nil
}
