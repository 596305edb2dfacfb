package feedback

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/barterhub/barterhub/barterhub/matching"
)

func seedCorpus(t *testing.T, repo *fakeTrainingRepo, positives, negatives int) {
	t.Helper()
	var pairs []*models.TrainingPair
	for i := 0; i < positives; i++ {
		pairs = append(pairs, &models.TrainingPair{
			PairID:   fmt.Sprintf("pos%d", i),
			Features: feat(0.9),
			Label:    true,
			Source:   "feedback",
		})
	}
	for i := 0; i < negatives; i++ {
		pairs = append(pairs, &models.TrainingPair{
			PairID:   fmt.Sprintf("neg%d", i),
			Features: feat(0.1),
			Label:    false,
			Source:   "feedback",
		})
	}
	if _, err := repo.Merge(context.Background(), pairs); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
}

func TestTrainer_SeparableCorpus(t *testing.T) {
	repo := newFakeTrainingRepo()
	seedCorpus(t, repo, 3, 3)

	trainer := NewTrainer(repo, 500, 0.5)
	artifact, err := trainer.Train(context.Background())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if artifact.TrainedOn != 6 {
		t.Errorf("TrainedOn = %d, want 6", artifact.TrainedOn)
	}
	if !reflect.DeepEqual(artifact.FeatureOrder, matching.FeatureNames) {
		t.Errorf("FeatureOrder = %v, want %v", artifact.FeatureOrder, matching.FeatureNames)
	}

	cfg := matching.DefaultConfig()
	blender := matching.NewBlender(&cfg)
	blender.Swap(artifact)

	pos := blender.Predict(feat(0.9))
	neg := blender.Predict(feat(0.1))
	if pos <= neg {
		t.Fatalf("Predict(positive) = %v not above Predict(negative) = %v", pos, neg)
	}
	if pos < 0.7 {
		t.Errorf("Predict(positive) = %v, want a confident score above 0.7", pos)
	}
	if neg > 0.3 {
		t.Errorf("Predict(negative) = %v, want a confident score below 0.3", neg)
	}
}

func TestTrainer_SingleClassCorpus(t *testing.T) {
	for _, tc := range []struct {
		name                 string
		positives, negatives int
	}{
		{"all positive", 4, 0},
		{"all negative", 0, 4},
		{"empty", 0, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeTrainingRepo()
			seedCorpus(t, repo, tc.positives, tc.negatives)

			trainer := NewTrainer(repo, 100, 0.5)
			if _, err := trainer.Train(context.Background()); !errors.Is(err, ErrCorpusTooSmall) {
				t.Errorf("Train() error = %v, want ErrCorpusTooSmall", err)
			}
		})
	}
}

func TestTrainer_RejectsMalformedPair(t *testing.T) {
	repo := newFakeTrainingRepo()
	seedCorpus(t, repo, 1, 1)
	if _, err := repo.Merge(context.Background(), []*models.TrainingPair{{
		PairID:   "short",
		Features: []float64{0.5},
		Label:    true,
	}}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	trainer := NewTrainer(repo, 100, 0.5)
	if _, err := trainer.Train(context.Background()); err == nil {
		t.Error("Train() accepted a pair with a truncated feature vector")
	}
}

func TestTrainer_TrainAndInstall(t *testing.T) {
	repo := newFakeTrainingRepo()
	seedCorpus(t, repo, 3, 3)

	cfg := matching.DefaultConfig()
	blender := matching.NewBlender(&cfg)
	if blender.Ready() {
		t.Fatal("fresh blender reports a model before training")
	}

	path := filepath.Join(t.TempDir(), "model.gob")
	trainer := NewTrainer(repo, 500, 0.5)
	if err := trainer.TrainAndInstall(context.Background(), blender, path); err != nil {
		t.Fatalf("TrainAndInstall() error = %v", err)
	}
	if !blender.Ready() {
		t.Error("blender has no model after TrainAndInstall")
	}

	// The persisted artifact survives a process restart
	loaded, err := matching.LoadArtifact(path)
	if err != nil {
		t.Fatalf("LoadArtifact() error = %v", err)
	}
	if loaded.TrainedOn != 6 {
		t.Errorf("reloaded TrainedOn = %d, want 6", loaded.TrainedOn)
	}
}

func TestTrainer_InstallKeepsModelOnFailure(t *testing.T) {
	repo := newFakeTrainingRepo()
	seedCorpus(t, repo, 3, 0)

	cfg := matching.DefaultConfig()
	blender := matching.NewBlender(&cfg)
	path := filepath.Join(t.TempDir(), "model.gob")

	trainer := NewTrainer(repo, 100, 0.5)
	if err := trainer.TrainAndInstall(context.Background(), blender, path); err == nil {
		t.Fatal("TrainAndInstall() succeeded on a single-class corpus")
	}
	if blender.Ready() {
		t.Error("failed training installed a model")
	}
}
