package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/barterhub/barterhub/barterhub/database/repositories"
	"github.com/barterhub/barterhub/barterhub/matching"
)

var (
	ErrUnknownLabel    = errors.New("unknown feedback label")
	ErrBadFeatureCount = errors.New("feature vector has wrong length")
)

// Submission is one user verdict on a proposed pairing.
type Submission struct {
	PairID         string
	ItemAID        int64
	ItemBID        int64
	Features       []float64
	PredictedScore float64
	Label          models.FeedbackLabel
	LabeledBy      string
}

// Metrics is the runtime quality of the scorer measured against user labels:
// a pair counts as predicted-positive when its score at proposal time met
// the threshold.
type Metrics struct {
	Labeled   int
	Threshold float64

	TruePositives  int
	FalsePositives int
	FalseNegatives int
	TrueNegatives  int

	Precision float64
	Recall    float64
	F1        float64
}

// Manager owns the feedback loop: recording verdicts, deciding when enough
// new signal has accumulated to retrain, and moving labeled records into the
// training corpus exactly once.
type Manager struct {
	feedback   repositories.FeedbackRepository
	training   repositories.TrainingRepository
	minRetrain int
}

func NewManager(feedback repositories.FeedbackRepository, training repositories.TrainingRepository, minRetrain int) *Manager {
	return &Manager{
		feedback:   feedback,
		training:   training,
		minRetrain: minRetrain,
	}
}

// Log validates and stores a feedback submission. Repeat submissions for the
// same pair overwrite a pending verdict; the first terminal verdict sticks.
func (m *Manager) Log(ctx context.Context, sub Submission) error {
	switch sub.Label {
	case models.FeedbackConfirmed, models.FeedbackRejected, models.FeedbackPending:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLabel, sub.Label)
	}
	if len(sub.Features) != matching.FeatureCount {
		return fmt.Errorf("%w: got %d, want %d", ErrBadFeatureCount, len(sub.Features), matching.FeatureCount)
	}

	record := &models.FeedbackRecord{
		PairID:         sub.PairID,
		ItemAID:        sub.ItemAID,
		ItemBID:        sub.ItemBID,
		Features:       sub.Features,
		PredictedScore: sub.PredictedScore,
		Label:          sub.Label,
		LabeledBy:      sub.LabeledBy,
	}
	if err := m.feedback.Upsert(ctx, record); err != nil {
		return err
	}

	slog.Info("Feedback recorded",
		slog.String("type", "feedback"),
		slog.String("pair_id", sub.PairID),
		slog.String("label", string(sub.Label)))
	return nil
}

// Metrics computes precision, recall and F1 over every labeled pair. Zero
// denominators yield zero, not NaN.
func (m *Manager) Metrics(ctx context.Context, threshold float64) (*Metrics, error) {
	records, err := m.feedback.GetLabeled(ctx)
	if err != nil {
		return nil, err
	}

	metrics := &Metrics{Labeled: len(records), Threshold: threshold}
	for _, rec := range records {
		predicted := rec.PredictedScore >= threshold
		actual := rec.Label == models.FeedbackConfirmed
		switch {
		case predicted && actual:
			metrics.TruePositives++
		case predicted && !actual:
			metrics.FalsePositives++
		case !predicted && actual:
			metrics.FalseNegatives++
		default:
			metrics.TrueNegatives++
		}
	}

	if p := metrics.TruePositives + metrics.FalsePositives; p > 0 {
		metrics.Precision = float64(metrics.TruePositives) / float64(p)
	}
	if r := metrics.TruePositives + metrics.FalseNegatives; r > 0 {
		metrics.Recall = float64(metrics.TruePositives) / float64(r)
	}
	if metrics.Precision+metrics.Recall > 0 {
		metrics.F1 = 2 * metrics.Precision * metrics.Recall / (metrics.Precision + metrics.Recall)
	}
	return metrics, nil
}

// ShouldRetrain reports whether enough labeled-but-uncommitted feedback has
// accumulated to justify a retraining pass, and how much there is.
func (m *Manager) ShouldRetrain(ctx context.Context) (bool, int, error) {
	count, err := m.feedback.CountUncommittedLabeled(ctx)
	if err != nil {
		return false, 0, err
	}
	return count >= m.minRetrain, count, nil
}

// CommitToTraining merges every labeled, uncommitted feedback record into
// the training corpus and marks it committed. Pairs already present in the
// corpus are counted as skipped, so replaying a batch after a crash between
// merge and mark never duplicates rows.
func (m *Manager) CommitToTraining(ctx context.Context) (added int, err error) {
	records, err := m.feedback.GetUncommittedLabeled(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	pairs := make([]*models.TrainingPair, 0, len(records))
	pairIDs := make([]string, 0, len(records))
	for _, rec := range records {
		pairs = append(pairs, &models.TrainingPair{
			PairID:    rec.PairID,
			Features:  rec.Features,
			Label:     rec.Label == models.FeedbackConfirmed,
			Source:    "feedback",
			CreatedAt: time.Now(),
		})
		pairIDs = append(pairIDs, rec.PairID)
	}

	added, err = m.training.Merge(ctx, pairs)
	if err != nil {
		return 0, fmt.Errorf("failed to merge feedback into training corpus: %w", err)
	}
	if err := m.feedback.MarkCommitted(ctx, pairIDs); err != nil {
		return added, fmt.Errorf("failed to mark feedback committed: %w", err)
	}

	slog.Info("Feedback committed to training corpus",
		slog.String("type", "feedback"),
		slog.Int("labeled", len(records)),
		slog.Int("added", added),
		slog.Int("skipped", len(records)-added))
	return added, nil
}
