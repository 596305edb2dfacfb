package feedback

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/barterhub/barterhub/barterhub/matching"
)

type fakeFeedbackRepo struct {
	records map[string]*models.FeedbackRecord
	order   []string
}

func newFakeFeedbackRepo() *fakeFeedbackRepo {
	return &fakeFeedbackRepo{records: make(map[string]*models.FeedbackRecord)}
}

func (f *fakeFeedbackRepo) Upsert(_ context.Context, record *models.FeedbackRecord) error {
	existing, ok := f.records[record.PairID]
	if ok && existing.Label.Terminal() {
		return nil
	}
	clone := *record
	if ok {
		clone.Committed = existing.Committed
	} else {
		f.order = append(f.order, record.PairID)
	}
	f.records[record.PairID] = &clone
	return nil
}

func (f *fakeFeedbackRepo) GetByPairID(_ context.Context, pairID string) (*models.FeedbackRecord, error) {
	record, ok := f.records[pairID]
	if !ok {
		return nil, fmt.Errorf("no feedback for pair %s", pairID)
	}
	return record, nil
}

func (f *fakeFeedbackRepo) GetLabeled(context.Context) ([]*models.FeedbackRecord, error) {
	var labeled []*models.FeedbackRecord
	for _, id := range f.order {
		if rec := f.records[id]; rec.Label.Terminal() {
			labeled = append(labeled, rec)
		}
	}
	return labeled, nil
}

func (f *fakeFeedbackRepo) CountUncommittedLabeled(ctx context.Context) (int, error) {
	records, err := f.GetUncommittedLabeled(ctx)
	return len(records), err
}

func (f *fakeFeedbackRepo) GetUncommittedLabeled(context.Context) ([]*models.FeedbackRecord, error) {
	var pending []*models.FeedbackRecord
	for _, id := range f.order {
		if rec := f.records[id]; rec.Label.Terminal() && !rec.Committed {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

func (f *fakeFeedbackRepo) MarkCommitted(_ context.Context, pairIDs []string) error {
	for _, id := range pairIDs {
		if rec, ok := f.records[id]; ok {
			rec.Committed = true
		}
	}
	return nil
}

type fakeTrainingRepo struct {
	pairs map[string]*models.TrainingPair
	order []string
}

func newFakeTrainingRepo() *fakeTrainingRepo {
	return &fakeTrainingRepo{pairs: make(map[string]*models.TrainingPair)}
}

func (f *fakeTrainingRepo) Merge(_ context.Context, pairs []*models.TrainingPair) (int, error) {
	added := 0
	for _, pair := range pairs {
		if _, ok := f.pairs[pair.PairID]; ok {
			continue
		}
		clone := *pair
		f.pairs[pair.PairID] = &clone
		f.order = append(f.order, pair.PairID)
		added++
	}
	return added, nil
}

func (f *fakeTrainingRepo) GetAll(context.Context) ([]*models.TrainingPair, error) {
	all := make([]*models.TrainingPair, 0, len(f.order))
	for _, id := range f.order {
		all = append(all, f.pairs[id])
	}
	return all, nil
}

func (f *fakeTrainingRepo) Count(context.Context) (int, error) {
	return len(f.pairs), nil
}

func feat(v float64) []float64 {
	features := make([]float64, matching.FeatureCount)
	for i := range features {
		features[i] = v
	}
	return features
}

func submission(pairID string, score float64, label models.FeedbackLabel) Submission {
	return Submission{
		PairID:         pairID,
		ItemAID:        1,
		ItemBID:        2,
		Features:       feat(score),
		PredictedScore: score,
		Label:          label,
		LabeledBy:      "anna",
	}
}

func TestManager_LogValidation(t *testing.T) {
	manager := NewManager(newFakeFeedbackRepo(), newFakeTrainingRepo(), 3)
	ctx := context.Background()

	sub := submission("p1", 0.8, "maybe")
	if err := manager.Log(ctx, sub); !errors.Is(err, ErrUnknownLabel) {
		t.Errorf("Log() with bad label error = %v, want ErrUnknownLabel", err)
	}

	sub = submission("p1", 0.8, models.FeedbackConfirmed)
	sub.Features = []float64{0.1, 0.2}
	if err := manager.Log(ctx, sub); !errors.Is(err, ErrBadFeatureCount) {
		t.Errorf("Log() with short features error = %v, want ErrBadFeatureCount", err)
	}

	if err := manager.Log(ctx, submission("p1", 0.8, models.FeedbackConfirmed)); err != nil {
		t.Errorf("Log() valid submission error = %v", err)
	}
}

func TestManager_FirstTerminalLabelWins(t *testing.T) {
	repo := newFakeFeedbackRepo()
	manager := NewManager(repo, newFakeTrainingRepo(), 3)
	ctx := context.Background()

	steps := []models.FeedbackLabel{
		models.FeedbackPending,
		models.FeedbackConfirmed,
		models.FeedbackRejected,
	}
	for _, label := range steps {
		if err := manager.Log(ctx, submission("p1", 0.8, label)); err != nil {
			t.Fatalf("Log(%s) error = %v", label, err)
		}
	}

	record, err := repo.GetByPairID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByPairID() error = %v", err)
	}
	if record.Label != models.FeedbackConfirmed {
		t.Errorf("label after resubmissions = %s, want confirmed to stick", record.Label)
	}
}

func TestManager_Metrics(t *testing.T) {
	manager := NewManager(newFakeFeedbackRepo(), newFakeTrainingRepo(), 3)
	ctx := context.Background()

	subs := []Submission{
		submission("tp", 0.9, models.FeedbackConfirmed),
		submission("fp", 0.8, models.FeedbackRejected),
		submission("fn", 0.2, models.FeedbackConfirmed),
		submission("tn", 0.1, models.FeedbackRejected),
		submission("open", 0.7, models.FeedbackPending),
	}
	for _, sub := range subs {
		if err := manager.Log(ctx, sub); err != nil {
			t.Fatalf("Log(%s) error = %v", sub.PairID, err)
		}
	}

	metrics, err := manager.Metrics(ctx, 0.5)
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if metrics.Labeled != 4 {
		t.Errorf("Labeled = %d, want 4 (pending excluded)", metrics.Labeled)
	}
	if metrics.TruePositives != 1 || metrics.FalsePositives != 1 ||
		metrics.FalseNegatives != 1 || metrics.TrueNegatives != 1 {
		t.Errorf("confusion = %d/%d/%d/%d, want 1/1/1/1",
			metrics.TruePositives, metrics.FalsePositives,
			metrics.FalseNegatives, metrics.TrueNegatives)
	}
	if metrics.Precision != 0.5 || metrics.Recall != 0.5 || metrics.F1 != 0.5 {
		t.Errorf("precision/recall/f1 = %v/%v/%v, want 0.5 each",
			metrics.Precision, metrics.Recall, metrics.F1)
	}
}

func TestManager_MetricsEmptyCorpus(t *testing.T) {
	manager := NewManager(newFakeFeedbackRepo(), newFakeTrainingRepo(), 3)

	metrics, err := manager.Metrics(context.Background(), 0.5)
	if err != nil {
		t.Fatalf("Metrics() error = %v", err)
	}
	if metrics.Precision != 0 || metrics.Recall != 0 || metrics.F1 != 0 {
		t.Errorf("empty corpus metrics = %v/%v/%v, want zeros",
			metrics.Precision, metrics.Recall, metrics.F1)
	}
}

func TestManager_ShouldRetrain(t *testing.T) {
	repo := newFakeFeedbackRepo()
	manager := NewManager(repo, newFakeTrainingRepo(), 3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		sub := submission(fmt.Sprintf("p%d", i), 0.8, models.FeedbackConfirmed)
		if err := manager.Log(ctx, sub); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	due, count, err := manager.ShouldRetrain(ctx)
	if err != nil {
		t.Fatalf("ShouldRetrain() error = %v", err)
	}
	if due || count != 2 {
		t.Errorf("ShouldRetrain() = %v, %d below threshold; want false, 2", due, count)
	}

	if err := manager.Log(ctx, submission("p2", 0.3, models.FeedbackRejected)); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	due, count, err = manager.ShouldRetrain(ctx)
	if err != nil {
		t.Fatalf("ShouldRetrain() error = %v", err)
	}
	if !due || count != 3 {
		t.Errorf("ShouldRetrain() = %v, %d at threshold; want true, 3", due, count)
	}

	if _, err := manager.CommitToTraining(ctx); err != nil {
		t.Fatalf("CommitToTraining() error = %v", err)
	}
	due, count, err = manager.ShouldRetrain(ctx)
	if err != nil {
		t.Fatalf("ShouldRetrain() error = %v", err)
	}
	if due || count != 0 {
		t.Errorf("ShouldRetrain() after commit = %v, %d; want false, 0", due, count)
	}
}

func TestManager_CommitToTrainingIdempotent(t *testing.T) {
	training := newFakeTrainingRepo()
	manager := NewManager(newFakeFeedbackRepo(), training, 3)
	ctx := context.Background()

	subs := []Submission{
		submission("p0", 0.9, models.FeedbackConfirmed),
		submission("p1", 0.2, models.FeedbackRejected),
		submission("p2", 0.7, models.FeedbackConfirmed),
		submission("open", 0.5, models.FeedbackPending),
	}
	for _, sub := range subs {
		if err := manager.Log(ctx, sub); err != nil {
			t.Fatalf("Log(%s) error = %v", sub.PairID, err)
		}
	}

	added, err := manager.CommitToTraining(ctx)
	if err != nil {
		t.Fatalf("CommitToTraining() error = %v", err)
	}
	if added != 3 {
		t.Errorf("CommitToTraining() added %d pairs, want 3 (pending excluded)", added)
	}

	pairs, err := training.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	labels := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		if pair.Source != "feedback" {
			t.Errorf("pair %s source = %q, want feedback", pair.PairID, pair.Source)
		}
		labels[pair.PairID] = pair.Label
	}
	if !labels["p0"] || labels["p1"] || !labels["p2"] {
		t.Errorf("corpus labels = %v, want p0 and p2 positive, p1 negative", labels)
	}

	// Replaying the commit adds nothing
	added, err = manager.CommitToTraining(ctx)
	if err != nil {
		t.Fatalf("CommitToTraining() replay error = %v", err)
	}
	if added != 0 {
		t.Errorf("CommitToTraining() replay added %d pairs, want 0", added)
	}
	if n, _ := training.Count(ctx); n != 3 {
		t.Errorf("corpus size after replay = %d, want 3", n)
	}
}
