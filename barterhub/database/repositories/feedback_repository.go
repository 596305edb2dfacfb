package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/uptrace/bun"
)

type FeedbackRepository interface {
	// Upsert stores a feedback record keyed by pair id. A pending record is
	// overwritten freely; once a terminal label exists the first one wins and
	// later submissions are dropped.
	Upsert(ctx context.Context, record *models.FeedbackRecord) error
	GetByPairID(ctx context.Context, pairID string) (*models.FeedbackRecord, error)
	GetLabeled(ctx context.Context) ([]*models.FeedbackRecord, error)
	CountUncommittedLabeled(ctx context.Context) (int, error)
	GetUncommittedLabeled(ctx context.Context) ([]*models.FeedbackRecord, error)
	MarkCommitted(ctx context.Context, pairIDs []string) error
}

type feedbackRepository struct {
	db *bun.DB
}

func NewFeedbackRepository(db *bun.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Upsert(ctx context.Context, record *models.FeedbackRecord) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	existing := new(models.FeedbackRecord)
	err = tx.NewSelect().
		Model(existing).
		Where("pair_id = ?", record.PairID).
		For("UPDATE").
		Scan(ctx)

	switch {
	case err == sql.ErrNoRows:
		record.CreatedAt = time.Now()
		record.UpdatedAt = time.Now()
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert feedback record: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to check feedback record: %w", err)
	default:
		// First terminal label wins
		if existing.Label.Terminal() {
			return tx.Commit()
		}
		if _, err := tx.NewUpdate().
			Model((*models.FeedbackRecord)(nil)).
			Set("label = ?", record.Label).
			Set("labeled_by = ?", record.LabeledBy).
			Set("predicted_score = ?", record.PredictedScore).
			Set("features = ?", record.Features).
			Set("updated_at = ?", time.Now()).
			Where("pair_id = ?", record.PairID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to update feedback record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback record: %w", err)
	}
	return nil
}

func (r *feedbackRepository) GetByPairID(ctx context.Context, pairID string) (*models.FeedbackRecord, error) {
	record := new(models.FeedbackRecord)
	err := r.db.NewSelect().
		Model(record).
		Where("pair_id = ?", pairID).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("feedback record not found")
		}
		return nil, fmt.Errorf("failed to get feedback record: %w", err)
	}
	return record, nil
}

func (r *feedbackRepository) GetLabeled(ctx context.Context) ([]*models.FeedbackRecord, error) {
	var records []*models.FeedbackRecord
	err := r.db.NewSelect().
		Model(&records).
		Where("label IN (?)", bun.In([]models.FeedbackLabel{models.FeedbackConfirmed, models.FeedbackRejected})).
		Order("id ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get labeled feedback: %w", err)
	}
	return records, nil
}

func (r *feedbackRepository) CountUncommittedLabeled(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.FeedbackRecord)(nil)).
		Where("committed = false").
		Where("label IN (?)", bun.In([]models.FeedbackLabel{models.FeedbackConfirmed, models.FeedbackRejected})).
		Count(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to count uncommitted feedback: %w", err)
	}
	return count, nil
}

func (r *feedbackRepository) GetUncommittedLabeled(ctx context.Context) ([]*models.FeedbackRecord, error) {
	var records []*models.FeedbackRecord
	err := r.db.NewSelect().
		Model(&records).
		Where("committed = false").
		Where("label IN (?)", bun.In([]models.FeedbackLabel{models.FeedbackConfirmed, models.FeedbackRejected})).
		Order("id ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get uncommitted feedback: %w", err)
	}
	return records, nil
}

func (r *feedbackRepository) MarkCommitted(ctx context.Context, pairIDs []string) error {
	if len(pairIDs) == 0 {
		return nil
	}
	_, err := r.db.NewUpdate().
		Model((*models.FeedbackRecord)(nil)).
		Set("committed = true").
		Set("updated_at = ?", time.Now()).
		Where("pair_id IN (?)", bun.In(pairIDs)).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to mark feedback committed: %w", err)
	}
	return nil
}
