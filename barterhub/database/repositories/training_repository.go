package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/uptrace/bun"
)

type TrainingRepository interface {
	// Merge inserts pairs into the corpus, skipping pair ids that already
	// exist. Returns the number of rows actually added, so a repeated merge
	// of the same batch reports zero.
	Merge(ctx context.Context, pairs []*models.TrainingPair) (int, error)
	GetAll(ctx context.Context) ([]*models.TrainingPair, error)
	Count(ctx context.Context) (int, error)
}

type trainingRepository struct {
	db *bun.DB
}

func NewTrainingRepository(db *bun.DB) TrainingRepository {
	return &trainingRepository{db: db}
}

func (r *trainingRepository) Merge(ctx context.Context, pairs []*models.TrainingPair) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	for _, p := range pairs {
		p.CreatedAt = time.Now()
	}

	res, err := r.db.NewInsert().
		Model(&pairs).
		On("CONFLICT (pair_id) DO NOTHING").
		Exec(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to merge training pairs: %w", err)
	}

	added, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get merged row count: %w", err)
	}
	return int(added), nil
}

func (r *trainingRepository) GetAll(ctx context.Context) ([]*models.TrainingPair, error) {
	var pairs []*models.TrainingPair
	err := r.db.NewSelect().
		Model(&pairs).
		Order("id ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get training corpus: %w", err)
	}
	return pairs, nil
}

func (r *trainingRepository) Count(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.TrainingPair)(nil)).
		Count(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to count training corpus: %w", err)
	}
	return count, nil
}
