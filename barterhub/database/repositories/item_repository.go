package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/uptrace/bun"
)

// ErrItemAlreadyMatched is returned when a commit finds one of its items
// already claimed by another active match or chain. The caller retries on a
// fresh snapshot.
var ErrItemAlreadyMatched = errors.New("item already part of an active match or chain")

type ItemRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id int64) (*models.Item, error)
	GetActive(ctx context.Context) ([]*models.Item, error)
	Deactivate(ctx context.Context, itemIDs []int64) error
}

type itemRepository struct {
	db *bun.DB
}

func NewItemRepository(db *bun.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) DB() *bun.DB {
	return r.db
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) error {
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	item.Active = true

	_, err := r.db.NewInsert().Model(item).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (r *itemRepository) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	item := new(models.Item)
	err := r.db.NewSelect().
		Model(item).
		Where("i.id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("item not found")
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// GetActive loads the active item snapshot with owners and their locations.
// Ordered by id so every run sees the same sequence for the same data.
func (r *itemRepository) GetActive(ctx context.Context) ([]*models.Item, error) {
	var items []*models.Item
	err := r.db.NewSelect().
		Model(&items).
		Relation("Owner").
		Where("i.active = true").
		Order("i.id ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get active items: %w", err)
	}
	return items, nil
}

func (r *itemRepository) Deactivate(ctx context.Context, itemIDs []int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	_, err := r.db.NewUpdate().
		Model((*models.Item)(nil)).
		Set("active = false").
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(itemIDs)).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to deactivate items: %w", err)
	}
	return nil
}
