package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/uptrace/bun"
)

type ChainRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, chain *models.ExchangeChain, ttl time.Duration) error
	GetByChainID(ctx context.Context, chainID string) (*models.ExchangeChain, error)
	GetUserChains(ctx context.Context, userID string, status models.ChainStatus) ([]*models.ExchangeChain, error)
	Confirm(ctx context.Context, chainID string) error
	Expire(ctx context.Context, chainID string) error
	ExpireStale(ctx context.Context) (int64, error)
	ActiveItemIDs(ctx context.Context) (map[int64]bool, error)
}

type chainRepository struct {
	db *bun.DB
}

func NewChainRepository(db *bun.DB) ChainRepository {
	return &chainRepository{db: db}
}

func (r *chainRepository) DB() *bun.DB {
	return r.db
}

// Create inserts a pending chain under the same double-match guard as
// bilateral matches.
func (r *chainRepository) Create(ctx context.Context, chain *models.ExchangeChain, ttl time.Duration) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := assertItemsFree(ctx, tx, chain.ItemIDs); err != nil {
		return err
	}

	chain.Status = models.ChainPending
	chain.CreatedAt = time.Now()
	chain.UpdatedAt = time.Now()
	chain.ExpiresAt = time.Now().Add(ttl)

	if _, err := tx.NewInsert().Model(chain).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create exchange chain: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit exchange chain: %w", err)
	}
	return nil
}

func (r *chainRepository) GetByChainID(ctx context.Context, chainID string) (*models.ExchangeChain, error) {
	chain := new(models.ExchangeChain)
	err := r.db.NewSelect().
		Model(chain).
		Where("chain_id = ?", chainID).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("exchange chain not found")
		}
		return nil, fmt.Errorf("failed to get exchange chain: %w", err)
	}
	return chain, nil
}

func (r *chainRepository) GetUserChains(ctx context.Context, userID string, status models.ChainStatus) ([]*models.ExchangeChain, error) {
	var chains []*models.ExchangeChain
	err := r.db.NewSelect().
		Model(&chains).
		Where("owner_ids @> ?", fmt.Sprintf(`["%s"]`, userID)).
		Where("status = ?", status).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get user chains: %w", err)
	}
	return chains, nil
}

// Confirm moves a pending chain to confirmed and deactivates every item of
// the rotation in one transaction.
func (r *chainRepository) Confirm(ctx context.Context, chainID string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	chain := new(models.ExchangeChain)
	err = tx.NewSelect().
		Model(chain).
		Where("chain_id = ? AND status = ?", chainID, models.ChainPending).
		For("UPDATE").
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("exchange chain not found or not pending")
		}
		return fmt.Errorf("failed to get exchange chain: %w", err)
	}

	if time.Now().After(chain.ExpiresAt) {
		if _, err := tx.NewUpdate().
			Model(chain).
			Set("status = ?", models.ChainExpired).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", chain.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to mark chain as expired: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit expiry: %w", err)
		}
		return fmt.Errorf("exchange chain has expired")
	}

	if _, err := tx.NewUpdate().
		Model(chain).
		Set("status = ?", models.ChainConfirmed).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", chain.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to confirm chain: %w", err)
	}

	if _, err := tx.NewUpdate().
		Model((*models.Item)(nil)).
		Set("active = false").
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(chain.ItemIDs)).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to deactivate chain items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chain confirmation: %w", err)
	}

	slog.Info("Exchange chain confirmed",
		slog.String("type", "match"),
		slog.String("chain_id", chainID),
		slog.Int("participants", chain.Length()))

	return nil
}

func (r *chainRepository) Expire(ctx context.Context, chainID string) error {
	res, err := r.db.NewUpdate().
		Model((*models.ExchangeChain)(nil)).
		Set("status = ?", models.ChainExpired).
		Set("updated_at = ?", time.Now()).
		Where("chain_id = ? AND status = ?", chainID, models.ChainPending).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to expire chain: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("exchange chain not found or not pending")
	}
	return nil
}

func (r *chainRepository) ExpireStale(ctx context.Context) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*models.ExchangeChain)(nil)).
		Set("status = ?", models.ChainExpired).
		Set("updated_at = ?", time.Now()).
		Where("status = ? AND expires_at <= ?", models.ChainPending, time.Now()).
		Exec(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to expire stale chains: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

func (r *chainRepository) ActiveItemIDs(ctx context.Context) (map[int64]bool, error) {
	var chains []*models.ExchangeChain
	err := r.db.NewSelect().
		Model(&chains).
		Column("item_ids").
		Where("status IN (?)", bun.In([]models.ChainStatus{models.ChainPending, models.ChainConfirmed})).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get active chain items: %w", err)
	}

	ids := make(map[int64]bool)
	for _, c := range chains {
		for _, id := range c.ItemIDs {
			ids[id] = true
		}
	}
	return ids, nil
}
