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

type MatchRepository interface {
	DB() *bun.DB
	Create(ctx context.Context, match *models.Match, ttl time.Duration) error
	GetByMatchID(ctx context.Context, matchID string) (*models.Match, error)
	GetUserMatches(ctx context.Context, userID string, status models.MatchStatus) ([]*models.Match, error)
	Confirm(ctx context.Context, matchID string) error
	Expire(ctx context.Context, matchID string) error
	ExpireStale(ctx context.Context) (int64, error)
	ActiveItemIDs(ctx context.Context) (map[int64]bool, error)
}

type matchRepository struct {
	db *bun.DB
}

func NewMatchRepository(db *bun.DB) MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) DB() *bun.DB {
	return r.db
}

// Create inserts a proposed match after verifying neither item is already
// claimed. The check and insert share a serializable transaction so a
// concurrent run cannot double-match an item; the loser gets
// ErrItemAlreadyMatched and retries on a fresh snapshot.
func (r *matchRepository) Create(ctx context.Context, match *models.Match, ttl time.Duration) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := assertItemsFree(ctx, tx, match.ItemIDs()); err != nil {
		return err
	}

	match.Status = models.MatchProposed
	match.CreatedAt = time.Now()
	match.UpdatedAt = time.Now()
	match.ExpiresAt = time.Now().Add(ttl)

	if _, err := tx.NewInsert().Model(match).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit match: %w", err)
	}
	return nil
}

func (r *matchRepository) GetByMatchID(ctx context.Context, matchID string) (*models.Match, error) {
	match := new(models.Match)
	err := r.db.NewSelect().
		Model(match).
		Relation("ItemA").
		Relation("ItemB").
		Where("m.match_id = ?", matchID).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("match not found")
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

func (r *matchRepository) GetUserMatches(ctx context.Context, userID string, status models.MatchStatus) ([]*models.Match, error) {
	var matches []*models.Match
	err := r.db.NewSelect().
		Model(&matches).
		Where("(owner_a_id = ? OR owner_b_id = ?) AND status = ?", userID, userID, status).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get user matches: %w", err)
	}
	return matches, nil
}

// Confirm moves a proposed match to its terminal confirmed state and
// deactivates the traded items and satisfied want listings in the same
// transaction.
func (r *matchRepository) Confirm(ctx context.Context, matchID string) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	match := new(models.Match)
	err = tx.NewSelect().
		Model(match).
		Where("match_id = ? AND status = ?", matchID, models.MatchProposed).
		For("UPDATE").
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("match not found or not proposed")
		}
		return fmt.Errorf("failed to get match: %w", err)
	}

	if time.Now().After(match.ExpiresAt) {
		if _, err := tx.NewUpdate().
			Model(match).
			Set("status = ?", models.MatchExpired).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", match.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to mark match as expired: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit expiry: %w", err)
		}
		return fmt.Errorf("match has expired")
	}

	if _, err := tx.NewUpdate().
		Model(match).
		Set("status = ?", models.MatchConfirmed).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", match.ID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to confirm match: %w", err)
	}

	if _, err := tx.NewUpdate().
		Model((*models.Item)(nil)).
		Set("active = false").
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(match.ItemIDs())).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to deactivate matched items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit match confirmation: %w", err)
	}

	slog.Info("Match confirmed",
		slog.String("type", "match"),
		slog.String("match_id", matchID),
		slog.String("owner_a", match.OwnerAID),
		slog.String("owner_b", match.OwnerBID))

	return nil
}

func (r *matchRepository) Expire(ctx context.Context, matchID string) error {
	res, err := r.db.NewUpdate().
		Model((*models.Match)(nil)).
		Set("status = ?", models.MatchExpired).
		Set("updated_at = ?", time.Now()).
		Where("match_id = ? AND status = ?", matchID, models.MatchProposed).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to expire match: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("match not found or not proposed")
	}
	return nil
}

func (r *matchRepository) ExpireStale(ctx context.Context) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*models.Match)(nil)).
		Set("status = ?", models.MatchExpired).
		Set("updated_at = ?", time.Now()).
		Where("status = ? AND expires_at <= ?", models.MatchProposed, time.Now()).
		Exec(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to expire stale matches: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// ActiveItemIDs collects every item currently locked into a non-expired
// match, so a new run can exclude them from its snapshot.
func (r *matchRepository) ActiveItemIDs(ctx context.Context) (map[int64]bool, error) {
	var matches []*models.Match
	err := r.db.NewSelect().
		Model(&matches).
		Column("item_a_id", "item_b_id", "want_a_id", "want_b_id").
		Where("status IN (?)", bun.In([]models.MatchStatus{models.MatchProposed, models.MatchConfirmed})).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get active match items: %w", err)
	}

	ids := make(map[int64]bool, len(matches)*4)
	for _, m := range matches {
		for _, id := range m.ItemIDs() {
			ids[id] = true
		}
	}
	return ids, nil
}

// assertItemsFree fails with ErrItemAlreadyMatched when any of the ids is
// referenced by an active match or chain.
func assertItemsFree(ctx context.Context, tx bun.Tx, itemIDs []int64) error {
	matched, err := tx.NewSelect().
		Model((*models.Match)(nil)).
		Where("status IN (?)", bun.In([]models.MatchStatus{models.MatchProposed, models.MatchConfirmed})).
		Where("(item_a_id IN (?) OR item_b_id IN (?) OR want_a_id IN (?) OR want_b_id IN (?))",
			bun.In(itemIDs), bun.In(itemIDs), bun.In(itemIDs), bun.In(itemIDs)).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check active matches: %w", err)
	}
	if matched {
		return ErrItemAlreadyMatched
	}

	var chains []*models.ExchangeChain
	err = tx.NewSelect().
		Model(&chains).
		Column("item_ids").
		Where("status IN (?)", bun.In([]models.ChainStatus{models.ChainPending, models.ChainConfirmed})).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to check active chains: %w", err)
	}

	claimed := make(map[int64]bool)
	for _, c := range chains {
		for _, id := range c.ItemIDs {
			claimed[id] = true
		}
	}
	for _, id := range itemIDs {
		if claimed[id] {
			return ErrItemAlreadyMatched
		}
	}
	return nil
}
