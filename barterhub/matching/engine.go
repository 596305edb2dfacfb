package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"github.com/barterhub/barterhub/barterhub/database/repositories"
	"github.com/barterhub/barterhub/barterhub/logger"
)

// Notifier receives the proposals produced by an engine run, together with
// the pair or chain that produced them so events can carry the score
// breakdown and each participant's counterpart items. Implementations must
// be safe for concurrent use and must not block the run.
type Notifier interface {
	MatchProposed(ctx context.Context, match *models.Match, pair MatchPair)
	ChainProposed(ctx context.Context, chain *models.ExchangeChain, proposal Chain)
}

// RunResult summarizes one complete matching pass.
type RunResult struct {
	Matches []*models.Match
	Chains  []*models.ExchangeChain
	Skipped []SkippedItem

	// Partial is set when the chain-discovery branch cap truncated the search
	Partial  bool
	Duration time.Duration
}

// Engine runs the full matching pipeline over the current listings: snapshot,
// candidate generation, bilateral selection, chain discovery on the residual
// graph, then persistence and notification.
type Engine struct {
	cfg       *Config
	users     repositories.UserRepository
	items     repositories.ItemRepository
	matches   repositories.MatchRepository
	chains    repositories.ChainRepository
	generator *Generator
	finder    *ChainFinder
	notifier  Notifier
}

func NewEngine(
	cfg *Config,
	users repositories.UserRepository,
	items repositories.ItemRepository,
	matches repositories.MatchRepository,
	chains repositories.ChainRepository,
	generator *Generator,
	notifier Notifier,
) *Engine {
	return &Engine{
		cfg:       cfg,
		users:     users,
		items:     items,
		matches:   matches,
		chains:    chains,
		generator: generator,
		finder:    NewChainFinder(cfg),
		notifier:  notifier,
	}
}

// Run executes one matching pass. The snapshot is read once at the start;
// listings changed mid-run are picked up by the next pass.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()

	snap, err := e.snapshot(ctx)
	if err != nil {
		logger.LogRun(0, 0, 0, time.Since(started), err)
		return nil, err
	}

	edges, skipped, err := e.generator.Generate(ctx, snap)
	if err != nil {
		logger.LogRun(0, 0, len(skipped), time.Since(started), err)
		return nil, err
	}

	selected, used := SelectBilateral(edges)

	// Chains only see what bilateral matching left behind, so an item can
	// never end up proposed twice within one run.
	residual := ResidualEdges(edges, used)
	candidates, partial := e.finder.Discover(residual)
	chosen := SelectDisjoint(candidates)

	result := &RunResult{
		Skipped: skipped,
		Partial: partial,
	}
	result.Matches = e.persistMatches(ctx, selected)
	result.Chains = e.persistChains(ctx, chosen)
	result.Duration = time.Since(started)

	logger.LogRun(len(result.Matches), len(result.Chains), len(skipped), result.Duration, nil)
	return result, nil
}

// snapshot loads the active listings and owner locations, minus every item
// already reserved by an open proposal.
func (e *Engine) snapshot(ctx context.Context) (*Snapshot, error) {
	items, err := e.items.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active items: %w", err)
	}

	users, err := e.users.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	reserved, err := e.matches.ActiveItemIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reserved match items: %w", err)
	}
	chainReserved, err := e.chains.ActiveItemIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reserved chain items: %w", err)
	}
	for id := range chainReserved {
		reserved[id] = true
	}

	free := items[:0:0]
	for _, item := range items {
		if !reserved[item.ID] {
			free = append(free, item)
		}
	}

	locations := make(map[string][]string, len(users))
	for _, user := range users {
		locations[user.UserID] = user.Locations
	}

	return &Snapshot{Items: free, Locations: locations}, nil
}

// persistMatches writes the bilateral proposals. A reservation conflict on
// one match (another writer claimed an item between snapshot and insert)
// skips that match and keeps the rest of the batch.
func (e *Engine) persistMatches(ctx context.Context, selected []MatchPair) []*models.Match {
	var created []*models.Match
	for _, pair := range selected {
		match := &models.Match{
			MatchID:  uuid.NewString(),
			ItemAID:  pair.AB.Offer.ID,
			ItemBID:  pair.BA.Offer.ID,
			WantAID:  pair.BA.Want.ID,
			WantBID:  pair.AB.Want.ID,
			OwnerAID: pair.AB.Offer.OwnerID,
			OwnerBID: pair.BA.Offer.OwnerID,
			Category: pair.AB.Want.Category,
			Score:    pair.Score,
			Status:   models.MatchProposed,
		}

		if err := e.matches.Create(ctx, match, e.cfg.MatchTTL); err != nil {
			if errors.Is(err, repositories.ErrItemAlreadyMatched) {
				slog.Warn("Match skipped, item reserved by a concurrent proposal",
					slog.String("type", "match"),
					slog.Int64("item_a", match.ItemAID),
					slog.Int64("item_b", match.ItemBID))
				continue
			}
			logger.LogError("Failed to persist match", err,
				slog.String("match_id", match.MatchID))
			continue
		}

		created = append(created, match)
		if e.notifier != nil {
			e.notifier.MatchProposed(ctx, match, pair)
		}
	}
	return created
}

func (e *Engine) persistChains(ctx context.Context, chosen []Chain) []*models.ExchangeChain {
	var created []*models.ExchangeChain
	for _, chain := range chosen {
		record := &models.ExchangeChain{
			ChainID:  uuid.NewString(),
			ItemIDs:  chain.ItemIDs(),
			OwnerIDs: append([]string(nil), chain.Owners...),
			Score:    chain.Score,
			Status:   models.ChainPending,
		}

		if err := e.chains.Create(ctx, record, e.cfg.ChainTTL); err != nil {
			if errors.Is(err, repositories.ErrItemAlreadyMatched) {
				slog.Warn("Chain skipped, item reserved by a concurrent proposal",
					slog.String("type", "match"),
					slog.Int("length", len(chain.Owners)))
				continue
			}
			logger.LogError("Failed to persist exchange chain", err,
				slog.String("chain_id", record.ChainID))
			continue
		}

		created = append(created, record)
		if e.notifier != nil {
			e.notifier.ChainProposed(ctx, record, chain)
		}
	}
	return created
}

// ExpireStale sweeps proposals past their TTL in both tables and returns the
// number of rows transitioned.
func (e *Engine) ExpireStale(ctx context.Context) (int64, error) {
	matches, err := e.matches.ExpireStale(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale matches: %w", err)
	}
	chains, err := e.chains.ExpireStale(ctx)
	if err != nil {
		return matches, fmt.Errorf("failed to expire stale chains: %w", err)
	}
	total := matches + chains
	if total > 0 {
		logger.LogSystem("Expired stale proposals",
			slog.Int64("matches", matches),
			slog.Int64("chains", chains))
	}
	return total, nil
}
