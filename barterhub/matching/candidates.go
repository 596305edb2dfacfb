package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/barterhub/barterhub/barterhub/database/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Snapshot is the immutable input of one engine run: the active item set
// and each owner's declared locations, read once and never mutated.
type Snapshot struct {
	Items     []*models.Item
	Locations map[string][]string
}

// CandidateEdge is a plausible offer -> want pairing. It lives only for the
// duration of one run and is never persisted.
type CandidateEdge struct {
	Offer     *models.Item
	Want      *models.Item
	Score     float64
	Breakdown ScoreBreakdown
}

// SkippedItem records an item excluded from a run and why. Validation
// failures never abort the whole pass.
type SkippedItem struct {
	ItemID int64
	Reason string
}

// Generator builds the candidate edge set for a snapshot. Buckets keyed by
// location x category are scored in parallel; everything shared between
// goroutines is read-only.
type Generator struct {
	cfg     *Config
	scorer  *LexicalScorer
	blender *Blender
	sim     LanguageSimilarity
	sem     *semaphore.Weighted
}

func NewGenerator(cfg *Config, scorer *LexicalScorer, blender *Blender, sim LanguageSimilarity) *Generator {
	return &Generator{
		cfg:     cfg,
		scorer:  scorer,
		blender: blender,
		sim:     sim,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrentBuckets),
	}
}

type bucket struct {
	key    string
	offers []*models.Item
	wants  map[string][]*models.Item
}

// Generate produces the deduplicated, deterministically ordered candidate
// edges for the snapshot, plus the items it had to skip.
func (g *Generator) Generate(ctx context.Context, snap *Snapshot) ([]CandidateEdge, []SkippedItem, error) {
	items, skipped := g.validateItems(snap)

	// Seed per-run document frequencies before any scoring
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Description
	}
	g.scorer.SetCorpus(texts)

	buckets := g.buildBuckets(items, snap.Locations)

	results := make([][]CandidateEdge, len(buckets))
	grp, gctx := errgroup.WithContext(ctx)
	for i, b := range buckets {
		i, b := i, b
		grp.Go(func() error {
			if err := g.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer g.sem.Release(1)
			results[i] = g.scoreBucket(snap, b)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, skipped, fmt.Errorf("candidate generation aborted: %w", err)
	}

	// Owners registered in several locations produce the same edge in more
	// than one bucket; keep one copy.
	seen := make(map[[2]int64]struct{})
	var edges []CandidateEdge
	for _, local := range results {
		for _, e := range local {
			key := [2]int64{e.Offer.ID, e.Want.ID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, e)
		}
	}

	SortEdges(edges)

	slog.Debug("Candidate edges generated",
		slog.String("type", "match"),
		slog.Int("items", len(items)),
		slog.Int("buckets", len(buckets)),
		slog.Int("edges", len(edges)))

	return edges, skipped, nil
}

// validateItems drops malformed items with a logged reason.
func (g *Generator) validateItems(snap *Snapshot) ([]*models.Item, []SkippedItem) {
	var valid []*models.Item
	var skipped []SkippedItem

	skip := func(item *models.Item, reason string) {
		skipped = append(skipped, SkippedItem{ItemID: item.ID, Reason: reason})
		slog.Warn("Item excluded from matching run",
			slog.String("type", "match"),
			slog.Int64("item_id", item.ID),
			slog.String("reason", reason))
	}

	for _, item := range snap.Items {
		switch {
		case strings.TrimSpace(item.Description) == "":
			skip(item, "empty description")
		case !g.cfg.KnownCategory(item.Category):
			skip(item, fmt.Sprintf("unknown category %q", item.Category))
		case item.OwnerID == "":
			skip(item, "missing owner")
		case len(snap.Locations[item.OwnerID]) == 0:
			skip(item, "owner has no declared locations")
		default:
			valid = append(valid, item)
		}
	}
	return valid, skipped
}

// buildBuckets partitions items by location so only co-located owners are
// ever compared; this is what keeps the pass from being a full cross
// product over the snapshot.
func (g *Generator) buildBuckets(items []*models.Item, locations map[string][]string) []bucket {
	byLoc := make(map[string]*bucket)
	for _, item := range items {
		for _, loc := range locations[item.OwnerID] {
			b, ok := byLoc[loc]
			if !ok {
				b = &bucket{key: loc, wants: make(map[string][]*models.Item)}
				byLoc[loc] = b
			}
			switch item.Kind {
			case models.ItemKindOffer:
				b.offers = append(b.offers, item)
			case models.ItemKindWant:
				cat := strings.ToLower(item.Category)
				b.wants[cat] = append(b.wants[cat], item)
			}
		}
	}

	keys := make([]string, 0, len(byLoc))
	for key := range byLoc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buckets := make([]bucket, 0, len(keys))
	for _, key := range keys {
		buckets = append(buckets, *byLoc[key])
	}
	return buckets
}

func (g *Generator) scoreBucket(snap *Snapshot, b bucket) []CandidateEdge {
	var edges []CandidateEdge
	for _, offer := range b.offers {
		for _, cat := range g.cfg.CompatibleCategories(offer.Category) {
			for _, want := range b.wants[cat] {
				if offer.OwnerID == want.OwnerID {
					continue
				}
				if !models.SharesLocation(snap.Locations[offer.OwnerID], snap.Locations[want.OwnerID]) {
					continue
				}
				if edge, ok := g.scorePair(offer, want); ok {
					edges = append(edges, edge)
				}
			}
		}
	}
	return edges
}

func (g *Generator) scorePair(offer, want *models.Item) (CandidateEdge, bool) {
	langSim := g.sim.Similarity(NormalizeText(offer.Description), NormalizeText(want.Description))
	breakdown := g.scorer.Score(offer.Description, want.Description, offer.Category, want.Category)

	features := ExtractFeatures(offer.Description, want.Description, offer.Category, want.Category, langSim)
	blended := g.blender.Combine(breakdown.Total, g.blender.Predict(features))

	if blended < g.cfg.MinScore {
		return CandidateEdge{}, false
	}
	return CandidateEdge{
		Offer:     offer,
		Want:      want,
		Score:     blended,
		Breakdown: breakdown,
	}, true
}

// SortEdges orders edges score-descending; ties go to the pair with the
// older listing, then to lower item ids. Full determinism is required for
// reproducible runs.
func SortEdges(edges []CandidateEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Score != edges[j].Score {
			return edges[i].Score > edges[j].Score
		}
		iOldest := oldestOf(edges[i])
		jOldest := oldestOf(edges[j])
		if !iOldest.Equal(jOldest) {
			return iOldest.Before(jOldest)
		}
		if edges[i].Offer.ID != edges[j].Offer.ID {
			return edges[i].Offer.ID < edges[j].Offer.ID
		}
		return edges[i].Want.ID < edges[j].Want.ID
	})
}

func oldestOf(e CandidateEdge) time.Time {
	if e.Offer.CreatedAt.Before(e.Want.CreatedAt) {
		return e.Offer.CreatedAt
	}
	return e.Want.CreatedAt
}
