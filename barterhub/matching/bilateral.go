package matching

import (
	"log/slog"
	"sort"
	"time"
)

// MatchPair is a reciprocal two-party trade candidate: AB carries owner A's
// offer to owner B's want, BA the reverse. A is always the owner with the
// smaller id, so a pair has one canonical orientation.
type MatchPair struct {
	AB CandidateEdge
	BA CandidateEdge

	// Weaker of the two directional scores; one bad direction sinks the trade
	Score float64
}

// ItemIDs returns the four items the trade reserves: both offers and both
// satisfied want listings.
func (p MatchPair) ItemIDs() []int64 {
	return []int64{p.AB.Offer.ID, p.AB.Want.ID, p.BA.Offer.ID, p.BA.Want.ID}
}

func (p MatchPair) oldestCreated() time.Time {
	oldest := oldestOf(p.AB)
	if t := oldestOf(p.BA); t.Before(oldest) {
		oldest = t
	}
	return oldest
}

// lessItems orders two pairs by their item id sequences. Distinct pairs
// always differ in at least one position, so this is a total order and the
// final tie-break of the selection sort.
func (p MatchPair) lessItems(q MatchPair) bool {
	pi, qi := p.ItemIDs(), q.ItemIDs()
	for k := range pi {
		if pi[k] != qi[k] {
			return pi[k] < qi[k]
		}
	}
	return false
}

// SelectBilateral picks a conflict-free set of reciprocal two-party trades.
// A trade exists only where candidate edges run in both directions between
// two owners; one-directional edges cannot close a trade and are left for
// chain discovery. Pairs are taken score-descending (older listings first on
// ties, then lower ids) and accepted while all four items are still free.
//
// This greedy pass is an O(E log E) approximation of maximum-weight
// matching. It trades a little optimality for determinism and for proposals
// that are easy to explain to the two participants. Swapping in an exact
// solver only requires replacing this function.
func SelectBilateral(edges []CandidateEdge) ([]MatchPair, map[int64]bool) {
	// Best edge per ordered owner pair
	best := make(map[[2]string]CandidateEdge)
	for _, e := range edges {
		key := [2]string{e.Offer.OwnerID, e.Want.OwnerID}
		cur, ok := best[key]
		if !ok || edgeLess(e, cur) {
			best[key] = e
		}
	}

	var pairs []MatchPair
	for key, ab := range best {
		if key[0] >= key[1] {
			continue
		}
		ba, ok := best[[2]string{key[1], key[0]}]
		if !ok {
			continue
		}
		score := ab.Score
		if ba.Score < score {
			score = ba.Score
		}
		pairs = append(pairs, MatchPair{AB: ab, BA: ba, Score: score})
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		io, jo := pairs[i].oldestCreated(), pairs[j].oldestCreated()
		if !io.Equal(jo) {
			return io.Before(jo)
		}
		return pairs[i].lessItems(pairs[j])
	})

	used := make(map[int64]bool)
	var selected []MatchPair
	for _, pair := range pairs {
		conflict := false
		for _, id := range pair.ItemIDs() {
			if used[id] {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		for _, id := range pair.ItemIDs() {
			used[id] = true
		}
		selected = append(selected, pair)
	}

	slog.Debug("Bilateral matching selected",
		slog.String("type", "match"),
		slog.Int("candidates", len(pairs)),
		slog.Int("selected", len(selected)))

	return selected, used
}

// ResidualEdges returns the edges untouched by bilateral matching; they feed
// chain discovery.
func ResidualEdges(edges []CandidateEdge, used map[int64]bool) []CandidateEdge {
	var residual []CandidateEdge
	for _, edge := range edges {
		if used[edge.Offer.ID] || used[edge.Want.ID] {
			continue
		}
		residual = append(residual, edge)
	}
	return residual
}
