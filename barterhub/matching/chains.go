package matching

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
)

// Chain is a discovered rotation of 3..K owners where each owner's offer
// satisfies the next owner's want, closing back to the first. Edges[i]
// connects Owners[i] to Owners[(i+1) % len].
type Chain struct {
	Owners []string
	Edges  []CandidateEdge

	// Minimum of the edge scores: one weak link vetoes the whole chain
	Score float64
}

// ItemIDs returns every item participating in the chain, offers and wants,
// in rotation order.
func (c Chain) ItemIDs() []int64 {
	ids := make([]int64, 0, len(c.Edges)*2)
	seen := make(map[int64]struct{}, len(c.Edges)*2)
	for _, e := range c.Edges {
		for _, id := range []int64{e.Offer.ID, e.Want.ID} {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// OfferedItemIDs returns the offered item of each hop in rotation order.
func (c Chain) OfferedItemIDs() []int64 {
	ids := make([]int64, len(c.Edges))
	for i, e := range c.Edges {
		ids[i] = e.Offer.ID
	}
	return ids
}

func (c Chain) key() string {
	return strings.Join(c.Owners, ">")
}

func (c Chain) oldestCreated() time.Time {
	oldest := time.Time{}
	for i, e := range c.Edges {
		t := oldestOf(e)
		if i == 0 || t.Before(oldest) {
			oldest = t
		}
	}
	return oldest
}

type ownerEdge struct {
	to   string
	edge CandidateEdge
}

// ChainFinder discovers elementary cycles in the owner graph induced by the
// residual candidate edges.
//
// Cycle enumeration is bounded three ways: path length is capped at K, a
// partial path is abandoned once its running score product drops below
// floor^depth, and only the top-N outgoing edges per owner are explored.
// The bounds keep dense graphs tractable and make the result reproducible
// for a given snapshot, which a wall-clock cutoff would not.
type ChainFinder struct {
	cfg *Config
}

func NewChainFinder(cfg *Config) *ChainFinder {
	return &ChainFinder{cfg: cfg}
}

// Discover returns the deduplicated candidate chains and whether the branch
// cap forced a truncated (partial) exploration.
func (f *ChainFinder) Discover(edges []CandidateEdge) ([]Chain, bool) {
	adj, owners, partial := f.buildOwnerGraph(edges)
	if len(owners) < 3 {
		return nil, partial
	}

	var chains []Chain
	seen := make(map[string]struct{})

	for _, start := range owners {
		walker := cycleWalker{
			finder:  f,
			adj:     adj,
			start:   start,
			visited: map[string]bool{start: true},
			path:    []string{start},
		}
		walker.walk(start, 1.0, nil, func(c Chain) {
			if _, dup := seen[c.key()]; dup {
				return
			}
			seen[c.key()] = struct{}{}
			chains = append(chains, c)
		})
	}

	slog.Debug("Chain discovery finished",
		slog.String("type", "match"),
		slog.Int("owners", len(owners)),
		slog.Int("chains", len(chains)),
		slog.Bool("partial", partial))

	return chains, partial
}

// buildOwnerGraph collapses item-level edges to owner-level: the practical
// edge is "owner A can satisfy owner B", carried by the best-scoring item
// pair between them. Adjacency lists are score-sorted and truncated to the
// branch limit.
func (f *ChainFinder) buildOwnerGraph(edges []CandidateEdge) (map[string][]ownerEdge, []string, bool) {
	best := make(map[string]map[string]CandidateEdge)
	for _, e := range edges {
		from, to := e.Offer.OwnerID, e.Want.OwnerID
		if from == to {
			continue
		}
		if best[from] == nil {
			best[from] = make(map[string]CandidateEdge)
		}
		cur, ok := best[from][to]
		if !ok || edgeLess(e, cur) {
			best[from][to] = e
		}
	}

	partial := false
	adj := make(map[string][]ownerEdge, len(best))
	ownerSet := make(map[string]struct{})
	for from, targets := range best {
		ownerSet[from] = struct{}{}
		list := make([]ownerEdge, 0, len(targets))
		for to, e := range targets {
			ownerSet[to] = struct{}{}
			list = append(list, ownerEdge{to: to, edge: e})
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].edge.Score != list[j].edge.Score {
				return list[i].edge.Score > list[j].edge.Score
			}
			return list[i].to < list[j].to
		})
		if len(list) > f.cfg.ChainBranchLimit {
			list = list[:f.cfg.ChainBranchLimit]
			partial = true
		}
		adj[from] = list
	}

	owners := make([]string, 0, len(ownerSet))
	for owner := range ownerSet {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	return adj, owners, partial
}

// edgeLess reports whether a beats b as the representative edge between two
// owners: higher score, then older listing, then lower ids.
func edgeLess(a, b CandidateEdge) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	ao, bo := oldestOf(a), oldestOf(b)
	if !ao.Equal(bo) {
		return ao.Before(bo)
	}
	if a.Offer.ID != b.Offer.ID {
		return a.Offer.ID < b.Offer.ID
	}
	return a.Want.ID < b.Want.ID
}

type cycleWalker struct {
	finder  *ChainFinder
	adj     map[string][]ownerEdge
	start   string
	visited map[string]bool
	path    []string
}

// walk extends the current path from node u; product is the running score
// product of the path's edges. Each elementary cycle is reported exactly
// once in canonical rotation because paths only visit owners ordered after
// the start node.
func (w *cycleWalker) walk(u string, product float64, pathEdges []CandidateEdge, emit func(Chain)) {
	cfg := w.finder.cfg
	depth := len(pathEdges) + 1

	for _, oe := range w.adj[u] {
		next := product * oe.edge.Score

		if oe.to == w.start {
			if depth >= 3 && depth <= cfg.MaxChainLength && next >= math.Pow(cfg.ChainPruneFloor, float64(depth)) {
				edges := append(append([]CandidateEdge(nil), pathEdges...), oe.edge)
				emit(Chain{
					Owners: append([]string(nil), w.path...),
					Edges:  edges,
					Score:  minEdgeScore(edges),
				})
			}
			continue
		}

		if depth >= cfg.MaxChainLength {
			continue
		}
		// Canonical rotation: only owners after the start join the path
		if oe.to < w.start || w.visited[oe.to] {
			continue
		}
		if next < math.Pow(cfg.ChainPruneFloor, float64(depth)) {
			continue
		}

		w.visited[oe.to] = true
		w.path = append(w.path, oe.to)
		w.walk(oe.to, next, append(pathEdges, oe.edge), emit)
		w.path = w.path[:len(w.path)-1]
		delete(w.visited, oe.to)
	}
}

func minEdgeScore(edges []CandidateEdge) float64 {
	min := 1.0
	for _, e := range edges {
		if e.Score < min {
			min = e.Score
		}
	}
	return min
}

// SelectDisjoint greedily picks a pairwise item-disjoint subset of the
// candidate chains by descending aggregate score, the same tie-break as
// bilateral matching. Disjoint cycle packing is NP-hard; this is a
// deliberate polynomial approximation behind a stable interface.
func SelectDisjoint(chains []Chain) []Chain {
	sorted := make([]Chain, len(chains))
	copy(sorted, chains)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		io, jo := sorted[i].oldestCreated(), sorted[j].oldestCreated()
		if !io.Equal(jo) {
			return io.Before(jo)
		}
		return sorted[i].key() < sorted[j].key()
	})

	used := make(map[int64]bool)
	var selected []Chain
	for _, chain := range sorted {
		conflict := false
		for _, id := range chain.ItemIDs() {
			if used[id] {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		for _, id := range chain.ItemIDs() {
			used[id] = true
		}
		selected = append(selected, chain)
	}
	return selected
}
