package matching

import (
	"reflect"
	"testing"
	"time"

	"github.com/barterhub/barterhub/barterhub/database/models"
)

// ringEdges builds a directed ring over the given owners: each owner's offer
// satisfies the next owner's want, with the supplied per-hop scores.
func ringEdges(owners []string, scores []float64) []CandidateEdge {
	edges := make([]CandidateEdge, len(owners))
	for i, owner := range owners {
		next := owners[(i+1)%len(owners)]
		offer := makeItem(int64(i*2+1), owner, models.ItemKindOffer, "books", "книга", time.Duration(i)*time.Hour)
		want := makeItem(int64(i*2+2), next, models.ItemKindWant, "books", "книга", time.Duration(i)*time.Hour)
		edges[i] = CandidateEdge{Offer: offer, Want: want, Score: scores[i]}
	}
	return edges
}

func TestChainFinder_DiscoverTriangle(t *testing.T) {
	cfg := testConfig(t)
	finder := NewChainFinder(cfg)

	edges := ringEdges([]string{"anna", "boris", "clara"}, []float64{0.9, 0.8, 0.7})
	chains, partial := finder.Discover(edges)

	if partial {
		t.Error("Discover() partial = true for a tiny graph")
	}
	if len(chains) != 1 {
		t.Fatalf("Discover() found %d chains, want 1", len(chains))
	}

	chain := chains[0]
	if got, want := chain.Owners, []string{"anna", "boris", "clara"}; !reflect.DeepEqual(got, want) {
		t.Errorf("chain owners = %v, want canonical %v", got, want)
	}
	// Aggregate is the weakest hop
	if !almostEqual(chain.Score, 0.7) {
		t.Errorf("chain score = %v, want 0.7", chain.Score)
	}
	if len(chain.ItemIDs()) != 6 {
		t.Errorf("chain covers %d items, want 6", len(chain.ItemIDs()))
	}
}

func TestChainFinder_NoTwoPartyCycles(t *testing.T) {
	cfg := testConfig(t)
	finder := NewChainFinder(cfg)

	edges := ringEdges([]string{"anna", "boris"}, []float64{0.9, 0.9})
	chains, _ := finder.Discover(edges)
	if len(chains) != 0 {
		t.Errorf("Discover() found %d chains in a 2-owner ring, want 0", len(chains))
	}
}

func TestChainFinder_MaxLengthBound(t *testing.T) {
	cfg := testConfig(t)
	finder := NewChainFinder(cfg)

	owners := []string{"anna", "boris", "clara", "dmitry", "elena", "fedor"}
	scores := []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.9}
	// A 6-owner ring has no cycle within the default 5-hop cap
	chains, _ := finder.Discover(ringEdges(owners, scores))
	if len(chains) != 0 {
		t.Errorf("Discover() found %d chains beyond max length, want 0", len(chains))
	}

	// The same ring with one owner fewer fits
	chains, _ = finder.Discover(ringEdges(owners[:5], scores[:5]))
	if len(chains) != 1 {
		t.Errorf("Discover() found %d chains at max length, want 1", len(chains))
	}
}

func TestChainFinder_PruneFloor(t *testing.T) {
	cfg := testConfig(t)
	finder := NewChainFinder(cfg)

	// Every hop is far below the prune floor; the walk abandons immediately
	edges := ringEdges([]string{"anna", "boris", "clara"}, []float64{0.2, 0.2, 0.2})
	chains, _ := finder.Discover(edges)
	if len(chains) != 0 {
		t.Errorf("Discover() found %d chains below the prune floor, want 0", len(chains))
	}
}

func TestChainFinder_BranchCapReportsPartial(t *testing.T) {
	cfg := testConfig(t)
	cfg.ChainBranchLimit = 1
	finder := NewChainFinder(cfg)

	anna := makeItem(1, "anna", models.ItemKindOffer, "books", "книга", 0)
	edges := []CandidateEdge{
		{Offer: anna, Want: makeItem(2, "boris", models.ItemKindWant, "books", "книга", 0), Score: 0.9},
		{Offer: anna, Want: makeItem(3, "clara", models.ItemKindWant, "books", "книга", 0), Score: 0.8},
	}

	_, partial := finder.Discover(edges)
	if !partial {
		t.Error("Discover() partial = false with the branch cap exceeded")
	}
}

func TestChainFinder_DiscoverEachCycleOnce(t *testing.T) {
	cfg := testConfig(t)
	finder := NewChainFinder(cfg)

	// Two triangles sharing the owner "clara"
	left := ringEdges([]string{"anna", "boris", "clara"}, []float64{0.9, 0.9, 0.9})
	right := ringEdges([]string{"clara", "dmitry", "elena"}, []float64{0.8, 0.8, 0.8})
	for i := range right {
		right[i].Offer.ID += 100
		right[i].Want.ID += 100
	}

	chains, _ := finder.Discover(append(left, right...))
	if len(chains) != 2 {
		t.Fatalf("Discover() found %d chains, want 2", len(chains))
	}

	seen := make(map[string]bool)
	for _, c := range chains {
		key := c.key()
		if seen[key] {
			t.Errorf("chain %v reported twice", c.Owners)
		}
		seen[key] = true
		if c.Owners[0] != minOwner(c.Owners) {
			t.Errorf("chain %v not rotated to its minimum owner", c.Owners)
		}
	}
}

func minOwner(owners []string) string {
	min := owners[0]
	for _, o := range owners[1:] {
		if o < min {
			min = o
		}
	}
	return min
}

func TestSelectDisjoint(t *testing.T) {
	cfg := testConfig(t)
	finder := NewChainFinder(cfg)

	// Both triangles route through clara's inventory, so only one can win
	strong := ringEdges([]string{"anna", "boris", "clara"}, []float64{0.9, 0.9, 0.9})
	weak := ringEdges([]string{"clara", "dmitry", "elena"}, []float64{0.8, 0.8, 0.8})
	// The weak triangle reuses clara's offer item from the strong one
	weak[0].Offer = strong[2].Offer

	for i := range weak {
		if i > 0 {
			weak[i].Offer.ID += 100
		}
		weak[i].Want.ID += 200
	}

	chains, _ := finder.Discover(append(strong, weak...))
	selected := SelectDisjoint(chains)

	if len(selected) != 1 {
		t.Fatalf("SelectDisjoint() kept %d chains, want 1", len(selected))
	}
	if !almostEqual(selected[0].Score, 0.9) {
		t.Errorf("SelectDisjoint() kept score %v, want the 0.9 chain", selected[0].Score)
	}

	// Disjoint chains coexist
	apart := ringEdges([]string{"fedor", "galina", "igor"}, []float64{0.6, 0.6, 0.6})
	for i := range apart {
		apart[i].Offer.ID += 500
		apart[i].Want.ID += 500
	}
	chains, _ = finder.Discover(append(strong, apart...))
	if selected = SelectDisjoint(chains); len(selected) != 2 {
		t.Errorf("SelectDisjoint() kept %d disjoint chains, want 2", len(selected))
	}
}
