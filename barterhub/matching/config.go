package matching

import (
	"fmt"
	"strings"
	"time"
)

// CategoryRelation assigns an intermediate compatibility weight to a pair of
// distinct but related categories, e.g. electronics <-> appliances.
type CategoryRelation struct {
	CategoryA string  `toml:"category_a"`
	CategoryB string  `toml:"category_b"`
	Weight    float64 `toml:"weight"`
}

// Config is the full tunable surface of the matching engine. All business
// constants live here and are supplied at startup; engine code never
// hardcodes them.
type Config struct {
	Categories        []string           `toml:"categories"`
	RelatedCategories []CategoryRelation `toml:"related_categories"`

	// Weight applied when categories neither match nor relate
	CategoryMismatchWeight float64 `toml:"category_mismatch_weight"`

	// Upper bound of the additive keyword-overlap bonus
	ContextualBonusCap float64 `toml:"contextual_bonus_cap"`

	// Base-score discount for asymmetric accessory pairs ("case for X" vs "X")
	AsymmetryDiscount float64 `toml:"asymmetry_discount"`

	// Multiplicative penalty applied to the total of an invalid pair
	InvalidPenalty float64 `toml:"invalid_penalty"`

	// Minimum blended score for a candidate edge to exist
	MinScore float64 `toml:"min_score"`

	// Blend weights for rule-based vs learned scores
	RuleWeight float64 `toml:"rule_weight"`
	MLWeight   float64 `toml:"ml_weight"`

	// Chain discovery bounds
	MaxChainLength   int     `toml:"max_chain_length"`
	ChainPruneFloor  float64 `toml:"chain_prune_floor"`
	ChainBranchLimit int     `toml:"chain_branch_limit"`

	// Proposal lifetimes
	MatchTTL time.Duration `toml:"match_ttl"`
	ChainTTL time.Duration `toml:"chain_ttl"`

	// Parallelism across category x location buckets
	MaxConcurrentBuckets int64 `toml:"max_concurrent_buckets"`

	categories map[string]struct{}
	related    map[string]float64
}

func DefaultConfig() Config {
	return Config{
		Categories: []string{
			"electronics", "appliances", "clothing", "books",
			"sports", "toys", "furniture", "tools", "other",
		},
		RelatedCategories: []CategoryRelation{
			{CategoryA: "electronics", CategoryB: "appliances", Weight: 0.6},
			{CategoryA: "sports", CategoryB: "toys", Weight: 0.4},
		},
		CategoryMismatchWeight: 0.1,
		ContextualBonusCap:     0.1,
		AsymmetryDiscount:      0.7,
		InvalidPenalty:         0.7,
		MinScore:               0.5,
		RuleWeight:             0.6,
		MLWeight:               0.4,
		MaxChainLength:         5,
		ChainPruneFloor:        0.3,
		ChainBranchLimit:       8,
		MatchTTL:               7 * 24 * time.Hour,
		ChainTTL:               7 * 24 * time.Hour,
		MaxConcurrentBuckets:   4,
	}
}

// Validate checks invariants and builds the internal lookup tables. It must
// be called once before the config is handed to the engine.
func (c *Config) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("matching config: no categories defined")
	}
	if c.CategoryMismatchWeight < 0 || c.CategoryMismatchWeight > 1 {
		return fmt.Errorf("matching config: category_mismatch_weight %.2f out of [0,1]", c.CategoryMismatchWeight)
	}
	if c.ContextualBonusCap < 0 || c.ContextualBonusCap > 0.1 {
		return fmt.Errorf("matching config: contextual_bonus_cap %.2f out of [0,0.1]", c.ContextualBonusCap)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"asymmetry_discount", c.AsymmetryDiscount},
		{"invalid_penalty", c.InvalidPenalty},
		{"min_score", c.MinScore},
		{"chain_prune_floor", c.ChainPruneFloor},
	} {
		if v.val <= 0 || v.val > 1 {
			return fmt.Errorf("matching config: %s %.2f out of (0,1]", v.name, v.val)
		}
	}
	if c.RuleWeight <= 0 || c.MLWeight < 0 {
		return fmt.Errorf("matching config: blend weights must be positive")
	}
	if c.MaxChainLength < 3 {
		return fmt.Errorf("matching config: max_chain_length %d below minimum cycle length 3", c.MaxChainLength)
	}
	if c.ChainBranchLimit < 1 {
		return fmt.Errorf("matching config: chain_branch_limit must be at least 1")
	}
	if c.MaxConcurrentBuckets < 1 {
		c.MaxConcurrentBuckets = 1
	}

	c.categories = make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		c.categories[strings.ToLower(cat)] = struct{}{}
	}

	c.related = make(map[string]float64, len(c.RelatedCategories))
	for _, rel := range c.RelatedCategories {
		if rel.Weight <= 0 || rel.Weight >= 1 {
			return fmt.Errorf("matching config: related weight %.2f for %s/%s out of (0,1)", rel.Weight, rel.CategoryA, rel.CategoryB)
		}
		if !c.KnownCategory(rel.CategoryA) || !c.KnownCategory(rel.CategoryB) {
			return fmt.Errorf("matching config: related pair %s/%s references unknown category", rel.CategoryA, rel.CategoryB)
		}
		c.related[relationKey(rel.CategoryA, rel.CategoryB)] = rel.Weight
	}
	return nil
}

// KnownCategory reports whether cat belongs to the configured set.
func (c *Config) KnownCategory(cat string) bool {
	_, ok := c.categories[strings.ToLower(cat)]
	return ok
}

// CategoryWeight returns 1.0 for equal categories, the configured relation
// weight for related pairs and the mismatch floor otherwise.
func (c *Config) CategoryWeight(catA, catB string) float64 {
	a, b := strings.ToLower(catA), strings.ToLower(catB)
	if a == b {
		return 1.0
	}
	if w, ok := c.related[relationKey(a, b)]; ok {
		return w
	}
	return c.CategoryMismatchWeight
}

// Compatible reports whether an offer in catA may satisfy a want in catB.
func (c *Config) Compatible(catA, catB string) bool {
	a, b := strings.ToLower(catA), strings.ToLower(catB)
	if a == b {
		return true
	}
	_, ok := c.related[relationKey(a, b)]
	return ok
}

// CompatibleCategories lists every category an offer in cat can serve,
// starting with cat itself.
func (c *Config) CompatibleCategories(cat string) []string {
	out := []string{strings.ToLower(cat)}
	for _, rel := range c.RelatedCategories {
		switch strings.ToLower(cat) {
		case strings.ToLower(rel.CategoryA):
			out = append(out, strings.ToLower(rel.CategoryB))
		case strings.ToLower(rel.CategoryB):
			out = append(out, strings.ToLower(rel.CategoryA))
		}
	}
	return out
}

func relationKey(a, b string) string {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
