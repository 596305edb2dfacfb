package matching

import "math"

// LanguageSimilarity scores cross-language textual equivalence in [0,1].
// Implementations handle normalization and transliterated synonyms; the
// scorer never does translation itself.
type LanguageSimilarity interface {
	Similarity(a, b string) float64
}

// ScoreBreakdown is the rule-based score of one item pair with every term
// exposed so a proposal can be explained to its participants.
type ScoreBreakdown struct {
	Base            float64
	CategoryWeight  float64
	ContextualBonus float64
	Valid           bool
	Total           float64
}

// LexicalScorer computes the rule-based compatibility score between two
// item descriptions. Safe for concurrent use once the corpus is set.
type LexicalScorer struct {
	cfg *Config
	sim LanguageSimilarity

	// Per-run document frequencies; rare tokens weigh more in the bonus
	docFreq map[string]int
	docs    int
}

func NewLexicalScorer(cfg *Config, sim LanguageSimilarity) *LexicalScorer {
	return &LexicalScorer{
		cfg:     cfg,
		sim:     sim,
		docFreq: make(map[string]int),
	}
}

// SetCorpus rebuilds the document frequency table from the run's snapshot
// texts. Called once at the start of a run, before any scoring.
func (s *LexicalScorer) SetCorpus(texts []string) {
	s.docFreq = make(map[string]int)
	s.docs = len(texts)
	for _, text := range texts {
		for _, tok := range ContentTokens(text) {
			s.docFreq[tok]++
		}
	}
}

// Score computes the full rule-based breakdown for one pair of descriptions.
//
// An asymmetric containment pair (one token set a proper subset of the
// other, e.g. "чехол для айфона" vs "айфон") is an accessory relationship,
// not an equivalence: its base is discounted, it earns no contextual bonus,
// and the final total carries the invalid penalty. Partial relevance still
// matters, so the score is damped rather than zeroed.
func (s *LexicalScorer) Score(textA, textB, catA, catB string) ScoreBreakdown {
	tokensA := ContentTokens(textA)
	tokensB := ContentTokens(textB)

	base := clamp01(s.sim.Similarity(NormalizeText(textA), NormalizeText(textB)))

	valid := true
	if properSubset(tokensA, tokensB) || properSubset(tokensB, tokensA) {
		valid = false
		base *= s.cfg.AsymmetryDiscount
	}

	weight := s.cfg.CategoryWeight(catA, catB)

	bonus := 0.0
	if valid {
		bonus = s.contextualBonus(tokensA, tokensB)
	}

	total := clamp01(base*weight + bonus)
	if !valid {
		total = clamp01(total * s.cfg.InvalidPenalty)
	}

	return ScoreBreakdown{
		Base:            base,
		CategoryWeight:  weight,
		ContextualBonus: bonus,
		Valid:           valid,
		Total:           total,
	}
}

// contextualBonus rewards shared distinguishing keywords. Each token is
// weighted by inverse document frequency over the run's snapshot, so rare
// terms contribute more than ubiquitous ones; with no corpus loaded all
// tokens weigh the same.
func (s *LexicalScorer) contextualBonus(tokensA, tokensB []string) float64 {
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setB := make(map[string]struct{}, len(tokensB))
	for _, tok := range tokensB {
		setB[tok] = struct{}{}
	}

	var sharedWeight, unionWeight float64
	seen := make(map[string]struct{}, len(tokensA)+len(tokensB))
	for _, tok := range tokensA {
		seen[tok] = struct{}{}
		unionWeight += s.tokenWeight(tok)
		if _, ok := setB[tok]; ok {
			sharedWeight += s.tokenWeight(tok)
		}
	}
	for _, tok := range tokensB {
		if _, dup := seen[tok]; dup {
			continue
		}
		unionWeight += s.tokenWeight(tok)
	}

	if unionWeight == 0 {
		return 0
	}
	return s.cfg.ContextualBonusCap * (sharedWeight / unionWeight)
}

func (s *LexicalScorer) tokenWeight(tok string) float64 {
	if s.docs == 0 {
		return 1.0
	}
	df := s.docFreq[tok]
	return math.Log(1.0+float64(s.docs)/float64(1+df)) / math.Log(1.0+float64(s.docs))
}

// properSubset reports whether a is a non-empty strict subset of b.
func properSubset(a, b []string) bool {
	if len(a) == 0 || len(a) >= len(b) {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, tok := range b {
		set[tok] = struct{}{}
	}
	for _, tok := range a {
		if _, ok := set[tok]; !ok {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
