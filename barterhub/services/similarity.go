package services

import (
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"

	"github.com/barterhub/barterhub/barterhub/matching"
)

const similarityCacheSize = 4096

// FuzzySimilarity scores cross-language closeness of two normalized texts.
// Both sides are transliterated to a common latin form first, so "айфон"
// and "iphone" land near each other before any fuzzy matching happens.
//
// Scores are cached per ordered text pair; one engine run scores the same
// descriptions against many counterparts.
type FuzzySimilarity struct {
	cache *lru.Cache
}

func NewFuzzySimilarity() (*FuzzySimilarity, error) {
	cache, err := lru.New(similarityCacheSize)
	if err != nil {
		return nil, err
	}
	return &FuzzySimilarity{cache: cache}, nil
}

var _ matching.LanguageSimilarity = (*FuzzySimilarity)(nil)

// Similarity returns a [0,1] closeness score for two normalized texts.
func (s *FuzzySimilarity) Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	key := a + "\x00" + b
	if cached, ok := s.cache.Get(key); ok {
		return cached.(float64)
	}

	score := tokenSimilarity(latinTokens(a), latinTokens(b))
	s.cache.Add(key, score)

	slog.Debug("Language similarity scored",
		slog.String("type", "match"),
		slog.Float64("score", score))
	return score
}

func latinTokens(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if t := matching.Transliterate(f); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// tokenSimilarity averages, over the smaller token set, each token's best
// fuzzy alignment against the other set. A fuzzy hit contributes the length
// ratio of pattern to candidate, so "iphon" against "iphone" scores high and
// "ip" against "iphone" scores low.
func tokenSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	total := 0.0
	for _, tok := range small {
		best := 0.0
		for _, m := range fuzzy.Find(tok, large) {
			candidate := large[m.Index]
			if tok == candidate {
				best = 1.0
				break
			}
			tl, cl := len([]rune(tok)), len([]rune(candidate))
			longest := tl
			if cl > longest {
				longest = cl
			}
			if ratio := float64(tl) / float64(longest); ratio > best {
				best = ratio
			}
		}
		total += best
	}
	return total / float64(len(small))
}
