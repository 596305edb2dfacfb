package matching

import (
	"math"
	"strings"
)

// Feature vector layout for the learned classifier. Order is part of the
// model artifact; changing it invalidates trained weights.
const (
	FeatureJaccard = iota
	FeatureLengthDiff
	FeatureSynonymRatio
	FeatureCategoryMatch
	FeatureLanguageSim

	FeatureCount
)

// FeatureNames in artifact order.
var FeatureNames = []string{
	"jaccard",
	"length_diff",
	"synonym_ratio",
	"category_match",
	"language_sim",
}

// ExtractFeatures builds the classifier input for one item pair. langSim is
// the externally supplied language-similarity score for the pair.
func ExtractFeatures(textA, textB, catA, catB string, langSim float64) []float64 {
	tokensA := ContentTokens(textA)
	tokensB := ContentTokens(textB)

	features := make([]float64, FeatureCount)
	features[FeatureJaccard] = jaccard(tokensA, tokensB)
	features[FeatureLengthDiff] = lengthSimilarity(textA, textB)
	features[FeatureSynonymRatio] = synonymRatio(tokensA, tokensB)
	if strings.EqualFold(catA, catB) {
		features[FeatureCategoryMatch] = 1.0
	}
	features[FeatureLanguageSim] = clamp01(langSim)
	return features
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}
	shared := 0
	for _, tok := range b {
		if _, ok := set[tok]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// lengthSimilarity maps the relative text length difference to [0,1],
// 1.0 meaning equal lengths.
func lengthSimilarity(a, b string) float64 {
	la, lb := float64(len([]rune(a))), float64(len([]rune(b)))
	longest := math.Max(la, lb)
	if longest == 0 {
		return 0
	}
	return 1.0 - math.Abs(la-lb)/longest
}

// synonymRatio is the share of tokens in the smaller set that have a
// transliteration-equivalent counterpart in the other set. Tokens are
// re-stemmed after transliteration: a Cyrillic token only meets English
// suffix stripping once it is in Latin form.
func synonymRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	latin := make(map[string]struct{}, len(large))
	for _, tok := range large {
		latin[Stem(Transliterate(tok))] = struct{}{}
	}

	matched := 0
	for _, tok := range small {
		if _, ok := latin[Stem(Transliterate(tok))]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(small))
}
