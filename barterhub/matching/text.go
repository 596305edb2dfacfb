package matching

import "strings"

// Stop-words dropped before keyword comparison. Listings are predominantly
// Russian with a long tail of English descriptions.
var stopwords = map[string]struct{}{
	"и": {}, "в": {}, "на": {}, "с": {}, "для": {}, "по": {}, "из": {},
	"не": {}, "что": {}, "как": {}, "это": {}, "от": {}, "до": {}, "за": {},
	"к": {}, "о": {}, "у": {}, "же": {}, "бы": {}, "или": {}, "под": {},
	"the": {}, "a": {}, "an": {}, "for": {}, "of": {}, "and": {}, "or": {},
	"with": {}, "to": {}, "in": {}, "on": {}, "at": {}, "is": {},
	"new": {}, "used": {},
}

// Crude suffix stripping covering the inflections that show up in listing
// text; longest suffixes tried first.
var ruSuffixes = []string{
	"иями", "ями", "ами", "ого", "его", "ому", "ему", "ыми", "ими",
	"ах", "ях", "ов", "ев", "ей", "ой", "ый", "ий", "ая", "яя", "ое",
	"ее", "ие", "ые", "ом", "ем", "ам", "ям", "ах", "ую", "юю",
	"а", "я", "ы", "и", "е", "у", "ю", "о",
}

var enSuffixes = []string{"ings", "ing", "ies", "ed", "es", "s"}

var translitTable = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

// NormalizeText lowercases, strips separator punctuation and collapses
// whitespace so descriptions compare consistently.
func NormalizeText(s string) string {
	normalized := strings.ReplaceAll(s, "_", " ")
	normalized = strings.ReplaceAll(normalized, "-", " ")
	normalized = strings.ReplaceAll(normalized, ",", " ")
	normalized = strings.ReplaceAll(normalized, ".", " ")
	normalized = strings.ToLower(normalized)
	return strings.Join(strings.Fields(normalized), " ")
}

// Tokenize splits normalized text into raw tokens.
func Tokenize(s string) []string {
	return strings.Fields(NormalizeText(s))
}

// Stem strips a common inflection suffix from a token. Short tokens are
// left alone to avoid collapsing unrelated words.
func Stem(tok string) string {
	runes := []rune(tok)
	if len(runes) <= 4 {
		return tok
	}
	suffixes := enSuffixes
	if isCyrillic(runes[0]) {
		suffixes = ruSuffixes
	}
	for _, suf := range suffixes {
		if strings.HasSuffix(tok, suf) && len(runes)-len([]rune(suf)) >= 4 {
			return string(runes[:len(runes)-len([]rune(suf))])
		}
	}
	return tok
}

// ContentTokens returns the stemmed, stop-word-filtered token set of a text,
// in first-seen order without duplicates.
func ContentTokens(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range Tokenize(s) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		stemmed := Stem(tok)
		if _, dup := seen[stemmed]; dup {
			continue
		}
		seen[stemmed] = struct{}{}
		out = append(out, stemmed)
	}
	return out
}

// Transliterate maps Cyrillic text to its Latin form so transliterated
// synonym pairs ("велосипед"/"velosiped") compare as equal.
func Transliterate(s string) string {
	var b strings.Builder
	for _, r := range s {
		if lat, ok := translitTable[r]; ok {
			b.WriteString(lat)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isCyrillic(r rune) bool {
	return r >= 0x0400 && r <= 0x04FF
}
