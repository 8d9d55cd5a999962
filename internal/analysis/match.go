package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/labelscan/internal/ingredients"
	"github.com/agnivade/levenshtein"
)

const (
	allergyReason = "사용자 알레르기"

	fuzzyMaxDist      = 1
	fuzzyHangulMinLen = 2
	fuzzyHangulMaxLen = 5
	fuzzyAlphaMinLen  = 3
)

var (
	hangulRe      = regexp.MustCompile(`[가-힣]`)
	latinRe       = regexp.MustCompile(`[A-Za-z]`)
	hangulTokenRe = regexp.MustCompile(`^[가-힣]+$`)
	alphaTokenRe  = regexp.MustCompile(`^[a-z]+$`)
	fuzzySplitRe  = regexp.MustCompile(`[^0-9a-z가-힣]+`)
)

// haystack is the lowercased text searched by exact matching: the raw text
// and the extracted tokens, separated so tokens cannot join across the seam.
func haystack(rawText string, tokens []string) string {
	return ingredients.NormalizeLower(rawText) + " | " + ingredients.NormalizeLower(strings.Join(tokens, " | "))
}

// exactHit returns the first synonym found in text. Latin-only synonyms match
// on word boundaries so "egg" does not hit "eggplant"; anything containing
// Hangul matches as a substring.
func exactHit(text string, synonyms []string) string {
	for _, s := range synonyms {
		q := strings.ToLower(s)
		if q == "" {
			continue
		}
		if latinRe.MatchString(q) && !hangulRe.MatchString(q) {
			if containsWord(text, q) {
				return q
			}
			continue
		}
		if strings.Contains(text, q) {
			return q
		}
	}
	return ""
}

// containsWord reports whether q occurs in text between ASCII word
// boundaries, the way `\b` delimits it in a regexp. Both arguments are
// expected to be lowercased already.
func containsWord(text, q string) bool {
	if q == "" {
		return false
	}
	for start := 0; start+len(q) <= len(text); {
		i := strings.Index(text[start:], q)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(q)
		before := i > 0 && isWordByte(text[i-1])
		after := end < len(text) && isWordByte(text[end])
		if before != isWordByte(q[0]) && after != isWordByte(q[len(q)-1]) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || '0' <= b && b <= '9' || 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

// fuzzyTokens splits the text and tokens into single-script candidates for
// fuzzy matching: Hangul words of 2 to 5 syllables and Latin words of at
// least 3 letters.
func fuzzyTokens(rawText string, tokens []string) []string {
	merged := ingredients.NormalizeLower(rawText) + "\n" + ingredients.NormalizeLower(strings.Join(tokens, " "))
	var out []string
	for _, tok := range fuzzySplitRe.Split(merged, -1) {
		if tok == "" {
			continue
		}
		n := utf8.RuneCountInString(tok)
		switch {
		case hangulTokenRe.MatchString(tok):
			if n >= fuzzyHangulMinLen && n <= fuzzyHangulMaxLen {
				out = append(out, tok)
			}
		case alphaTokenRe.MatchString(tok):
			if n >= fuzzyAlphaMinLen {
				out = append(out, tok)
			}
		}
	}
	return ingredients.Unique(out)
}

// fuzzyHit returns the first candidate token within edit distance 1 of a
// synonym. The recognized token is returned, not the synonym. Two-syllable
// Hangul synonyms and tokens are skipped; they produce too many false
// positives ("대한" vs "대두").
func fuzzyHit(candidates []string, synonyms []string) string {
	for _, s := range synonyms {
		syn := ingredients.NormalizeLower(s)
		if syn == "" {
			continue
		}
		synHangul := hangulTokenRe.MatchString(syn)
		synAlpha := alphaTokenRe.MatchString(syn)
		if !synHangul && !synAlpha {
			continue
		}
		synLen := utf8.RuneCountInString(syn)
		if synHangul && synLen <= 2 {
			continue
		}

		for _, tok := range candidates {
			if synHangul && !hangulTokenRe.MatchString(tok) {
				continue
			}
			if synAlpha && !alphaTokenRe.MatchString(tok) {
				continue
			}
			tokLen := utf8.RuneCountInString(tok)
			if synHangul && tokLen <= 2 {
				continue
			}
			if abs(tokLen-synLen) > 1 {
				continue
			}
			if levenshtein.ComputeDistance(tok, syn) <= fuzzyMaxDist {
				return tok
			}
		}
	}
	return ""
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// matchAllergies reports one ALLERGY match per profile term found in the
// label, trying exact matching first and fuzzy matching as a fallback.
func matchAllergies(rawText string, tokens []string, terms []Term) []Match {
	matches := []Match{}
	if len(terms) == 0 {
		return matches
	}
	text := haystack(rawText, tokens)
	candidates := fuzzyTokens(rawText, tokens)

	for _, term := range terms {
		syns := Synonyms(term.Key())
		hit := exactHit(text, syns)
		if hit == "" {
			hit = fuzzyHit(candidates, syns)
		}
		if hit == "" {
			continue
		}
		matches = append(matches, Match{
			Kind:   KindAllergy,
			Term:   term.Key(),
			Hit:    hit,
			Reason: allergyReason,
		})
	}
	return matches
}

// matchDiet reports one DIET match per forbidden key found. Diet rules use
// exact matching only.
func matchDiet(rawText string, tokens []string, diet DietType) []Match {
	matches := []Match{}
	forbidden := Forbidden(diet)
	if len(forbidden) == 0 {
		return matches
	}
	text := haystack(rawText, tokens)
	reason := fmt.Sprintf("식이 규칙(%s)", diet)

	for _, key := range forbidden {
		hit := exactHit(text, Synonyms(key))
		if hit == "" {
			continue
		}
		matches = append(matches, Match{
			Kind:   KindDiet,
			Term:   key,
			Hit:    hit,
			Reason: reason,
		})
	}
	return matches
}
