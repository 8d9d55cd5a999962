package ingredients

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTokens caps the number of tokens Extract returns.
const MaxTokens = 250

const (
	maxTokenLen    = 30
	minContainsLen = 2
	maxContainsLen = 120
)

var (
	// English "Ingredients:" label, to end of line.
	englishLabelRe = regexp.MustCompile(`(?i)ingredients\s*[:：]\s*([^\n]+)`)
	// Korean 원재료(명) label; OCR often splits its characters with spaces.
	koreanLabelRe = regexp.MustCompile(`원\s*재\s*료\s*명?\s*[:：]?\s*([^\n]+)`)
	// Lists immediately preceding 함유 or 포함 ("밀, 대두 함유").
	containsRe = regexp.MustCompile(`([가-힣A-Za-z0-9,\s/]+?)\s*(함유|포함)`)
	// Allergy declarations.
	allergyLabelRe   = regexp.MustCompile(`알레르기[^\n:：]*[:：]\s*([^\n]+)`)
	containsLabelRe  = regexp.MustCompile(`(?i)contains\s*[:：]?\s*([^\n]+)`)
	chunkSeparatorRe = regexp.MustCompile(`[,;/\n]`)
	nonTokenCharRe   = regexp.MustCompile(`[^0-9A-Za-z가-힣]`)
)

// Chunks returns the raw list fragments found by the label heuristics, in
// heuristic order. Every 함유/포함 list in the text is included.
func Chunks(text string) []string {
	t := Normalize(text)
	var chunks []string

	if m := englishLabelRe.FindStringSubmatch(t); m != nil {
		chunks = append(chunks, m[1])
	}
	if m := koreanLabelRe.FindStringSubmatch(t); m != nil {
		chunks = append(chunks, m[1])
	}
	for _, m := range containsRe.FindAllStringSubmatch(t, -1) {
		left := strings.TrimSpace(m[1])
		if n := utf8.RuneCountInString(left); n >= minContainsLen && n <= maxContainsLen {
			chunks = append(chunks, left)
		}
	}
	if m := allergyLabelRe.FindStringSubmatch(t); m != nil {
		chunks = append(chunks, m[1])
	}
	if m := containsLabelRe.FindStringSubmatch(t); m != nil {
		chunks = append(chunks, m[1])
	}
	return chunks
}

// Extract returns candidate ingredient tokens from recognized label text:
// deduplicated case-insensitively in first-seen order, without stop words or
// single Latin letters, at most MaxTokens.
func Extract(text string) []string {
	chunks := Chunks(text)
	if len(chunks) == 0 {
		return []string{}
	}

	var tokens []string
	for _, part := range chunkSeparatorRe.Split(strings.Join(chunks, ","), -1) {
		for _, field := range strings.Fields(part) {
			tok := nonTokenCharRe.ReplaceAllString(field, "")
			if n := utf8.RuneCountInString(tok); n < 1 || n > maxTokenLen {
				continue
			}
			if IsStopword(tok) || isSingleLatin(tok) {
				continue
			}
			tokens = append(tokens, tok)
		}
	}

	out := Unique(tokens)
	if len(out) > MaxTokens {
		out = out[:MaxTokens]
	}
	return out
}

// Unique drops case-insensitive duplicates, keeping the first spelling.
func Unique(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, s := range items {
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// isSingleLatin reports a one-letter ASCII token such as a stray "F".
// Single Hangul syllables and digits are kept.
func isSingleLatin(tok string) bool {
	if len(tok) != 1 {
		return false
	}
	c := tok[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
