// Package ingredients cleans recognized label text and pulls candidate
// ingredient tokens out of it.
package ingredients

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds compatibility characters (fullwidth colons and brackets)
// with NFKC, turns no-break spaces and brackets into spaces and middle-dot
// bullets into commas, then collapses whitespace. A whitespace run that
// contains a line break becomes a single "\n"; any other run becomes a single
// space. The result is trimmed. Normalize is idempotent.
func Normalize(text string) string {
	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))

	inSpace, sawBreak := false, false
	flush := func() {
		if !inSpace {
			return
		}
		if sawBreak {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
		inSpace, sawBreak = false, false
	}

	for _, r := range text {
		r = replaceRune(r)
		if unicode.IsSpace(r) {
			inSpace = true
			if isLineBreak(r) {
				sawBreak = true
			}
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()

	return strings.TrimSpace(b.String())
}

// NormalizeLower is Normalize followed by lowercasing.
func NormalizeLower(text string) string {
	return strings.ToLower(Normalize(text))
}

// Lines splits normalized text into its non-empty lines.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(Normalize(text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func replaceRune(r rune) rune {
	switch r {
	case '\u00a0':
		return ' '
	case '(', ')', '[', ']', '（', '）', '［', '］', '【', '】':
		return ' '
	case '·', '•':
		return ','
	}
	return r
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
