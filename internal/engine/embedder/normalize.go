package embedder

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// normalize applies BERT's uncased basic cleanup in one pass: control
// characters dropped, whitespace folded to spaces, CJK ideographs padded
// with spaces, lowercased, and accents stripped after NFD decomposition.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, r := range norm.NFD.String(text) {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
		case unicode.In(r, unicode.Mn):
		case isWhitespace(r):
			b.WriteByte(' ')
		case isCJK(r):
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// splitWords splits normalized text on whitespace and then around every
// punctuation rune, which becomes a word of its own.
func splitWords(text string) []string {
	var words []string
	for _, field := range strings.Fields(text) {
		start := 0
		for i, r := range field {
			if !isPunctuation(r) {
				continue
			}
			if i > start {
				words = append(words, field[start:i])
			}
			words = append(words, string(r))
			start = i + len(string(r))
		}
		if start < len(field) {
			words = append(words, field[start:])
		}
	}
	return words
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	}
	return unicode.IsControl(r)
}

// isPunctuation treats all non-alphanumeric ASCII symbols as punctuation,
// as BERT does, in addition to Unicode punctuation.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

var cjkRanges = [][2]rune{
	{0x4E00, 0x9FFF},
	{0x3400, 0x4DBF},
	{0x20000, 0x2A6DF},
	{0x2A700, 0x2B73F},
	{0x2B740, 0x2B81F},
	{0x2B820, 0x2CEAF},
	{0xF900, 0xFAFF},
	{0x2F800, 0x2FA1F},
}

func isCJK(r rune) bool {
	for _, rg := range cjkRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}
