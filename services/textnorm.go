package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text extracted from PDFs arrives with mis-decoded accents that survive as
// literal numeric character references ("Mu#x00F1;oz", "#_#x00E9"), broken
// ligatures, hyphenated line wraps and concatenated words. The helpers here
// repair that before any pattern matching runs.

var (
	charRefUnderscore = regexp.MustCompile(`#_#x00([0-9A-Fa-f]{2})`)
	charRefPlain      = regexp.MustCompile(`#x([0-9A-Fa-f]{2,4});?`)

	hyphenWrap     = regexp.MustCompile(`(?m)([\p{L}\p{N}])-(?:\r?\n)(\p{Ll})`)
	concatWords    = regexp.MustCompile(`([a-záéíóúñ])([A-ZÁÉÍÓÚÑ][a-záéíóúñ]{3,})`)
	authorComma    = regexp.MustCompile(`([A-ZÁÉÍÓÚÑ][a-záéíóúñ]{2,}),([A-ZÁÉÍÓÚÑ])`)
	authorList     = regexp.MustCompile(`([a-záéíóúñ]),([A-ZÁÉÍÓÚÑ][a-záéíóúñ]{2,})`)
	initialSpacing = regexp.MustCompile(`([A-Z])\.([A-Z])`)
	multiSpace     = regexp.MustCompile(`\s+`)
)

var ligatures = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬆ", "st",
)

// RepairCharRefs rewrites literal numeric character-reference artifacts back
// into the characters they encode.
func RepairCharRefs(s string) string {
	s = charRefUnderscore.ReplaceAllStringFunc(s, func(m string) string {
		sub := charRefUnderscore.FindStringSubmatch(m)
		return decodeHexRune(sub[1])
	})
	s = charRefPlain.ReplaceAllStringFunc(s, func(m string) string {
		sub := charRefPlain.FindStringSubmatch(m)
		return decodeHexRune(sub[1])
	})
	return s
}

func decodeHexRune(hex string) string {
	n, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return ""
	}
	return string(rune(n))
}

// NormalizeText repairs encoding artifacts, applies Unicode canonical
// composition and collapses whitespace. An unmatchable input degrades to the
// empty string rather than an error.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = RepairCharRefs(s)
	s = ligatures.Replace(s)
	normalized, _, err := transform.String(transform.Chain(norm.NFC), s)
	if err == nil {
		s = normalized
	}
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// JoinWrappedLines reconstructs text that spans multiple physical lines:
// hyphenated wraps are unhyphenated and the remaining line breaks become
// single spaces, so a title broken across lines matches as one string.
func JoinWrappedLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = hyphenWrap.ReplaceAllString(s, "$1$2")
	s = strings.ReplaceAll(s, "\n", " ")
	return multiSpace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeSpacing repairs the spacing damage typical of column-extracted
// PDF text: words run together, missing spaces after author commas and
// between initials.
func NormalizeSpacing(s string) string {
	s = concatWords.ReplaceAllString(s, "$1 $2")
	s = authorComma.ReplaceAllString(s, "$1, $2")
	s = authorList.ReplaceAllString(s, "$1, $2")
	s = initialSpacing.ReplaceAllString(s, "$1. $2")
	return multiSpace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// stripControl drops non-printing runes, keeping tabs and newlines.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}
