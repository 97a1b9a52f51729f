// Package textclean filters OCR noise out of raw region text.
package textclean

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinLineLength is the shortest line (in runes, after trimming) that survives.
const MinLineLength = 5

// NoiseChars are characters that mark a line as OCR debris.
const NoiseChars = "|+*=#[]{}~_<>"

var reCRLF = regexp.MustCompile(`\r\n?`)

// Clean keeps the lines of raw that look like address text and rejoins them
// with "\n" in their original order. An empty result means nothing usable.
//
// All-numeric lines are dropped too, which also loses legitimate lines such as
// a bare house number.
func Clean(raw string) string {
	return strings.Join(Lines(raw), "\n")
}

// Lines returns the surviving, trimmed lines of raw.
func Lines(raw string) []string {
	raw = reCRLF.ReplaceAllString(raw, "\n")
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if Keep(line) {
			out = append(out, line)
		}
	}
	return out
}

// Keep reports whether a single trimmed line passes every filter.
func Keep(line string) bool {
	switch {
	case line == "":
		return false
	case utf8.RuneCountInString(line) < MinLineLength:
		return false
	case numeric(line):
		return false
	case strings.ContainsAny(line, NoiseChars):
		return false
	}
	return true
}

// numeric reports whether line is nothing but digits once spaces are removed.
// Tabs are not removed, so "12\t34" is not numeric.
func numeric(line string) bool {
	seen := false
	for _, r := range line {
		if r == ' ' {
			continue
		}
		if !isDigit(r) {
			return false
		}
		seen = true
	}
	return seen
}

// isDigit accepts decimal digits of any script plus the superscript and
// subscript digits, which scanners produce for footnote marks.
func isDigit(r rune) bool {
	switch {
	case unicode.IsDigit(r):
		return true
	case r == '¹' || r == '²' || r == '³':
		return true
	case r == '⁰' || (r >= '⁴' && r <= '⁹'):
		return true
	case r >= '₀' && r <= '₉':
		return true
	}
	return false
}
