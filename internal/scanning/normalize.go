package scanning

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reHorizSpace = regexp.MustCompile(`[ \t\f\v]{2,}`)
)

// minTextLength is the rune count used by both the OCR acceptance check and the analysis gate.
const minTextLength = 10

// CleanText normalizes OCR output: unified line endings, at most one blank line in a row,
// collapsed horizontal whitespace, trimmed lines.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reHorizSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// textLength counts runes of s after trimming surrounding whitespace.
func textLength(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// nonEmptyLines splits s into trimmed, non-blank lines.
func nonEmptyLines(s string) []string {
	raw := strings.Split(reCRLF.ReplaceAllString(s, "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
