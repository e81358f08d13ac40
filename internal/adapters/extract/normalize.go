// internal/adapters/extract/normalize.go
package extract

import (
	"regexp"
	"strings"
)

var (
	spaceRuns = regexp.MustCompile(`[ \t]+`)
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText canonicalizes user text before submission: trims the ends,
// collapses runs of spaces and tabs, and collapses runs of blank lines to a
// single blank line. Canonicalization is this adapter's contract, not the
// caller's responsibility.
func NormalizeText(text string) string {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = spaceRuns.ReplaceAllString(t, " ")

	lines := strings.Split(t, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	t = strings.Join(lines, "\n")

	t = blankRuns.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}
