package pdfdoc

import (
	"regexp"
	"strings"
)

var (
	blankRunPattern     = regexp.MustCompile(`\n{3,}`)
	trailingWSPattern   = regexp.MustCompile(`[ \t]+\n`)
	pageCounterPattern  = regexp.MustCompile(`(?im)^\s*page\s+\d+\s+of\s+\d+\s*$`)
	horizontalWSPattern = regexp.MustCompile(`[ \t]{2,}`)
)

// cleanPageText normalizes line endings and whitespace left by the parser.
func cleanPageText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = pageCounterPattern.ReplaceAllString(s, "")
	s = horizontalWSPattern.ReplaceAllString(s, " ")
	s = trailingWSPattern.ReplaceAllString(s, "\n")
	s = blankRunPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
