// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// The text pipeline (normalize, chunk, sanitize, identify) is pure and has no
// dependencies at all; the orchestrators talk to adapters through ports.
package usecases

import (
	"regexp"
	"strings"
)

var (
	crTabRun        = regexp.MustCompile(`[\r\t]+`)
	spaceBeforeLine = regexp.MustCompile(`[^\S\n]+\n`)
	blankLineRun    = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText cleans extracted legal text before chunking: NUL bytes become
// spaces, runs of CR/tab become one space, trailing blanks before a newline
// are dropped, three or more newlines collapse to a paragraph break, and the
// result is trimmed. Deterministic and total.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	t := strings.ReplaceAll(text, "\x00", " ")
	t = crTabRun.ReplaceAllString(t, " ")
	t = spaceBeforeLine.ReplaceAllString(t, "\n")
	t = blankLineRun.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}
