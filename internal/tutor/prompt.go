package tutor

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxPaperChars  = 100000
	DefaultWarnPaperChars = 80000

	truncationMarker = "\n\n[... paper truncated ...]"
)

const systemPromptHeader = "\nYou are helping someone understand an academic paper.\n" +
	"Here is the paper \n\n\n"

const systemPromptRules = `

CRITICAL RULES:
1. NEVER explain everything at once. Take ONE small step, then STOP and wait.
2. ALWAYS start by asking what the learner already knows about the topic.
3. After each explanation, ask a question to check understanding OR ask what they want to explore next.
4. Keep responses SHORT (2-4 paragraphs max). End with a question.
5. Use concrete examples and analogies before math.` + " " + `
6. Build foundations with code - Teach unfamiliar mathematical concepts through small numpy experiments rather than pure theory. Let the learner run code and observe patterns.
7. If they ask "explain X", first ask what parts of X they already understand.
8. Use string format like this for formula display ` + "`L_ij = q_i × q_j × exp(-α × D_ij^γ)`" + `.

TEACHING FLOW:
- Assess background → Build intuition with examples → Connect to math → Let learner guide direction

BAD (don't do this):
"Here's everything about DPPs: [wall of text with all equations]"
`

// SystemPrompt embeds the paper text in the tutoring instructions.
func SystemPrompt(paperText string) string {
	var b strings.Builder
	b.Grow(len(systemPromptHeader) + len(paperText) + len(systemPromptRules))
	b.WriteString(systemPromptHeader)
	b.WriteString(paperText)
	b.WriteString(systemPromptRules)
	return b.String()
}

// clampPaper cuts text to at most maxChars runes. maxChars <= 0 disables the limit.
func clampPaper(text string, maxChars int) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i] + truncationMarker, true
		}
		n++
	}
	return text, false
}
