package policy

import "regexp"

// PIIKind names a class of personal data that RedactPII masks.
type PIIKind string

const (
	PIIEmail PIIKind = "email"
	PIICard  PIIKind = "card"
	PIIPhone PIIKind = "phone"
)

type redactionRule struct {
	kind        PIIKind
	pattern     *regexp.Regexp
	replacement string
}

// Card numbers run before phone numbers so a long digit run is never tagged as a phone.
var redactionRules = []redactionRule{
	{PIIEmail, regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{PIICard, regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{PIIPhone, regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// RedactPII masks emails, card numbers and phone numbers in learner text
// before it leaves the process.
func RedactPII(input string) (redacted string, changed bool) {
	out, kinds := RedactPIIKinds(input)
	return out, len(kinds) > 0
}

// RedactPIIKinds is RedactPII that also reports which kinds were found, in
// rule order.
func RedactPIIKinds(input string) (string, []PIIKind) {
	out := input
	var kinds []PIIKind
	for _, rule := range redactionRules {
		next := rule.pattern.ReplaceAllString(out, rule.replacement)
		if next != out {
			kinds = append(kinds, rule.kind)
			out = next
		}
	}
	return out, kinds
}
