package discount

import "regexp"

var unsafeCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<\s*script`),
	regexp.MustCompile(`(?is)<\s*(iframe|form|object|embed|frameset)`),
	regexp.MustCompile(`(?is)\bon[a-z]+\s*=`),
	regexp.MustCompile(`(?is)(java|vb)?script\s*:`),
}

// IsCleanCode reports whether a voucher code is free of markup that could be
// echoed back into a page.
func IsCleanCode(code string) bool {
	for _, p := range unsafeCodePatterns {
		if p.MatchString(code) {
			return false
		}
	}
	return true
}
