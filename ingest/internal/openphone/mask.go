package openphone

import "strings"

// MaskedFields are the payload keys whose values only reach the log masked.
var MaskedFields = []string{"from", "to", "body", "phone"}

// MaskString hides the middle of s for log output. Strings longer than four
// characters keep their first and last two characters; shorter strings are
// masked entirely. The result has as many characters as s. Length is counted
// in runes, so a character outside the Basic Multilingual Plane (most emoji)
// counts once rather than as two UTF-16 code units.
func MaskString(s string) string {
	r := []rune(s)
	n := len(r)
	if n > 4 {
		return string(r[:2]) + strings.Repeat("*", n-4) + string(r[n-2:])
	}
	return strings.Repeat("*", n)
}

// Mask applies MaskString to non-empty strings and returns any other value
// unchanged.
func Mask(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	return MaskString(s)
}
