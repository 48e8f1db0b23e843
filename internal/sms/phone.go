package sms

import "strings"

// NormalizePhone reduces a phone number to the ten-digit local form the
// transport accepts: strip non-digits, a leading zero, and a leading 91
// country code on twelve-digit numbers. Returns "" when the result is
// not exactly ten digits.
func NormalizePhone(num string) string {
	var b strings.Builder
	for _, r := range num {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	s := b.String()
	if strings.HasPrefix(s, "0") {
		s = s[1:]
	}
	if strings.HasPrefix(s, "91") && len(s) == 12 {
		s = s[2:]
	}
	if len(s) != 10 {
		return ""
	}
	return s
}
