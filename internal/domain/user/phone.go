package user

import "strings"

// MinTrunkDigits is the shortest national number (without the leading 0)
// that may match the tail of an international number.
const MinTrunkDigits = 7

// NormalizePhone reduces a phone number to its digits. A leading 00
// international prefix is dropped so "0044..." and "+44..." compare equal.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimPrefix(b.String(), "00")
}

// PhoneMatches reports whether a stored number and a shared one refer to the
// same line. Besides an exact digit match, a national number written with a
// trunk 0 matches an international number ending in the same digits.
func PhoneMatches(stored, shared string) bool {
	s, q := NormalizePhone(stored), NormalizePhone(shared)
	if s == "" || q == "" {
		return false
	}
	if s == q {
		return true
	}
	national := strings.TrimPrefix(s, "0")
	return national != s && len(national) >= MinTrunkDigits && strings.HasSuffix(q, national)
}
