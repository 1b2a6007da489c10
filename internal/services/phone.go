package services

import "strings"

// AnonPhone is the canonical value for input that contains no digits at all.
// Records keyed by it belong to anonymous/system traffic and are never
// persisted remotely.
const AnonPhone = "anonymous"

// CanonicalPhone normalizes free-form phone text into the 11-digit key used
// for every persisted per-user record. It is total: any input produces some
// canonical string. Two raw inputs with the same canonical form are the same
// user.
func CanonicalPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return AnonPhone
	}
	if digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	if len(digits) == 10 {
		digits = "7" + digits
	}
	if len(digits) > 11 {
		digits = digits[len(digits)-11:]
	}
	return digits
}
