package businessflow

import (
	"strings"
	"unicode"
)

// NormalizePhone reduces a phone number to its digits. "+1 (555) 010-0199",
// "15550100199", and "1-555-010-0199" all normalize to the same key.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Fingerprint computes the identity key used to collapse duplicate copies of
// the same feedback arriving through different channels. Two entries with the
// same fingerprint observed within the duplicate window are one piece of
// feedback.
func Fingerprint(phone, text string) string {
	return NormalizePhone(phone) + "|" + strings.ToLower(strings.TrimSpace(text))
}
