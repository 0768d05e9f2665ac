// internal/transport/phone.go
package transport

import "strings"

// FormatPhoneNumber normalizes a phone number to E.164. US and Canada
// 10-digit numbers get a +1 prefix; 11-digit numbers starting with 1 get a
// plus. Returns "" when the input cannot be normalized.
func FormatPhoneNumber(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10:
		return "+1" + d
	case len(d) == 11 && d[0] == '1':
		return "+" + d
	case strings.HasPrefix(phone, "+") && ValidatePhoneNumber(phone):
		return phone
	}
	return ""
}

// ValidatePhoneNumber reports whether phone is plausibly E.164: a plus
// followed by 10 to 15 digits.
func ValidatePhoneNumber(phone string) bool {
	if !strings.HasPrefix(phone, "+") {
		return false
	}
	digits := phone[1:]
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
