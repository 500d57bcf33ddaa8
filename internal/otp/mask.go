package otp

import "strings"

// MaskEmail redacts the local part of an address for UI feedback,
// e.g. "ahmed@example.com" -> "ah***@example.com".
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return local[:1] + "***" + domain
	}
	return local[:2] + "***" + domain
}

// MaskPhone keeps the last three digits visible, e.g. "+923001234567" -> "**********567".
func MaskPhone(phone string) string {
	if len(phone) <= 3 {
		return "***"
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
