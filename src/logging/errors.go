package logging

import "strings"

// IsRateLimit reports whether err came from an upstream that throttled us.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}
