package extract

import (
	"strconv"
	"strings"
)

// ParseClock converts "H:MM:SS", "MM:SS" or a bare integer to seconds.
// Placeholders ("", "-", "--") and malformed text both report ok=false.
func ParseClock(text string) (seconds int, ok bool) {
	text = strings.TrimSpace(text)
	switch text {
	case "", "-", "--":
		return 0, false
	}

	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, false
	}

	for _, p := range parts {
		n, ok := parseDigits(p)
		if !ok {
			return 0, false
		}
		seconds = seconds*60 + n
	}
	return seconds, true
}

func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// clockPtr is ParseClock for optional fields.
func clockPtr(text string) *int {
	if v, ok := ParseClock(text); ok {
		return &v
	}
	return nil
}

// parseRank reads "12" or "12." as an integer.
func parseRank(text string) *int {
	text = strings.TrimSuffix(strings.TrimSpace(text), ".")
	if n, ok := parseDigits(text); ok {
		return &n
	}
	return nil
}
