package accounts

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const MaxUsernameLen = 64

// NormalizeUsername returns the canonical NFKC form of a username, so that
// visually identical names map to the same account.
func NormalizeUsername(s string) (string, error) {
	s = norm.NFKC.String(strings.TrimSpace(s))
	if s == "" || utf8.RuneCountInString(s) > MaxUsernameLen {
		return "", ErrInvalidUsername
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return "", ErrInvalidUsername
		}
	}
	return s, nil
}
