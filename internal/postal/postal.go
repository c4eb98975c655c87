package postal

import (
	"errors"
	"strings"
)

// ErrInvalidFormat is returned when a postal code does not match the A1A1A1 shape.
var ErrInvalidFormat = errors.New("invalid postal code format, use format A1A1A1 (e.g. M5V2H1)")

// Normalize trims and upper-cases a raw postal code and validates it against
// the Canadian letter-digit-letter-digit-letter-digit shape (no space).
func Normalize(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 6 {
		return "", ErrInvalidFormat
	}
	for i, c := range code {
		if i%2 == 0 {
			if c < 'A' || c > 'Z' {
				return "", ErrInvalidFormat
			}
		} else {
			if c < '0' || c > '9' {
				return "", ErrInvalidFormat
			}
		}
	}
	return code, nil
}
