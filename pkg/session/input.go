package session

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/armtemiy/armlab/pkg/domain"
)

// DefaultMaxInputSize bounds a single answer label or node id, in bytes.
const DefaultMaxInputSize = 4096

var (
	ErrInputTooLarge = fmt.Errorf("%w: input exceeds maximum allowed size", domain.ErrInvalidOption)
	ErrInvalidUTF8   = fmt.Errorf("%w: input contains invalid UTF-8 sequences", domain.ErrInvalidOption)
)

// sanitizeInput rejects oversized or non UTF-8 input and strips control
// characters other than newline, tab and carriage return.
func sanitizeInput(input string, limit int) (string, error) {
	// Reject rather than truncate so a cut label never matches a real option.
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Fast path: if no control chars, return as is.
	if strings.IndexFunc(input, isUnsafeControl) < 0 {
		return input, nil
	}
	return strings.Map(func(r rune) rune {
		if isUnsafeControl(r) {
			return -1
		}
		return r
	}, input), nil
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}
