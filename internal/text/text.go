// Package text provides input validation and light normalization for
// synthesis requests.
package text

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// DefaultMaxLength is the default upper bound on input text length.
const DefaultMaxLength = 1000

// wordsPerMinute is the speaking rate used for duration estimates.
const wordsPerMinute = 150.0

const (
	secondsPerMinute = 60.0
	roundFactor      = 100.0
)

// forbiddenCharacters are rejected outright rather than stripped; they have
// no spoken form and tend to indicate markup leaking into the request.
const forbiddenCharacters = "<>{}"

const whitespaceRegexPattern = `\s+`

// Static errors.
var (
	// ErrTextEmpty indicates an empty or whitespace-only input.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrTextTooLong indicates input beyond the configured maximum length.
	ErrTextTooLong = errors.New("text exceeds the maximum length")
	// ErrInvalidCharacters indicates input containing forbidden characters.
	ErrInvalidCharacters = errors.New("text contains invalid characters")
)

// Validator checks and normalizes request text. The zero value is not
// usable; construct with NewValidator so the whitespace pattern is
// compiled once.
type Validator struct {
	maxLength         int
	whitespacePattern *regexp.Regexp
}

// NewValidator creates a Validator with the given maximum text length.
// A non-positive maxLength falls back to DefaultMaxLength.
func NewValidator(maxLength int) *Validator {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	return &Validator{
		maxLength:         maxLength,
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
	}
}

// Validate checks that text is non-empty, within the length limit, and free
// of forbidden characters.
func (v *Validator) Validate(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrTextEmpty
	}

	if len(trimmed) > v.maxLength {
		return fmt.Errorf(
			"%w: maximum is %d characters",
			ErrTextTooLong,
			v.maxLength,
		)
	}

	if strings.ContainsAny(text, forbiddenCharacters) {
		return ErrInvalidCharacters
	}

	return nil
}

// Normalize collapses runs of whitespace to single spaces and trims the
// result. Synthesis engines handle single-spaced text more predictably than
// raw multi-line input.
func (v *Validator) Normalize(text string) string {
	return strings.TrimSpace(v.whitespacePattern.ReplaceAllString(text, " "))
}

// EstimateDuration estimates spoken duration in seconds from the word
// count, assuming an average speaking rate. The result is rounded to two
// decimal places.
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}

	seconds := float64(words) / wordsPerMinute * secondsPerMinute

	return math.Round(seconds*roundFactor) / roundFactor
}
